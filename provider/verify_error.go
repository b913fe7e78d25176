package provider

import (
	"fmt"

	"github.com/fennwick/clientauth"
)

// Backend error codes for failed code verification.
const (
	codeExpired      = "otp_expired"
	codeInvalid      = "otp_invalid"
	codeInvalidGrant = "invalid_grant"
)

// VerifyError is a structured one-time-code verification failure. It
// implements [clientauth.CodeClassifier] so the session layer never has to
// fall back to inspecting error text for this provider.
type VerifyError struct {
	Code        string
	Description string
	Status      int
}

func (e *VerifyError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("verify code: %s", e.Description)
	}
	if e.Code != "" {
		return fmt.Sprintf("verify code: %s", e.Code)
	}
	return fmt.Sprintf("verify code: HTTP %d", e.Status)
}

// CodeClass maps the backend error code onto the session layer's taxonomy.
func (e *VerifyError) CodeClass() clientauth.CodeErrorClass {
	switch e.Code {
	case codeExpired:
		return clientauth.CodeErrorExpired
	case codeInvalid, codeInvalidGrant:
		return clientauth.CodeErrorInvalid
	default:
		return clientauth.CodeErrorUnknown
	}
}
