package clientauth

import "errors"

var (
	// ErrInvalidEmail is an exported constant or variable used by the client session layer.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrInvalidCode is an exported constant or variable used by the client session layer.
	ErrInvalidCode = errors.New("invalid one-time code")
	// ErrCodeExpired is an exported constant or variable used by the client session layer.
	ErrCodeExpired = errors.New("one-time code expired")
	// ErrTooManyAttempts is an exported constant or variable used by the client session layer.
	ErrTooManyAttempts = errors.New("too many code requests in the current window")
	// ErrResendTooSoon is an exported constant or variable used by the client session layer.
	ErrResendTooSoon = errors.New("resend requested before cooldown elapsed")
	// ErrNotAuthenticated is an exported constant or variable used by the client session layer.
	ErrNotAuthenticated = errors.New("operation requires an authenticated session")
	// ErrProfileNotFound is an exported constant or variable used by the client session layer.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrProfileUpdateFailed is an exported constant or variable used by the client session layer.
	ErrProfileUpdateFailed = errors.New("profile update failed")
	// ErrDisplayNameRequired is an exported constant or variable used by the client session layer.
	ErrDisplayNameRequired = errors.New("display name must not be empty")
	// ErrProviderUnavailable is an exported constant or variable used by the client session layer.
	ErrProviderUnavailable = errors.New("identity backend unavailable")
	// ErrBlobUploadFailed is an exported constant or variable used by the client session layer.
	ErrBlobUploadFailed = errors.New("avatar upload failed")
	// ErrStateUnavailable is an exported constant or variable used by the client session layer.
	ErrStateUnavailable = errors.New("local state backend unavailable")
	// ErrClientNotReady is an exported constant or variable used by the client session layer.
	ErrClientNotReady = errors.New("client not initialized")
)
