package clientauth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/fennwick/clientauth/internal/rate"
)

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)

// OTPSnapshot is a point-in-time view of the one-time-code flow, consumed by
// presentation layers.
type OTPSnapshot struct {
	Email            string
	Loading          bool
	ShowCodeInput    bool
	CountdownSeconds int
	LastErr          error
}

// OTPState returns the current one-time-code flow snapshot.
//
// OTPState may return an error when input validation, dependency calls, or security checks fail.
// OTPState does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) OTPState() OTPSnapshot {
	c.mu.Lock()
	snap := OTPSnapshot{
		Email:         c.otp.email,
		Loading:       c.otp.loading,
		ShowCodeInput: c.otp.showCodeInput,
		LastErr:       c.otp.lastErr,
	}
	c.mu.Unlock()

	snap.CountdownSeconds = c.countdown.Remaining()
	return snap
}

// RequestCode asks the identity backend to send a one-time code to email.
//
// Validation and rate limiting both resolve locally: a malformed address or
// an exhausted window never reaches the provider. On success the flow stores
// the email, shows the code input, and starts the visible resend cooldown.
func (c *Client) RequestCode(ctx context.Context, email string) error {
	if c.provider == nil {
		return ErrClientNotReady
	}

	if !emailPattern.MatchString(email) {
		c.mu.Lock()
		c.otp.lastErr = ErrInvalidEmail
		c.mu.Unlock()
		c.metricInc(MetricCodeRequestRejected)
		return ErrInvalidEmail
	}

	if err := c.limiter.CheckAndRecord(); err != nil {
		mapped := mapLimiterError(err)
		c.mu.Lock()
		c.otp.lastErr = mapped
		c.mu.Unlock()
		c.metricInc(MetricCodeRateLimited)
		c.emitEvent(ctx, eventCodeRequested, "", false, mapped, func() map[string]string {
			return map[string]string{
				"email": email,
			}
		})
		return mapped
	}

	c.mu.Lock()
	c.otp.loading = true
	gen := c.otp.gen
	c.mu.Unlock()

	sendErr := c.provider.SendCode(ctx, email)

	c.mu.Lock()
	stale := c.otp.gen != gen
	if !stale {
		c.otp.loading = false
	}
	if sendErr != nil {
		wrapped := fmt.Errorf("%w: %v", ErrProviderUnavailable, sendErr)
		if !stale {
			c.otp.lastErr = wrapped
		}
		c.mu.Unlock()
		c.metricInc(MetricCodeRequestRejected)
		c.emitEvent(ctx, eventCodeRequested, "", false, wrapped, func() map[string]string {
			return map[string]string{
				"email": email,
			}
		})
		return wrapped
	}
	if stale {
		// Flow was reset while the send was in flight; the backend may have
		// mailed a code but the local flow stays cleared.
		c.mu.Unlock()
		return nil
	}
	c.otp.email = email
	c.otp.showCodeInput = true
	c.otp.lastErr = nil
	c.mu.Unlock()

	c.countdown.Start(c.config.OTP.ResendInterval)
	c.metricInc(MetricCodeRequested)
	c.emitEvent(ctx, eventCodeRequested, "", true, nil, func() map[string]string {
		return map[string]string{
			"email": email,
		}
	})
	return nil
}

// VerifyCode exchanges a received one-time code for a session.
//
// Empty or non-numeric codes and codes of the wrong length fail locally with
// [ErrInvalidCode]. Provider failures are classified as expired, invalid, or
// backend-unavailable. On success the local flow state is cleared and the
// countdown stopped; pass the session to [Client.CompleteSignIn] to update
// the authentication state.
func (c *Client) VerifyCode(ctx context.Context, email, code string) (*Session, error) {
	if c.provider == nil {
		return nil, ErrClientNotReady
	}

	if email == "" || code == "" || len(code) != c.config.OTP.CodeDigits || !isNumericString(code) {
		c.mu.Lock()
		c.otp.lastErr = ErrInvalidCode
		c.mu.Unlock()
		c.metricInc(MetricCodeVerifyFailure)
		return nil, ErrInvalidCode
	}

	c.mu.Lock()
	c.otp.loading = true
	gen := c.otp.gen
	c.mu.Unlock()

	session, verifyErr := c.provider.VerifyCode(ctx, email, code)

	c.mu.Lock()
	stale := c.otp.gen != gen || c.otp.email != email
	if !stale {
		c.otp.loading = false
	}

	if verifyErr != nil {
		mapped := mapVerifyError(verifyErr)
		if !stale {
			c.otp.lastErr = mapped
		}
		c.mu.Unlock()
		c.metricInc(MetricCodeVerifyFailure)
		c.emitEvent(ctx, eventCodeVerified, "", false, mapped, func() map[string]string {
			return map[string]string{
				"email": email,
			}
		})
		return nil, mapped
	}

	if stale {
		// Reset or sign-out won the race; do not resurrect the flow.
		c.mu.Unlock()
		return nil, ErrCodeExpired
	}

	c.otp.email = ""
	c.otp.showCodeInput = false
	c.otp.lastErr = nil
	c.mu.Unlock()

	c.countdown.Stop()
	c.metricInc(MetricCodeVerifySuccess)
	c.emitEvent(ctx, eventCodeVerified, session.UserID, true, nil, nil)
	return session, nil
}

// Resend repeats the last code request. It requires a previously stored
// email and passes through the same rate limiting as the original request;
// resends are deliberately not exempt.
func (c *Client) Resend(ctx context.Context) error {
	c.mu.Lock()
	email := c.otp.email
	c.mu.Unlock()

	if email == "" {
		c.mu.Lock()
		c.otp.lastErr = ErrInvalidEmail
		c.mu.Unlock()
		return ErrInvalidEmail
	}

	return c.RequestCode(ctx, email)
}

// ResetOTP clears the one-time-code flow: session fields, limiter window, and
// countdown. Idempotent; used on cancel or navigation away. A provider call
// still in flight when ResetOTP runs completes without touching local state.
func (c *Client) ResetOTP() {
	c.mu.Lock()
	c.otp.email = ""
	c.otp.loading = false
	c.otp.showCodeInput = false
	c.otp.lastErr = nil
	c.otp.gen++
	c.mu.Unlock()

	c.limiter.Reset()
	c.countdown.Stop()
}

func mapLimiterError(err error) error {
	switch {
	case errors.Is(err, rate.ErrAttemptsExceeded):
		return ErrTooManyAttempts
	case errors.Is(err, rate.ErrCooldownActive):
		return ErrResendTooSoon
	default:
		return err
	}
}

// mapVerifyError translates a provider verification failure into the public
// taxonomy via classifyVerifyError.
func mapVerifyError(err error) error {
	switch classifyVerifyError(err) {
	case CodeErrorExpired:
		return ErrCodeExpired
	case CodeErrorInvalid:
		return ErrInvalidCode
	default:
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
}

// classifyVerifyError is the single place verification failures are
// classified. Providers that implement [CodeClassifier] are trusted directly;
// the text inspection below is a best-effort heuristic for providers that
// only surface opaque errors, and is advisory rather than guaranteed.
func classifyVerifyError(err error) CodeErrorClass {
	var classifier CodeClassifier
	if errors.As(err, &classifier) {
		return classifier.CodeClass()
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "expired"):
		return CodeErrorExpired
	case strings.Contains(msg, "invalid"):
		return CodeErrorInvalid
	default:
		return CodeErrorUnknown
	}
}

func isNumericString(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
