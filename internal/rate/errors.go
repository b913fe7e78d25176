package rate

import "errors"

var (
	// ErrAttemptsExceeded is an exported constant or variable used by the client session layer.
	ErrAttemptsExceeded = errors.New("attempt budget exceeded for current window")
	// ErrCooldownActive is an exported constant or variable used by the client session layer.
	ErrCooldownActive = errors.New("minimum resend interval not elapsed")
)
