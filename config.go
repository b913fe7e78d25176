package clientauth

import (
	"errors"
	"time"
)

// Config defines a public type used by clientauth APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	OTP        OTPConfig
	LocalState LocalStateConfig
	Events     EventsConfig
	Metrics    MetricsConfig
}

/*
====================================
OTP CONFIG
====================================
*/

// OTPConfig defines a public type used by clientauth APIs.
//
// OTPConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type OTPConfig struct {
	// ResendInterval is shared by the rate limiter and the visible countdown
	// so the two stay consistent.
	ResendInterval       time.Duration
	WindowDuration       time.Duration
	MaxAttemptsPerWindow int
	CodeDigits           int
}

/*
====================================
LOCAL STATE CONFIG
====================================
*/

// LocalStateConfig defines a public type used by clientauth APIs.
//
// LocalStateConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LocalStateConfig struct {
	RedisPrefix string
	// ProfileTTL bounds how long the durable profile mirror may outlive its
	// last write. Zero keeps it until SignOut or ClearCache.
	ProfileTTL time.Duration
}

/*
====================================
EVENTS CONFIG
====================================
*/

// EventsConfig defines a public type used by clientauth APIs.
//
// EventsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type EventsConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by clientauth APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		OTP: OTPConfig{
			ResendInterval:       60 * time.Second,
			WindowDuration:       time.Hour,
			MaxAttemptsPerWindow: 10,
			CodeDigits:           6,
		},
		LocalState: LocalStateConfig{
			RedisPrefix: "cas",
			ProfileTTL:  0,
		},
		Events: EventsConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c Config) Validate() error {
	if c.OTP.ResendInterval <= 0 {
		return errors.New("OTP ResendInterval must be positive")
	}
	if c.OTP.WindowDuration < c.OTP.ResendInterval {
		return errors.New("OTP WindowDuration must not be shorter than ResendInterval")
	}
	if c.OTP.MaxAttemptsPerWindow <= 0 {
		return errors.New("OTP MaxAttemptsPerWindow must be positive")
	}
	if c.OTP.CodeDigits < 4 || c.OTP.CodeDigits > 10 {
		return errors.New("OTP CodeDigits must be between 4 and 10")
	}
	if c.LocalState.RedisPrefix == "" {
		return errors.New("LocalState RedisPrefix must not be empty")
	}
	if c.LocalState.ProfileTTL < 0 {
		return errors.New("LocalState ProfileTTL must not be negative")
	}
	if c.Events.Enabled && c.Events.BufferSize <= 0 {
		return errors.New("Events BufferSize must be positive when events are enabled")
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	// No reference fields today; the copy keeps builder and client
	// configurations independent.
	return cfg
}
