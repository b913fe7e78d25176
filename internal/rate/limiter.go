package rate

import (
	"sync"
	"time"
)

// Config holds limiter tuning parameters.
type Config struct {
	MaxAttempts    int
	Window         time.Duration
	ResendInterval time.Duration
}

// Limiter enforces the attempt budget and minimum resend interval for one
// local one-time-code flow instance. Time is read through the injected now
// function so tests can drive a simulated clock.
type Limiter struct {
	mu     sync.Mutex
	now    func() time.Time
	config Config

	attempts    int
	windowStart time.Time
	lastSent    time.Time
}

// New creates a [Limiter] reading time from now.
func New(now func() time.Time, cfg Config) *Limiter {
	if now == nil {
		now = time.Now
	}
	return &Limiter{
		now:    now,
		config: cfg,
	}
}

// CheckAndRecord checks whether a send is currently allowed and, when it is,
// records the attempt atomically with the check. Window expiry is evaluated
// before the budget so a stale window never blocks a fresh attempt.
func (l *Limiter) CheckAndRecord() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	if !l.windowStart.IsZero() && now.Sub(l.windowStart) > l.config.Window {
		l.attempts = 0
		l.windowStart = now
	}
	if l.windowStart.IsZero() {
		l.windowStart = now
	}

	if l.attempts >= l.config.MaxAttempts {
		return ErrAttemptsExceeded
	}

	if !l.lastSent.IsZero() && now.Sub(l.lastSent) < l.config.ResendInterval {
		return ErrCooldownActive
	}

	l.attempts++
	l.lastSent = now
	return nil
}

// Reset clears the window, the attempt count, and the last-sent marker.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.attempts = 0
	l.windowStart = time.Time{}
	l.lastSent = time.Time{}
}

// Attempts reports the number of attempts recorded in the current window.
func (l *Limiter) Attempts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.attempts
}
