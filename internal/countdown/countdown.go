// Package countdown implements the user-visible resend cooldown counter.
//
// The timer is display-only: enforcement lives in internal/rate. Both sides
// are configured from the same resend interval so the visible counter and the
// limiter agree. Time and tick delivery are injected so tests can run on a
// simulated clock without real delays.
package countdown

import (
	"sync"
	"time"
)

// TickerFactory produces a tick channel for the given interval plus a cancel
// function releasing it. The default factory wraps [time.NewTicker].
type TickerFactory func(interval time.Duration) (<-chan time.Time, func())

func defaultTickerFactory(interval time.Duration) (<-chan time.Time, func()) {
	ticker := time.NewTicker(interval)
	return ticker.C, ticker.Stop
}

// Option configures a [Timer].
type Option func(*Timer)

// WithTickerFactory overrides tick delivery. Used by tests to step the timer
// manually.
func WithTickerFactory(f TickerFactory) Option {
	return func(t *Timer) {
		t.newTicker = f
	}
}

// WithOnTick registers a callback invoked with the remaining whole seconds on
// every tick, including the final zero tick.
func WithOnTick(fn func(remaining int)) Option {
	return func(t *Timer) {
		t.onTick = fn
	}
}

// WithTickInterval overrides the 1 Hz refresh interval.
func WithTickInterval(d time.Duration) Option {
	return func(t *Timer) {
		if d > 0 {
			t.interval = d
		}
	}
}

// Timer counts down to an end instant at 1 Hz. Remaining never goes below
// zero, and the timer stops itself once it reaches zero. Start while running
// cancels the previous run first; Stop is safe in any state.
type Timer struct {
	mu        sync.Mutex
	now       func() time.Time
	newTicker TickerFactory
	onTick    func(remaining int)
	interval  time.Duration

	end     time.Time
	running bool
	stop    chan struct{}
}

// New creates a stopped [Timer] reading time from now.
func New(now func() time.Time, opts ...Option) *Timer {
	if now == nil {
		now = time.Now
	}
	t := &Timer{
		now:       now,
		newTicker: defaultTickerFactory,
		interval:  time.Second,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start begins (or restarts) the countdown for the given duration.
func (t *Timer) Start(d time.Duration) {
	t.mu.Lock()
	t.stopLocked()

	t.end = t.now().Add(d)
	t.running = true
	stop := make(chan struct{})
	t.stop = stop

	tickC, cancel := t.newTicker(t.interval)
	t.mu.Unlock()

	go t.run(stop, tickC, cancel)
}

func (t *Timer) run(stop chan struct{}, tickC <-chan time.Time, cancel func()) {
	defer cancel()

	for {
		select {
		case <-tickC:
			remaining := t.Remaining()
			if t.onTick != nil {
				t.onTick(remaining)
			}
			if remaining <= 0 {
				t.mu.Lock()
				if t.stop == stop {
					t.running = false
					t.stop = nil
				}
				t.mu.Unlock()
				return
			}
		case <-stop:
			return
		}
	}
}

// Stop cancels the countdown and resets the observable value to zero.
// Calling Stop on a stopped timer is a no-op.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

func (t *Timer) stopLocked() {
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
	t.running = false
	t.end = time.Time{}
}

// Remaining reports the whole seconds left, rounded up and clamped at zero.
// A stopped timer reports zero.
func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return 0
	}

	left := t.end.Sub(t.now())
	if left <= 0 {
		return 0
	}
	return int((left + time.Second - 1) / time.Second)
}

// Running reports whether a countdown is in progress.
func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}
