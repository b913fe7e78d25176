package clientauth

import (
	"context"
	"sync"
	"time"

	"github.com/fennwick/clientauth/internal/countdown"
	internalnotify "github.com/fennwick/clientauth/internal/notify"
	"github.com/fennwick/clientauth/internal/rate"
)

// Client defines a public type used by clientauth APIs.
//
// Client owns the authentication state machine, the one-time-code flow, and
// the profile cache. All state transitions go through its methods; the only
// suspension points are calls into the remote collaborators, and responses
// arriving after a local reset or sign-out are discarded.
type Client struct {
	config Config
	now    func() time.Time

	provider SessionProvider
	profiles ProfileStore
	blobs    BlobStore

	state     *localStateStore
	cache     *profileCache
	limiter   *rate.Limiter
	countdown *countdown.Timer
	events    *eventDispatcher
	metrics   *Metrics

	mu           sync.Mutex
	auth         AuthState
	lastAuthErr  error
	pendingLogin func()
	otp          otpSession
}

// otpSession is the transient one-time-code flow state. gen increments on
// every reset and sign-out; in-flight provider responses compare it before
// applying their result.
type otpSession struct {
	email         string
	loading       bool
	showCodeInput bool
	lastErr       error
	gen           uint64
}

// State returns the current authentication state.
//
// State may return an error when input validation, dependency calls, or security checks fail.
// State does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) State() AuthState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.auth
}

// LastAuthError returns the most recent authentication-path failure, for
// presentation layers that poll rather than branch on returned errors.
func (c *Client) LastAuthError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastAuthErr
}

// CountdownSeconds reports the visible resend cooldown in whole seconds,
// zero when no cooldown is active.
func (c *Client) CountdownSeconds() int {
	return c.countdown.Remaining()
}

// MetricsSnapshot returns a deep copy of all operation counters.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	return c.metrics.Snapshot()
}

// EventsDropped reports how many lifecycle events were discarded because the
// dispatcher buffer was full.
func (c *Client) EventsDropped() uint64 {
	return c.events.Dropped()
}

// Close stops the countdown timer and drains the event dispatcher. The client
// must not be used afterwards.
func (c *Client) Close() {
	c.countdown.Stop()
	c.events.Close()
}

func (c *Client) metricInc(id MetricID) {
	c.metrics.Inc(id)
}

// emitEvent mirrors the lazily-built-metadata shape so disabled dispatchers
// never allocate the map.
func (c *Client) emitEvent(ctx context.Context, eventType, userID string, success bool, err error, metadata func() map[string]string) {
	if c.events == nil {
		return
	}
	var md map[string]string
	if metadata != nil {
		md = metadata()
	}
	c.events.Emit(ctx, internalnotify.NewEvent(c.now(), eventType, userID, success, err, md))
}

func (c *Client) setLastAuthErr(err error) {
	c.mu.Lock()
	c.lastAuthErr = err
	c.mu.Unlock()
}
