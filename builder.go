package clientauth

import (
	"errors"
	"time"

	"github.com/fennwick/clientauth/internal/countdown"
	"github.com/fennwick/clientauth/internal/rate"
	"github.com/redis/go-redis/v9"
)

// Builder defines a public type used by clientauth APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	provider SessionProvider
	profiles ProfileStore
	blobs    BlobStore

	sink EventSink
	now  func() time.Time

	tickerFactory countdown.TickerFactory

	built bool
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig may return an error when input validation, dependency calls, or security checks fail.
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
//
// WithRedis may return an error when input validation, dependency calls, or security checks fail.
// WithRedis does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithSessionProvider describes the withsessionprovider operation and its observable behavior.
//
// WithSessionProvider may return an error when input validation, dependency calls, or security checks fail.
// WithSessionProvider does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithSessionProvider(p SessionProvider) *Builder {
	b.provider = p
	return b
}

// WithProfileStore describes the withprofilestore operation and its observable behavior.
//
// WithProfileStore may return an error when input validation, dependency calls, or security checks fail.
// WithProfileStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithProfileStore(s ProfileStore) *Builder {
	b.profiles = s
	return b
}

// WithBlobStore describes the withblobstore operation and its observable behavior.
//
// WithBlobStore may return an error when input validation, dependency calls, or security checks fail.
// WithBlobStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithBlobStore(s BlobStore) *Builder {
	b.blobs = s
	return b
}

// WithEventSink describes the witheventsink operation and its observable behavior.
//
// WithEventSink may return an error when input validation, dependency calls, or security checks fail.
// WithEventSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithEventSink(sink EventSink) *Builder {
	b.sink = sink
	return b
}

// WithClock injects the time source shared by the rate limiter and the
// countdown timer, so tests can simulate elapsed time.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled may return an error when input validation, dependency calls, or security checks fail.
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.provider == nil {
		return nil, errors.New("session provider required")
	}
	if b.profiles == nil {
		return nil, errors.New("profile store required")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	state := newLocalStateStore(b.redis, cfg.LocalState)

	countdownOpts := []countdown.Option{}
	if b.tickerFactory != nil {
		countdownOpts = append(countdownOpts, countdown.WithTickerFactory(b.tickerFactory))
	}

	client := &Client{
		config:   cfg,
		now:      now,
		provider: b.provider,
		profiles: b.profiles,
		blobs:    b.blobs,
		state:    state,
		cache:    newProfileCache(state),
		limiter: rate.New(now, rate.Config{
			MaxAttempts:    cfg.OTP.MaxAttemptsPerWindow,
			Window:         cfg.OTP.WindowDuration,
			ResendInterval: cfg.OTP.ResendInterval,
		}),
		countdown: countdown.New(now, countdownOpts...),
		events:    newEventDispatcher(cfg.Events, b.sink),
		metrics:   NewMetrics(cfg.Metrics),
	}

	b.built = true

	return client, nil
}
