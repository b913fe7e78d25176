package clientauth

import (
	"context"
	"io"
	"time"

	internalmetrics "github.com/fennwick/clientauth/internal/metrics"
	internalnotify "github.com/fennwick/clientauth/internal/notify"
)

// AuthStatus represents the authentication state of the session layer.
type AuthStatus uint8

const (
	// StatusUnknown is an exported constant or variable used by the client session layer.
	StatusUnknown AuthStatus = iota
	// StatusGuest is an exported constant or variable used by the client session layer.
	StatusGuest
	// StatusAuthenticated is an exported constant or variable used by the client session layer.
	StatusAuthenticated
)

// String returns the lowercase name of the status.
func (s AuthStatus) String() string {
	switch s {
	case StatusGuest:
		return "guest"
	case StatusAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// AuthState is the single source of truth for who is signed in. Exactly one
// value is live at a time and it is mutated only through [Client] transition
// operations. UserID is set only when Status is [StatusAuthenticated].
type AuthState struct {
	Status AuthStatus
	UserID string
}

// Session is issued by the [SessionProvider] after a successful credential
// exchange or code verification.
type Session struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Expired reports whether the session is past its expiry at the given instant.
// Sessions without an expiry never expire locally.
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// ProfileRecord is the public profile of the signed-in user. The remote
// Profile Store owns it; the session layer mirrors at most one record, keyed
// by the current user. CreatedAt is immutable; UpdatedAt is set by the remote
// on every mutation.
type ProfileRecord struct {
	UserID      string
	DisplayName string
	Bio         string
	IsPublic    bool
	AvatarURL   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProfileUpdate carries the partial fields of a profile mutation. Nil fields
// are left untouched by the remote.
type ProfileUpdate struct {
	DisplayName *string
	Bio         *string
	IsPublic    *bool
	AvatarURL   *string
}

// SessionProvider is the identity backend contract consumed by the session
// layer. Implementations authenticate credentials, send and verify one-time
// codes, and report the currently persisted session, if any.
//
// CurrentSession returns (nil, nil) when no session is persisted.
type SessionProvider interface {
	CurrentSession(ctx context.Context) (*Session, error)
	SendCode(ctx context.Context, email string) error
	VerifyCode(ctx context.Context, email, code string) (*Session, error)
	ExchangeFederatedCredential(ctx context.Context, providerToken string) (*Session, error)
	SignOut(ctx context.Context) error
}

// ProfileStore is the remote CRUD contract for profile records keyed by user
// id. Fetch returns (nil, nil) when no record exists.
type ProfileStore interface {
	Create(ctx context.Context, userID, displayName, bio string) (*ProfileRecord, error)
	Fetch(ctx context.Context, userID string) (*ProfileRecord, error)
	FetchMany(ctx context.Context, userIDs []string) (map[string]*ProfileRecord, error)
	Update(ctx context.Context, userID string, fields ProfileUpdate) (*ProfileRecord, error)
}

// BlobStore stores binary avatar assets and returns retrievable URLs.
// Encoding and resizing happen behind this contract, not in the session layer.
type BlobStore interface {
	Upload(ctx context.Context, userID string, image []byte) (string, error)
	Delete(ctx context.Context, userID string) error
}

// CodeErrorClass classifies a failed one-time-code verification.
type CodeErrorClass int

const (
	// CodeErrorUnknown is an exported constant or variable used by the client session layer.
	CodeErrorUnknown CodeErrorClass = iota
	// CodeErrorExpired is an exported constant or variable used by the client session layer.
	CodeErrorExpired
	// CodeErrorInvalid is an exported constant or variable used by the client session layer.
	CodeErrorInvalid
)

// CodeClassifier is implemented by [SessionProvider] errors that carry a
// structured verification failure class. Providers that can report the class
// directly should; the session layer only falls back to inspecting the error
// text when they cannot.
type CodeClassifier interface {
	CodeClass() CodeErrorClass
}

// Event is a structured lifecycle event emitted by the session layer.
type Event = internalnotify.Event

// EventSink receives [Event] values from the session layer's dispatcher.
type EventSink = internalnotify.Sink

// NoOpSink is an [EventSink] that silently discards all events.
type NoOpSink = internalnotify.NoOpSink

// ChannelSink is a buffered channel-based [EventSink].
type ChannelSink = internalnotify.ChannelSink

// JSONWriterSink is an [EventSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalnotify.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalnotify.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalnotify.NewJSONWriterSink(w)
}

// MetricID identifies a specific counter in the in-process metrics system.
type MetricID = internalmetrics.MetricID

const (
	// MetricCodeRequested is an exported constant or variable used by the client session layer.
	MetricCodeRequested = internalmetrics.MetricCodeRequested
	// MetricCodeRequestRejected is an exported constant or variable used by the client session layer.
	MetricCodeRequestRejected = internalmetrics.MetricCodeRequestRejected
	// MetricCodeRateLimited is an exported constant or variable used by the client session layer.
	MetricCodeRateLimited = internalmetrics.MetricCodeRateLimited
	// MetricCodeVerifySuccess is an exported constant or variable used by the client session layer.
	MetricCodeVerifySuccess = internalmetrics.MetricCodeVerifySuccess
	// MetricCodeVerifyFailure is an exported constant or variable used by the client session layer.
	MetricCodeVerifyFailure = internalmetrics.MetricCodeVerifyFailure
	// MetricSignIn is an exported constant or variable used by the client session layer.
	MetricSignIn = internalmetrics.MetricSignIn
	// MetricSignOut is an exported constant or variable used by the client session layer.
	MetricSignOut = internalmetrics.MetricSignOut
	// MetricGuestEntered is an exported constant or variable used by the client session layer.
	MetricGuestEntered = internalmetrics.MetricGuestEntered
	// MetricSessionChecks is an exported constant or variable used by the client session layer.
	MetricSessionChecks = internalmetrics.MetricSessionChecks
	// MetricProfileCreated is an exported constant or variable used by the client session layer.
	MetricProfileCreated = internalmetrics.MetricProfileCreated
	// MetricProfileCacheHit is an exported constant or variable used by the client session layer.
	MetricProfileCacheHit = internalmetrics.MetricProfileCacheHit
	// MetricProfileCacheMiss is an exported constant or variable used by the client session layer.
	MetricProfileCacheMiss = internalmetrics.MetricProfileCacheMiss
	// MetricProfileUpdateFailure is an exported constant or variable used by the client session layer.
	MetricProfileUpdateFailure = internalmetrics.MetricProfileUpdateFailure
	// MetricAvatarUploaded is an exported constant or variable used by the client session layer.
	MetricAvatarUploaded = internalmetrics.MetricAvatarUploaded
)

// Metrics holds atomic counters for session-layer operations.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time deep copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a new [Metrics] instance configured by the given
// [MetricsConfig]. When Enabled is false, all operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled: cfg.Enabled,
	})
}
