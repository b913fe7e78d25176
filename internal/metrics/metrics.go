// Package metrics provides lock-free counters for session-layer
// observability.
//
// # Design
//
// Counters are stored in fixed uint64 slots and incremented atomically via
// [sync/atomic.AddUint64]. The write path is allocation-free.
//
// # What this package must NOT do
//
//   - Perform I/O or network calls.
//   - Import clientauth or any sibling package.
//   - Expose global metric registries.
package metrics

import "sync/atomic"

// MetricID identifies a single counter slot.
type MetricID int

const (
	MetricCodeRequested MetricID = iota
	MetricCodeRequestRejected
	MetricCodeRateLimited
	MetricCodeVerifySuccess
	MetricCodeVerifyFailure
	MetricSignIn
	MetricSignOut
	MetricGuestEntered
	MetricSessionChecks
	MetricProfileCreated
	MetricProfileCacheHit
	MetricProfileCacheMiss
	MetricProfileUpdateFailure
	MetricAvatarUploaded

	MetricIDCount
)

// Config controls metric collection.
type Config struct {
	Enabled bool
}

// Metrics holds one atomic counter per [MetricID]. A disabled instance turns
// every operation into a no-op.
type Metrics struct {
	enabled  bool
	counters [MetricIDCount]uint64
}

// New creates a [Metrics] instance.
func New(cfg Config) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Inc increments the counter for id. Out-of-range ids are ignored.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id < 0 || id >= MetricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id], 1)
}

// Get reads the counter for id.
func (m *Metrics) Get(id MetricID) uint64 {
	if m == nil || !m.enabled || id < 0 || id >= MetricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id])
}

// Snapshot is a point-in-time deep copy of all counters.
type Snapshot struct {
	Counters [MetricIDCount]uint64
}

// Snapshot copies every counter atomically slot by slot.
func (m *Metrics) Snapshot() Snapshot {
	var snap Snapshot
	if m == nil || !m.enabled {
		return snap
	}
	for i := range m.counters {
		snap.Counters[i] = atomic.LoadUint64(&m.counters[i])
	}
	return snap
}
