package clientauth

import (
	"context"
	"sync"
)

// profileCache mirrors the single current-user profile: an in-memory copy in
// front of the durable local store. The memory copy stays authoritative for
// the process lifetime even when a durable write fails. Callers receive
// copies, never the cached record itself.
type profileCache struct {
	store *localStateStore

	mu  sync.Mutex
	mem *ProfileRecord
}

func newProfileCache(store *localStateStore) *profileCache {
	return &profileCache{store: store}
}

// Get returns the cached record or nil on a miss. A durable copy that cannot
// be read or decoded counts as a miss.
func (c *profileCache) Get(ctx context.Context) *ProfileRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mem != nil {
		copied := *c.mem
		return &copied
	}

	record, err := c.store.LoadProfile(ctx)
	if err != nil || record == nil {
		return nil
	}

	c.mem = record
	copied := *record
	return &copied
}

// Put replaces the cached record in memory and writes through to the durable
// store. The returned error reports only the durable write; the memory update
// always succeeds.
func (c *profileCache) Put(ctx context.Context, record *ProfileRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	copied := *record
	c.mem = &copied

	return c.store.SaveProfile(ctx, &copied)
}

// Clear drops both the memory and durable copies.
func (c *profileCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.mem = nil
	return c.store.ClearProfile(ctx)
}

// Cached reports whether a record is held in memory, without touching the
// durable store.
func (c *profileCache) Cached() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mem != nil
}
