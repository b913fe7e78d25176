package clientauth

import (
	"context"
	"fmt"
)

// EnsureProfileExists resolves the current user's profile with the
// cache-then-remote-then-create policy: a cached record wins, a remote record
// is cached and returned, and only when neither exists is a new record
// created with defaultName. Two overlapping calls that both observe "not
// found" can both attempt the create; exactly-once semantics belong to the
// Profile Store's identity key, not to this layer.
func (c *Client) EnsureProfileExists(ctx context.Context, defaultName string) (*ProfileRecord, error) {
	userID, err := c.currentUserID()
	if err != nil {
		return nil, err
	}

	if record := c.cachedProfile(ctx, userID); record != nil {
		c.metricInc(MetricProfileCacheHit)
		return record, nil
	}
	c.metricInc(MetricProfileCacheMiss)

	record, err := c.profiles.Fetch(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if record != nil {
		c.cachePut(ctx, record)
		return record, nil
	}

	if defaultName == "" {
		return nil, ErrDisplayNameRequired
	}

	created, err := c.profiles.Create(ctx, userID, defaultName, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	c.cachePut(ctx, created)
	c.metricInc(MetricProfileCreated)
	c.emitEvent(ctx, eventProfileCreated, userID, true, nil, func() map[string]string {
		return map[string]string{
			"display_name": created.DisplayName,
		}
	})
	return created, nil
}

// CurrentProfile returns the current user's profile, cached or freshly
// fetched. Unlike [Client.EnsureProfileExists] it never creates: a user with
// no remote record gets [ErrProfileNotFound].
func (c *Client) CurrentProfile(ctx context.Context) (*ProfileRecord, error) {
	userID, err := c.currentUserID()
	if err != nil {
		return nil, err
	}

	if record := c.cachedProfile(ctx, userID); record != nil {
		c.metricInc(MetricProfileCacheHit)
		return record, nil
	}
	c.metricInc(MetricProfileCacheMiss)

	record, err := c.profiles.Fetch(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if record == nil {
		return nil, ErrProfileNotFound
	}

	c.cachePut(ctx, record)
	return record, nil
}

// UpdateProfile writes the record through to the remote store first and only
// mirrors it locally once the remote accepted it. A remote failure leaves the
// cache at its pre-update value.
func (c *Client) UpdateProfile(ctx context.Context, record *ProfileRecord) (*ProfileRecord, error) {
	userID, err := c.currentUserID()
	if err != nil {
		return nil, err
	}
	if record == nil || record.DisplayName == "" {
		return nil, ErrDisplayNameRequired
	}

	fields := ProfileUpdate{
		DisplayName: &record.DisplayName,
		Bio:         &record.Bio,
		IsPublic:    &record.IsPublic,
		AvatarURL:   &record.AvatarURL,
	}

	updated, err := c.profiles.Update(ctx, userID, fields)
	if err != nil {
		c.metricInc(MetricProfileUpdateFailure)
		c.emitEvent(ctx, eventProfileUpdated, userID, false, err, nil)
		return nil, fmt.Errorf("%w: %v", ErrProfileUpdateFailed, err)
	}

	c.cachePut(ctx, updated)
	c.emitEvent(ctx, eventProfileUpdated, userID, true, nil, nil)
	return updated, nil
}

// ToggleVisibility flips the profile's public flag, writing through the
// remote like any other update.
func (c *Client) ToggleVisibility(ctx context.Context) (*ProfileRecord, error) {
	current, err := c.CurrentProfile(ctx)
	if err != nil {
		return nil, err
	}

	current.IsPublic = !current.IsPublic
	return c.UpdateProfile(ctx, current)
}

// AttachAvatar uploads the image through the Blob Store and points the
// profile at the returned URL. When the upload succeeds but the profile
// update fails, the freshly stored blob is left in place: the profile still
// shows the old avatar and a retried update reuses a fresh upload. No
// compensating delete is attempted.
func (c *Client) AttachAvatar(ctx context.Context, image []byte) (*ProfileRecord, error) {
	userID, err := c.currentUserID()
	if err != nil {
		return nil, err
	}
	if c.blobs == nil {
		return nil, ErrClientNotReady
	}
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrBlobUploadFailed)
	}

	current, err := c.CurrentProfile(ctx)
	if err != nil {
		return nil, err
	}

	url, err := c.blobs.Upload(ctx, userID, image)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBlobUploadFailed, err)
	}

	current.AvatarURL = url
	updated, err := c.UpdateProfile(ctx, current)
	if err != nil {
		return nil, err
	}

	c.metricInc(MetricAvatarUploaded)
	c.emitEvent(ctx, eventAvatarAttached, userID, true, nil, nil)
	return updated, nil
}

func (c *Client) currentUserID() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.auth.Status != StatusAuthenticated || c.auth.UserID == "" {
		return "", ErrNotAuthenticated
	}
	return c.auth.UserID, nil
}

// cachedProfile returns the cached record when it belongs to userID. A
// record left behind by a different user is dropped instead of served.
func (c *Client) cachedProfile(ctx context.Context, userID string) *ProfileRecord {
	record := c.cache.Get(ctx)
	if record == nil {
		return nil
	}
	if record.UserID != userID {
		_ = c.cache.Clear(ctx)
		return nil
	}
	return record
}

// cachePut mirrors a remote-accepted record locally. Durable-write failures
// are observable on the event stream but never fail the operation; the
// in-memory mirror stays authoritative.
func (c *Client) cachePut(ctx context.Context, record *ProfileRecord) {
	if err := c.cache.Put(ctx, record); err != nil {
		c.emitEvent(ctx, eventCacheWriteSkip, record.UserID, false, err, nil)
	}
}
