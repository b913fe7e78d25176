package clientauth

import (
	"context"
	"errors"
	"fmt"
)

// CheckCurrentSession recomputes the authentication state from persisted
// evidence: a set guest flag wins over any live remote session; otherwise the
// provider's current session decides between guest and authenticated. The
// call is idempotent and safe to repeat, e.g. on app foreground.
func (c *Client) CheckCurrentSession(ctx context.Context) (AuthState, error) {
	c.metricInc(MetricSessionChecks)

	guest, err := c.state.GuestFlag(ctx)
	if err != nil {
		mapped := mapStateError(err)
		c.setLastAuthErr(mapped)
		return c.State(), mapped
	}
	if guest {
		c.mu.Lock()
		c.auth = AuthState{Status: StatusGuest}
		c.lastAuthErr = nil
		state := c.auth
		c.mu.Unlock()
		return state, nil
	}

	session, err := c.provider.CurrentSession(ctx)
	if err != nil {
		wrapped := fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		c.setLastAuthErr(wrapped)
		return c.State(), wrapped
	}

	c.mu.Lock()
	if session == nil || session.Expired(c.now()) || session.UserID == "" {
		c.auth = AuthState{Status: StatusGuest}
	} else {
		c.auth = AuthState{Status: StatusAuthenticated, UserID: session.UserID}
	}
	c.lastAuthErr = nil
	state := c.auth
	c.mu.Unlock()

	return state, nil
}

// CompleteSignIn installs a freshly issued session as the authenticated
// state and clears the persisted guest flag. Called by the federated and
// one-time-code success paths.
func (c *Client) CompleteSignIn(ctx context.Context, session *Session) error {
	if session == nil || session.UserID == "" {
		return ErrNotAuthenticated
	}

	c.mu.Lock()
	c.auth = AuthState{Status: StatusAuthenticated, UserID: session.UserID}
	c.lastAuthErr = nil
	c.mu.Unlock()

	c.metricInc(MetricSignIn)
	c.emitEvent(ctx, eventSignedIn, session.UserID, true, nil, nil)

	if err := c.state.ClearGuestFlag(ctx); err != nil {
		// The in-memory state is already authoritative; a stale durable flag
		// only matters at next startup.
		return mapStateError(err)
	}
	return nil
}

// SignInWithProvider exchanges a federated identity credential for a session
// and completes sign-in with it.
//
// SignInWithProvider may return an error when input validation, dependency calls, or security checks fail.
// SignInWithProvider does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) SignInWithProvider(ctx context.Context, providerToken string) (*Session, error) {
	if providerToken == "" {
		return nil, ErrNotAuthenticated
	}

	session, err := c.provider.ExchangeFederatedCredential(ctx, providerToken)
	if err != nil {
		wrapped := fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		c.setLastAuthErr(wrapped)
		c.emitEvent(ctx, eventSignedIn, "", false, wrapped, nil)
		return nil, wrapped
	}

	if err := c.CompleteSignIn(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// ContinueAsGuest enters guest mode and persists the guest flag so the choice
// survives restart. Any prior session token at the provider is left intact.
func (c *Client) ContinueAsGuest(ctx context.Context) error {
	c.mu.Lock()
	c.auth = AuthState{Status: StatusGuest}
	c.lastAuthErr = nil
	c.mu.Unlock()

	c.metricInc(MetricGuestEntered)
	c.emitEvent(ctx, eventGuestEntered, "", true, nil, nil)

	if err := c.state.SetGuestFlag(ctx); err != nil {
		return mapStateError(err)
	}
	return nil
}

// SignOut signs out at the provider, clears the guest flag and the profile
// cache, resets the state to unknown, and broadcasts the sign-out event for
// listeners that need to drop unrelated caches. Local state is cleared even
// when the provider call fails; the provider error is still returned.
func (c *Client) SignOut(ctx context.Context) error {
	var providerErr error
	if err := c.provider.SignOut(ctx); err != nil {
		providerErr = fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	userID := c.State().UserID

	c.mu.Lock()
	c.auth = AuthState{Status: StatusUnknown}
	c.pendingLogin = nil
	c.otp = otpSession{gen: c.otp.gen + 1}
	c.mu.Unlock()

	c.limiter.Reset()
	c.countdown.Stop()

	var stateErr error
	if err := c.state.ClearGuestFlag(ctx); err != nil {
		stateErr = mapStateError(err)
	}
	if err := c.cache.Clear(ctx); err != nil && stateErr == nil {
		stateErr = mapStateError(err)
	}

	c.metricInc(MetricSignOut)
	c.emitEvent(ctx, eventSignedOut, userID, providerErr == nil, providerErr, nil)

	if providerErr != nil {
		return providerErr
	}
	return stateErr
}

// RequireAuthentication gates an action behind a signed-in session. When
// already authenticated it invokes onSuccess immediately and returns true.
// Otherwise it stores onSuccess for a later [Client.HandleLoginSuccess] and
// returns false, telling the caller to present the login flow.
//
// Only one pending callback exists at a time: a new call overwrites the
// previous one without firing it. Last caller wins.
func (c *Client) RequireAuthentication(onSuccess func()) bool {
	c.mu.Lock()
	if c.auth.Status == StatusAuthenticated {
		c.mu.Unlock()
		if onSuccess != nil {
			onSuccess()
		}
		return true
	}
	c.pendingLogin = onSuccess
	c.mu.Unlock()
	return false
}

// HandleLoginSuccess fires the pending callback stored by
// [Client.RequireAuthentication] exactly once and clears it. Invoked by the
// presentation layer after the login flow completes.
func (c *Client) HandleLoginSuccess() {
	c.mu.Lock()
	pending := c.pendingLogin
	c.pendingLogin = nil
	c.mu.Unlock()

	if pending != nil {
		pending()
	}
}

// DismissLogin drops the pending callback without firing it.
//
// DismissLogin may return an error when input validation, dependency calls, or security checks fail.
// DismissLogin does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) DismissLogin() {
	c.mu.Lock()
	c.pendingLogin = nil
	c.mu.Unlock()
}

// ClearCache drops the local profile mirror, durable copy included.
//
// ClearCache may return an error when input validation, dependency calls, or security checks fail.
// ClearCache does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) ClearCache(ctx context.Context) error {
	if err := c.cache.Clear(ctx); err != nil {
		return mapStateError(err)
	}
	return nil
}

func mapStateError(err error) error {
	if errors.Is(err, errStateRedisUnavailable) {
		return fmt.Errorf("%w: %v", ErrStateUnavailable, err)
	}
	return err
}
