// Package flow orchestrates the authorization code flow: login redirect,
// callback validation, session promotion and logout with upstream revocation.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"kcgateway/internal/identity"
	"kcgateway/internal/session"
)

// revokeTimeout bounds the fire-and-forget revocation call issued on logout.
const revokeTimeout = 10 * time.Second

// ProviderClient is the outbound surface the controller needs from the
// identity provider. Satisfied by *keycloak.Client; tests substitute a stub.
type ProviderClient interface {
	AuthCodeURL(state, verifier string) string
	Exchange(ctx context.Context, code, verifier string) (*session.Tokens, error)
	FetchIdentity(ctx context.Context, tokens *session.Tokens) (*identity.User, error)
	Revoke(ctx context.Context, refreshToken string) error
}

// Controller drives sessions through
// Anonymous -> PendingLogin -> Authenticated -> Anonymous.
// It never holds a store lock across a provider call: pending state is
// consumed before the exchange, promotion happens after.
type Controller struct {
	store  *session.Store
	client ProviderClient
}

// NewController creates a flow controller over the given store and provider
// client.
func NewController(store *session.Store, client ProviderClient) *Controller {
	return &Controller{store: store, client: client}
}

// LoginRedirect is the outcome of starting a login: the session the attempt
// is bound to and the provider authorization URL to redirect the browser to.
type LoginRedirect struct {
	SessionID  string
	AuthURL    string
	NewSession bool
}

// CallbackResult is the outcome of a completed callback.
type CallbackResult struct {
	User     *identity.User
	ReturnTo string
}

// Login starts a login attempt for the given session, creating a session
// when the ID is empty or no longer live. A fresh state token and PKCE
// verifier are stored as the session's pending login data, superseding any
// earlier attempt. Pure local state transition plus URL construction: no
// network call happens here.
func (c *Controller) Login(sessionID, returnTo string) (*LoginRedirect, error) {
	created := false

	sess, err := c.store.Get(sessionID)
	if err != nil {
		sess, err = c.store.Create()
		if err != nil {
			return nil, fmt.Errorf("failed to create session: %w", err)
		}
		created = true
	}

	state, err := NewStateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	verifier, err := NewCodeVerifier()
	if err != nil {
		return nil, fmt.Errorf("failed to generate code verifier: %w", err)
	}

	if err := c.store.SetPending(sess.ID, state, verifier, returnTo); err != nil {
		return nil, fmt.Errorf("failed to store pending login: %w", err)
	}

	return &LoginRedirect{
		SessionID:  sess.ID,
		AuthURL:    c.client.AuthCodeURL(state, verifier),
		NewSession: created,
	}, nil
}

// Callback completes a login attempt. Order of checks:
//
//  1. the initiating session must still exist (KindSessionNotFound),
//  2. the authorization code must be present (KindMissingCode) — checked
//     before state consumption, so a provider redirect without a code does
//     not burn the pending state,
//  3. the state token must match and is consumed atomically
//     (KindInvalidState) — single-use: a second callback for the same state
//     fails here, and no exchange is attempted on any mismatch.
//
// Only then are the exchange and identity retrieval performed. On any
// failure past state consumption the session stays anonymous with no pending
// login: it is never left dangling mid-transition, and no partial tokens are
// stored.
func (c *Controller) Callback(ctx context.Context, sessionID, code, state string) (*CallbackResult, error) {
	if sessionID == "" {
		return nil, newError(KindSessionNotFound, "no session for callback", nil)
	}
	if _, err := c.store.Get(sessionID); err != nil {
		return nil, newError(KindSessionNotFound, "no session for callback", err)
	}

	if code == "" {
		return nil, newError(KindMissingCode, "authorization code missing from callback", nil)
	}

	verifier, returnTo, err := c.store.ConsumeState(sessionID, state)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, newError(KindSessionNotFound, "no session for callback", err)
		}
		return nil, newError(KindInvalidState, "state token mismatch", err)
	}

	// No lock is held from here on: both provider calls may block.
	tokens, err := c.client.Exchange(ctx, code, verifier)
	if err != nil {
		return nil, newError(KindExchangeFailed, "token exchange failed", err)
	}

	user, err := c.client.FetchIdentity(ctx, tokens)
	if err != nil {
		return nil, newError(KindIdentityFetchFailed, "identity retrieval failed", err)
	}

	if err := c.store.Promote(sessionID, user, tokens); err != nil {
		return nil, newError(KindSessionNotFound, "session expired during login", err)
	}

	return &CallbackResult{User: user, ReturnTo: returnTo}, nil
}

// Logout destroys the session immediately and unconditionally; the caller's
// response never depends on the provider. When the session held a refresh
// token, a best-effort revocation runs in a detached goroutine with its own
// timeout — its failure is logged, never surfaced, never retried. Idempotent:
// logging out an unknown or already-anonymous session is a no-op.
func (c *Controller) Logout(sessionID string) {
	if sessionID == "" {
		return
	}

	sess, err := c.store.Get(sessionID)
	if err != nil {
		return
	}

	c.store.Destroy(sessionID)

	if sess.Tokens == nil || sess.Tokens.RefreshToken == "" {
		return
	}

	go func(refreshToken string) {
		ctx, cancel := context.WithTimeout(context.Background(), revokeTimeout)
		defer cancel()

		if err := c.client.Revoke(ctx, refreshToken); err != nil {
			slog.Warn("upstream session revocation failed",
				"kind", string(KindRevocationFailed),
				"error", err,
			)
		}
	}(sess.Tokens.RefreshToken)
}
