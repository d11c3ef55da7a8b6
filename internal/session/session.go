// Package session provides the server-side session record and an in-memory
// store with TTL-based expiry.
package session

import (
	"time"

	"kcgateway/internal/identity"
)

// Tokens holds the provider tokens owned by an authenticated session.
// They never leave the store: json tags suppress accidental serialization
// into API responses.
type Tokens struct {
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	Expiry       time.Time `json:"-"`
}

// Session identifies one authenticated browser. It is created empty on first
// contact, gains a pending state token when a login is started, and is
// promoted to authenticated only when a callback passes state validation and
// the token exchange succeeds.
type Session struct {
	// ID is a unique identifier for this session (64-char hex string)
	ID string

	// User is the identity snapshot captured at login time.
	// Set together with Tokens; nil while the session is anonymous.
	User *identity.User

	// Tokens are the provider tokens owned by this session.
	Tokens *Tokens

	// PendingState is the outstanding CSRF state token of a login attempt
	// that has not completed. At most one exists per session; a fresh login
	// supersedes it, a matching callback consumes it.
	PendingState string

	// PendingVerifier is the PKCE code verifier issued together with
	// PendingState, needed to complete the token exchange.
	PendingVerifier string

	// ReturnTo is the relative path to redirect to after a completed login.
	ReturnTo string

	// CreatedAt is when this session was created
	CreatedAt time.Time

	// ExpiresAt is when this session will expire; it slides forward on
	// every store access (idle TTL)
	ExpiresAt time.Time
}

// Authenticated reports whether the session carries a full identity.
// User and Tokens are always set and cleared together, so checking both is
// how the invariant "no partial state" is enforced at the read side.
func (s *Session) Authenticated() bool {
	return s.User != nil && s.Tokens != nil
}
