// Package guard decides whether a request may reach a protected resource,
// based on the session's identity and, optionally, a required role.
package guard

import (
	"kcgateway/internal/identity"
	"kcgateway/internal/session"
)

// Reason explains a rejection.
type Reason string

const (
	// ReasonUnauthenticated means no authenticated user is bound to the
	// request. An absent or expired session lands here, not in an error.
	ReasonUnauthenticated Reason = "unauthenticated"

	// ReasonForbidden means the user is authenticated but lacks the
	// required role.
	ReasonForbidden Reason = "forbidden"
)

// Decision is the outcome of an authorization check: either an admitted user
// or a rejection reason, never both.
type Decision struct {
	User   *identity.User
	Reason Reason
}

// Admitted reports whether the check passed.
func (d Decision) Admitted() bool {
	return d.User != nil && d.Reason == ""
}

// Authorize admits the session when it carries a fully authenticated user,
// optionally requiring a role. Side-effect free: it never mutates the
// session and is safe to call on every request.
func Authorize(sess *session.Session, requiredRole string) Decision {
	if sess == nil || !sess.Authenticated() {
		return Decision{Reason: ReasonUnauthenticated}
	}
	return AuthorizeUser(sess.User, requiredRole)
}

// AuthorizeUser admits the user, optionally requiring a role. A missing user
// is always ReasonUnauthenticated, regardless of the requested role. The role
// check is the case-insensitive membership test of identity.User.HasRole and
// runs only when requiredRole is non-empty.
func AuthorizeUser(u *identity.User, requiredRole string) Decision {
	if u == nil {
		return Decision{Reason: ReasonUnauthenticated}
	}
	if requiredRole != "" && !u.HasRole(requiredRole) {
		return Decision{Reason: ReasonForbidden}
	}
	return Decision{User: u}
}
