package flow

import "errors"

// Kind identifies the category of an authentication flow failure.
// Kinds are stable, machine-readable values exposed in error responses.
type Kind string

const (
	// KindInvalidState marks a CSRF state mismatch. Always fatal to the
	// callback: no token exchange is attempted.
	KindInvalidState Kind = "invalid_state"

	// KindMissingCode marks a callback without an authorization code.
	KindMissingCode Kind = "missing_code"

	// KindExchangeFailed marks a failed or timed-out code-for-token exchange.
	KindExchangeFailed Kind = "exchange_failed"

	// KindIdentityFetchFailed marks a failed userinfo retrieval.
	KindIdentityFetchFailed Kind = "identity_fetch_failed"

	// KindSessionNotFound marks a callback without a live initiating session.
	// Elsewhere an absent session is simply "unauthenticated"; only the
	// callback reports it, because it cannot proceed without one.
	KindSessionNotFound Kind = "session_not_found"

	// KindRevocationFailed marks a failed upstream logout. Logged only,
	// never returned to callers.
	KindRevocationFailed Kind = "revocation_failed"
)

// Error is an authentication flow failure. Message is the generic,
// client-safe description; the wrapped cause may carry provider detail and
// belongs in logs only.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// KindOf returns the flow error kind of err, or "" when err is not a flow
// error.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}
