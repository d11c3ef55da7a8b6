package identity

import (
	"errors"
	"net/http"
	"strings"
)

// ErrNoIdentity is returned by resolvers when the request carries no
// resolvable identity. Callers treat it as "unauthenticated", not as a fault.
var ErrNoIdentity = errors.New("no identity in request")

// Resolver extracts the authenticated user from a request.
//
// Two strategies exist: session-bound resolution (the strong model, backed by
// the server-side session store) and proxy-header resolution (a weaker trust
// model where an upstream gateway injects identity headers). They are distinct
// implementations and are never combined: the server is built with exactly one.
type Resolver interface {
	Resolve(r *http.Request) (*User, error)
}

// ProxyHeaderResolver trusts identity headers set by an upstream reverse
// proxy (X-User-Name, X-User-Email, X-User-Roles, X-User-Subject).
//
// This trusts the network path: it must only be enabled when the gateway is
// unreachable except through a proxy that strips these headers from client
// requests. Disabled by default; see auth.trust_proxy_headers.
type ProxyHeaderResolver struct{}

// Resolve builds a User from the upstream headers, or ErrNoIdentity when
// neither a name nor an email header is present.
func (ProxyHeaderResolver) Resolve(r *http.Request) (*User, error) {
	name := r.Header.Get("X-User-Name")
	email := r.Header.Get("X-User-Email")
	if name == "" && email == "" {
		return nil, ErrNoIdentity
	}

	var roles []string
	if raw := r.Header.Get("X-User-Roles"); raw != "" {
		for _, role := range strings.Split(raw, ",") {
			if role = strings.TrimSpace(role); role != "" {
				roles = append(roles, role)
			}
		}
	}

	return &User{
		Subject:  r.Header.Get("X-User-Subject"),
		Username: name,
		Email:    email,
		Name:     name,
		Roles:    roles,
	}, nil
}
