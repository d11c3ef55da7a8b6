// Package identity defines the authenticated user snapshot and the
// strategies for resolving it from an incoming request.
package identity

import "strings"

// User is the identity snapshot captured from Keycloak at login time.
// It is immutable after creation: role or attribute changes at the provider
// are not reflected until the user logs in again.
type User struct {
	Subject  string   `json:"subject"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Name     string   `json:"name"`
	Roles    []string `json:"roles"`
}

// HasRole reports whether the user holds the given role.
// The membership test is case-insensitive: Keycloak realm roles are
// conventionally lower-case but deployments differ, so "Admin" matches "admin".
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}
