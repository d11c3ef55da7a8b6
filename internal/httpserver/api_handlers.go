package httpserver

import (
	"net/http"
	"time"

	"kcgateway/internal/guard"
	"kcgateway/internal/identity"
)

// requireSession admits only requests with a resolvable, fully authenticated
// identity and stores it on the context. Unresolvable requests get
// 401 {"error":"Authentication required"}.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := s.resolver.Resolve(r)
		if err != nil {
			user = nil
		}

		decision := guard.AuthorizeUser(user, "")
		if !decision.Admitted() {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Authentication required"})
			return
		}

		next.ServeHTTP(w, r.WithContext(identity.WithUser(r.Context(), decision.User)))
	})
}

// requireRole gates a route group on a role. Runs after requireSession, so
// the identity is already on the context; a missing role yields
// 403 {"error":"Admin access required"}.
func (s *Server) requireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, _ := identity.FromContext(r.Context())

			decision := guard.AuthorizeUser(user, role)
			if !decision.Admitted() {
				if decision.Reason == guard.ReasonForbidden {
					writeJSON(w, http.StatusForbidden, errorResponse{Error: "Admin access required"})
					return
				}
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Authentication required"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// handleIndex is the public welcome endpoint.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Keycloak session gateway",
		"endpoints": map[string]string{
			"login":  "/login",
			"logout": "/logout",
			"user":   "/user",
			"api":    "/api",
			"health": "/health",
		},
	})
}

// handleAPIGreeting echoes the authenticated user back with a greeting.
func (s *Server) handleAPIGreeting(w http.ResponseWriter, r *http.Request) {
	user, _ := identity.FromContext(r.Context())

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "Hello from the gateway!",
		"user":      user,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleAPIData serves the demo dataset to authenticated users.
func (s *Server) handleAPIData(w http.ResponseWriter, r *http.Request) {
	user, _ := identity.FromContext(r.Context())

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": []map[string]interface{}{
			{"id": 1, "name": "Item 1", "value": 100},
			{"id": 2, "name": "Item 2", "value": 200},
			{"id": 3, "name": "Item 3", "value": 300},
		},
		"user":      user,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleUser returns the identity snapshot captured at login time. Roles and
// attributes reflect the provider's state at login, not its current state.
func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	user, _ := identity.FromContext(r.Context())

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":      user,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleAdmin is reachable only through requireRole(admin_role).
func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	user, _ := identity.FromContext(r.Context())

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Welcome to the admin area!",
		"user":    user,
	})
}
