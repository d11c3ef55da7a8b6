package httpserver

import (
	"log/slog"
	"net/http"
	"strings"

	"kcgateway/internal/flow"
)

// handleLogin starts the authorization code flow:
// GET /login[?return_to=/path] -> 302 to the Keycloak authorization endpoint.
// The session cookie is set when a new session is created; the state token
// lives only server-side, bound to that session.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	returnTo := safeReturnTo(r.URL.Query().Get("return_to"))

	sessionID, _ := s.sessionIDFromCookie(r)

	redirect, err := s.flow.Login(sessionID, returnTo)
	if err != nil {
		slog.Error("failed to start login",
			"request_id", requestID(r.Context()),
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Login could not be started"})
		return
	}

	if redirect.NewSession {
		s.setSessionCookie(w, redirect.SessionID)
	}

	slog.Info("login started",
		"request_id", requestID(r.Context()),
		"session_id", redirect.SessionID,
		"new_session", redirect.NewSession,
	)

	http.Redirect(w, r, redirect.AuthURL, http.StatusFound)
}

// handleCallback completes the flow:
// GET /callback?code&state -> 302 to the original destination on success,
// structured JSON error otherwise. Provider error detail is logged in full;
// clients only ever see the generic message plus the error kind.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code := q.Get("code")
	state := q.Get("state")

	slog.Info("callback received",
		"request_id", requestID(r.Context()),
		"code_present", code != "",
		"state_present", state != "",
	)

	// Keycloak reports denials via error/error_description instead of a
	// code. Log the detail; the flow classifies the missing code below.
	if errParam := q.Get("error"); errParam != "" {
		slog.Error("provider returned error on callback",
			"request_id", requestID(r.Context()),
			"error", sanitizeLog(errParam),
			"description", sanitizeLog(q.Get("error_description")),
		)
	}

	sessionID, _ := s.sessionIDFromCookie(r)

	result, err := s.flow.Callback(r.Context(), sessionID, code, state)
	if err != nil {
		s.writeFlowError(w, r, err)
		return
	}

	slog.Info("user authenticated",
		"request_id", requestID(r.Context()),
		"subject", sanitizeLog(result.User.Subject),
		"username", sanitizeLog(result.User.Username),
	)

	target := result.ReturnTo
	if target == "" {
		target = "/"
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// handleLogout destroys the local session and clears the cookie. Always
// responds 200 once local destruction is done: upstream revocation is
// fire-and-forget and its outcome never reaches the client. Idempotent.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sessionID, ok := s.sessionIDFromCookie(r); ok {
		s.flow.Logout(sessionID)
	}

	s.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// writeFlowError maps a flow failure to a structured HTTP error. The full
// error (including provider detail) goes to the log; the response carries
// only the generic message and the kind.
func (s *Server) writeFlowError(w http.ResponseWriter, r *http.Request, err error) {
	kind := flow.KindOf(err)

	slog.Error("callback failed",
		"request_id", requestID(r.Context()),
		"kind", string(kind),
		"error", err,
	)

	status := http.StatusInternalServerError
	message := "Authentication failed"

	switch kind {
	case flow.KindInvalidState, flow.KindMissingCode, flow.KindSessionNotFound:
		status = http.StatusBadRequest
		message = "Invalid callback request"
	case flow.KindExchangeFailed, flow.KindIdentityFetchFailed:
		status = http.StatusBadGateway
	}

	writeJSON(w, status, errorResponse{Error: message, Kind: string(kind)})
}

// safeReturnTo accepts only local, relative redirect targets. Anything that
// could leave the application ("http://...", "//evil") collapses to "".
func safeReturnTo(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") {
		return ""
	}
	return target
}
