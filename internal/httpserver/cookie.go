package httpserver

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

// The session cookie carries the session ID plus an HMAC-SHA256 signature
// keyed with auth.session_secret ("<id>.<signature>"). The signature makes
// the cookie tamper-evident; a bad or missing signature is treated exactly
// like no cookie at all. HTTP-only, so client scripts never see it.

// setSessionCookie binds the session to the browser.
func (s *Server) setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.Auth.CookieName,
		Value:    signSessionID(sessionID, s.cfg.Auth.SessionSecret),
		Path:     "/",
		MaxAge:   s.cfg.Auth.SessionTTL,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.cfg.TLS.Enabled,
	})
}

// clearSessionCookie expires the session cookie immediately.
func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.Auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.cfg.TLS.Enabled,
	})
}

// sessionIDFromCookie extracts and verifies the session ID from the request
// cookie. The second return value is false when the cookie is absent or its
// signature does not verify.
func (s *Server) sessionIDFromCookie(r *http.Request) (string, bool) {
	c, err := r.Cookie(s.cfg.Auth.CookieName)
	if err != nil {
		return "", false
	}
	return verifySessionCookie(c.Value, s.cfg.Auth.SessionSecret)
}

// signSessionID returns "<id>.<hex hmac-sha256(id)>".
func signSessionID(id, secret string) string {
	return id + "." + hex.EncodeToString(sessionMAC(id, secret))
}

// verifySessionCookie splits a cookie value produced by signSessionID and
// checks the signature in constant time.
func verifySessionCookie(value, secret string) (string, bool) {
	id, sig, ok := strings.Cut(value, ".")
	if !ok || id == "" {
		return "", false
	}

	want, err := hex.DecodeString(sig)
	if err != nil {
		return "", false
	}

	if !hmac.Equal(want, sessionMAC(id, secret)) {
		return "", false
	}

	return id, true
}

func sessionMAC(id, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(id))
	return mac.Sum(nil)
}
