package flow

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
)

// NewStateToken creates a random state token for CSRF protection.
// The token is 16 random bytes encoded as hex (32 characters), unguessable
// and tied 1:1 to the session that stores it as pending.
func NewStateToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// NewCodeVerifier creates a cryptographically random PKCE code verifier:
// 32 random bytes encoded as base64url (43 characters).
// Per RFC 7636, the verifier must be 43-128 characters.
func NewCodeVerifier() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
