package keycloak

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// mergeAccessTokenClaims decodes the access token's JWT payload and merges
// role-related claims into the destination claims map. Only claims not
// already present in dst are merged (the userinfo response takes precedence).
// Best-effort: not every access token is a JWT, so decode failures are logged
// at debug level and ignored.
func mergeAccessTokenClaims(accessToken string, dst map[string]interface{}) {
	if accessToken == "" {
		return
	}

	atClaims, err := decodeJWTPayload(accessToken)
	if err != nil {
		slog.Debug("could not decode access token as JWT (may be opaque)", "error", err)
		return
	}

	for _, key := range []string{"realm_access", "resource_access", "groups"} {
		if _, exists := dst[key]; !exists {
			if val, ok := atClaims[key]; ok {
				dst[key] = val
			}
		}
	}
}

// decodeJWTPayload extracts and decodes the payload (second segment) of a
// JWT. It does NOT verify the signature: the token was just received over TLS
// directly from the token endpoint, and it is only inspected for role claims.
func decodeJWTPayload(token string) (map[string]interface{}, error) {
	parts := strings.SplitN(token, ".", 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("not a valid JWT: expected 3 parts, got %d", len(parts))
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("failed to decode JWT payload: %w", err)
	}

	var claims map[string]interface{}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("failed to parse JWT payload: %w", err)
	}

	return claims, nil
}

// rolesFromClaims extracts the role list from the configured claim path.
// A missing claim is not an error: the user simply has no roles.
func (c *Client) rolesFromClaims(claims map[string]interface{}) []string {
	value, err := nestedClaim(claims, c.roleClaim)
	if err != nil {
		return nil
	}

	switch v := value.(type) {
	case []string:
		return v
	case []interface{}:
		roles := make([]string, 0, len(v))
		for _, role := range v {
			if str, ok := role.(string); ok {
				roles = append(roles, str)
			}
		}
		return roles
	default:
		return nil
	}
}

// stringClaim returns a top-level string claim, or "" when absent.
func stringClaim(claims map[string]interface{}, key string) string {
	s, _ := claims[key].(string)
	return s
}

// nestedClaim retrieves a claim using dot notation,
// e.g. "realm_access.roles" navigates through nested maps.
func nestedClaim(claims map[string]interface{}, path string) (interface{}, error) {
	parts := strings.Split(path, ".")

	var current interface{} = claims
	for i, part := range parts {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("claim path '%s' not found at level %d (%s)", path, i, part)
		}

		current, ok = m[part]
		if !ok {
			return nil, fmt.Errorf("claim '%s' not found in path '%s'", part, path)
		}
	}

	return current, nil
}
