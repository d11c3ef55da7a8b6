// Package keycloak implements the outbound client for the configured realm:
// OIDC discovery, authorization-code exchange, userinfo retrieval and
// refresh-token revocation.
package keycloak

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"kcgateway/internal/config"
	"kcgateway/internal/identity"
	"kcgateway/internal/session"
)

// Client wraps the discovered OIDC provider and OAuth2 configuration for the
// single configured realm. All outbound calls share one HTTP client and are
// bounded by the configured per-call timeout; a timeout surfaces as the same
// failure as a non-success response, and nothing is retried here.
type Client struct {
	provider      *oidc.Provider
	oauth2Config  *oauth2.Config
	endSessionURL string
	roleClaim     string
	httpClient    *http.Client
	timeout       time.Duration
}

// New discovers the realm's endpoints via /.well-known/openid-configuration
// and builds the OAuth2 configuration. The end-session endpoint is taken from
// the discovery document, falling back to the conventional Keycloak path.
func New(ctx context.Context, cfg *config.KeycloakConfig) (*Client, error) {
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	httpClient := &http.Client{Timeout: timeout}

	issuer := cfg.Issuer()
	provider, err := oidc.NewProvider(oidc.ClientContext(ctx, httpClient), issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	var extra struct {
		EndSessionEndpoint string `json:"end_session_endpoint"`
	}
	if err := provider.Claims(&extra); err != nil || extra.EndSessionEndpoint == "" {
		extra.EndSessionEndpoint = issuer + "/protocol/openid-connect/logout"
	}

	oauth2Config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Endpoint:     provider.Endpoint(),
		Scopes:       cfg.Scopes,
	}

	return &Client{
		provider:      provider,
		oauth2Config:  oauth2Config,
		endSessionURL: extra.EndSessionEndpoint,
		roleClaim:     cfg.RoleClaim,
		httpClient:    httpClient,
		timeout:       timeout,
	}, nil
}

// AuthCodeURL builds the authorization URL for a login redirect, carrying the
// client ID, redirect URI, response_type=code, the configured scopes, the
// state token and a PKCE S256 challenge derived from the verifier.
// Pure URL construction, no network call.
func (c *Client) AuthCodeURL(state, verifier string) string {
	return c.oauth2Config.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", challengeS256(verifier)),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

// Exchange posts the authorization code (with the PKCE verifier) to the token
// endpoint. Any transport error, non-success status or malformed payload is
// reported as a single wrapped error; the caller classifies it.
func (c *Client) Exchange(ctx context.Context, code, verifier string) (*session.Tokens, error) {
	ctx, cancel := c.boundContext(ctx)
	defer cancel()

	token, err := c.oauth2Config.Exchange(ctx, code,
		oauth2.SetAuthURLParam("code_verifier", verifier),
	)
	if err != nil {
		return nil, fmt.Errorf("code exchange: %w", err)
	}

	if token.AccessToken == "" {
		return nil, fmt.Errorf("code exchange: no access token in response")
	}

	return &session.Tokens{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
	}, nil
}

// FetchIdentity calls the userinfo endpoint bearing the access token and maps
// the response into an identity snapshot. Keycloak puts realm and client
// roles in the access token rather than the userinfo response, so role claims
// are merged from the access token JWT payload before mapping.
func (c *Client) FetchIdentity(ctx context.Context, tokens *session.Tokens) (*identity.User, error) {
	ctx, cancel := c.boundContext(ctx)
	defer cancel()

	src := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: tokens.AccessToken,
		TokenType:   "Bearer",
	})

	info, err := c.provider.UserInfo(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("userinfo: %w", err)
	}

	var claims map[string]interface{}
	if err := info.Claims(&claims); err != nil {
		return nil, fmt.Errorf("userinfo: failed to parse claims: %w", err)
	}

	mergeAccessTokenClaims(tokens.AccessToken, claims)

	user := &identity.User{
		Subject:  info.Subject,
		Email:    info.Email,
		Username: stringClaim(claims, "preferred_username"),
		Name:     stringClaim(claims, "name"),
		Roles:    c.rolesFromClaims(claims),
	}

	if user.Subject == "" {
		return nil, fmt.Errorf("userinfo: response is missing the subject")
	}

	return user, nil
}

// Revoke posts the refresh token to the end-session endpoint, invalidating
// the upstream Keycloak session. Best-effort: callers log failures and never
// surface them to the end user.
func (c *Client) Revoke(ctx context.Context, refreshToken string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	form := url.Values{}
	form.Set("client_id", c.oauth2Config.ClientID)
	if c.oauth2Config.ClientSecret != "" {
		form.Set("client_secret", c.oauth2Config.ClientSecret)
	}
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endSessionURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("revocation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("revocation call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("revocation call: provider returned %s", resp.Status)
	}

	return nil
}

// boundContext attaches the shared HTTP client for the oauth2/oidc libraries
// and applies the per-call timeout.
func (c *Client) boundContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	return context.WithTimeout(ctx, c.timeout)
}

// challengeS256 computes the PKCE code challenge for a verifier:
// BASE64URL(SHA256(ASCII(verifier))) per RFC 7636.
func challengeS256(verifier string) string {
	h := sha256.New()
	h.Write([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
