// Package config loads, validates and redacts the gateway configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration
type Config struct {
	Listen   ListenConfig   `yaml:"listen"`
	Keycloak KeycloakConfig `yaml:"keycloak"`
	Auth     AuthConfig     `yaml:"auth"`
	TLS      TLSConfig      `yaml:"tls"`
	Log      LogConfig      `yaml:"log"`
}

// ListenConfig defines where the gateway listens for requests
type ListenConfig struct {
	HTTP string `yaml:"http"` // HTTP server address (e.g., ":8080")
}

// KeycloakConfig defines the settings of the single configured realm.
// The issuer URL is derived from BaseURL and Realm, never configured directly.
type KeycloakConfig struct {
	BaseURL        string   `yaml:"base_url"`        // Keycloak base URL (e.g., "https://sso.example.com")
	Realm          string   `yaml:"realm"`           // realm name
	ClientID       string   `yaml:"client_id"`       // OIDC client ID
	ClientSecret   string   `yaml:"client_secret"`   // OIDC client secret (empty for public clients)
	RedirectURI    string   `yaml:"redirect_uri"`    // callback URL registered with the client
	Scopes         []string `yaml:"scopes"`          // requested scopes
	RoleClaim      string   `yaml:"role_claim"`      // JSON path to roles in the access token
	RequestTimeout int      `yaml:"request_timeout"` // per-call timeout to Keycloak, in seconds
}

// Issuer returns the realm issuer URL used for OIDC discovery.
func (k *KeycloakConfig) Issuer() string {
	return strings.TrimRight(k.BaseURL, "/") + "/realms/" + k.Realm
}

// AuthConfig defines session and authorization behavior
type AuthConfig struct {
	SessionTTL        int    `yaml:"session_ttl"`         // idle session lifetime in seconds
	SessionSecret     string `yaml:"session_secret"`      // HMAC key for the session cookie
	CookieName        string `yaml:"cookie_name"`         // session cookie name
	AdminRole         string `yaml:"admin_role"`          // role required for admin endpoints
	TrustProxyHeaders bool   `yaml:"trust_proxy_headers"` // resolve identity from upstream proxy headers instead of sessions
}

// TLSConfig defines TLS settings for the HTTP server
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// LogConfig defines logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// Load reads and parses the configuration file. An empty path skips the file
// and builds the configuration from defaults and environment overrides only.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Listen: ListenConfig{
			HTTP: ":8080",
		},
		Keycloak: KeycloakConfig{
			Scopes:         []string{"openid", "profile", "email"},
			RoleClaim:      "realm_access.roles",
			RequestTimeout: 10,
		},
		Auth: AuthConfig{
			SessionTTL: 86400, // 24 hours
			CookieName: "kcgw_session",
			AdminRole:  "admin",
		},
		TLS: TLSConfig{
			Enabled: false,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// applyEnvOverrides applies environment variable overrides
func (c *Config) applyEnvOverrides() {
	// Keycloak overrides
	if v := os.Getenv("KCGW_KEYCLOAK_BASE_URL"); v != "" {
		c.Keycloak.BaseURL = v
	}
	if v := os.Getenv("KCGW_KEYCLOAK_REALM"); v != "" {
		c.Keycloak.Realm = v
	}
	if v := os.Getenv("KCGW_KEYCLOAK_CLIENT_ID"); v != "" {
		c.Keycloak.ClientID = v
	}
	if v := os.Getenv("KCGW_KEYCLOAK_CLIENT_SECRET"); v != "" {
		c.Keycloak.ClientSecret = v
	}
	if v := os.Getenv("KCGW_KEYCLOAK_REDIRECT_URI"); v != "" {
		c.Keycloak.RedirectURI = v
	}

	// Auth overrides
	if v := os.Getenv("KCGW_AUTH_SESSION_SECRET"); v != "" {
		c.Auth.SessionSecret = v
	}

	// Log overrides
	if v := os.Getenv("KCGW_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("KCGW_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}

	// Listen overrides
	if v := os.Getenv("KCGW_LISTEN_HTTP"); v != "" {
		c.Listen.HTTP = v
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	// Validate Keycloak config
	if c.Keycloak.BaseURL == "" {
		return fmt.Errorf("keycloak.base_url is required")
	}
	if !strings.HasPrefix(c.Keycloak.BaseURL, "http://") && !strings.HasPrefix(c.Keycloak.BaseURL, "https://") {
		return fmt.Errorf("keycloak.base_url must be a valid HTTP(S) URL")
	}

	if c.Keycloak.Realm == "" {
		return fmt.Errorf("keycloak.realm is required")
	}

	if c.Keycloak.ClientID == "" {
		return fmt.Errorf("keycloak.client_id is required")
	}

	if c.Keycloak.RedirectURI == "" {
		return fmt.Errorf("keycloak.redirect_uri is required")
	}
	if !strings.HasPrefix(c.Keycloak.RedirectURI, "http://") && !strings.HasPrefix(c.Keycloak.RedirectURI, "https://") {
		return fmt.Errorf("keycloak.redirect_uri must be a valid HTTP(S) URL")
	}

	if len(c.Keycloak.Scopes) == 0 {
		return fmt.Errorf("keycloak.scopes must contain at least 'openid'")
	}
	hasOpenID := false
	for _, scope := range c.Keycloak.Scopes {
		if scope == "openid" {
			hasOpenID = true
			break
		}
	}
	if !hasOpenID {
		return fmt.Errorf("keycloak.scopes must include 'openid'")
	}

	if c.Keycloak.RoleClaim == "" {
		return fmt.Errorf("keycloak.role_claim is required")
	}

	if c.Keycloak.RequestTimeout <= 0 {
		return fmt.Errorf("keycloak.request_timeout must be positive")
	}

	// Validate auth config
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("auth.session_ttl must be positive")
	}
	if c.Auth.SessionTTL > 7*86400 {
		return fmt.Errorf("auth.session_ttl should not exceed 604800 seconds (7 days)")
	}

	if c.Auth.SessionSecret == "" {
		return fmt.Errorf("auth.session_secret is required")
	}
	if len(c.Auth.SessionSecret) < 16 {
		return fmt.Errorf("auth.session_secret must be at least 16 characters")
	}

	if c.Auth.CookieName == "" {
		return fmt.Errorf("auth.cookie_name is required")
	}

	// Validate TLS config
	if c.TLS.Enabled {
		if c.TLS.CertFile == "" || c.TLS.KeyFile == "" {
			return fmt.Errorf("tls.cert_file and tls.key_file are required when TLS is enabled")
		}

		// Check if files exist
		if _, err := os.Stat(c.TLS.CertFile); err != nil {
			return fmt.Errorf("tls.cert_file not found: %w", err)
		}
		if _, err := os.Stat(c.TLS.KeyFile); err != nil {
			return fmt.Errorf("tls.key_file not found: %w", err)
		}
	}

	// Validate log config
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("log.format must be one of: json, text")
	}

	// Validate listen config
	if c.Listen.HTTP == "" {
		return fmt.Errorf("listen.http is required")
	}

	return nil
}

// SetupLogging configures the global slog logger based on the LogConfig.
func SetupLogging(cfg *LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// Redact returns a deep-enough copy of the config with secrets redacted for safe logging
func (c *Config) Redact() *Config {
	redacted := *c
	// Deep copy slices to avoid sharing underlying arrays with the original
	if c.Keycloak.Scopes != nil {
		redacted.Keycloak.Scopes = make([]string, len(c.Keycloak.Scopes))
		copy(redacted.Keycloak.Scopes, c.Keycloak.Scopes)
	}
	if redacted.Keycloak.ClientSecret != "" {
		redacted.Keycloak.ClientSecret = "[REDACTED]"
	}
	if redacted.Auth.SessionSecret != "" {
		redacted.Auth.SessionSecret = "[REDACTED]"
	}
	return &redacted
}
