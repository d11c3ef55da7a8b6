// Package httpserver exposes the gateway's HTTP surface: the authentication
// endpoints, the guarded resource endpoints, and the middleware chain.
package httpserver

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"kcgateway/internal/config"
	"kcgateway/internal/flow"
	"kcgateway/internal/identity"
	"kcgateway/internal/session"
)

// Server is the HTTP server for the authentication flow and the protected
// resource endpoints.
type Server struct {
	cfg        *config.Config
	httpServer *http.Server
	router     chi.Router
	flow       *flow.Controller
	store      *session.Store
	resolver   identity.Resolver
	limiter    *ipRateLimiter
}

// NewServer creates the HTTP server. The identity resolution strategy is
// chosen once at construction: session-bound by default, proxy-header based
// when auth.trust_proxy_headers is set. The two are never mixed.
func NewServer(cfg *config.Config, ctrl *flow.Controller, store *session.Store) (*Server, error) {
	s := &Server{
		cfg:     cfg,
		flow:    ctrl,
		store:   store,
		limiter: newIPRateLimiter(10, 50),
	}

	if cfg.Auth.TrustProxyHeaders {
		s.resolver = identity.ProxyHeaderResolver{}
	} else {
		s.resolver = &sessionResolver{server: s}
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(securityHeadersMiddleware)
	r.Use(s.rateLimitMiddleware)
	r.Use(loggingMiddleware)
	r.Use(recoveryMiddleware)

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.Get("/login", s.handleLogin)
	r.Get("/callback", s.handleCallback)
	r.Get("/logout", s.handleLogout)

	// Session-guarded resources.
	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)
		r.Get("/api", s.handleAPIGreeting)
		r.Get("/api/data", s.handleAPIData)
		r.Get("/user", s.handleUser)
	})

	// Admin resources additionally require the configured admin role.
	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)
		r.Use(s.requireRole(cfg.Auth.AdminRole))
		r.Get("/admin", s.handleAdmin)
	})

	s.router = r

	s.httpServer = &http.Server{
		Addr:         cfg.Listen.HTTP,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if cfg.TLS.Enabled {
		s.httpServer.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
			CipherSuites: []uint16{
				tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
				tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
				tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
				tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			},
		}
	}

	return s, nil
}

// Start starts the HTTP server
func (s *Server) Start() error {
	slog.Info("starting HTTP server",
		"addr", s.cfg.Listen.HTTP,
		"tls", s.cfg.TLS.Enabled,
		"proxy_headers", s.cfg.Auth.TrustProxyHeaders,
	)

	if s.cfg.TLS.Enabled {
		return s.httpServer.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
	}

	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// sessionResolver resolves identity from the signed session cookie and the
// session store. An absent cookie, a bad signature, an expired session and an
// anonymous session all resolve the same way: no identity.
type sessionResolver struct {
	server *Server
}

func (sr *sessionResolver) Resolve(r *http.Request) (*identity.User, error) {
	id, ok := sr.server.sessionIDFromCookie(r)
	if !ok {
		return nil, identity.ErrNoIdentity
	}

	sess, err := sr.server.store.Get(id)
	if err != nil {
		return nil, identity.ErrNoIdentity
	}

	if !sess.Authenticated() {
		return nil, identity.ErrNoIdentity
	}

	return sess.User, nil
}
