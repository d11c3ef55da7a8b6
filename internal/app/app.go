// Package app wires the gateway components together and runs the process.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kcgateway/internal/config"
	"kcgateway/internal/flow"
	"kcgateway/internal/httpserver"
	"kcgateway/internal/keycloak"
	"kcgateway/internal/session"
)

// App holds the long-lived components of the gateway process.
type App struct {
	cfg        *config.Config
	store      *session.Store
	httpServer *httpserver.Server
}

// New creates the gateway with all components initialized: Keycloak
// discovery, the session store, the flow controller and the HTTP server.
func New(cfg *config.Config) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := keycloak.New(ctx, &cfg.Keycloak)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Keycloak client: %w", err)
	}

	slog.Info("Keycloak client initialized",
		"issuer", cfg.Keycloak.Issuer(),
		"client_id", cfg.Keycloak.ClientID,
	)

	sessionTTL := time.Duration(cfg.Auth.SessionTTL) * time.Second
	store := session.NewStore(sessionTTL)

	slog.Info("session store initialized", "ttl", sessionTTL)

	ctrl := flow.NewController(store, client)

	srv, err := httpserver.NewServer(cfg, ctrl, store)
	if err != nil {
		store.Stop()
		return nil, fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	return &App{
		cfg:        cfg,
		store:      store,
		httpServer: srv,
	}, nil
}

// Run starts the HTTP server and blocks until a shutdown signal arrives or
// the server fails to start.
func (a *App) Run() error {
	httpErrCh := make(chan error, 1)
	go func() {
		if err := a.httpServer.Start(); err != nil && err != http.ErrServerClosed {
			httpErrCh <- err
		}
		close(httpErrCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", "signal", sig.String())
	case err := <-httpErrCh:
		if err != nil {
			a.store.Stop()
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(ctx); err != nil {
		slog.Error("error during HTTP server shutdown", "error", err)
	}

	a.store.Stop()

	slog.Info("gateway stopped")
	return nil
}
