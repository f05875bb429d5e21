// Package app provides the main application struct for centralized
// dependency management and lifecycle control of the gateway.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"offgate/config"
	"offgate/internal/cache"
	"offgate/internal/httpclient"
	"offgate/internal/lifecycle"
	"offgate/internal/router"
	"offgate/internal/server"
	"offgate/internal/strategy"
	"offgate/internal/upstream"
)

// App represents the gateway with all its dependencies.
// It provides centralized lifecycle management for all components.
type App struct {
	config     *config.Config
	store      cache.Store
	manager    *cache.Manager
	controller *lifecycle.Controller
	server     *server.Server

	shutdownMu sync.Mutex
	shutdown   bool
}

// New creates a new App with all dependencies initialized.
// The caller must call Shutdown to release resources.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	store, err := cache.New(ctx, cache.Config{
		Type:   cfg.Cache.Backend,
		SQLite: cache.SQLiteConfig{Path: cfg.Cache.SQLitePath},
		Redis:  cache.RedisConfig{URL: cfg.Cache.RedisURL},
		Postgres: cache.PostgresConfig{
			URL:      cfg.Cache.PostgresURL,
			MaxConns: cfg.Cache.PostgresMaxConns,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache store: %w", err)
	}

	manager, err := cache.NewManager(store, cfg.Cache.Version)
	if err != nil {
		closeErr := store.Close()
		if closeErr != nil {
			return nil, fmt.Errorf("failed to initialize cache manager: %w (also: store close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize cache manager: %w", err)
	}

	fetcher, err := upstream.New(cfg.Upstream.URL, httpclient.NewDefaultHTTPClient())
	if err != nil {
		closeErr := store.Close()
		if closeErr != nil {
			return nil, fmt.Errorf("failed to initialize upstream fetcher: %w (also: store close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize upstream fetcher: %w", err)
	}

	controller := lifecycle.New(manager, fetcher, lifecycle.Config{
		PrecachePaths: cfg.Lifecycle.PrecachePaths,
		HoldForSignal: cfg.Lifecycle.HoldForSignal,
	})

	rt := router.New(router.Config{
		APIPrefix:       cfg.Routing.APIPrefix,
		AssetPrefixes:   cfg.Routing.AssetPrefixes,
		AssetExtensions: cfg.Routing.AssetExtensions,
	})

	strategies := map[router.Class]strategy.Strategy{
		router.ClassAPI:   strategy.NewNetworkFirst(manager.Partition(cache.PartitionAPI), fetcher),
		router.ClassAsset: strategy.NewStaleWhileRevalidate(manager.Partition(cache.PartitionAssets), fetcher, cfg.Lifecycle.RevalidateTimeout),
		router.ClassShell: strategy.NewCacheFirst(manager.Partition(cache.PartitionCore), fetcher),
	}

	handler := server.NewHandler(rt, strategies, fetcher, controller)
	srv := server.New(handler, &server.Config{
		ControlToken:    cfg.Server.ControlToken,
		MetricsEnabled:  cfg.Metrics.Enabled,
		MetricsEndpoint: cfg.Metrics.Endpoint,
	})

	app := &App{
		config:     cfg,
		store:      store,
		manager:    manager,
		controller: controller,
		server:     srv,
	}

	app.logStartupInfo()

	return app, nil
}

// Controller exposes the lifecycle controller.
func (a *App) Controller() *lifecycle.Controller {
	return a.controller
}

// Bootstrap runs the install/activate sequence: pre-warm the shell
// cache, then activate (immediately, or on the skip-waiting signal when
// holding). On install failure the worker stays un-activated and the
// server keeps passing all traffic through to the upstream, the same
// degradation as running without a worker at all.
func (a *App) Bootstrap(ctx context.Context) error {
	if err := a.controller.Install(ctx); err != nil {
		return fmt.Errorf("install failed: %w", err)
	}
	return nil
}

// Start starts the HTTP server on the given address.
// This is a blocking call that returns when the server stops.
func (a *App) Start(addr string) error {
	if a.server == nil {
		return fmt.Errorf("server is not initialized")
	}
	slog.Info("starting server", "address", addr)
	if err := a.server.Start(addr); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			slog.Info("server stopped gracefully")
			return nil
		}
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Shutdown tears down components in dependency order: HTTP server
// first (stop accepting requests), then the cache store. Idempotent;
// repeated calls are no-ops. Failures are aggregated into one error.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownMu.Lock()
	if a.shutdown {
		a.shutdownMu.Unlock()
		return nil
	}
	a.shutdown = true
	a.shutdownMu.Unlock()

	slog.Info("shutting down application...")

	var errs []error

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			slog.Error("server shutdown error", "error", err)
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			slog.Error("cache store close error", "error", err)
			errs = append(errs, fmt.Errorf("store close: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}

	slog.Info("application shutdown complete")
	return nil
}

// logStartupInfo logs the gateway configuration on startup.
func (a *App) logStartupInfo() {
	cfg := a.config

	slog.Info("upstream configured", "url", cfg.Upstream.URL)
	slog.Info("cache configured",
		"backend", cfg.Cache.Backend,
		"version", cfg.Cache.Version,
		"partitions", a.manager.CurrentNames(),
	)

	if cfg.Server.ControlToken == "" {
		slog.Warn("OFFGATE_CONTROL_TOKEN not set - control endpoint accepts unauthenticated messages")
	} else {
		slog.Info("control endpoint authentication enabled")
	}

	if cfg.Metrics.Enabled {
		slog.Info("prometheus metrics enabled", "endpoint", cfg.Metrics.Endpoint)
	} else {
		slog.Info("prometheus metrics disabled")
	}

	if cfg.Lifecycle.HoldForSignal {
		slog.Info("activation held until skip-waiting signal")
	}
}
