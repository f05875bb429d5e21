// Package main is the entry point for the offline-first caching gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"offgate/config"
	"offgate/internal/app"
	"offgate/internal/logging"
	"offgate/internal/version"
)

func main() {
	versionFlag := flag.Bool("version", false, "Print version information")
	flag.Parse()

	if *versionFlag {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	logging.Setup(cfg.Logging.Format, cfg.Logging.Level)

	// Log the version immediately on startup
	slog.Info("starting offgate",
		"version", version.Version,
		"commit", version.Commit,
		"build_date", version.Date,
	)

	application, err := app.New(context.Background(), cfg)
	if err != nil {
		slog.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}

	// Run the install/activate sequence in the background. Until
	// activation completes the server passes every request through to
	// the upstream, so a slow or failed pre-warm never blocks traffic.
	bootstrapCtx, cancelBootstrap := context.WithCancel(context.Background())
	go func() {
		if err := application.Bootstrap(bootstrapCtx); err != nil {
			slog.Warn("worker bootstrap failed, serving in passthrough mode", "error", err)
		}
	}()

	// Handle graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		slog.Info("shutting down server...")
		cancelBootstrap()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := application.Shutdown(ctx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	addr := ":" + cfg.Server.Port
	if err := application.Start(addr); err != nil {
		slog.Error("server failed to start", "error", err)
		os.Exit(1)
	}
}
