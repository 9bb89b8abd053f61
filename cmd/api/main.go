// Package main is the entry point for the daypass API server.
//
// It loads configuration, wires the pass pipeline, builds the HTTP server
// with the core chassis (middleware, routing, health checks) and serves the
// pass request and wake-up endpoints.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"daypass/internal/api/handlers"
	"daypass/internal/app"
	"daypass/internal/auth"
	"daypass/internal/config"
	"daypass/internal/core"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig(config.NewSSMProvider(awsRegion()))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("daypass API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
		"scheduler", cfg.Scheduler.Backend,
		"email_provider", cfg.Email.Provider,
	)

	ctx := context.Background()
	awsCfg, err := app.LoadAWSConfig(ctx, cfg.AWS)
	if err != nil {
		return err
	}

	pipeline, err := app.Build(ctx, cfg, awsCfg, logger)
	if err != nil {
		return fmt.Errorf("building pipeline: %w", err)
	}

	srv, err := newServer(cfg, pipeline, logger)
	if err != nil {
		pipeline.Close()
		return fmt.Errorf("creating server: %w", err)
	}

	return runHTTPServer(srv, cfg, logger)
}

// newServer builds the server around pipeline and mounts every route.
func newServer(cfg *config.Config, pipeline *app.Pipeline, logger *slog.Logger) (*core.Server, error) {
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, err
	}
	srv.Metrics = pipeline.Metrics
	srv.Closer = pipeline.Close
	if pipeline.Pool != nil {
		srv.HealthProbes = append(srv.HealthProbes, core.PingProbe("database", pipeline.Pool))
	}

	verifier := auth.NewVerifier(auth.VerifierConfig{
		CurrentKey:   cfg.Wakeup.CurrentSigningKey,
		NextKey:      cfg.Wakeup.NextSigningKey,
		BearerSecret: cfg.Wakeup.BearerSecret,
		Tolerance:    cfg.Wakeup.Tolerance,
	})
	if !verifier.Enabled() {
		logger.Warn("wake-up verification disabled: no signing key or bearer secret configured")
	}

	wakeups := handlers.NewWakeupHandler(verifier, pipeline.Controller, pipeline.Reminders, srv.Validator, logger)
	passHandler := handlers.NewPassHandler(pipeline.Passes, srv.Validator,
		srv.RequireServiceKey(cfg.Security.ServiceAPIKey), logger)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, wakeups.RegisterRoutes, passHandler.RegisterRoutes)

	srv.MountRoutes()
	return srv, nil
}

// awsRegion is read directly because the region is needed before the
// configuration (and its SSM-backed secrets) can be loaded.
func awsRegion() string {
	if region := os.Getenv("AWS_REGION"); region != "" {
		return region
	}
	return "us-east-1"
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			_ = srv.Shutdown(context.Background())
			return fmt.Errorf("server error: %w", err)
		}
	}

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	logger.Info("initiating graceful shutdown", "timeout", timeout.String())
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	// Release pipeline resources (DB pool).
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: false,
	})
	return slog.New(handler)
}
