// Package main is the entry point for the resume-builder API server.
//
// The main package is kept minimal. Its job is to:
// 1. Read configuration (environment variables, optionally from .env)
// 2. Create dependencies (logger, table store, token verifier)
// 3. Start the application
//
// All actual logic lives in imported packages (internal/server,
// internal/service, internal/handler, ...).
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/sakif/resume-builder/internal/config"
	"github.com/sakif/resume-builder/internal/server"
)

func main() {
	// === 1. READ CONFIGURATION ===
	// Before the logger exists, failures go to a default text logger.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	// Human-readable text locally, JSON in production so the log pipeline
	// can index the fields.
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	// The response helpers log through the default logger.
	slog.SetDefault(logger)

	// === 3. CONNECT BACKENDS ===
	// Missing storage or auth settings are not fatal: the server starts
	// and the affected routes answer 500 with a hint naming the variable.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	deps, err := server.Wire(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.Error("failed to initialise backends", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 4. CREATE AND START THE SERVER ===
	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	// and closes the backends on the way out.
	srv := server.New(cfg, logger, deps)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
