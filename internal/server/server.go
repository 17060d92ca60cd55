// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the "wiring" layer. It decides:
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
//
//	main.go:        config.Load → server.Wire (store + verifier) → server.New
//	server.New:     repository.Table → ResumeService ─┐
//	                                   GenerateService ┴→ ResumeHandler → routes
//	                auth.Verifier → auth.Gate → RequireIdentity middleware
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/resume-builder/internal/auth"
	"github.com/sakif/resume-builder/internal/config"
	"github.com/sakif/resume-builder/internal/handler"
	"github.com/sakif/resume-builder/internal/middleware"
	"github.com/sakif/resume-builder/internal/repository"
	"github.com/sakif/resume-builder/internal/service"
)

// Dependencies are the backends the server runs against. Nil Table or nil
// Verifier mean "not configured"; the affected routes answer 500 with a hint.
type Dependencies struct {
	Table    repository.Table
	Verifier auth.Verifier

	// Storage and AuthMode name the configured backends for /healthz.
	Storage  string
	AuthMode string

	// Closers are closed, in order, when the server stops.
	Closers []io.Closer
}

// Close releases every backend connection.
func (d Dependencies) Close() error {
	var errs []error
	for _, c := range d.Closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Server represents the HTTP server and all its dependencies.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	deps   Dependencies
}

// New creates a Server and registers its routes.
func New(cfg *config.Config, logger *slog.Logger, deps Dependencies) *Server {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		deps:   deps,
	}
	s.setupRoutes()
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /healthz               → liveness + configured backends
// POST   /api/generate-resume   → generated summary (no auth)
// GET    /api/resume            → caller's resume           (auth)
// POST   /api/resume            → save caller's resume      (auth)
// GET    /api/GetResume         → alias of GET /api/resume  (auth)
// POST   /api/SaveResume        → alias of POST /api/resume (auth)
//
// The alias paths are the ones the deployed frontend already calls.
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns unique ID to each request (for tracing)
// 2. RealIP: extracts real client IP from proxy headers
// 3. Recoverer: catches panics and returns 500 instead of crashing
// 4. Logger: logs each request with timing info and the request ID
// 5. CORS: answers preflights before auth sees them
func (s *Server) setupRoutes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.CORS(s.config.HTTP.AllowedOrigins, auth.TokenHeader))

	health := handler.NewHealthHandler(s.deps.Storage, s.deps.AuthMode)
	s.router.Get("/healthz", health.HandleHealth)

	resumeService := service.NewResumeService(s.deps.Table, s.logger)
	generateService := service.NewGenerateService(s.logger)
	resumeHandler := handler.NewResumeHandler(resumeService, generateService, s.logger, s.config.HTTP.MaxBodyBytes)

	gate := auth.NewGate(s.deps.Verifier, s.logger)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/generate-resume", resumeHandler.HandleGenerate)

		// Everything below requires a verified identity. RequireIdentity
		// answers 401/500 itself, so handlers never see anonymous calls.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireIdentity(gate, handler.WriteError))

			r.Get("/resume", resumeHandler.HandleGet)
			r.Post("/resume", resumeHandler.HandleSave)
			r.Get("/GetResume", resumeHandler.HandleGet)
			r.Post("/SaveResume", resumeHandler.HandleSave)
		})
	})
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the table store (flushes the SQLite WAL, closes Redis pools)
func (s *Server) Start() error {
	defer func() {
		if err := s.deps.Close(); err != nil {
			s.logger.Error("closing backends", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second, // a photo upload on a slow link
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("env", s.config.AppEnv),
			slog.String("storage", s.deps.Storage),
			slog.String("auth", s.deps.AuthMode),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
