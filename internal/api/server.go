// Package api exposes the check-in service over HTTP.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/rollcall/internal/app"
	"github.com/mattjoyce/rollcall/internal/events"
	"github.com/mattjoyce/rollcall/internal/mail"
	"github.com/mattjoyce/rollcall/internal/report"
	"github.com/mattjoyce/rollcall/internal/retention"
)

// Service is the application surface the handlers call.
type Service interface {
	Checkin(ctx context.Context, hostID string) (app.CheckinResult, error)
	Status(ctx context.Context) (app.Status, error)
	DownloadReport(ctx context.Context, date string) (report.Artifact, []byte, error)
	EmailReport(ctx context.Context, date string) (mail.Delivery, error)
	RunRetention(ctx context.Context) (retention.Result, error)
	ReloadRoster(ctx context.Context) (app.RosterInfo, error)
	Health(ctx context.Context) (app.Health, error)
}

// EventSource feeds the SSE stream.
type EventSource interface {
	Since(lastID int64) []events.Event
	Subscribe() (<-chan events.Event, func())
}

// Config holds API server configuration
type Config struct {
	Listen string
	// APIKey guards the admin routes when set.
	APIKey string
}

// Server represents the HTTP API server
type Server struct {
	config  Config
	service Service
	events  EventSource
	logger  *slog.Logger
	server  *http.Server
}

// New creates a new API server instance
func New(config Config, service Service, source EventSource, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config:  config,
		service: service,
		events:  source,
		logger:  logger.With("component", "api"),
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.config.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Post("/checkin", s.handleCheckin)
	r.Get("/status", s.handleStatus)
	r.Get("/healthz", s.handleHealthz)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/generate_pdf", s.handleGeneratePDF)
		r.Post("/send_pdf_email", s.handleSendEmail)
		r.Get("/run_garbage_collector", s.handleRetention)
		r.Get("/events", s.handleEvents)
		r.Post("/admin/roster/reload", s.handleRosterReload)
	})

	return r
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
