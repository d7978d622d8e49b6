// Package server exposes the rendered metrics document over HTTP for
// pull-based collectors.
package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"
)

// contentType is the plaintext exposition format version understood by
// pull-based collectors.
const contentType = "text/plain; version=0.0.4; charset=utf-8"

// Renderer produces one complete exposition document per call.
type Renderer interface {
	Render(ctx context.Context) (string, error)
}

// Server serves the metrics endpoint.
type Server struct {
	renderer Renderer
	listen   string
	logger   *slog.Logger
}

// Config holds the server dependencies.
type Config struct {
	Renderer Renderer
	Listen   string
	Logger   *slog.Logger
}

// New creates a metrics server. If Logger is nil, a discard logger is
// used.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{
		renderer: cfg.Renderer,
		listen:   cfg.Listen,
		logger:   logger,
	}
}

// Handler returns the HTTP handler serving /metrics and /livez.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.Recoverer,
		s.requestLogger,
	)

	r.Get("/metrics", s.handleMetrics)
	r.Get("/livez", s.handleLivez)

	return r
}

// Serve starts the HTTP server and blocks until the context is cancelled
// or the server fails.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting metrics server", "addr", s.listen)

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    s.listen,
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down metrics server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// handleMetrics renders the exposition document. A render failure is an
// all-or-nothing 500: no partial document is ever written.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	doc, err := s.renderer.Render(r.Context())
	if err != nil {
		s.logger.Error("failed to render metrics", "error", err)
		http.Error(w, "failed to generate metrics", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	_, _ = io.WriteString(w, doc)
}

func (s *Server) handleLivez(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok\n")
}

// requestLogger logs one line per request at debug level.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}
