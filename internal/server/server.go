// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the conversion orchestrator over HTTP: a health
// probe and a multipart upload endpoint that answers with the DOCX.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/pdiddy/pdf2word/internal/convert"
	"github.com/pdiddy/pdf2word/internal/history"
	"github.com/pdiddy/pdf2word/pkg/types"
)

const (
	defaultAddr           = ":5000"
	defaultUploadDir      = "uploads"
	defaultMaxUploadBytes = 10 << 20
	shutdownTimeout       = 10 * time.Second
)

// Converter runs one conversion. *convert.Orchestrator satisfies it.
type Converter interface {
	Convert(ctx context.Context, req convert.Request) (convert.Result, error)
}

// Recorder journals conversion outcomes. *history.Store satisfies it.
type Recorder interface {
	Record(ctx context.Context, res convert.Result) (history.Entry, error)
}

// Option configures a Server.
type Option func(*Server)

// WithRecorder journals every conversion the server runs.
func WithRecorder(r Recorder) Option {
	return func(s *Server) { s.recorder = r }
}

// Server serves conversions one at a time.
type Server struct {
	cfg      types.ServeConfig
	conv     Converter
	recorder Recorder
	log      zerolog.Logger

	// busy admits a single in-flight conversion.
	busy sync.Mutex
}

// New creates a server. Zero-valued settings in cfg take their defaults.
func New(cfg types.ServeConfig, conv Converter, log zerolog.Logger, opts ...Option) *Server {
	if cfg.Addr == "" {
		cfg.Addr = defaultAddr
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = defaultUploadDir
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	s := &Server{cfg: cfg, conv: conv, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the router with all middleware and routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		if s.cfg.RateLimit > 0 {
			r.Use(httprate.LimitByIP(s.cfg.RateLimit, time.Minute))
		}
		if s.cfg.Token != "" {
			r.Use(bearerAuth(s.cfg.Token))
		}
		r.Post(convert.ConvertRoute, s.handleConvert)
	})

	return r
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.Addr).Str("upload_dir", s.cfg.UploadDir).Msg("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serving on %s: %w", s.cfg.Addr, err)
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
