// Package server provides the HTTP API for rmeta.
package server

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/rmeta/internal/config"
	"github.com/hyperjump/rmeta/internal/extract"
	"github.com/hyperjump/rmeta/internal/metrics"
	"github.com/hyperjump/rmeta/internal/models"
	"github.com/hyperjump/rmeta/internal/storage"
	"go.uber.org/zap"
)

// Extractor turns a document stream into its record list.
type Extractor interface {
	ExtractNamed(r io.Reader, name string, cfg extract.Config) (*models.Result, error)
}

// Server is the HTTP server for the rmeta API.
type Server struct {
	extractor Extractor
	cache     storage.ResultStore
	metrics   *metrics.Metrics
	config    *config.Config
	logger    *zap.Logger
	server    *http.Server
}

// Option configures optional server dependencies.
type Option func(*Server)

// WithCache serves repeated requests from store.
func WithCache(store storage.ResultStore) Option {
	return func(s *Server) { s.cache = store }
}

// WithMetrics records extraction metrics and serves them on /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// NewServer creates a server with the given dependencies.
func NewServer(extractor Extractor, cfg *config.Config, logger *zap.Logger, opts ...Option) *Server {
	s := &Server{
		extractor: extractor,
		config:    cfg,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router returns the HTTP handler with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(uuidRequestID)
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	if s.config.Server.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.config.Server.RequestTimeout))
	}
	r.Use(middleware.Compress(5))

	r.Group(func(r chi.Router) {
		if s.metrics != nil {
			r.Use(countRequests(s.metrics))
		}
		r.Put("/rmeta", s.handleRmeta)
		r.Put("/rmeta/{handler}", s.handleRmeta)
		r.Post("/rmeta/form", s.handleRmetaForm)
		r.Post("/rmeta/form/{handler}", s.handleRmetaForm)
	})
	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.config.Server.Addr()
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
