// Package server provides the HTTP API for ytrag.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hyperjump/ytrag/internal/config"
	"github.com/hyperjump/ytrag/internal/keyword"
	"github.com/hyperjump/ytrag/internal/pipeline"
	"github.com/hyperjump/ytrag/internal/storage"
	"github.com/hyperjump/ytrag/pkg/utils"
)

// requestTimeout bounds a whole request; first ingestion of a long video embeds every chunk.
const requestTimeout = 120 * time.Second

// Server is the HTTP server for the ytrag API.
type Server struct {
	pipeline *pipeline.Pipeline
	cache    storage.Storage
	moments  keyword.MomentIndex
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server. cache and moments may be nil.
func NewServer(
	p *pipeline.Pipeline,
	cache storage.Storage,
	moments keyword.MomentIndex,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		pipeline: p,
		cache:    cache,
		moments:  moments,
		config:   cfg,
		logger:   utils.OrNop(logger),
	}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", apiKeyHeader},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/transcript", s.handleTranscript)
		r.Post("/query", s.handleQuery)
		r.Get("/videos", s.handleListVideos)
		r.Get("/videos/{id}/moments", s.handleMoments)
		r.Get("/status", s.handleStatus)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
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
