// Package server provides the HTTP API for the chat-history QA backend.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/askchat/askchat-ai-backend/internal/config"
	"github.com/askchat/askchat-ai-backend/internal/embedding"
	"github.com/askchat/askchat-ai-backend/internal/ingest"
	"github.com/askchat/askchat-ai-backend/internal/retrieval"
	"github.com/askchat/askchat-ai-backend/internal/store"
)

// Server is the HTTP server for the backend API.
type Server struct {
	ingester *ingest.Ingester
	engine   *retrieval.Engine
	store    store.VectorStore
	embedder embedding.Embedder
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	ingester *ingest.Ingester,
	engine *retrieval.Engine,
	vstore store.VectorStore,
	embedder embedding.Embedder,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		ingester: ingester,
		engine:   engine,
		store:    vstore,
		embedder: embedder,
		config:   cfg,
		logger:   logger,
	}
}

// Router builds the request router. Mutating endpoints sit behind the
// shared-secret check; health and status stay open for probes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Group(func(r chi.Router) {
		r.Use(s.requireToken)
		r.Post("/embed-message", s.handleEmbedMessage)
		r.Post("/ask", s.handleAsk)
	})
	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
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
