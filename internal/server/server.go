// Package server provides the HTTP API for ragstore.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hyperjump/ragstore/internal/config"
	"github.com/hyperjump/ragstore/internal/indexer"
	"github.com/hyperjump/ragstore/internal/search"
	"github.com/hyperjump/ragstore/pkg/utils"
)

// WatchService manages the watched directories at runtime. *watcher.Watcher implements it.
type WatchService interface {
	Directories() []string
	AddDirectory(path string, syncExisting bool) error
	RemoveDirectory(path string) error
}

// Server is the HTTP server for the ragstore API.
type Server struct {
	engine     *search.Engine
	indexer    *indexer.Indexer
	config     *config.Config
	configPath string
	configMu   sync.Mutex
	watch      WatchService
	logger     *zap.Logger
	server     *http.Server
}

// NewServer creates a server with the given dependencies. idx and watch may be
// nil; configPath, when set, is rewritten whenever the watched directories change.
func NewServer(
	engine *search.Engine,
	idx *indexer.Indexer,
	cfg *config.Config,
	logger *zap.Logger,
	watch WatchService,
	configPath string,
) *Server {
	return &Server{
		engine:     engine,
		indexer:    idx,
		config:     cfg,
		configPath: configPath,
		watch:      watch,
		logger:     utils.OrNop(logger),
	}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware(s.config.Server.CORSOrigins))

	r.Post("/api/v1/search", s.handleSearch)
	r.Post("/api/v1/documents", s.handleAddDocuments)
	r.Delete("/api/v1/documents", s.handleDeleteAll)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/api/v1/watch/directories", s.handleWatchDirectoriesList)
	r.Post("/api/v1/watch/directories", s.handleWatchDirectoriesAdd)
	r.Delete("/api/v1/watch/directories", s.handleWatchDirectoriesRemove)
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
	s.logger.Info("Starting server", zap.String("addr", addr), zap.Bool("hybrid", s.engine.IsHybrid()))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"http://localhost:*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	})
}
