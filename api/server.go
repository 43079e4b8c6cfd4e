package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/siherrmann/grimoire/model"
)

// Service is the question answering backend served over HTTP.
// Implemented by grimoire.Grimoire.
type Service interface {
	Answer(ctx context.Context, question string, topK int) (*model.QueryResult, error)
	Health(ctx context.Context) *model.HealthReport
	Stats(ctx context.Context) (*model.Stats, error)
	History(ctx context.Context, limit int) ([]*model.HistoryEntry, error)
	ClearHistory(ctx context.Context) (int, error)
	ClearCache(ctx context.Context) (int, error)
}

// Server manages the HTTP server and routes
type Server struct {
	service     Service
	defaultTopK int
	validate    *validator.Validate
	logger      *slog.Logger
	router      *http.ServeMux
	server      *http.Server
}

// New creates a server for service listening on config.Host:config.Port
func New(service Service, config model.ServerConfig, defaultTopK int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		service:     service,
		defaultTopK: model.ClampTopK(defaultTopK),
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		logger:      logger,
	}
	s.router = s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      s.withMiddleware(s.router),
		ReadTimeout:  model.Duration(config.ReadTimeout),
		WriteTimeout: model.Duration(config.WriteTimeout),
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /query", s.handleQuery)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /history", s.handleHistory)
	mux.HandleFunc("DELETE /history", s.handleClearHistory)
	mux.HandleFunc("DELETE /cache", s.handleClearCache)
	return mux
}

// Handler returns the routes wrapped in the middleware chain
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start listens until the server is shut down
func (s *Server) Start() error {
	s.logger.Info("HTTP server starting", slog.String("address", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server, waiting for running requests until ctx is done
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}
