// internal/api/server.go
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	handler "github.com/newthinker/marketbias/internal/api/handler/api"
	"github.com/newthinker/marketbias/internal/api/job"
	"github.com/newthinker/marketbias/internal/api/middleware"
	"github.com/newthinker/marketbias/internal/metrics"
	"github.com/newthinker/marketbias/internal/sentiment"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server represents the HTTP server for the bias service
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
	stream     *handler.StreamHandler
}

// Config holds server configuration
type Config struct {
	Host           string
	Port           int
	APIKey         string
	MetricsPath    string // empty disables /metrics
	RefreshTimeout time.Duration
	MaxJobs        int
	JobTTL         time.Duration
}

// BiasService is everything the API needs from the snapshot store.
type BiasService interface {
	handler.BiasStore
	handler.Refresher
	handler.Subscriber
}

// Dependencies holds the components routes are served from.
type Dependencies struct {
	Store      BiasService
	Classifier *sentiment.Classifier
	Metrics    *metrics.Registry // optional
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Store == nil || deps.Classifier == nil {
		return nil, fmt.Errorf("store and classifier are required")
	}

	mux := http.NewServeMux()

	s := &Server{
		logger: logger,
		mux:    mux,
	}

	s.setupRoutes(cfg, deps)

	var chain http.Handler = mux
	if deps.Metrics != nil {
		chain = metrics.HTTPMiddleware(deps.Metrics)(chain)
	}
	chain = metrics.LoggingMiddleware(logger)(chain)

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:     chain,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: stream connections are long lived.
		IdleTimeout: 60 * time.Second,
	}

	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(cfg Config, deps Dependencies) {
	maxJobs := cfg.MaxJobs
	if maxJobs <= 0 {
		maxJobs = 100
	}
	jobTTL := cfg.JobTTL
	if jobTTL <= 0 {
		jobTTL = time.Hour
	}

	biasHandler := handler.NewBiasHandler(deps.Store)
	refreshHandler := handler.NewRefreshHandler(deps.Store, job.NewStore(maxJobs, jobTTL), cfg.RefreshTimeout, s.logger)
	sentimentHandler := handler.NewSentimentHandler(deps.Classifier)
	s.stream = handler.NewStreamHandler(deps.Store, deps.Metrics, s.logger)

	auth := middleware.APIKeyAuth(cfg.APIKey)
	protect := func(pattern string, h http.HandlerFunc) {
		s.mux.Handle(pattern, auth(h))
	}

	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	protect("GET /api/v1/bias", biasHandler.List)
	protect("GET /api/v1/bias/{index}", biasHandler.Get)
	protect("GET /api/v1/levels/{index}", biasHandler.Levels)
	protect("POST /api/v1/refresh", refreshHandler.Trigger)
	protect("GET /api/v1/refresh/{id}", refreshHandler.Status)
	protect("POST /api/v1/sentiment", sentimentHandler.Classify)
	protect("POST /api/v1/sentiment/feedback", sentimentHandler.Feedback)
	protect("GET /api/v1/stream", s.stream.Stream)

	if cfg.MetricsPath != "" && deps.Metrics != nil {
		s.mux.Handle("GET "+cfg.MetricsPath, promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{
			Registry: deps.Metrics,
		}))
	}
}

// Handler returns the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	s.stream.Close()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
