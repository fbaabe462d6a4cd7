package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pokerwatch/player-integrity-backend/internal/infrastructure/cache"
	"github.com/pokerwatch/player-integrity-backend/internal/infrastructure/config"
	"github.com/pokerwatch/player-integrity-backend/internal/metrics"
)

// HealthChecker probes one dependency
type HealthChecker func(ctx context.Context) error

// ServerDeps carries everything the server needs beyond its own config.
// RateLimiter and Metrics may be nil.
type ServerDeps struct {
	Handler     *Handler
	RateLimiter cache.RateLimiter
	RateLimit   config.RateLimitConfig
	Metrics     *metrics.Registry
	Logger      *slog.Logger
	Checkers    map[string]HealthChecker
}

// Server is the HTTP front of the scoring engine
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	checkers   map[string]HealthChecker
}

// NewServer builds the route table and middleware chain
func NewServer(cfg config.ServerConfig, deps ServerDeps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		logger:   logger,
		checkers: deps.Checkers,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	api := deps.Handler
	apiMiddlewares := []Middleware{
		requestIDMiddleware,
		loggingMiddleware(logger),
		recoveryMiddleware(logger),
		metricsMiddleware(deps.Metrics),
	}
	if deps.RateLimiter != nil {
		apiMiddlewares = append(apiMiddlewares, rateLimitMiddleware(deps.RateLimiter, deps.RateLimit, logger))
	}

	route := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, Chain(fn, apiMiddlewares...))
	}
	route("POST /api/v1/scoring/batch", api.handleScoreBatch)
	route("GET /api/v1/scoring/batch/{id}", api.handleGetBatch)
	route("GET /api/v1/analytics/statistics", api.handleStatistics)
	route("GET /api/v1/analytics/clusters", api.handleClusters)
	route("GET /api/v1/analytics/patterns", api.handlePatterns)

	s.httpServer = &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Port),
		Handler:        mux,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    2 * cfg.ReadTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	return s
}

// Start runs the server until Shutdown is called
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
	Time   time.Time         `json:"time"`
}

// handleHealth probes every registered dependency with a short deadline.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := healthResponse{
		Status: "healthy",
		Checks: make(map[string]string, len(s.checkers)),
		Time:   time.Now().UTC(),
	}
	status := http.StatusOK

	for name, check := range s.checkers {
		if err := check(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("failed to encode health response", "error", err)
	}
}
