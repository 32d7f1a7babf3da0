// Package server exposes the swarm wire contract over HTTP: the
// coordination and memory-sync exchanges peers drive against each other,
// plus the ping probe and operator introspection endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mure-ai/mure/api"
	"github.com/mure-ai/mure/internal/config"
	"github.com/mure-ai/mure/internal/memory"
	"github.com/mure-ai/mure/internal/ratelimit"
	"github.com/mure-ai/mure/internal/swarm"
)

// Server is the node's HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	limiter    ratelimit.Limiter
	logger     *slog.Logger
}

// New creates a server with all routes configured.
func New(cfg config.Config, coord *swarm.Coordinator, mem *memory.Distributed, version string, logger *slog.Logger) *Server {
	h := &handlers{
		cfg:     cfg,
		coord:   coord,
		mem:     mem,
		version: version,
		logger:  logger,
		started: time.Now(),
	}

	mux := http.NewServeMux()

	// Peer-facing wire contract.
	mux.HandleFunc("POST /v1/swarm/coordinate", h.handleCoordinate)
	mux.HandleFunc("POST /v1/memory/sync", h.handleSync)
	mux.HandleFunc("GET /v1/swarm/ping", h.handlePing)

	// Operator surface.
	mux.HandleFunc("GET /v1/swarm/peers", h.handlePeers)
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /v1/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(api.OpenAPISpec)
	})

	var limiter ratelimit.Limiter = ratelimit.NoopLimiter{}
	if cfg.RateLimitEnabled {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	handler := chain(mux,
		withRequestID(),
		withTracing(),
		withLogging(logger),
		withRateLimit(limiter, logger),
		withBodyLimit(cfg.MaxRequestBodyBytes),
		withRecovery(logger),
	)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler: handler,
		limiter: limiter,
		logger:  logger,
	}
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	err := s.httpServer.Shutdown(ctx)
	_ = s.limiter.Close()
	return err
}
