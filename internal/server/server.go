// Package server wires the management API routes and runs the HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/qoollo/bob-management/internal/config"
	apierrors "github.com/qoollo/bob-management/internal/errors"
	"github.com/qoollo/bob-management/internal/handler"
	"github.com/qoollo/bob-management/internal/health"
	"github.com/qoollo/bob-management/internal/metrics"
	"github.com/qoollo/bob-management/internal/middleware"
	"go.uber.org/zap"
)

const apiPrefix = "/api/v1"

// Cluster is the topology side the server needs: readiness reads it, refresh rebuilds it.
type Cluster interface {
	handler.Refresher
	health.Source
}

// Server represents the HTTP server.
type Server struct {
	router       *mux.Router
	handler      http.Handler
	httpServer   *http.Server
	handlers     *handler.Handlers
	healthCheck  *health.HealthCheck
	errorHandler *apierrors.Handler
	metrics      *metrics.Metrics
	logger       *zap.Logger
	cfg          *config.Config
}

// NewServer creates the server and registers every route.
func NewServer(cfg *config.Config, views handler.Views, cluster Cluster, m *metrics.Metrics, logger *zap.Logger) *Server {
	router := mux.NewRouter()
	errorHandler := apierrors.NewHandler(logger)

	s := &Server{
		router:       router,
		handlers:     handler.NewHandlers(views, cluster, errorHandler, logger),
		healthCheck:  health.NewHealthCheck(cluster, cfg.Cluster.RequestTimeout, m, logger),
		errorHandler: errorHandler,
		metrics:      m,
		logger:       logger,
		cfg:          cfg,
	}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return s
}

// setupRoutes registers the routes. The middleware chain wraps the whole router so that
// unmatched routes and CORS preflights pass through it too; only the metrics middleware runs
// inside the router, where the matched route template is known.
func (s *Server) setupRoutes() {
	middlewareChain := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.Recovery(s.errorHandler, s.logger),
		middleware.Logging(s.logger),
		middleware.CORS(s.cfg.CORS.AllowedOrigins),
	}
	if s.cfg.RateLimiter.Enabled {
		rateLimiter := middleware.NewRateLimiter(
			s.cfg.RateLimiter.RequestsPerSecond,
			s.cfg.RateLimiter.BurstSize,
			s.errorHandler,
			s.logger,
		)
		middlewareChain = append(middlewareChain, rateLimiter.Limit)
	}
	middlewareChain = append(middlewareChain, middleware.Timeout(s.cfg.Server.RequestTimeout))
	s.handler = middleware.Chain(middlewareChain...)(s.router)
	s.router.Use(metrics.MetricsMiddleware(s.metrics))

	s.router.HandleFunc("/health", s.healthCheck.LivenessHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", s.healthCheck.ReadinessHandler).Methods(http.MethodGet)

	// API routes sit on the root router with full paths; a subrouter reports a wrong method
	// on all but its last route as not found.
	api := func(path string, fn http.HandlerFunc, method string) {
		s.router.HandleFunc(apiPrefix+path, fn).Methods(method)
	}

	api("/disks/count", s.handlers.DiskCount, http.MethodGet)

	api("/nodes/count", s.handlers.NodeCount, http.MethodGet)
	api("/nodes/rps", s.handlers.RPS, http.MethodGet)
	api("/nodes/space", s.handlers.Space, http.MethodGet)
	api("/nodes/list", s.handlers.Nodes, http.MethodGet)
	api("/nodes/{node_name}", s.handlers.Node, http.MethodGet)
	api("/nodes/{node_name}/metrics", s.handlers.NodeMetrics, http.MethodGet)
	api("/nodes/{node_name}/configuration", s.handlers.NodeConfiguration, http.MethodGet)

	api("/vdisks/list", s.handlers.VDisks, http.MethodGet)
	api("/vdisks/{vdisk_id}", s.handlers.VDisk, http.MethodGet)

	api("/topology", s.handlers.Topology, http.MethodGet)
	api("/topology/refresh", s.handlers.RefreshTopology, http.MethodPost)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.errorHandler.WriteErrorResponse(w, http.StatusNotFound, apierrors.ErrorCodeRouteNotFound,
			"endpoint not found", r.Header.Get(middleware.RequestIDHeader))
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.errorHandler.WriteErrorResponse(w, http.StatusMethodNotAllowed, apierrors.ErrorCodeMethodNotAllowed,
			"method not allowed", r.Header.Get(middleware.RequestIDHeader))
	})
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.Int("port", s.cfg.Server.Port))

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the routed handler, middleware included.
func (s *Server) Handler() http.Handler {
	return s.handler
}
