package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/newthinker/novaquant/internal/api/middleware"
	"github.com/newthinker/novaquant/internal/backtest"
	"github.com/newthinker/novaquant/internal/engine"
	"github.com/newthinker/novaquant/internal/live"
	"github.com/newthinker/novaquant/internal/metrics"
	"github.com/newthinker/novaquant/internal/performance"
	"github.com/newthinker/novaquant/internal/portfolio"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Name is reported by the index route.
const Name = "novaquant"

// Backtester runs the three backtest operations.
type Backtester interface {
	Run(ctx context.Context, req backtest.Request) (*backtest.Response, error)
	Sweep(ctx context.Context, req backtest.SweepRequest) (*backtest.SweepResponse, error)
	WalkForward(ctx context.Context, req backtest.WalkForwardRequest) (*backtest.WalkForwardResponse, error)
}

// LiveSession is the live portfolio the order and metrics routes serve.
type LiveSession interface {
	Execute(ctx context.Context, o live.Order) (*live.Execution, error)
	Metrics() performance.Metrics
	Snapshot() portfolio.Snapshot
	Broadcaster() *live.Broadcaster
}

// EngineStatus reports the order engine's liveness.
type EngineStatus interface {
	Status() engine.Status
}

// Server represents the HTTP server for novaquant.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
	cfg        Config
	deps       Dependencies

	// closed on Shutdown so websocket streams, which Shutdown does not
	// track, terminate too
	quit     chan struct{}
	quitOnce sync.Once
}

// Config holds server configuration.
type Config struct {
	Host              string
	Port              int
	Version           string
	AllowedOrigins    []string
	MetricsPath       string        // prometheus exposition; empty disables it
	MetricsWSInterval time.Duration // resend period for /ws/metrics
}

// Dependencies are the services behind the routes. Metrics may be nil.
type Dependencies struct {
	Backtester Backtester
	Session    LiveSession
	Engine     EngineStatus
	Metrics    *metrics.Registry
}

// NewServer creates a new HTTP server.
func NewServer(cfg Config, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Backtester == nil || deps.Session == nil || deps.Engine == nil {
		return nil, fmt.Errorf("api: backtester, session and engine are required")
	}
	if cfg.MetricsWSInterval <= 0 {
		cfg.MetricsWSInterval = time.Second
	}

	s := &Server{
		logger: logger,
		mux:    http.NewServeMux(),
		cfg:    cfg,
		deps:   deps,
		quit:   make(chan struct{}),
	}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return s, nil
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("POST /backtest/run", runHandler(s, s.deps.Backtester.Run))
	s.mux.HandleFunc("POST /backtest/sweep", runHandler(s, s.deps.Backtester.Sweep))
	s.mux.HandleFunc("POST /backtest/walkforward", runHandler(s, s.deps.Backtester.WalkForward))

	s.mux.HandleFunc("GET /metrics", s.handleMetrics)
	s.mux.HandleFunc("GET /ws/metrics", s.handleMetricsWS)
	s.mux.HandleFunc("GET /portfolio", s.handlePortfolio)
	s.mux.HandleFunc("POST /execute_order", s.handleExecuteOrder)

	if s.deps.Metrics != nil && s.cfg.MetricsPath != "" {
		s.mux.Handle("GET "+s.cfg.MetricsPath, promhttp.HandlerFor(s.deps.Metrics, promhttp.HandlerOpts{}))
	}
}

// Handler returns the routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = middleware.CORS(s.cfg.AllowedOrigins)(h)
	if s.deps.Metrics != nil {
		h = metrics.HTTPMiddleware(s.deps.Metrics)(h)
	}
	return metrics.LoggingMiddleware(s.logger)(h)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	s.quitOnce.Do(func() { close(s.quit) })
	return s.httpServer.Shutdown(ctx)
}
