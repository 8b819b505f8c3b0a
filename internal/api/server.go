// Package api exposes the dashboard backend over HTTP: analyses and audits
// as async jobs, the snapshot history, and operational endpoints.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	handler "github.com/tranmd/whaleaudit/internal/api/handler/api"
	"github.com/tranmd/whaleaudit/internal/api/middleware"
	"github.com/tranmd/whaleaudit/internal/metrics"
)

// Server is the HTTP front of the audit service.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
}

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	APIKey      string
	MetricsPath string
}

// Handlers bundles the route handlers the server mounts.
type Handlers struct {
	Analyses *handler.AnalysisHandler
	Audits   *handler.AuditHandler
	History  *handler.HistoryHandler
}

// NewServer creates the HTTP server and mounts all routes.
func NewServer(cfg Config, h Handlers, reg *metrics.Registry, logger *zap.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
		mux:    mux,
	}

	// API routes behind key auth; health and metrics stay open.
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("POST /api/analyses", h.Analyses.Create)
	apiMux.HandleFunc("GET /api/analyses/{id}", h.Analyses.GetStatus)
	apiMux.HandleFunc("POST /api/audits", h.Audits.Create)
	apiMux.HandleFunc("GET /api/audits/{id}", h.Audits.GetStatus)
	apiMux.HandleFunc("GET /api/history", h.History.List)
	apiMux.HandleFunc("GET /api/history/stats", h.History.Stats)
	apiMux.HandleFunc("GET /api/history/{id}", h.History.GetSnapshot)

	var apiHandler http.Handler = apiMux
	apiHandler = middleware.APIKeyAuth(cfg.APIKey)(apiHandler)
	if reg != nil {
		apiHandler = metrics.HTTPMiddleware(reg)(apiHandler)
	}
	mux.Handle("/api/", apiHandler)

	mux.HandleFunc("GET /api/health", s.handleHealth)
	if reg != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		mux.Handle("GET "+path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	return s
}

// Handler returns the root handler, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start starts the HTTP server and blocks until shutdown.
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
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
