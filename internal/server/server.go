// Package server exposes the reading pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hed1ad/vitalguard/internal/config"
	"github.com/hed1ad/vitalguard/pkg/pipeline"
	"github.com/hed1ad/vitalguard/pkg/vitals"
)

// maxBodyBytes bounds POST /api/readings payloads.
const maxBodyBytes = 4 << 10

// Service is the part of the pipeline the HTTP layer depends on.
type Service interface {
	Current(ctx context.Context) (pipeline.State, error)
	Process(ctx context.Context, r vitals.Reading) (pipeline.State, error)
	History(ctx context.Context) pipeline.History
}

var _ Service = (*pipeline.Pipeline)(nil)

// Server serves the JSON API, health and metrics endpoints.
type Server struct {
	cfg     config.ServerConfig
	svc     Service
	logger  *zap.Logger
	metrics *httpMetrics
	router  *mux.Router
}

// New builds the router. Collectors are registered with reg, which is also
// what /metrics exposes.
func New(cfg config.ServerConfig, svc Service, reg *prometheus.Registry, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:     cfg,
		svc:     svc,
		logger:  logger,
		metrics: newHTTPMetrics(reg),
		router:  mux.NewRouter(),
	}

	s.router.Use(requestIDMiddleware, s.loggingMiddleware, s.recoveryMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Path("/metrics").Handler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	api := s.router.PathPrefix("/api").Subrouter()
	if cfg.RateLimit > 0 {
		api.Use(rateLimitMiddleware(cfg.RateLimit, cfg.RateBurst))
	}
	api.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	api.HandleFunc("/readings", s.handleReadings).Methods(http.MethodPost)
	api.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)

	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on cfg.Addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:        s.router,
		ReadTimeout:    s.cfg.ReadTimeout,
		WriteTimeout:   s.cfg.WriteTimeout,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", ln.Addr().String()))
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}
