package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthChecker interface for checking component health.
type HealthChecker interface {
	Liveness() bool
	Readiness(ctx context.Context) bool
	IsHealthy() bool
	GetStatus() map[string]string
}

// Server serves health and ring status on one port and metrics on another.
type Server struct {
	healthServer  *http.Server
	metricsServer *http.Server
	healthAddr    net.Addr
	metricsAddr   net.Addr
	logger        *slog.Logger
}

// NewServer creates a new HTTP server. rings may be nil, in which case
// /rings is not served.
func NewServer(
	healthPort int,
	metricsPort int,
	healthChecker HealthChecker,
	rings RingLister,
	registry *prometheus.Registry,
	logger *slog.Logger,
) *Server {
	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/health/live", LivenessHandler(healthChecker, logger))
	healthMux.HandleFunc("/health/ready", ReadinessHandler(healthChecker, logger))
	if rings != nil {
		healthMux.HandleFunc("/rings", RingsHandler(rings, logger))
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return &Server{
		healthServer:  newHTTPServer(healthPort, healthMux),
		metricsServer: newHTTPServer(metricsPort, metricsMux),
		logger:        logger,
	}
}

func newHTTPServer(port int, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Start binds both listeners and serves in the background. A port that
// cannot be bound is returned as an error.
func (s *Server) Start() error {
	healthLn, err := net.Listen("tcp", s.healthServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen for health server: %w", err)
	}
	metricsLn, err := net.Listen("tcp", s.metricsServer.Addr)
	if err != nil {
		healthLn.Close()
		return fmt.Errorf("failed to listen for metrics server: %w", err)
	}
	s.healthAddr = healthLn.Addr()
	s.metricsAddr = metricsLn.Addr()

	s.serve("health", s.healthServer, healthLn)
	s.serve("metrics", s.metricsServer, metricsLn)
	return nil
}

func (s *Server) serve(name string, srv *http.Server, ln net.Listener) {
	go func() {
		s.logger.Info("starting "+name+" server", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(name+" server failed", "error", err)
		}
	}()
}

// HealthAddr returns the bound health address once started.
func (s *Server) HealthAddr() net.Addr {
	return s.healthAddr
}

// MetricsAddr returns the bound metrics address once started.
func (s *Server) MetricsAddr() net.Addr {
	return s.metricsAddr
}

// Shutdown gracefully shuts down both servers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP servers")

	errChan := make(chan error, 2)
	go func() { errChan <- s.healthServer.Shutdown(ctx) }()
	go func() { errChan <- s.metricsServer.Shutdown(ctx) }()

	var errs []error
	for range 2 {
		if err := <-errChan; err != nil {
			s.logger.Error("error shutting down server", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
