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

// Config holds the listen ports and handler paths.
type Config struct {
	HealthPort     int
	MetricsPort    int
	LivenessPath   string
	ReadinessPath  string
	MetricsPath    string
	MetricsEnabled bool
}

func (c Config) withDefaults() Config {
	if c.LivenessPath == "" {
		c.LivenessPath = "/health/live"
	}
	if c.ReadinessPath == "" {
		c.ReadinessPath = "/health/ready"
	}
	if c.MetricsPath == "" {
		c.MetricsPath = "/metrics"
	}
	return c
}

// Server represents the HTTP server for health and metrics.
type Server struct {
	healthServer  *http.Server
	metricsServer *http.Server
	healthAddr    net.Addr
	metricsAddr   net.Addr
	logger        *slog.Logger
}

// NewServer creates a new HTTP server. The metrics server is omitted when
// metrics are disabled.
func NewServer(
	config Config,
	healthChecker HealthChecker,
	registry *prometheus.Registry,
	logger *slog.Logger,
) *Server {
	config = config.withDefaults()

	// Health server
	healthMux := http.NewServeMux()
	healthMux.HandleFunc("GET "+config.LivenessPath, LivenessHandler(healthChecker, logger))
	healthMux.HandleFunc("GET "+config.ReadinessPath, ReadinessHandler(healthChecker, logger))

	s := &Server{
		healthServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.HealthPort),
			Handler:      healthMux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		logger: logger,
	}

	if config.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(config.MetricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

		s.metricsServer = &http.Server{
			Addr:         fmt.Sprintf(":%d", config.MetricsPort),
			Handler:      metricsMux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
	}

	return s
}

// Start binds both listeners and serves them in the background. Bind
// failures are returned; serve failures are logged.
func (s *Server) Start() error {
	addr, err := s.serve("health", s.healthServer)
	if err != nil {
		return err
	}
	s.healthAddr = addr

	if s.metricsServer != nil {
		addr, err := s.serve("metrics", s.metricsServer)
		if err != nil {
			_ = s.healthServer.Close()
			return err
		}
		s.metricsAddr = addr
	}

	return nil
}

func (s *Server) serve(name string, srv *http.Server) (net.Addr, error) {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for %s server on %s: %w", name, srv.Addr, err)
	}

	go func() {
		s.logger.Info("starting "+name+" server", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(name+" server failed", "error", err)
		}
	}()

	return ln.Addr(), nil
}

// HealthAddr returns the bound health address once started.
func (s *Server) HealthAddr() net.Addr { return s.healthAddr }

// MetricsAddr returns the bound metrics address once started, or nil when
// metrics are disabled.
func (s *Server) MetricsAddr() net.Addr { return s.metricsAddr }

// Shutdown gracefully shuts down both servers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP servers")

	servers := []*http.Server{s.healthServer}
	if s.metricsServer != nil {
		servers = append(servers, s.metricsServer)
	}

	errChan := make(chan error, len(servers))
	for _, srv := range servers {
		go func() {
			errChan <- srv.Shutdown(ctx)
		}()
	}

	var lastErr error
	for range servers {
		if err := <-errChan; err != nil {
			s.logger.Error("error shutting down server", "error", err)
			lastErr = err
		}
	}

	return lastErr
}
