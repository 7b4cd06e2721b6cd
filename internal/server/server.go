// Package server implements the admin HTTP server: health probes, appender
// statistics, manual flush and Prometheus metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jittakal/fifolog/internal/appender"
)

// Ensure implementation satisfies interface at compile time.
var _ Appender = (*appender.Appender)(nil)

// Appender is the subset of the appender served over HTTP.
type Appender interface {
	Stats() appender.Stats
	Healthy() bool
	Flush(ctx context.Context) error
}

// Config contains admin server settings. A disabled server is not started.
type Config struct {
	HealthEnabled  bool
	HealthPort     int
	LivenessPath   string
	ReadinessPath  string
	MetricsEnabled bool
	MetricsPort    int
	MetricsPath    string
	FlushTimeout   time.Duration
}

// Server represents the HTTP servers for admin endpoints and metrics.
type Server struct {
	adminServer   *http.Server
	metricsServer *http.Server
	logger        *zap.Logger
}

// NewServer creates the admin and metrics servers.
func NewServer(cfg Config, app Appender, registry *prometheus.Registry, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("server")
	s := &Server{logger: logger}

	if cfg.HealthEnabled {
		s.adminServer = &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.HealthPort),
			Handler:      NewRouter(cfg, app, logger),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: flushTimeout(cfg) + 5*time.Second,
		}
	}

	if cfg.MetricsEnabled {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		metricsMux := http.NewServeMux()
		metricsMux.Handle(path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

		s.metricsServer = &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.MetricsPort),
			Handler:      metricsMux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
	}

	return s
}

func flushTimeout(cfg Config) time.Duration {
	if cfg.FlushTimeout > 0 {
		return cfg.FlushTimeout
	}
	return 30 * time.Second
}

// NewRouter builds the admin routes.
func NewRouter(cfg Config, app Appender, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	liveness := cfg.LivenessPath
	if liveness == "" {
		liveness = "/health/live"
	}
	readiness := cfg.ReadinessPath
	if readiness == "" {
		readiness = "/health/ready"
	}

	checker := NewAppenderChecker(app)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(accessLog(logger))

	r.GET(liveness, LivenessHandler(checker))
	r.GET(readiness, ReadinessHandler(checker))
	r.GET("/stats", StatsHandler(app))
	r.POST("/flush", FlushHandler(app, flushTimeout(cfg)))

	return r
}

// Run serves until ctx is cancelled, then shuts the servers down within
// the grace period.
func (s *Server) Run(ctx context.Context, grace time.Duration) error {
	errCh := make(chan error, 2)
	serve := func(name string, srv *http.Server) {
		s.logger.Info("starting "+name+" server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("%s server failed: %w", name, err)
		}
	}

	if s.adminServer != nil {
		go serve("admin", s.adminServer)
	}
	if s.metricsServer != nil {
		go serve("metrics", s.metricsServer)
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown gracefully shuts down both servers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP servers")

	var errs []error
	for _, srv := range []*http.Server{s.adminServer, s.metricsServer} {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(ctx); err != nil {
			s.logger.Error("error shutting down server", zap.String("addr", srv.Addr), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
