package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/teemow/joinpass/internal/instrumentation"
	"github.com/teemow/joinpass/internal/session"
)

const (
	// DefaultMetricsAddr keeps scraping off the provisioning port.
	DefaultMetricsAddr = ":9090"

	// DefaultShutdownTimeout bounds graceful shutdown of every listener.
	DefaultShutdownTimeout = 30 * time.Second

	metricsTimeout     = 10 * time.Second
	metricsIdleTimeout = 60 * time.Second
)

// MetricsServerConfig configures NewMetricsServer.
type MetricsServerConfig struct {
	// Addr defaults to DefaultMetricsAddr.
	Addr     string
	Provider *instrumentation.Provider
	Logger   *slog.Logger
}

// MetricsServer exposes a Provider's Prometheus registry on its own
// listener. Provisioning traffic never reaches it.
type MetricsServer struct {
	srv    *http.Server
	logger *slog.Logger
}

// NewMetricsServer fails with a configuration error unless the provider
// exports to Prometheus.
func NewMetricsServer(cfg MetricsServerConfig) (*MetricsServer, error) {
	if cfg.Provider == nil || !cfg.Provider.Enabled() {
		return nil, session.NewConfiguration("metrics server needs an enabled instrumentation provider")
	}
	scrape := cfg.Provider.MetricsHandler()
	if scrape == nil {
		return nil, session.NewConfiguration("metrics server requires the prometheus metrics exporter")
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultMetricsAddr
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", scrape)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	return &MetricsServer{
		srv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           mux,
			ReadHeaderTimeout: metricsTimeout,
			WriteTimeout:      metricsTimeout,
			IdleTimeout:       metricsIdleTimeout,
		},
		logger: logger.With(slog.String("component", "metrics")),
	}, nil
}

// Handler returns the metrics mux.
func (s *MetricsServer) Handler() http.Handler {
	return s.srv.Handler
}

// Addr returns the configured listen address.
func (s *MetricsServer) Addr() string {
	return s.srv.Addr
}

// Start listens on Addr and blocks until Shutdown.
func (s *MetricsServer) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve blocks serving ln until Shutdown. It returns http.ErrServerClosed
// after a clean shutdown.
func (s *MetricsServer) Serve(ln net.Listener) error {
	s.logger.Info("serving metrics", slog.String("addr", ln.Addr().String()))
	return s.srv.Serve(ln)
}

// Shutdown stops the listener and waits for in-flight scrapes.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
