package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/teemow/joinpass/internal/calendar"
	"github.com/teemow/joinpass/internal/instrumentation"
	"github.com/teemow/joinpass/internal/logging"
	"github.com/teemow/joinpass/internal/provision"
	"github.com/teemow/joinpass/internal/ratelimit"
	"github.com/teemow/joinpass/internal/server"
	"github.com/teemow/joinpass/internal/tools/session_tools"
	"github.com/teemow/joinpass/internal/zoom"
)

const (
	transportStdio          = "stdio"
	transportStreamableHTTP = "streamable-http"
)

// MetricsConfig holds metrics server configuration
type MetricsConfig struct {
	// Enabled determines whether the metrics server should be started
	Enabled bool

	// Addr is the address for the metrics server (e.g., ":9090")
	Addr string
}

// serveConfig collects every setting of the serve command.
type serveConfig struct {
	debug     bool
	transport string
	httpAddr  string

	zoom zoomFlags

	calendarID      string
	calendarRate    float64
	calendarBurst   int
	upstreamTimeout time.Duration

	rateLimitMax     int
	rateLimitWindow  time.Duration
	rateLimitBackend string
	valkey           ratelimit.ValkeyConfig

	metrics MetricsConfig
}

func newServeCmd() *cobra.Command {
	var cfg serveConfig

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the provisioning API and MCP server",
		Long: `Start the session provisioning server.

Supports multiple transport types:
  - stdio: MCP over standard input/output (default). Only Zoom join tokens
    can be issued because no Google OAuth token reaches the server.
  - streamable-http: POST /v1/sessions, the MCP endpoint /mcp and the
    health endpoints on one listener.

Google Meet requests act on behalf of the caller. Clients pass their Google
OAuth access token (calendar scope) as 'Authorization: Bearer <token>' and may
add its expiry as X-OAuth-Token-Expiry (RFC 3339).

Zoom Configuration (required):
  --zoom-sdk-key OR ZOOM_SDK_KEY
  --zoom-sdk-secret-file OR ZOOM_SDK_SECRET_FILE (preferred), or ZOOM_SDK_SECRET

Rate Limiting:
  Requests are limited per requester. Use --rate-limit-backend valkey to share
  the quota between replicas.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadServeEnv(cmd, &cfg); err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.debug, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&cfg.transport, "transport", transportStdio, "Transport type: stdio or streamable-http")
	cmd.Flags().StringVar(&cfg.httpAddr, "http-addr", server.DefaultHTTPAddr, "HTTP server address (for streamable-http transport). Can also use HTTP_ADDR env var.")

	cfg.zoom.register(cmd)

	cmd.Flags().StringVar(&cfg.calendarID, "calendar-id", calendar.DefaultCalendarID, "Calendar the Meet events are created in. Can also use CALENDAR_ID env var.")
	cmd.Flags().Float64Var(&cfg.calendarRate, "calendar-rate", calendar.DefaultRequestsPerSecond, "Maximum Calendar API requests per second from this process. Can also use CALENDAR_RATE env var.")
	cmd.Flags().IntVar(&cfg.calendarBurst, "calendar-burst", calendar.DefaultBurst, "Calendar API request burst. Can also use CALENDAR_BURST env var.")
	cmd.Flags().DurationVar(&cfg.upstreamTimeout, "upstream-timeout", provision.DefaultUpstreamTimeout, "Deadline for one Google Meet provisioning call. Can also use UPSTREAM_TIMEOUT env var.")

	cmd.Flags().IntVar(&cfg.rateLimitMax, "rate-limit-max", ratelimit.DefaultMax, "Requests allowed per requester per window; 0 disables limiting. Can also use RATE_LIMIT_MAX env var.")
	cmd.Flags().DurationVar(&cfg.rateLimitWindow, "rate-limit-window", ratelimit.DefaultWindow, "Rolling rate limit window. Can also use RATE_LIMIT_WINDOW env var.")
	cmd.Flags().StringVar(&cfg.rateLimitBackend, "rate-limit-backend", string(ratelimit.BackendMemory), "Rate limit store: memory or valkey. Can also use RATE_LIMIT_BACKEND env var.")
	cmd.Flags().StringVar(&cfg.valkey.URL, "valkey-url", "", "Valkey server address (e.g., valkey.namespace.svc:6379). Can also use VALKEY_URL env var.")
	cmd.Flags().StringVar(&cfg.valkey.Password, "valkey-password", "", "Valkey authentication password. Can also use VALKEY_PASSWORD env var.")
	cmd.Flags().BoolVar(&cfg.valkey.TLSEnabled, "valkey-tls", false, "Enable TLS for Valkey connections. Can also use VALKEY_TLS_ENABLED env var.")
	cmd.Flags().StringVar(&cfg.valkey.KeyPrefix, "valkey-key-prefix", ratelimit.DefaultKeyPrefix, "Prefix for all Valkey keys. Can also use VALKEY_KEY_PREFIX env var.")
	cmd.Flags().IntVar(&cfg.valkey.DB, "valkey-db", 0, "Valkey database number. Can also use VALKEY_DB env var.")

	cmd.Flags().BoolVar(&cfg.metrics.Enabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&cfg.metrics.Addr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

// loadServeEnv loads configuration from environment variables.
// Environment variables only override flag values when the flag was not
// explicitly set.
func loadServeEnv(cmd *cobra.Command, cfg *serveConfig) error {
	if err := cfg.zoom.loadEnv(cmd); err != nil {
		return err
	}

	envString(cmd, "http-addr", "HTTP_ADDR", &cfg.httpAddr)
	envString(cmd, "calendar-id", "CALENDAR_ID", &cfg.calendarID)
	envString(cmd, "rate-limit-backend", "RATE_LIMIT_BACKEND", &cfg.rateLimitBackend)
	envString(cmd, "valkey-url", "VALKEY_URL", &cfg.valkey.URL)
	envString(cmd, "valkey-password", "VALKEY_PASSWORD", &cfg.valkey.Password)
	envString(cmd, "valkey-key-prefix", "VALKEY_KEY_PREFIX", &cfg.valkey.KeyPrefix)
	envString(cmd, "metrics-addr", "METRICS_ADDR", &cfg.metrics.Addr)
	envBool(cmd, "valkey-tls", "VALKEY_TLS_ENABLED", &cfg.valkey.TLSEnabled)
	envBool(cmd, "metrics-enabled", "METRICS_ENABLED", &cfg.metrics.Enabled)

	for _, load := range []func() error{
		func() error { return envFloat(cmd, "calendar-rate", "CALENDAR_RATE", &cfg.calendarRate) },
		func() error { return envInt(cmd, "calendar-burst", "CALENDAR_BURST", &cfg.calendarBurst) },
		func() error {
			return envDuration(cmd, "upstream-timeout", "UPSTREAM_TIMEOUT", &cfg.upstreamTimeout)
		},
		func() error { return envInt(cmd, "rate-limit-max", "RATE_LIMIT_MAX", &cfg.rateLimitMax) },
		func() error {
			return envDuration(cmd, "rate-limit-window", "RATE_LIMIT_WINDOW", &cfg.rateLimitWindow)
		},
		func() error { return envInt(cmd, "valkey-db", "VALKEY_DB", &cfg.valkey.DB) },
	} {
		if err := load(); err != nil {
			return err
		}
	}

	switch cfg.transport {
	case transportStdio, transportStreamableHTTP:
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, streamable-http)", cfg.transport)
	}
	return nil
}

func (c serveConfig) rateLimitConfig() ratelimit.Config {
	return ratelimit.Config{
		Max:     c.rateLimitMax,
		Window:  c.rateLimitWindow,
		Backend: ratelimit.BackendType(c.rateLimitBackend),
		Valkey:  c.valkey,
	}
}

func (c serveConfig) calendarConfig() calendar.Config {
	return calendar.Config{
		CalendarID:        c.calendarID,
		RequestsPerSecond: c.calendarRate,
		Burst:             c.calendarBurst,
	}
}

// components are the long-lived objects built at startup.
type components struct {
	provider      *instrumentation.Provider
	limiter       ratelimit.Store
	serverContext *server.ServerContext
	mcpServer     *mcpserver.MCPServer
}

// close releases the components in reverse order of creation.
func (c *components) close(ctx context.Context) error {
	var errs []error
	if c.serverContext != nil {
		errs = append(errs, c.serverContext.Shutdown())
	}
	if c.limiter != nil {
		errs = append(errs, c.limiter.Close())
	}
	if c.provider != nil {
		errs = append(errs, c.provider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// buildComponents wires issuer, provisioner, limiter and facade. A
// configuration error aborts startup.
func buildComponents(ctx context.Context, cfg serveConfig, logger *slog.Logger) (_ *components, err error) {
	c := &components{}
	defer func() {
		if err != nil {
			_ = c.close(context.Background())
		}
	}()

	zoomCfg, err := cfg.zoom.config()
	if err != nil {
		return nil, err
	}

	instrConfig, err := instrumentation.ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	instrConfig.ServiceVersion = version
	c.provider, err = instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	metrics := c.provider.Metrics()
	audit := c.provider.AuditLogger(logger)

	issuer, err := zoom.NewIssuer(zoomCfg)
	if err != nil {
		return nil, err
	}

	provisioner, err := calendar.NewProvisioner(cfg.calendarConfig(),
		calendar.WithLogger(logging.NewSlogAdapter(logging.WithComponent(logger, "calendar"))),
		calendar.WithMetrics(metrics),
	)
	if err != nil {
		return nil, err
	}

	c.limiter, err = ratelimit.New(ctx, cfg.rateLimitConfig())
	if err != nil {
		return nil, err
	}

	facade, err := provision.NewFacade(issuer, provisioner, c.limiter,
		provision.Config{UpstreamTimeout: cfg.upstreamTimeout},
		provision.WithLogger(logging.WithComponent(logger, "provision")),
		provision.WithMetrics(metrics),
		provision.WithAuditLogger(audit),
	)
	if err != nil {
		return nil, err
	}

	c.serverContext, err = server.NewServerContext(ctx, facade,
		server.WithLogger(logger),
		server.WithMetrics(metrics),
		server.WithAuditLogger(audit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create server context: %w", err)
	}

	// Note: mcp.Implementation has Title field but WithTitle() ServerOption not available in v0.43.0
	c.mcpServer = mcpserver.NewMCPServer("joinpass", version,
		mcpserver.WithToolCapabilities(true),
	)
	if err := session_tools.RegisterSessionTools(c.mcpServer, c.serverContext); err != nil {
		return nil, fmt.Errorf("failed to register session tools: %w", err)
	}

	logger.Debug("components ready",
		slog.String("zoom", zoomCfg.String()),
		slog.String("calendar_id", provisioner.CalendarID()),
		slog.String("rate_limit_backend", cfg.rateLimitBackend),
		slog.Int("rate_limit_max", cfg.rateLimitMax),
	)
	return c, nil
}

func runServe(ctx context.Context, cfg serveConfig) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := newLogger(os.Stderr, cfg.debug)
	slog.SetDefault(logger)

	c, err := buildComponents(shutdownCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if closeErr := c.close(closeCtx); closeErr != nil {
			logger.Warn("error during shutdown", logging.Err(closeErr))
		}
	}()

	switch cfg.transport {
	case transportStdio:
		return runStdioServer(c.mcpServer)
	default:
		return runStreamableHTTPServer(shutdownCtx, c, cfg, logger)
	}
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

// pinger is implemented by rate limit stores with a remote backend.
type pinger interface {
	Ping(ctx context.Context) error
}

func runStreamableHTTPServer(ctx context.Context, c *components, cfg serveConfig, logger *slog.Logger) error {
	health := server.NewHealthChecker(c.serverContext)
	health.SetVersion(version)
	if p, ok := c.limiter.(pinger); ok {
		health.AddCheck("ratelimit_store", p.Ping)
	}

	httpServer, err := server.NewHTTPServer(c.serverContext, c.mcpServer, health)
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	serverDone := make(chan error, 2)

	var metricsServer *server.MetricsServer
	if cfg.metrics.Enabled && c.provider.PrometheusEnabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:     cfg.metrics.Addr,
			Provider: c.provider,
			Logger:   logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		go func() {
			if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverDone <- fmt.Errorf("metrics server stopped with error: %w", err)
			}
		}()
	}

	go func() {
		if err := httpServer.Start(cfg.httpAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverDone <- fmt.Errorf("HTTP server stopped with error: %w", err)
		}
	}()

	logger.Info("joinpass server started",
		slog.String("transport", cfg.transport),
		slog.String("addr", cfg.httpAddr),
		slog.String("api", server.SessionsPath),
		slog.String("mcp", server.MCPPath),
		slog.Bool("metrics", metricsServer != nil),
	)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping HTTP server")
	case runErr = <-serverDone:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
	defer cancel()

	errs := []error{runErr, httpServer.Shutdown(shutdownCtx)}
	if metricsServer != nil {
		errs = append(errs, metricsServer.Shutdown(shutdownCtx))
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	logger.Info("HTTP server gracefully stopped")
	return nil
}
