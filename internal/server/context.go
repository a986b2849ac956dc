package server

import (
	"context"
	"log/slog"
	"sync"

	"github.com/teemow/joinpass/internal/instrumentation"
	"github.com/teemow/joinpass/internal/provision"
	"github.com/teemow/joinpass/internal/session"
)

// ServerContext holds the shared dependencies of the HTTP and MCP surfaces
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	facade  *provision.Facade
	logger  *slog.Logger
	metrics *instrumentation.Metrics
	audit   *instrumentation.AuditLogger

	mu       sync.RWMutex
	shutdown bool
}

// ServerContextOption configures a ServerContext.
type ServerContextOption func(*ServerContext)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ServerContextOption {
	return func(sc *ServerContext) {
		if logger != nil {
			sc.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder. nil disables metrics.
func WithMetrics(m *instrumentation.Metrics) ServerContextOption {
	return func(sc *ServerContext) {
		sc.metrics = m
	}
}

// WithAuditLogger sets the audit logger used by the MCP tools.
func WithAuditLogger(a *instrumentation.AuditLogger) ServerContextOption {
	return func(sc *ServerContext) {
		sc.audit = a
	}
}

// NewServerContext creates a new server context
func NewServerContext(ctx context.Context, facade *provision.Facade, opts ...ServerContextOption) (*ServerContext, error) {
	if facade == nil {
		return nil, session.NewConfiguration("provisioning facade is required")
	}

	shutdownCtx, cancel := context.WithCancel(ctx)
	sc := &ServerContext{
		ctx:    shutdownCtx,
		cancel: cancel,
		facade: facade,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(sc)
	}
	return sc, nil
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Facade returns the provisioning facade.
func (sc *ServerContext) Facade() *provision.Facade {
	return sc.facade
}

// Logger returns the logger.
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// Metrics returns the metrics recorder (may be nil).
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	return sc.metrics
}

// AuditLogger returns the audit logger (may be nil).
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	return sc.audit
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
