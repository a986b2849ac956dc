package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/teemow/joinpass/internal/logging"
)

// ProvisionEvent captures one provisioning call for audit logging.
//
// # Privacy Considerations
//
// RequesterID may be PII. LogAttrs only emits its hash; LogAuditAttrs emits
// the raw value and must only be routed to access-controlled audit storage.
// Tokens and OAuth credentials are never part of an event.
type ProvisionEvent struct {
	// Request
	Platform    string
	RequesterID string
	Role        string
	Surface     string // http, mcp or cli

	// Result
	ResourceID string // calendar event ID, or the masked meeting number for Zoom
	Outcome    string // "success" or an error kind

	// Execution details
	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	// Tracing context
	TraceID string
	SpanID  string
}

// NewProvisionEvent creates a ProvisionEvent with timing started.
// Call Complete() when the provisioning call returns.
func NewProvisionEvent(platform, requesterID string) *ProvisionEvent {
	return &ProvisionEvent{
		Platform:    platform,
		RequesterID: requesterID,
		StartTime:   time.Now(),
	}
}

// WithRole sets the requested role.
func (e *ProvisionEvent) WithRole(role string) *ProvisionEvent {
	e.Role = role
	return e
}

// WithSurface sets the entry point that received the request.
func (e *ProvisionEvent) WithSurface(surface string) *ProvisionEvent {
	e.Surface = surface
	return e
}

// WithResource sets the provisioned resource identifier.
func (e *ProvisionEvent) WithResource(id string) *ProvisionEvent {
	e.ResourceID = id
	return e
}

// WithSpanContext extracts trace context from the current span.
func (e *ProvisionEvent) WithSpanContext(ctx context.Context) *ProvisionEvent {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		e.TraceID = span.SpanContext().TraceID().String()
		e.SpanID = span.SpanContext().SpanID().String()
	}
	return e
}

// Complete marks the event as finished with err (nil for success).
func (e *ProvisionEvent) Complete(err error) *ProvisionEvent {
	e.Duration = time.Since(e.StartTime)
	e.Success = err == nil
	e.Outcome = OutcomeLabel(err)
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// Status returns "success" or "error".
func (e *ProvisionEvent) Status() string {
	if e.Success {
		return StatusSuccess
	}
	return StatusError
}

// LogAttrs returns slog attributes with the requester hashed.
func (e *ProvisionEvent) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{
		logging.Platform(e.Platform),
		logging.RequesterHash(e.RequesterID),
		slog.String("outcome", e.Outcome),
		slog.Duration("duration", e.Duration),
		slog.Bool("success", e.Success),
	}
	return append(attrs, e.optionalAttrs()...)
}

// LogAuditAttrs returns slog attributes including the raw requester ID.
//
// # Security Warning
//
// This method includes PII. Ensure audit logs are stored securely.
func (e *ProvisionEvent) LogAuditAttrs() []slog.Attr {
	attrs := []slog.Attr{
		logging.Platform(e.Platform),
		slog.String("requester", e.RequesterID),
		slog.String("outcome", e.Outcome),
		slog.Duration("duration", e.Duration),
		slog.Bool("success", e.Success),
	}
	attrs = append(attrs, e.optionalAttrs()...)
	if e.SpanID != "" {
		attrs = append(attrs, slog.String("span_id", e.SpanID))
	}
	return attrs
}

func (e *ProvisionEvent) optionalAttrs() []slog.Attr {
	var attrs []slog.Attr
	if e.Role != "" {
		attrs = append(attrs, slog.String("role", e.Role))
	}
	if e.Surface != "" {
		attrs = append(attrs, slog.String("surface", e.Surface))
	}
	if e.ResourceID != "" {
		attrs = append(attrs, slog.String("resource_id", e.ResourceID))
	}
	if e.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", e.TraceID))
	}
	if e.Error != "" {
		attrs = append(attrs, slog.String("error", e.Error))
	}
	return attrs
}

// AuditLogger writes provisioning audit events.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
}

// NewAuditLogger returns an audit stream on logger, or nil when cfg
// disables auditing. Records carry stream=audit so they can be routed apart
// from operational logs.
func NewAuditLogger(logger *slog.Logger, cfg AuditConfig) *AuditLogger {
	if !cfg.Enabled {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger.With(slog.String("stream", "audit")),
		includePII: cfg.IncludePII,
	}
}

// LogProvision writes e. Successful calls log at info, failures at warn.
// A nil AuditLogger is a no-op.
func (al *AuditLogger) LogProvision(e *ProvisionEvent) {
	if al == nil || e == nil {
		return
	}

	var attrs []slog.Attr
	if al.includePII {
		attrs = e.LogAuditAttrs()
	} else {
		attrs = e.LogAttrs()
	}

	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}

	if e.Success {
		al.logger.Info("session_provisioned", args...)
	} else {
		al.logger.Warn("session_provision_failed", args...)
	}
}
