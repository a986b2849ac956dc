package instrumentation

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/teemow/joinpass/internal/logging"
)

// TracerName is the tracer used for all joinpass spans.
const TracerName = "github.com/teemow/joinpass"

// Span attribute keys.
const (
	AttrPlatform  = "session.platform"
	AttrRole      = "session.role"
	AttrRequester = "session.requester_hash"
	AttrOutcome   = "session.outcome"
	AttrOperation = "google.operation"
	AttrEventID   = "google.calendar.event_id"
	AttrTool      = "mcp.tool"
)

func tracer() trace.Tracer {
	return otel.GetTracerProvider().Tracer(TracerName)
}

// StartProvisionSpan starts the provision.<platform> span covering one
// facade call. requesterID is hashed before it is attached.
func StartProvisionSpan(ctx context.Context, platform, role, requesterID string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String(AttrPlatform, platform)}
	if role != "" {
		attrs = append(attrs, attribute.String(AttrRole, role))
	}
	if requesterID != "" {
		attrs = append(attrs, attribute.String(AttrRequester, logging.HashIdentifier(requesterID)))
	}
	return tracer().Start(ctx, "provision."+platform, trace.WithAttributes(attrs...))
}

// StartCalendarSpan starts a client span for one Calendar API call, named
// google.calendar.<operation>.
func StartCalendarSpan(ctx context.Context, operation, eventID string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String(AttrOperation, operation)}
	if eventID != "" {
		attrs = append(attrs, attribute.String(AttrEventID, eventID))
	}
	return tracer().Start(ctx, "google."+ServiceCalendar+"."+operation,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// StartToolSpan starts a server span for an MCP tool invocation.
func StartToolSpan(ctx context.Context, tool string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "tool."+tool,
		trace.WithAttributes(attribute.String(AttrTool, tool)),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// SetSpanOutcome tags span with the outcome label for err and sets its
// status. A caller that went away leaves the status unset: nothing failed
// on this side.
func SetSpanOutcome(span trace.Span, err error) {
	outcome := OutcomeLabel(err)
	span.SetAttributes(attribute.String(AttrOutcome, outcome))
	switch {
	case err == nil:
		span.SetStatus(codes.Ok, "")
	case outcome == OutcomeCanceled:
		span.AddEvent("caller_canceled")
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// MarkToolErrorResult flags a tool call that reported its failure in the
// result instead of returning an error.
func MarkToolErrorResult(span trace.Span) {
	span.AddEvent("tool_error_result")
	span.SetStatus(codes.Error, "tool returned an error result")
}
