// Package instrumentation provides OpenTelemetry instrumentation for joinpass.
//
// This package enables production-grade observability through:
//   - OpenTelemetry metrics for provisioning calls, HTTP requests and Google API calls
//   - Distributed tracing for provisioning flows and upstream calls
//   - Prometheus metrics export via /metrics endpoint on dedicated port
//   - OTLP export support for modern observability platforms
//   - Audit events for every provisioning call
//
// # Metrics
//
// Provisioning:
//   - provision_requests_total: Counter by platform and outcome
//   - provision_duration_seconds: Histogram by platform and outcome
//   - rate_limited_total: Counter of requests rejected by the rate policy
//   - join_credentials_issued_total: Counter of signed join credentials by role
//
// Upstream:
//   - google_api_operations_total: Counter by service, operation, status
//   - google_api_operation_duration_seconds: Histogram of Google API call durations
//
// Surfaces:
//   - http_requests_total / http_request_duration_seconds
//   - mcp_tool_invocations_total / mcp_tool_duration_seconds
//
// Outcome labels are bounded: "success", one of the session error kinds,
// "canceled" or "error". Requester identifiers are never metric labels.
//
// # Tracing
//
// Spans are created for:
//   - provisioning calls (provision.<platform>)
//   - Google API calls (google.calendar.insert, google.calendar.get)
//   - MCP tool invocations (tool.<name>)
//
// # Configuration
//
// Instrumentation can be configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: Metrics exporter type (prometheus, otlp, stdout, default: prometheus)
//   - TRACING_EXPORTER: Tracing exporter type (otlp, stdout, none, default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: joinpass)
//   - METRICS_DETAILED_LABELS: Add the surface label to provisioning metrics (default: false)
//   - AUDIT_LOGGING_ENABLED / AUDIT_LOGGING_INCLUDE_PII
//
// The stdout exporters write to stderr, since stdout carries the stdio MCP
// transport.
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	recorder := provider.Metrics()
//	recorder.RecordProvision(ctx, "zoom", "success", "http", time.Since(start))
package instrumentation
