// Package server exposes the provisioning facade over HTTP and holds the
// shared state the MCP tools run against.
//
// # Key Components
//
// ServerContext owns the provisioning facade, the logger, metrics and the
// audit logger. It is created once at startup and handed to the HTTP server
// and to every MCP tool.
//
// HTTPServer serves on a single listener:
//   - POST /v1/sessions: the JSON provisioning API
//   - /mcp: the streamable-http MCP transport
//   - /healthz, /readyz and /healthz/detailed: Kubernetes liveness and readiness checks
//
// The caller's Google OAuth token is read from the Authorization header
// (Bearer scheme) and, optionally, its expiry from X-OAuth-Token-Expiry. The
// token is used for the one provisioning call and never stored or logged.
//
// MetricsServer serves Prometheus metrics on a separate port so operational
// data is not exposed on the API listener.
//
// # Errors
//
// Failures are returned as {"error": kind, "error_description": text}. Rate
// limited responses carry Retry-After; missing authorization carries
// WWW-Authenticate.
package server
