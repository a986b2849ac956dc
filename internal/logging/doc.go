// Package logging provides structured logging utilities for joinpass.
//
// This package centralizes logging patterns to ensure consistent, structured logging
// throughout the codebase using the standard library's slog package.
//
// # Key Features
//
//   - Structured logging with slog
//   - Requester ID hashing and meeting number masking
//   - Consistent attribute naming across the codebase
//   - Logger adapter interface for flexibility
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithOperation(slog.Default(), "provision.zoom")
//	logger.Info("credential issued",
//	    logging.Status("success"))
//
// Sanitize sensitive data before logging:
//
//	logger.Info("session provisioned",
//	    logging.RequesterHash(req.RequesterID),
//	    logging.MeetingNumber(req.MeetingNumber))
//
// # Security Considerations
//
//   - Requester IDs are hashed to prevent PII leakage while allowing correlation
//   - OAuth tokens, signing secrets and join tokens are never logged directly
package logging
