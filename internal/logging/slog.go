package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Common log attribute keys for consistent naming across the codebase.
const (
	KeyOperation     = "operation"
	KeyPlatform      = "platform"
	KeyRequesterHash = "requester_hash"
	KeyMeeting       = "meeting"
	KeyDuration      = "duration"
	KeyStatus        = "status"
	KeyError         = "error"
	KeyTool          = "tool"
	KeyComponent     = "component"
)

// Status values for consistent logging.
// Note: These are intentionally duplicated from instrumentation package
// to avoid circular dependencies (instrumentation imports logging).
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// WithOperation returns a logger with the operation attribute set.
func WithOperation(logger *slog.Logger, operation string) *slog.Logger {
	return logger.With(slog.String(KeyOperation, operation))
}

// WithTool returns a logger with the tool attribute set.
func WithTool(logger *slog.Logger, tool string) *slog.Logger {
	return logger.With(slog.String(KeyTool, tool))
}

// WithComponent returns a logger tagged with a component name.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(slog.String(KeyComponent, component))
}

// Operation returns a slog attribute for the operation name.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// Platform returns a slog attribute for the conferencing platform.
func Platform(platform string) slog.Attr {
	return slog.String(KeyPlatform, platform)
}

// Tool returns a slog attribute for the tool name.
func Tool(tool string) slog.Attr {
	return slog.String(KeyTool, tool)
}

// Status returns a slog attribute for the status.
func Status(status string) slog.Attr {
	return slog.String(KeyStatus, status)
}

// Duration returns a slog attribute for an elapsed time.
func Duration(d time.Duration) slog.Attr {
	return slog.Duration(KeyDuration, d)
}

// Err returns a slog attribute for an error.
// If err is nil, returns an empty Group attribute that will be omitted from output.
//
// Usage:
//
//	logger.Info("operation", logging.Err(err))  // Safe even if err is nil
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// HashIdentifier returns a stable, non-reversible form of a requester ID so
// log lines can be correlated without exposing who made the request.
func HashIdentifier(id string) string {
	if id == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(id))
	return "req:" + hex.EncodeToString(hash[:8])
}

// RequesterHash returns a slog attribute with the hashed requester ID.
//
// Usage:
//
//	logger.Info("session provisioned", logging.RequesterHash(req.RequesterID))
func RequesterHash(id string) slog.Attr {
	return slog.String(KeyRequesterHash, HashIdentifier(id))
}

// SanitizeToken returns a masked version of a token for logging.
// It returns a length indicator without exposing any token content.
func SanitizeToken(token string) string {
	if token == "" {
		return "<empty>"
	}
	return fmt.Sprintf("[token:%d chars]", len(token))
}

// MaskMeetingNumber keeps the last four digits of a meeting number.
func MaskMeetingNumber(n string) string {
	if len(n) <= 4 {
		return strings.Repeat("*", len(n))
	}
	return strings.Repeat("*", len(n)-4) + n[len(n)-4:]
}

// MeetingNumber returns a slog attribute with the masked meeting number.
func MeetingNumber(n string) slog.Attr {
	return slog.String(KeyMeeting, MaskMeetingNumber(n))
}
