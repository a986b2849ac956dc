package instrumentation

import (
	"context"
	"errors"

	"github.com/teemow/joinpass/internal/session"
)

// Cardinality management helpers for metrics.
// Label values derived from caller input must pass through these helpers so
// that a hostile or buggy client cannot create unbounded label sets.

// PlatformLabel maps a platform to a bounded label value.
//
// Example:
//
//	PlatformLabel(session.PlatformZoom)  // "zoom"
//	PlatformLabel("webex")               // "unknown"
func PlatformLabel(p session.Platform) string {
	if p.Valid() {
		return string(p)
	}
	return StatusUnknown
}

// OutcomeLabel maps a provisioning result to a bounded label value: "success"
// for nil, the error kind for typed errors, "canceled" for caller
// cancellation and "error" for anything else.
func OutcomeLabel(err error) string {
	if err == nil {
		return StatusSuccess
	}
	if kind := session.KindOf(err); kind != "" {
		return string(kind)
	}
	if isCanceled(err) {
		return OutcomeCanceled
	}
	return StatusError
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// RoleLabel maps a role to a bounded label value.
func RoleLabel(r session.Role) string {
	if r.Valid() {
		return r.String()
	}
	return StatusUnknown
}

// Bounded label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusUnknown = "unknown"

	// OutcomeCanceled labels calls abandoned by the caller.
	OutcomeCanceled = "canceled"

	ServiceCalendar = "calendar"

	OperationInsert = "insert"
	OperationGet    = "get"

	SurfaceHTTP = "http"
	SurfaceMCP  = "mcp"
	SurfaceCLI  = "cli"
)
