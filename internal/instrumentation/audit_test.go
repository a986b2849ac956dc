package instrumentation

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/teemow/joinpass/internal/logging"
	"github.com/teemow/joinpass/internal/session"
)

const (
	testRequester = "jane@example.com"
	testEventID   = "evt-123"
	testTraceID   = "abc123def456"
	testSpanID    = "span789"
)

func attrMap(attrs []slog.Attr) map[string]string {
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		m[a.Key] = a.Value.String()
	}
	return m
}

func TestProvisionEvent_NewAndComplete(t *testing.T) {
	e := NewProvisionEvent("zoom", testRequester)

	if e.Platform != "zoom" {
		t.Errorf("Platform = %q, want zoom", e.Platform)
	}
	if e.StartTime.IsZero() {
		t.Error("StartTime should not be zero")
	}

	e.Complete(nil)

	if !e.Success {
		t.Error("Success should be true")
	}
	if e.Outcome != StatusSuccess {
		t.Errorf("Outcome = %q, want %q", e.Outcome, StatusSuccess)
	}
	if e.Duration < 0 {
		t.Error("Duration should not be negative")
	}
	if e.Status() != StatusSuccess {
		t.Errorf("Status() = %q, want %q", e.Status(), StatusSuccess)
	}
}

func TestProvisionEvent_CompleteWithError(t *testing.T) {
	e := NewProvisionEvent("google_meet", testRequester)
	e.Complete(session.NewRateLimited(time.Minute, "too many requests"))

	if e.Success {
		t.Error("Success should be false")
	}
	if e.Outcome != string(session.KindRateLimited) {
		t.Errorf("Outcome = %q, want %q", e.Outcome, session.KindRateLimited)
	}
	if e.Status() != StatusError {
		t.Errorf("Status() = %q, want %q", e.Status(), StatusError)
	}
	if !strings.Contains(e.Error, "too many requests") {
		t.Errorf("Error = %q", e.Error)
	}
}

func TestProvisionEvent_LogAttrs_HashesRequester(t *testing.T) {
	e := NewProvisionEvent("google_meet", testRequester).
		WithRole("host").
		WithSurface(SurfaceHTTP).
		WithResource(testEventID)
	e.TraceID = testTraceID
	e.Complete(nil)

	m := attrMap(e.LogAttrs())

	if m[logging.KeyRequesterHash] != logging.HashIdentifier(testRequester) {
		t.Errorf("requester_hash = %q, want %q", m[logging.KeyRequesterHash], logging.HashIdentifier(testRequester))
	}
	if _, ok := m["requester"]; ok {
		t.Error("LogAttrs must not include the raw requester")
	}
	for key, want := range map[string]string{
		"platform":    "google_meet",
		"role":        "host",
		"surface":     SurfaceHTTP,
		"resource_id": testEventID,
		"trace_id":    testTraceID,
		"outcome":     StatusSuccess,
	} {
		if m[key] != want {
			t.Errorf("%s = %q, want %q", key, m[key], want)
		}
	}
}

func TestProvisionEvent_LogAttrs_MinimalFields(t *testing.T) {
	e := NewProvisionEvent("zoom", testRequester).Complete(nil)

	m := attrMap(e.LogAttrs())
	for _, absent := range []string{"role", "surface", "resource_id", "trace_id", "error"} {
		if _, ok := m[absent]; ok {
			t.Errorf("%s should be omitted when empty", absent)
		}
	}
}

func TestProvisionEvent_LogAuditAttrs(t *testing.T) {
	e := NewProvisionEvent("zoom", testRequester)
	e.TraceID = testTraceID
	e.SpanID = testSpanID
	e.Complete(fmt.Errorf("wrapped: %w", session.NewInvalidRequest("bad")))

	m := attrMap(e.LogAuditAttrs())
	if m["requester"] != testRequester {
		t.Errorf("requester = %q, want %q", m["requester"], testRequester)
	}
	if m["span_id"] != testSpanID {
		t.Errorf("span_id = %q, want %q", m["span_id"], testSpanID)
	}
	if m["outcome"] != string(session.KindInvalidRequest) {
		t.Errorf("outcome = %q", m["outcome"])
	}
}

func TestProvisionEvent_WithSpanContext_NoSpan(t *testing.T) {
	e := NewProvisionEvent("zoom", testRequester).WithSpanContext(context.Background())
	if e.TraceID != "" || e.SpanID != "" {
		t.Error("expected empty trace context without a span")
	}
}

func TestAuditLogger_LogProvision(t *testing.T) {
	var buf bytes.Buffer
	audit := NewAuditLogger(slog.New(slog.NewTextHandler(&buf, nil)), AuditConfig{Enabled: true})

	audit.LogProvision(NewProvisionEvent("zoom", testRequester).Complete(nil))
	audit.LogProvision(NewProvisionEvent("google_meet", testRequester).Complete(session.NewMissingAuthorization("no token")))

	out := buf.String()
	if !strings.Contains(out, "session_provisioned") {
		t.Errorf("missing success record: %s", out)
	}
	if !strings.Contains(out, "session_provision_failed") || !strings.Contains(out, "level=WARN") {
		t.Errorf("missing failure record: %s", out)
	}
	if !strings.Contains(out, "outcome=missing_authorization") {
		t.Errorf("failure record lacks its error kind: %s", out)
	}
	if strings.Contains(out, testRequester) {
		t.Errorf("raw requester leaked without PII enabled: %s", out)
	}
}

func TestNewAuditLogger_Disabled(t *testing.T) {
	var buf bytes.Buffer
	audit := NewAuditLogger(slog.New(slog.NewTextHandler(&buf, nil)), AuditConfig{IncludePII: true})
	if audit != nil {
		t.Fatal("expected nil audit logger when auditing is off")
	}

	audit.LogProvision(NewProvisionEvent("zoom", testRequester).Complete(nil))
	if buf.Len() != 0 {
		t.Errorf("expected no output when disabled, got %s", buf.String())
	}
}
