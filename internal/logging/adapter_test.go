package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func newBufferedAdapter(level slog.Level) (*SlogAdapter, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewSlogAdapter(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: level}))), &buf
}

func TestNewSlogAdapter_NilUsesDefault(t *testing.T) {
	if a := NewSlogAdapter(nil); a.logger != slog.Default() {
		t.Error("nil logger should fall back to slog.Default()")
	}
}

func TestSlogAdapter_Levels(t *testing.T) {
	adapter, buf := newBufferedAdapter(slog.LevelDebug)

	adapter.Debug("event already exists", "event_id", "evt-1")
	adapter.Info("meet link provisioned", "conference_id", "abc-defg-hij")
	adapter.Warn("conference pending")
	adapter.Error("calendar operation failed", "operation", "insert")

	out := buf.String()
	for _, want := range []string{
		"level=DEBUG", "level=INFO", "level=WARN", "level=ERROR",
		"event_id=evt-1", "conference_id=abc-defg-hij", "operation=insert",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
}

func TestSlogAdapter_LevelFiltered(t *testing.T) {
	adapter, buf := newBufferedAdapter(slog.LevelInfo)
	adapter.Debug("event already exists", "event_id", "evt-1")
	if buf.Len() != 0 {
		t.Errorf("debug record written at info level: %s", buf.String())
	}
}

func TestSlogAdapter_Redaction(t *testing.T) {
	const accessToken = "ya29.a0AfH6SMBx"

	tests := []struct {
		name     string
		args     []any
		want     string
		mustDrop string
	}{
		{"access token", []any{"access_token", accessToken}, "access_token=\"[token:15 chars]\"", accessToken},
		{"key case ignored", []any{"Authorization", "Bearer " + accessToken}, "Authorization=\"[token:22 chars]\"", accessToken},
		{"signature attr", []any{slog.String("signature", "c2lnbmF0dXJl")}, "signature=\"[token:12 chars]\"", "c2lnbmF0dXJl"},
		{"meeting number", []any{KeyMeeting, "85746065432"}, "meeting=*******5432", "85746065432"},
		{"dangling key kept", []any{"event_id", "evt-1", "orphan"}, "event_id=evt-1", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter, buf := newBufferedAdapter(slog.LevelDebug)
			adapter.Info("upstream call", tt.args...)

			out := buf.String()
			if !strings.Contains(out, tt.want) {
				t.Errorf("output missing %q: %s", tt.want, out)
			}
			if tt.mustDrop != "" && strings.Contains(out, tt.mustDrop) {
				t.Errorf("output leaked %q: %s", tt.mustDrop, out)
			}
		})
	}
}

func TestSlogAdapter_With(t *testing.T) {
	adapter, buf := newBufferedAdapter(slog.LevelInfo)
	adapter.With(KeyComponent, "calendar", "token", "secret-value").Info("hello")

	out := buf.String()
	if !strings.Contains(out, "component=calendar") {
		t.Errorf("expected component attribute, got %q", out)
	}
	if strings.Contains(out, "secret-value") {
		t.Errorf("With leaked a token: %q", out)
	}
}

func TestDiscard(t *testing.T) {
	Discard().Error("dropped", "access_token", "x")
}
