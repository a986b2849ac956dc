package instrumentation

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/teemow/joinpass/internal/logging"
	"github.com/teemow/joinpass/internal/session"
)

func newTestProvider(t *testing.T, mutate func(c *Config)) *Provider {
	t.Helper()
	cfg := DefaultConfig()
	cfg.ServiceName = "joinpass-test"
	mutate(&cfg)

	tracers, meters := otel.GetTracerProvider(), otel.GetMeterProvider()
	provider, err := NewProvider(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
		otel.SetTracerProvider(tracers)
		otel.SetMeterProvider(meters)
	})
	return provider
}

func scrape(t *testing.T, p *Provider) string {
	t.Helper()
	h := p.MetricsHandler()
	if h == nil {
		t.Fatal("expected a Prometheus handler")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Body.String()
}

func TestNewProvider_Disabled(t *testing.T) {
	p := newTestProvider(t, func(c *Config) { c.Enabled = false })

	if p.Enabled() {
		t.Error("expected provider to be disabled")
	}
	if p.Metrics() != nil {
		t.Error("disabled provider must hand out a nil recorder")
	}
	if p.AuditLogger(slog.Default()) != nil {
		t.Error("disabled provider must hand out a nil audit logger")
	}
	if p.PrometheusEnabled() || p.MetricsHandler() != nil {
		t.Error("disabled provider must not expose a scrape endpoint")
	}

	// The nil recorders are what the facade receives.
	p.Metrics().RecordProvision(context.Background(), "zoom", StatusSuccess, SurfaceCLI, time.Millisecond)
	p.AuditLogger(nil).LogProvision(NewProvisionEvent("zoom", testRequester).Complete(nil))
}

func TestNewProvider_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TracingExporter = ExporterOTLP

	_, err := NewProvider(context.Background(), cfg)
	if session.KindOf(err) != session.KindConfiguration {
		t.Errorf("error = %v, want a configuration error", err)
	}
}

func TestNewProvider_PushExportersSkipPrometheus(t *testing.T) {
	p := newTestProvider(t, func(c *Config) { c.MetricsExporter = ExporterStdout })

	if !p.Enabled() || p.Metrics() == nil {
		t.Fatal("expected an enabled provider with a recorder")
	}
	if p.PrometheusEnabled() || p.MetricsHandler() != nil {
		t.Error("stdout exporter must not expose a scrape endpoint")
	}
}

func TestProvider_DetailedLabels(t *testing.T) {
	tests := []struct {
		name        string
		detailed    bool
		wantSurface bool
	}{
		{"surface omitted by default", false, false},
		{"surface recorded when detailed", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, func(c *Config) { c.DetailedLabels = tt.detailed })

			p.Metrics().RecordProvision(context.Background(),
				PlatformLabel(session.PlatformGoogleMeet),
				OutcomeLabel(session.NewUpstreamAuth(nil, "rejected")),
				SurfaceMCP, 40*time.Millisecond)

			out := scrape(t, p)
			if !strings.Contains(out, `outcome="upstream_auth_error"`) {
				t.Errorf("missing outcome label in:\n%s", out)
			}
			if got := strings.Contains(out, `surface="mcp"`); got != tt.wantSurface {
				t.Errorf("surface label present = %v, want %v", got, tt.wantSurface)
			}
			if strings.Contains(out, testRequester) {
				t.Error("requester leaked into metrics")
			}
		})
	}
}

func TestProvider_AuditLogger(t *testing.T) {
	tests := []struct {
		name       string
		audit      AuditConfig
		wantNil    bool
		wantRaw    bool
		wantHashed bool
	}{
		{"hashed by default", AuditConfig{Enabled: true}, false, false, true},
		{"raw requester with PII", AuditConfig{Enabled: true, IncludePII: true}, false, true, false},
		{"auditing off", AuditConfig{Enabled: false, IncludePII: true}, true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, func(c *Config) { c.Audit = tt.audit })

			var buf bytes.Buffer
			audit := p.AuditLogger(slog.New(slog.NewTextHandler(&buf, nil)))
			if (audit == nil) != tt.wantNil {
				t.Fatalf("AuditLogger() nil = %v, want %v", audit == nil, tt.wantNil)
			}

			audit.LogProvision(NewProvisionEvent("zoom", testRequester).WithSurface(SurfaceHTTP).Complete(nil))

			out := buf.String()
			if got := strings.Contains(out, testRequester); got != tt.wantRaw {
				t.Errorf("raw requester present = %v, want %v:\n%s", got, tt.wantRaw, out)
			}
			if got := strings.Contains(out, logging.HashIdentifier(testRequester)); got != tt.wantHashed {
				t.Errorf("hashed requester present = %v, want %v:\n%s", got, tt.wantHashed, out)
			}
			if !tt.wantNil && !strings.Contains(out, "stream=audit") {
				t.Errorf("audit record is not tagged:\n%s", out)
			}
		})
	}
}

func TestProvider_Sampling(t *testing.T) {
	tests := []struct {
		name        string
		exporter    string
		rate        float64
		wantSampled bool
	}{
		{"tracing off", ExporterNone, 1, false},
		{"everything sampled", ExporterStdout, 1, true},
		{"nothing sampled", ExporterStdout, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			newTestProvider(t, func(c *Config) {
				c.TracingExporter = tt.exporter
				c.SampleRate = tt.rate
			})

			_, span := StartProvisionSpan(context.Background(), PlatformLabel(session.PlatformZoom), "host", testRequester)
			defer span.End()

			if got := span.SpanContext().IsSampled(); got != tt.wantSampled {
				t.Errorf("IsSampled() = %v, want %v", got, tt.wantSampled)
			}
		})
	}
}
