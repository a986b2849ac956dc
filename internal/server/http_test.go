package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/teemow/joinpass/internal/instrumentation"
)

func TestNewHTTPServer_RequiresContext(t *testing.T) {
	if _, err := NewHTTPServer(nil, nil, nil); err == nil {
		t.Error("expected error for nil server context")
	}
}

func TestHTTPServer_Routes(t *testing.T) {
	sc := newTestServerContext(t, 0, nil)
	mcp := mcpserver.NewMCPServer("test", "0.0.0", mcpserver.WithToolCapabilities(true))
	srv, err := NewHTTPServer(sc, mcp, nil)
	if err != nil {
		t.Fatalf("NewHTTPServer() error = %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+SessionsPath, "application/json", strings.NewReader(zoomBody))
	if err != nil {
		t.Fatalf("POST %s failed: %v", SessionsPath, err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("POST %s status = %d, want 200", SessionsPath, resp.StatusCode)
	}
	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "no-referrer",
	} {
		if got := resp.Header.Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}

	resp, err = http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /healthz status = %d, want 200", resp.StatusCode)
	}

	// The MCP endpoint rejects a malformed message but must be routed.
	resp, err = http.Post(ts.URL+MCPPath, "application/json", strings.NewReader("not json"))
	if err != nil {
		t.Fatalf("POST %s failed: %v", MCPPath, err)
	}
	resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		t.Errorf("POST %s was not routed", MCPPath)
	}
}

func TestHTTPServer_APIOnly(t *testing.T) {
	srv, err := NewHTTPServer(newTestServerContext(t, 0, nil), nil, nil)
	if err != nil {
		t.Fatalf("NewHTTPServer() error = %v", err)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, MCPPath, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("POST %s without MCP server = %d, want 404", MCPPath, rec.Code)
	}
}

func TestHTTPServer_ServeAndShutdown(t *testing.T) {
	health := NewHealthChecker(nil)
	srv, err := NewHTTPServer(newTestServerContext(t, 0, nil), nil, health)
	if err != nil {
		t.Fatalf("NewHTTPServer() error = %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ln) }()

	// Answered only once Serve is accepting.
	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz failed: %v", err)
	}
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if health.IsReady() {
		t.Error("Shutdown must mark the server not ready")
	}

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			t.Errorf("Serve() returned %v, want http.ErrServerClosed", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}
}

func TestMetricsMiddleware(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	metrics, err := instrumentation.NewMetrics(mp.Meter("test"), false)
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := MetricsMiddleware(metrics, SessionsPath, next)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, SessionsPath+"?x=1", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d, want 418", rec.Code)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect failed: %v", err)
	}

	found := false
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "http_requests_total" {
				continue
			}
			for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
				status, _ := dp.Attributes.Value("status")
				path, _ := dp.Attributes.Value("path")
				if status.AsString() == "418" && path.AsString() == SessionsPath {
					found = true
				}
			}
		}
	}
	if !found {
		t.Error("expected http_requests_total data point with status 418 and route label")
	}
}

func TestMetricsMiddleware_NilMetrics(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	if h := MetricsMiddleware(nil, SessionsPath, next); h == nil {
		t.Error("expected handler")
	}
}

func TestStatusRecorder(t *testing.T) {
	rec := httptest.NewRecorder()
	sr := &statusRecorder{ResponseWriter: rec, status: http.StatusOK}

	_, _ = sr.Write([]byte("x"))
	sr.WriteHeader(http.StatusInternalServerError)
	sr.Flush()

	if sr.status != http.StatusOK {
		t.Errorf("status = %d, want the first written status 200", sr.status)
	}
	if sr.Unwrap() != rec {
		t.Error("Unwrap must return the wrapped writer")
	}
}
