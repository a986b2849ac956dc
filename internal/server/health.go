package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Health endpoint paths on the provisioning listener.
const (
	LivenessPath       = "/healthz"
	ReadinessPath      = "/readyz"
	DetailedHealthPath = "/healthz/detailed"
)

const (
	healthOK           = "ok"
	healthNotReady     = "not ready"
	healthDraining     = "draining"
	healthShuttingDown = "shutting down"

	dependencyTimeout = 2 * time.Second
)

// Dependency reports an error when a backing service, such as the shared
// rate limit store, cannot take traffic.
type Dependency func(ctx context.Context) error

// HealthReport is the body of every health endpoint.
type HealthReport struct {
	Status  string            `json:"status"`
	Uptime  string            `json:"uptime,omitempty"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// HealthChecker serves liveness and readiness for the provisioning
// listener. It turns unready once draining starts or the server context
// shuts down, and while any registered dependency fails.
type HealthChecker struct {
	sc       *ServerContext
	started  time.Time
	version  string
	draining atomic.Bool
	logger   *slog.Logger

	mu   sync.RWMutex
	deps map[string]Dependency
}

// NewHealthChecker creates a checker. sc may be nil in tests.
func NewHealthChecker(sc *ServerContext) *HealthChecker {
	logger := slog.New(slog.DiscardHandler)
	if sc != nil {
		logger = sc.Logger()
	}
	return &HealthChecker{
		sc:      sc,
		started: time.Now(),
		logger:  logger,
		deps:    make(map[string]Dependency),
	}
}

// SetVersion sets the version reported by the detailed endpoint.
func (h *HealthChecker) SetVersion(version string) {
	h.version = version
}

// AddCheck registers a dependency under name.
func (h *HealthChecker) AddCheck(name string, dep Dependency) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deps[name] = dep
}

// Drain marks the listener as going away so load balancers stop routing
// new provisioning calls to it.
func (h *HealthChecker) Drain() {
	h.draining.Store(true)
}

// IsReady reports whether new traffic should be routed here, without
// running dependency checks.
func (h *HealthChecker) IsReady() bool {
	return h.serving() == healthOK
}

func (h *HealthChecker) serving() string {
	switch {
	case h.sc != nil && h.sc.IsShutdown():
		return healthShuttingDown
	case h.draining.Load():
		return healthDraining
	}
	return healthOK
}

// check runs every dependency concurrently under one timeout.
func (h *HealthChecker) check(ctx context.Context) (map[string]string, bool) {
	h.mu.RLock()
	deps := make(map[string]Dependency, len(h.deps))
	for name, dep := range h.deps {
		deps[name] = dep
	}
	h.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, dependencyTimeout)
	defer cancel()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = map[string]string{"serving": h.serving()}
		ok      = results["serving"] == healthOK
	)
	for name, dep := range deps {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status := healthOK
			if err := dep(ctx); err != nil {
				status = err.Error()
			}
			mu.Lock()
			defer mu.Unlock()
			results[name] = status
			if status != healthOK {
				ok = false
			}
		}()
	}
	wg.Wait()
	return results, ok
}

// LivenessHandler answers as long as the process can serve HTTP.
func (h *HealthChecker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, h.logger, http.StatusOK, HealthReport{Status: healthOK})
	})
}

// ReadinessHandler answers 503 while draining or while a dependency fails.
func (h *HealthChecker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		checks, ok := h.check(r.Context())
		h.write(w, HealthReport{Checks: checks}, ok)
	})
}

// DetailedHealthHandler adds uptime and version to the readiness report.
func (h *HealthChecker) DetailedHealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		checks, ok := h.check(r.Context())
		h.write(w, HealthReport{
			Uptime:  time.Since(h.started).Truncate(time.Second).String(),
			Version: h.version,
			Checks:  checks,
		}, ok)
	})
}

func (h *HealthChecker) write(w http.ResponseWriter, report HealthReport, ok bool) {
	if !ok {
		report.Status = healthNotReady
		writeJSON(w, h.logger, http.StatusServiceUnavailable, report)
		return
	}
	report.Status = healthOK
	writeJSON(w, h.logger, http.StatusOK, report)
}

// RegisterHealthEndpoints mounts the three health endpoints on mux.
func (h *HealthChecker) RegisterHealthEndpoints(mux *http.ServeMux) {
	mux.Handle(LivenessPath, h.LivenessHandler())
	mux.Handle(ReadinessPath, h.ReadinessHandler())
	mux.Handle(DetailedHealthPath, h.DetailedHealthHandler())
}
