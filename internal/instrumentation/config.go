package instrumentation

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/teemow/joinpass/internal/session"
)

// Exporter names accepted by METRICS_EXPORTER and TRACING_EXPORTER.
const (
	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"
)

// DefaultSampleRate is the share of root provisioning traces that are kept.
const DefaultSampleRate = 0.1

// Config controls telemetry for one joinpass process.
type Config struct {
	// Enabled switches metrics, tracing and audit events on as a group.
	Enabled bool

	ServiceName    string
	ServiceVersion string

	// InstanceID identifies this replica. Empty falls back to the hostname.
	InstanceID string
	Namespace  string

	// MetricsExporter is prometheus, otlp or stdout.
	MetricsExporter string

	// DetailedLabels adds the request surface (http, mcp, cli) to the
	// provisioning metrics. Requester identifiers never become labels.
	DetailedLabels bool

	// TracingExporter is otlp, stdout or none.
	TracingExporter string
	SampleRate      float64

	// OTLPEndpoint is host:port without a scheme. Plain HTTP is only used
	// when OTLPInsecure is set.
	OTLPEndpoint string
	OTLPInsecure bool

	Audit AuditConfig
}

// AuditConfig controls the provisioning audit stream.
type AuditConfig struct {
	Enabled bool

	// IncludePII writes raw requester IDs instead of their hashes. Route such
	// a stream to access-controlled storage only.
	IncludePII bool
}

// DefaultConfig returns the settings used when nothing is configured:
// Prometheus metrics, no tracing and hashed audit events.
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		ServiceName:     "joinpass",
		ServiceVersion:  "unknown",
		MetricsExporter: ExporterPrometheus,
		TracingExporter: ExporterNone,
		SampleRate:      DefaultSampleRate,
		Audit:           AuditConfig{Enabled: true},
	}
}

// ConfigFromEnv overlays the process environment on DefaultConfig.
func ConfigFromEnv() (Config, error) {
	return configFromLookup(os.LookupEnv)
}

// configFromLookup is ConfigFromEnv with an injectable environment. A value
// that does not parse is a configuration error rather than a silent default.
func configFromLookup(lookup func(string) (string, bool)) (Config, error) {
	cfg := DefaultConfig()
	env := envReader{lookup: lookup}

	env.boolean(&cfg.Enabled, "INSTRUMENTATION_ENABLED")
	env.str(&cfg.ServiceName, "OTEL_SERVICE_NAME")
	env.str(&cfg.InstanceID, "OTEL_SERVICE_INSTANCE_ID", "K8S_POD_NAME", "HOSTNAME")
	env.str(&cfg.Namespace, "K8S_NAMESPACE", "POD_NAMESPACE")
	env.str(&cfg.MetricsExporter, "METRICS_EXPORTER")
	env.boolean(&cfg.DetailedLabels, "METRICS_DETAILED_LABELS")
	env.str(&cfg.TracingExporter, "TRACING_EXPORTER")
	env.float(&cfg.SampleRate, "OTEL_TRACES_SAMPLER_ARG")
	env.str(&cfg.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	env.boolean(&cfg.OTLPInsecure, "OTEL_EXPORTER_OTLP_INSECURE")
	env.boolean(&cfg.Audit.Enabled, "AUDIT_LOGGING_ENABLED")
	env.boolean(&cfg.Audit.IncludePII, "AUDIT_LOGGING_INCLUDE_PII")

	if err := errors.Join(env.errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first inconsistent setting as a configuration error.
func (c Config) Validate() error {
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return session.NewConfiguration("trace sample rate must be within [0, 1], got %g", c.SampleRate)
	}
	switch c.MetricsExporter {
	case ExporterPrometheus, ExporterOTLP, ExporterStdout:
	default:
		return session.NewConfiguration("unknown metrics exporter %q (want prometheus, otlp or stdout)", c.MetricsExporter)
	}
	switch c.TracingExporter {
	case ExporterOTLP, ExporterStdout, ExporterNone:
	default:
		return session.NewConfiguration("unknown tracing exporter %q (want otlp, stdout or none)", c.TracingExporter)
	}
	if c.OTLPEndpoint == "" && (c.MetricsExporter == ExporterOTLP || c.TracingExporter == ExporterOTLP) {
		return session.NewConfiguration("OTEL_EXPORTER_OTLP_ENDPOINT is required for the otlp exporter")
	}
	return nil
}

// envReader reads typed settings and collects parse failures.
type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

// get returns the first non-empty value among keys.
func (r *envReader) get(keys ...string) (string, string, bool) {
	for _, key := range keys {
		if v, ok := r.lookup(key); ok && strings.TrimSpace(v) != "" {
			return key, strings.TrimSpace(v), true
		}
	}
	return "", "", false
}

func (r *envReader) str(dst *string, keys ...string) {
	if _, v, ok := r.get(keys...); ok {
		*dst = v
	}
}

func (r *envReader) boolean(dst *bool, key string) {
	_, v, ok := r.get(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, session.NewConfiguration("invalid %s value %q: must be a boolean", key, v))
		return
	}
	*dst = b
}

func (r *envReader) float(dst *float64, key string) {
	_, v, ok := r.get(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.errs = append(r.errs, session.NewConfiguration("invalid %s value %q: must be a number", key, v))
		return
	}
	*dst = f
}
