package calendar

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/teemow/joinpass/internal/instrumentation"
	"github.com/teemow/joinpass/internal/logging"
	"github.com/teemow/joinpass/internal/session"
)

const (
	DefaultCalendarID        = "primary"
	DefaultRequestsPerSecond = 10
	DefaultBurst             = 10
	DefaultPendingRetries    = 3
	DefaultPendingInterval   = 500 * time.Millisecond
)

// Config configures a Provisioner. Zero values select the defaults.
type Config struct {
	// CalendarID is the calendar events are created in.
	CalendarID string

	// RequestsPerSecond and Burst bound outbound Calendar API calls
	// across all callers of this process.
	RequestsPerSecond float64
	Burst             int

	// PendingRetries is how many times an event whose conference is still
	// being created is re-read before giving up. Negative disables re-reads.
	PendingRetries  int
	PendingInterval time.Duration

	// Endpoint overrides the Calendar API base URL.
	Endpoint string

	// BaseTransport carries the authorized requests. Defaults to an
	// HTTP/1.1 transport.
	BaseTransport http.RoundTripper
}

func (c Config) withDefaults() Config {
	if c.CalendarID == "" {
		c.CalendarID = DefaultCalendarID
	}
	if c.RequestsPerSecond == 0 {
		c.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if c.Burst == 0 {
		c.Burst = DefaultBurst
	}
	if c.PendingRetries == 0 {
		c.PendingRetries = DefaultPendingRetries
	}
	if c.PendingRetries < 0 {
		c.PendingRetries = 0
	}
	if c.PendingInterval == 0 {
		c.PendingInterval = DefaultPendingInterval
	}
	return c
}

// Validate checks the configuration for values that can never work.
func (c Config) Validate() error {
	if c.RequestsPerSecond < 0 {
		return session.NewConfiguration("calendar requests per second must not be negative")
	}
	if c.Burst < 0 {
		return session.NewConfiguration("calendar burst must not be negative")
	}
	if c.PendingInterval < 0 {
		return session.NewConfiguration("calendar pending interval must not be negative")
	}
	return nil
}

// Provisioner creates calendar events with an attached Google Meet
// conference on behalf of the caller.
type Provisioner struct {
	cfg     Config
	base    http.RoundTripper
	limiter *rate.Limiter
	logger  logging.Logger
	metrics *instrumentation.Metrics

	newRequestID func() string
}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(p *Provisioner) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMetrics records Calendar API operations.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(p *Provisioner) {
		p.metrics = m
	}
}

// NewProvisioner creates a provisioner. It holds no caller credentials.
func NewProvisioner(cfg Config, opts ...Option) (*Provisioner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	base := cfg.BaseTransport
	if base == nil {
		// Force HTTP/1.1 by disabling HTTP/2
		base = otelhttp.NewTransport(&http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			ForceAttemptHTTP2:   false,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		})
	}

	p := &Provisioner{
		cfg:     cfg,
		base:    base,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		logger:  logging.Discard(),
		newRequestID: func() string {
			return "meet-" + uuid.NewString()
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// CalendarID returns the calendar events are created in.
func (p *Provisioner) CalendarID() string {
	return p.cfg.CalendarID
}

// Provision creates a calendar event with a Meet conference and returns its
// join URL. The credential is used for this call only.
//
// With an idempotency key, a retried call resolves to the event created by
// the first attempt. Without one every call creates a new event.
func (p *Provisioner) Provision(ctx context.Context, cred session.OAuthCredential, req LinkRequest) (*session.ProvisionedLink, error) {
	if !cred.Valid(time.Now()) {
		return nil, session.NewMissingAuthorization("a valid Google OAuth token is required")
	}
	if req.Start.IsZero() || req.Duration <= 0 {
		return nil, session.NewInvalidRequest("start time and a positive duration are required")
	}

	requestID := req.IdempotencyKey
	if requestID == "" {
		requestID = p.newRequestID()
	}

	event, err := buildEvent(req, requestID)
	if err != nil {
		return nil, err
	}

	svc, err := p.service(ctx, cred)
	if err != nil {
		return nil, err
	}

	created, err := p.insert(ctx, svc, event)
	if err != nil && req.IdempotencyKey != "" && isConflict(err) {
		p.logger.Debug("event already exists, reading it back", "event_id", event.Id)
		created, err = p.get(ctx, svc, event.Id)
	}
	if err != nil {
		return nil, err
	}

	created, err = p.awaitConference(ctx, svc, created)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, classifyError(ctx, instrumentation.OperationInsert, err)
	}

	link := toProvisionedLink(created, requestID, req.End())
	if link.JoinURL == "" {
		return nil, session.NewUpstreamUnavailable(nil, "calendar event %s has no video entry point", created.Id)
	}

	p.logger.Debug("meet link provisioned", "event_id", link.CalendarEventID, "conference_id", link.ConferenceID)
	return link, nil
}

// service builds a Calendar client authorized with cred.
func (p *Provisioner) service(ctx context.Context, cred session.OAuthCredential) (*calendar.Service, error) {
	client := &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(cred.Token()),
			Base:   p.base,
		},
	}

	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if p.cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(p.cfg.Endpoint))
	}

	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, &session.Error{
			Kind:        session.KindConfiguration,
			Description: "failed to create Calendar service",
			Err:         err,
		}
	}
	return svc, nil
}

func (p *Provisioner) insert(ctx context.Context, svc *calendar.Service, event *calendar.Event) (*calendar.Event, error) {
	return p.do(ctx, instrumentation.OperationInsert, event.Id, func(ctx context.Context) (*calendar.Event, error) {
		return svc.Events.Insert(p.cfg.CalendarID, event).
			ConferenceDataVersion(1).
			Context(ctx).
			Do()
	})
}

func (p *Provisioner) get(ctx context.Context, svc *calendar.Service, eventID string) (*calendar.Event, error) {
	return p.do(ctx, instrumentation.OperationGet, eventID, func(ctx context.Context) (*calendar.Event, error) {
		return svc.Events.Get(p.cfg.CalendarID, eventID).
			Context(ctx).
			Do()
	})
}

// do waits for the outbound limiter, runs call inside a span and records
// the operation.
func (p *Provisioner) do(ctx context.Context, op, eventID string, call func(context.Context) (*calendar.Event, error)) (*calendar.Event, error) {
	ctx, span := instrumentation.StartCalendarSpan(ctx, op, eventID)
	defer span.End()

	start := time.Now()
	event, err := p.waitAndCall(ctx, call)
	duration := time.Since(start)

	if err != nil {
		err = classifyError(ctx, op, err)
		instrumentation.SetSpanOutcome(span, err)
		p.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceCalendar, op, instrumentation.StatusError, duration)
		p.logger.Debug("calendar operation failed", "operation", op, "error", err)
		return nil, err
	}

	instrumentation.SetSpanOutcome(span, nil)
	p.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceCalendar, op, instrumentation.StatusSuccess, duration)
	return event, nil
}

func (p *Provisioner) waitAndCall(ctx context.Context, call func(context.Context) (*calendar.Event, error)) (*calendar.Event, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("outbound rate limit: %w", err)
	}
	return call(ctx)
}

// awaitConference re-reads event while its conference is still pending.
func (p *Provisioner) awaitConference(ctx context.Context, svc *calendar.Service, event *calendar.Event) (*calendar.Event, error) {
	for attempt := 0; conferenceStatus(event) == conferenceStatusPending && joinURL(event) == ""; attempt++ {
		if attempt >= p.cfg.PendingRetries {
			return nil, session.NewUpstreamUnavailable(nil, "conference for event %s still pending after %d re-reads", event.Id, attempt)
		}

		timer := time.NewTimer(p.cfg.PendingInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, classifyError(ctx, instrumentation.OperationGet, ctx.Err())
		case <-timer.C:
		}

		refreshed, err := p.get(ctx, svc, event.Id)
		if err != nil {
			return nil, err
		}
		event = refreshed
	}

	if conferenceStatus(event) == conferenceStatusFailure {
		return nil, session.NewUpstreamUnavailable(nil, "Google failed to create a conference for event %s", event.Id)
	}
	return event, nil
}
