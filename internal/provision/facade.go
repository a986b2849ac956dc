package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/teemow/joinpass/internal/calendar"
	"github.com/teemow/joinpass/internal/instrumentation"
	"github.com/teemow/joinpass/internal/logging"
	"github.com/teemow/joinpass/internal/ratelimit"
	"github.com/teemow/joinpass/internal/session"
)

// DefaultUpstreamTimeout bounds one Google Meet provisioning call.
const DefaultUpstreamTimeout = 10 * time.Second

// CredentialIssuer issues Zoom join credentials.
type CredentialIssuer interface {
	Issue(meetingNumber string, role session.Role) (*session.JoinCredential, error)
}

// LinkProvisioner creates Google Meet links.
type LinkProvisioner interface {
	Provision(ctx context.Context, cred session.OAuthCredential, req calendar.LinkRequest) (*session.ProvisionedLink, error)
}

// Config configures the facade.
type Config struct {
	// UpstreamTimeout bounds the Google Meet path. Default 10s.
	UpstreamTimeout time.Duration

	// RetryAfter is reported with RateLimited errors. Defaults to the
	// limiter window when the limiter exposes one.
	RetryAfter time.Duration
}

// Facade is the single entry point for provisioning sessions. It validates
// requests, checks authorization, applies the per-requester rate policy and
// dispatches to the platform implementation.
//
// A Facade keeps no state between calls apart from the rate counter owned
// by its limiter, and is safe for concurrent use.
type Facade struct {
	issuer      CredentialIssuer
	provisioner LinkProvisioner
	limiter     ratelimit.Limiter
	cfg         Config

	logger  *slog.Logger
	metrics *instrumentation.Metrics
	audit   *instrumentation.AuditLogger
	now     func() time.Time
}

// Option configures a Facade.
type Option func(*Facade)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Facade) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithMetrics records provisioning metrics.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(f *Facade) {
		f.metrics = m
	}
}

// WithAuditLogger records one audit event per call.
func WithAuditLogger(a *instrumentation.AuditLogger) Option {
	return func(f *Facade) {
		f.audit = a
	}
}

// WithClock overrides the clock used for credential expiry checks.
func WithClock(now func() time.Time) Option {
	return func(f *Facade) {
		if now != nil {
			f.now = now
		}
	}
}

// NewFacade creates a facade. All three collaborators are required.
func NewFacade(issuer CredentialIssuer, provisioner LinkProvisioner, limiter ratelimit.Limiter, cfg Config, opts ...Option) (*Facade, error) {
	if issuer == nil {
		return nil, session.NewConfiguration("zoom credential issuer is not configured")
	}
	if provisioner == nil {
		return nil, session.NewConfiguration("calendar link provisioner is not configured")
	}
	if limiter == nil {
		return nil, session.NewConfiguration("rate limiter is not configured")
	}
	if cfg.UpstreamTimeout < 0 || cfg.RetryAfter < 0 {
		return nil, session.NewConfiguration("facade durations must not be negative")
	}

	if cfg.UpstreamTimeout == 0 {
		cfg.UpstreamTimeout = DefaultUpstreamTimeout
	}
	if cfg.RetryAfter == 0 {
		if w, ok := limiter.(interface{ Window() time.Duration }); ok {
			cfg.RetryAfter = w.Window()
		}
	}

	f := &Facade{
		issuer:      issuer,
		provisioner: provisioner,
		limiter:     limiter,
		cfg:         cfg,
		logger:      slog.New(slog.DiscardHandler),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = logging.WithComponent(f.logger, "provision")
	return f, nil
}

// RequestSession provisions a session for req.
//
// cred is the caller's Google OAuth credential. It is required for Google
// Meet, ignored for Zoom and never stored. Failures are *session.Error
// values, except caller cancellation which is returned as a wrapped
// context.Canceled.
func (f *Facade) RequestSession(ctx context.Context, req session.MeetingRequest, cred *session.OAuthCredential) (*session.Result, error) {
	start := time.Now()
	platform := instrumentation.PlatformLabel(req.Platform)
	surface := SurfaceFromContext(ctx)

	ctx, span := instrumentation.StartProvisionSpan(ctx, platform, instrumentation.RoleLabel(req.Role), req.RequesterID)
	defer span.End()

	event := instrumentation.NewProvisionEvent(platform, req.RequesterID).
		WithRole(instrumentation.RoleLabel(req.Role)).
		WithSurface(surface).
		WithSpanContext(ctx)

	result, err := f.requestSession(ctx, req, cred)

	f.metrics.RecordProvision(ctx, platform, instrumentation.OutcomeLabel(err), surface, time.Since(start))
	instrumentation.SetSpanOutcome(span, err)
	if err != nil {
		f.logFailure(ctx, req, err)
	} else {
		if result.Link != nil {
			event.WithResource(result.Link.CalendarEventID)
		}
		if result.Credential != nil {
			f.metrics.RecordCredentialIssued(ctx, instrumentation.RoleLabel(result.Credential.Role))
		}
		f.logger.DebugContext(ctx, "session provisioned",
			logging.Platform(platform),
			logging.RequesterHash(req.RequesterID),
			slog.Duration(logging.KeyDuration, time.Since(start)))
	}
	f.audit.LogProvision(event.Complete(err))

	return result, err
}

func (f *Facade) requestSession(ctx context.Context, req session.MeetingRequest, cred *session.OAuthCredential) (*session.Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if req.Platform == session.PlatformGoogleMeet && !cred.Valid(f.now()) {
		return nil, session.NewMissingAuthorization("a valid Google OAuth token is required for %s", session.PlatformGoogleMeet)
	}

	if err := f.checkRate(ctx, req); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("provision: %w", err)
	}

	switch req.Platform {
	case session.PlatformZoom:
		return f.issueZoom(req)
	case session.PlatformGoogleMeet:
		return f.provisionMeet(ctx, req, *cred)
	default:
		// Unreachable after Validate.
		return nil, session.NewInvalidRequest("unsupported platform %q", req.Platform)
	}
}

func (f *Facade) checkRate(ctx context.Context, req session.MeetingRequest) error {
	allowed, err := f.limiter.CheckAndIncrement(ctx, req.RequesterID)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("rate limit check: %w", err)
		}
		return session.NewUpstreamUnavailable(err, "rate limit check failed")
	}
	if !allowed {
		f.metrics.RecordRateLimited(ctx, instrumentation.PlatformLabel(req.Platform))
		return session.NewRateLimited(f.cfg.RetryAfter, "requester exceeded the provisioning quota")
	}
	return nil
}

func (f *Facade) issueZoom(req session.MeetingRequest) (*session.Result, error) {
	cred, err := f.issuer.Issue(req.MeetingNumber, req.Role)
	if err != nil {
		return nil, err
	}
	return &session.Result{Platform: session.PlatformZoom, Credential: cred}, nil
}

func (f *Facade) provisionMeet(ctx context.Context, req session.MeetingRequest, cred session.OAuthCredential) (*session.Result, error) {
	callCtx, cancel := context.WithTimeout(ctx, f.cfg.UpstreamTimeout)
	defer cancel()

	link, err := f.provisioner.Provision(callCtx, cred, calendar.LinkRequestFrom(req))
	if err != nil {
		switch {
		case errors.Is(ctx.Err(), context.Canceled):
			return nil, fmt.Errorf("provision: %w", context.Canceled)
		case session.KindOf(err) != "":
			return nil, err
		default:
			return nil, session.NewUpstreamUnavailable(err, "google meet provisioning failed")
		}
	}
	// A link that arrives after the caller gave up is dropped.
	if err := callCtx.Err(); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, fmt.Errorf("provision: %w", context.Canceled)
		}
		return nil, session.NewUpstreamUnavailable(err, "google meet provisioning timed out")
	}
	if link == nil || link.JoinURL == "" {
		return nil, session.NewUpstreamUnavailable(nil, "google meet provisioning returned no join url")
	}
	return &session.Result{Platform: session.PlatformGoogleMeet, Link: link}, nil
}

func (f *Facade) logFailure(ctx context.Context, req session.MeetingRequest, err error) {
	attrs := []any{
		logging.Platform(string(req.Platform)),
		logging.RequesterHash(req.RequesterID),
		logging.Err(err),
	}
	if req.Platform == session.PlatformZoom && req.MeetingNumber != "" {
		attrs = append(attrs, logging.MeetingNumber(req.MeetingNumber))
	}

	switch session.KindOf(err) {
	case session.KindInvalidRequest, session.KindMissingAuthorization, session.KindRateLimited, "":
		f.logger.DebugContext(ctx, "session request rejected", attrs...)
	default:
		f.logger.WarnContext(ctx, "session provisioning failed", attrs...)
	}
}
