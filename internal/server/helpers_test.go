package server

import (
	"context"
	"testing"
	"time"

	"github.com/teemow/joinpass/internal/calendar"
	"github.com/teemow/joinpass/internal/provision"
	"github.com/teemow/joinpass/internal/ratelimit"
	"github.com/teemow/joinpass/internal/session"
	"github.com/teemow/joinpass/internal/zoom"
)

// stubProvisioner returns a fixed link or err.
type stubProvisioner struct {
	err      error
	gotToken string
}

func (p *stubProvisioner) Provision(_ context.Context, cred session.OAuthCredential, req calendar.LinkRequest) (*session.ProvisionedLink, error) {
	p.gotToken = cred.AccessToken
	if p.err != nil {
		return nil, p.err
	}
	return &session.ProvisionedLink{
		JoinURL:         "https://meet.google.com/abc-defg-hij",
		CalendarEventID: "evt1",
		ExpiresAt:       req.End(),
	}, nil
}

func newTestServerContext(t *testing.T, limit int, prov *stubProvisioner, opts ...ServerContextOption) *ServerContext {
	t.Helper()
	issuer, err := zoom.NewIssuer(zoom.Config{SDKKey: "sdk-key", SDKSecret: zoom.NewSecret("sdk-secret")})
	if err != nil {
		t.Fatalf("failed to create issuer: %v", err)
	}
	limiter := ratelimit.NewMemory(limit, time.Hour)
	t.Cleanup(limiter.Stop)

	if prov == nil {
		prov = &stubProvisioner{}
	}
	facade, err := provision.NewFacade(issuer, prov, limiter, provision.Config{})
	if err != nil {
		t.Fatalf("failed to create facade: %v", err)
	}
	sc, err := NewServerContext(context.Background(), facade, opts...)
	if err != nil {
		t.Fatalf("failed to create server context: %v", err)
	}
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}
