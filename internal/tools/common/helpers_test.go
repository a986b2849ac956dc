package common

import (
	"context"
	"testing"
	"time"

	"github.com/teemow/joinpass/internal/calendar"
	"github.com/teemow/joinpass/internal/provision"
	"github.com/teemow/joinpass/internal/ratelimit"
	"github.com/teemow/joinpass/internal/server"
	"github.com/teemow/joinpass/internal/session"
	"github.com/teemow/joinpass/internal/zoom"
)

type nopProvisioner struct{}

func (nopProvisioner) Provision(context.Context, session.OAuthCredential, calendar.LinkRequest) (*session.ProvisionedLink, error) {
	return nil, session.NewUpstreamUnavailable(nil, "not available in tests")
}

func newTestServerContext(t *testing.T, opts ...server.ServerContextOption) *server.ServerContext {
	t.Helper()
	issuer, err := zoom.NewIssuer(zoom.Config{SDKKey: "key", SDKSecret: zoom.NewSecret("secret")})
	if err != nil {
		t.Fatalf("failed to create issuer: %v", err)
	}
	limiter := ratelimit.NewMemory(0, time.Minute)
	t.Cleanup(limiter.Stop)

	facade, err := provision.NewFacade(issuer, nopProvisioner{}, limiter, provision.Config{})
	if err != nil {
		t.Fatalf("failed to create facade: %v", err)
	}
	sc, err := server.NewServerContext(context.Background(), facade, opts...)
	if err != nil {
		t.Fatalf("failed to create server context: %v", err)
	}
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}
