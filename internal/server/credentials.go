package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/teemow/joinpass/internal/session"
)

const (
	// HeaderTokenExpiry optionally carries the bearer token expiry (RFC 3339).
	HeaderTokenExpiry = "X-OAuth-Token-Expiry"

	bearerPrefix = "bearer "
)

// credentialKey is the context key for the caller's OAuth credential
type credentialKey struct{}

// WithCredential returns a context carrying cred.
func WithCredential(ctx context.Context, cred *session.OAuthCredential) context.Context {
	if cred == nil {
		return ctx
	}
	return context.WithValue(ctx, credentialKey{}, cred)
}

// CredentialFromContext returns the caller's OAuth credential, or nil.
func CredentialFromContext(ctx context.Context) *session.OAuthCredential {
	cred, _ := ctx.Value(credentialKey{}).(*session.OAuthCredential)
	return cred
}

// BearerCredential extracts the caller's Google OAuth token from the
// Authorization header. It returns nil, nil when no token is present.
func BearerCredential(r *http.Request) (*session.OAuthCredential, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return nil, nil
	}
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return nil, session.NewMissingAuthorization("authorization header must use the Bearer scheme")
	}

	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return nil, nil
	}

	cred := &session.OAuthCredential{AccessToken: token, TokenType: "Bearer"}
	if raw := r.Header.Get(HeaderTokenExpiry); raw != "" {
		expiry, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, session.NewInvalidRequest("%s must be an RFC 3339 timestamp", HeaderTokenExpiry)
		}
		cred.Expiry = expiry
	}
	return cred, nil
}

// HTTPContextFunc copies the bearer credential of an MCP HTTP request into
// the tool call context. Malformed headers are ignored here; the tool then
// reports missing authorization.
func HTTPContextFunc(ctx context.Context, r *http.Request) context.Context {
	cred, err := BearerCredential(r)
	if err != nil || cred == nil {
		return ctx
	}
	return WithCredential(ctx, cred)
}
