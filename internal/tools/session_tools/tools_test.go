package session_tools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/joinpass/internal/calendar"
	"github.com/teemow/joinpass/internal/provision"
	"github.com/teemow/joinpass/internal/ratelimit"
	"github.com/teemow/joinpass/internal/server"
	"github.com/teemow/joinpass/internal/session"
	"github.com/teemow/joinpass/internal/zoom"
)

type stubProvisioner struct {
	gotToken string
	gotReq   calendar.LinkRequest
}

func (p *stubProvisioner) Provision(_ context.Context, cred session.OAuthCredential, req calendar.LinkRequest) (*session.ProvisionedLink, error) {
	p.gotToken = cred.AccessToken
	p.gotReq = req
	return &session.ProvisionedLink{
		JoinURL:         "https://meet.google.com/abc-defg-hij",
		CalendarEventID: "evt1",
		ExpiresAt:       req.End(),
	}, nil
}

func newServerContext(t *testing.T, limit int) (*server.ServerContext, *stubProvisioner) {
	t.Helper()
	issuer, err := zoom.NewIssuer(zoom.Config{SDKKey: "sdk-key", SDKSecret: zoom.NewSecret("sdk-secret")})
	require.NoError(t, err)

	limiter := ratelimit.NewMemory(limit, time.Hour)
	t.Cleanup(limiter.Stop)

	prov := &stubProvisioner{}
	facade, err := provision.NewFacade(issuer, prov, limiter, provision.Config{})
	require.NoError(t, err)

	sc, err := server.NewServerContext(context.Background(), facade)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc, prov
}

func callTool(ctx context.Context, sc *server.ServerContext, args map[string]interface{}) (*mcp.CallToolResult, error) {
	var req mcp.CallToolRequest
	req.Params.Name = ToolSessionRequest
	req.Params.Arguments = args
	return handleSessionRequest(ctx, req, sc)
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func TestRegisterSessionTools(t *testing.T) {
	sc, _ := newServerContext(t, 0)
	s := mcpserver.NewMCPServer("test", "0.0.0", mcpserver.WithToolCapabilities(true))

	require.NoError(t, RegisterSessionTools(s, sc))
	assert.Error(t, RegisterSessionTools(s, nil))
}

func TestParseMeetingRequest(t *testing.T) {
	tests := []struct {
		name    string
		args    map[string]interface{}
		wantErr bool
		check   func(t *testing.T, req session.MeetingRequest)
	}{
		{
			name: "zoom host",
			args: map[string]interface{}{
				"platform":         "zoom",
				"requester_id":     "u1",
				"role":             "host",
				"meeting_number":   "857 4606 5432",
				"duration_seconds": 3600.0,
			},
			check: func(t *testing.T, req session.MeetingRequest) {
				assert.Equal(t, session.PlatformZoom, req.Platform)
				assert.Equal(t, session.RoleHost, req.Role)
				assert.Equal(t, int64(3600), req.DurationSeconds)
				assert.Equal(t, "857 4606 5432", req.MeetingNumber)
			},
		},
		{
			name: "meet with attendees",
			args: map[string]interface{}{
				"platform":         "google_meet",
				"requester_id":     "u1",
				"desired_start":    "2026-03-02T15:00:00Z",
				"duration_seconds": 1800.0,
				"attendees":        "a@example.com, b@example.com",
				"time_zone":        "Europe/Berlin",
			},
			check: func(t *testing.T, req session.MeetingRequest) {
				assert.Equal(t, session.PlatformGoogleMeet, req.Platform)
				assert.Equal(t, session.RoleParticipant, req.Role)
				assert.True(t, req.DesiredStart.Equal(time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)))
				assert.Equal(t, []string{"a@example.com", "b@example.com"}, req.Attendees)
				assert.Equal(t, "Europe/Berlin", req.TimeZone)
			},
		},
		{
			name:    "unknown platform",
			args:    map[string]interface{}{"platform": "webex"},
			wantErr: true,
		},
		{
			name:    "unknown role",
			args:    map[string]interface{}{"platform": "zoom", "role": "owner"},
			wantErr: true,
		},
		{
			name:    "fractional duration",
			args:    map[string]interface{}{"platform": "zoom", "duration_seconds": 1.5},
			wantErr: true,
		},
		{
			name:    "bad start",
			args:    map[string]interface{}{"platform": "google_meet", "desired_start": "tomorrow"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := parseMeetingRequest(tt.args)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, session.KindInvalidRequest, session.KindOf(err))
				return
			}
			require.NoError(t, err)
			tt.check(t, req)
		})
	}
}

func TestSessionRequest_Zoom(t *testing.T) {
	sc, _ := newServerContext(t, 0)

	result, err := callTool(context.Background(), sc, map[string]interface{}{
		"platform":         "zoom",
		"requester_id":     "u1",
		"role":             "host",
		"meeting_number":   "85746065432",
		"duration_seconds": 3600.0,
	})
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var got session.Result
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &got))
	require.NotNil(t, got.Credential)
	assert.Equal(t, session.PlatformZoom, got.Platform)
	assert.Equal(t, "85746065432", got.Credential.MeetingNumber)
	assert.Equal(t, session.RoleHost, got.Credential.Role)
	assert.NotEmpty(t, got.Credential.Token)
	assert.NotContains(t, resultText(t, result), "sdk-secret")
}

func TestSessionRequest_MeetUsesContextCredential(t *testing.T) {
	sc, prov := newServerContext(t, 0)

	ctx := server.WithCredential(context.Background(), &session.OAuthCredential{
		AccessToken: "ya29.caller",
		Expiry:      time.Now().Add(time.Hour),
	})
	result, err := callTool(ctx, sc, map[string]interface{}{
		"platform":         "google_meet",
		"requester_id":     "u1",
		"desired_start":    "2026-03-02T15:00:00Z",
		"duration_seconds": 1800.0,
		"idempotency_key":  "retry-1",
	})
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	assert.Equal(t, "ya29.caller", prov.gotToken)
	assert.Equal(t, "retry-1", prov.gotReq.IdempotencyKey)
	assert.Contains(t, resultText(t, result), "https://meet.google.com/abc-defg-hij")
}

func TestSessionRequest_Errors(t *testing.T) {
	tests := []struct {
		name     string
		limit    int
		calls    int
		args     map[string]interface{}
		contains string
	}{
		{
			name:  "meet without credential",
			calls: 1,
			args: map[string]interface{}{
				"platform":         "google_meet",
				"requester_id":     "u1",
				"desired_start":    "2026-03-02T15:00:00Z",
				"duration_seconds": 1800.0,
			},
			contains: "missing_authorization",
		},
		{
			name:  "invalid meeting number",
			calls: 1,
			args: map[string]interface{}{
				"platform":         "zoom",
				"requester_id":     "u1",
				"meeting_number":   "12ab",
				"duration_seconds": 60.0,
			},
			contains: "invalid_request",
		},
		{
			name:  "quota exhausted",
			limit: 1,
			calls: 2,
			args: map[string]interface{}{
				"platform":         "zoom",
				"requester_id":     "u1",
				"meeting_number":   "85746065432",
				"duration_seconds": 60.0,
			},
			contains: "rate_limited",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, _ := newServerContext(t, tt.limit)

			var result *mcp.CallToolResult
			var err error
			for i := 0; i < tt.calls; i++ {
				result, err = callTool(context.Background(), sc, tt.args)
			}
			require.NoError(t, err)
			require.True(t, result.IsError)
			assert.Contains(t, resultText(t, result), tt.contains)
		})
	}
}
