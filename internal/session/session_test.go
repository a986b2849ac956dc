package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validZoomRequest() MeetingRequest {
	return MeetingRequest{
		Platform:        PlatformZoom,
		RequesterID:     "user-1",
		Role:            RoleHost,
		DurationSeconds: 1800,
		MeetingNumber:   "12345678",
	}
}

func validMeetRequest() MeetingRequest {
	return MeetingRequest{
		Platform:        PlatformGoogleMeet,
		RequesterID:     "user-1",
		Role:            RoleParticipant,
		DesiredStart:    time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		DurationSeconds: 3600,
		Summary:         "Weekly sync",
	}
}

func TestMeetingRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *MeetingRequest)
		base    func() MeetingRequest
		wantErr bool
	}{
		{"valid zoom", func(r *MeetingRequest) {}, validZoomRequest, false},
		{"valid meet", func(r *MeetingRequest) {}, validMeetRequest, false},
		{"zoom meeting number with spaces", func(r *MeetingRequest) { r.MeetingNumber = "123 456 7890" }, validZoomRequest, false},
		{"zero duration", func(r *MeetingRequest) { r.DurationSeconds = 0 }, validZoomRequest, true},
		{"negative duration", func(r *MeetingRequest) { r.DurationSeconds = -5 }, validMeetRequest, true},
		{"duration too long", func(r *MeetingRequest) { r.DurationSeconds = MaxDurationSeconds + 1 }, validMeetRequest, true},
		{"empty requester", func(r *MeetingRequest) { r.RequesterID = "  " }, validZoomRequest, true},
		{"unknown platform", func(r *MeetingRequest) { r.Platform = "webex" }, validZoomRequest, true},
		{"unknown role", func(r *MeetingRequest) { r.Role = Role(7) }, validZoomRequest, true},
		{"missing meeting number", func(r *MeetingRequest) { r.MeetingNumber = "" }, validZoomRequest, true},
		{"non-numeric meeting number", func(r *MeetingRequest) { r.MeetingNumber = "12ab" }, validZoomRequest, true},
		{"meeting number too long", func(r *MeetingRequest) { r.MeetingNumber = strings.Repeat("1", 21) }, validZoomRequest, true},
		{"meet missing start", func(r *MeetingRequest) { r.DesiredStart = time.Time{} }, validMeetRequest, true},
		{"meet bad time zone", func(r *MeetingRequest) { r.TimeZone = "Mars/Olympus" }, validMeetRequest, true},
		{"meet good time zone", func(r *MeetingRequest) { r.TimeZone = "Europe/Berlin" }, validMeetRequest, false},
		{"meet bad attendee", func(r *MeetingRequest) { r.Attendees = []string{"not-an-email"} }, validMeetRequest, true},
		{"meet good attendee", func(r *MeetingRequest) { r.Attendees = []string{"jane@example.com"} }, validMeetRequest, false},
		{"meet idempotency key too long", func(r *MeetingRequest) { r.IdempotencyKey = strings.Repeat("k", 1025) }, validMeetRequest, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.base()
			tt.mutate(&req)
			err := req.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidRequest)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParsePlatform(t *testing.T) {
	tests := []struct {
		input   string
		want    Platform
		wantErr bool
	}{
		{"google_meet", PlatformGoogleMeet, false},
		{"Google", PlatformGoogleMeet, false},
		{"meet", PlatformGoogleMeet, false},
		{" ZOOM ", PlatformZoom, false},
		{"teams", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParsePlatform(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRequest)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRole_Encoding(t *testing.T) {
	assert.Equal(t, 1, RoleHost.Code())
	assert.Equal(t, 0, RoleParticipant.Code())

	for _, in := range []string{"host", "HOST", "1"} {
		r, err := ParseRole(in)
		require.NoError(t, err)
		assert.Equal(t, RoleHost, r, in)
	}
	for _, in := range []string{"participant", "attendee", "0"} {
		r, err := ParseRole(in)
		require.NoError(t, err)
		assert.Equal(t, RoleParticipant, r, in)
	}

	_, err := ParseRole("owner")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestRole_JSON(t *testing.T) {
	var req MeetingRequest
	require.NoError(t, json.Unmarshal([]byte(`{"role":"host"}`), &req))
	assert.Equal(t, RoleHost, req.Role)

	require.NoError(t, json.Unmarshal([]byte(`{"role":1}`), &req))
	assert.Equal(t, RoleHost, req.Role)

	require.NoError(t, json.Unmarshal([]byte(`{"role":0}`), &req))
	assert.Equal(t, RoleParticipant, req.Role)

	assert.Error(t, json.Unmarshal([]byte(`{"role":3}`), &req))
	assert.Error(t, json.Unmarshal([]byte(`{"role":"owner"}`), &req))

	out, err := json.Marshal(JoinCredential{Role: RoleHost})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"role":"host"`)
}

func TestOAuthCredential_Valid(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	var nilCred *OAuthCredential
	assert.False(t, nilCred.Valid(now))
	assert.False(t, (&OAuthCredential{}).Valid(now))
	assert.True(t, (&OAuthCredential{AccessToken: "tok"}).Valid(now))
	assert.True(t, (&OAuthCredential{AccessToken: "tok", Expiry: now.Add(time.Minute)}).Valid(now))
	assert.False(t, (&OAuthCredential{AccessToken: "tok", Expiry: now}).Valid(now))
	assert.False(t, (&OAuthCredential{AccessToken: "tok", Expiry: now.Add(-time.Second)}).Valid(now))
}

func TestOAuthCredential_Redaction(t *testing.T) {
	cred := OAuthCredential{AccessToken: "ya29.super-secret"}
	assert.NotContains(t, cred.String(), "super-secret")
	assert.NotContains(t, fmt.Sprintf("%v", cred), "super-secret")
	assert.NotContains(t, cred.LogValue().String(), "super-secret")

	tok := cred.Token()
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.Equal(t, "ya29.super-secret", tok.AccessToken)
}

func TestError_Taxonomy(t *testing.T) {
	tests := []struct {
		err       *Error
		sentinel  error
		status    int
		retryable bool
	}{
		{NewInvalidRequest("bad"), ErrInvalidRequest, http.StatusBadRequest, false},
		{NewMissingAuthorization("none"), ErrMissingAuthorization, http.StatusUnauthorized, false},
		{NewUpstreamAuth(nil, "rejected"), ErrUpstreamAuth, http.StatusBadGateway, false},
		{NewUpstreamUnavailable(nil, "down"), ErrUpstreamUnavailable, http.StatusServiceUnavailable, true},
		{NewRateLimited(time.Minute, "slow down"), ErrRateLimited, http.StatusTooManyRequests, true},
		{NewConfiguration("missing"), ErrConfiguration, http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.err.Kind), func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.sentinel)
			assert.Equal(t, tt.err.Kind, KindOf(wrapped))
			assert.Equal(t, tt.status, tt.err.HTTPStatus())
			assert.Equal(t, tt.retryable, tt.err.Retryable())
		})
	}

	assert.NotErrorIs(t, NewInvalidRequest("x"), ErrRateLimited)
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestError_UnwrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewUpstreamUnavailable(cause, "calendar insert failed")
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection reset")

	se, ok := AsError(fmt.Errorf("wrap: %w", err))
	require.True(t, ok)
	assert.Equal(t, KindUpstreamUnavailable, se.Kind)
}

func TestNormalizeMeetingNumber(t *testing.T) {
	assert.Equal(t, "1234567890", NormalizeMeetingNumber("123 456-7890"))
	assert.Equal(t, "", NormalizeMeetingNumber(" - "))
}
