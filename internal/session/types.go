package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Platform identifies the conferencing provider a session is provisioned on.
type Platform string

const (
	PlatformGoogleMeet Platform = "google_meet"
	PlatformZoom       Platform = "zoom"
)

// ParsePlatform converts user input to a Platform.
func ParsePlatform(s string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "google_meet", "google", "meet", "googlemeet", "google-meet":
		return PlatformGoogleMeet, nil
	case "zoom":
		return PlatformZoom, nil
	default:
		return "", NewInvalidRequest("unsupported platform %q (supported: google_meet, zoom)", s)
	}
}

// Valid reports whether p is a supported platform.
func (p Platform) Valid() bool {
	return p == PlatformGoogleMeet || p == PlatformZoom
}

// Role is the permission level granted by a join credential.
type Role int

const (
	RoleParticipant Role = 0
	RoleHost        Role = 1
)

// ParseRole converts user input to a Role.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "host", "1":
		return RoleHost, nil
	case "participant", "attendee", "0", "":
		return RoleParticipant, nil
	default:
		return RoleParticipant, NewInvalidRequest("unsupported role %q (supported: host, participant)", s)
	}
}

// Code returns the fixed integer encoding embedded in join credentials.
func (r Role) Code() int {
	return int(r)
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleHost || r == RoleParticipant
}

// String returns the role name
func (r Role) String() string {
	switch r {
	case RoleHost:
		return "host"
	case RoleParticipant:
		return "participant"
	default:
		return "role(" + strconv.Itoa(int(r)) + ")"
	}
}

// MarshalJSON encodes the role by name.
func (r Role) MarshalJSON() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid role %d", int(r))
	}
	return json.Marshal(r.String())
}

// UnmarshalJSON accepts either the role name or its integer code.
func (r *Role) UnmarshalJSON(data []byte) error {
	var code int
	if err := json.Unmarshal(data, &code); err == nil {
		if !Role(code).Valid() {
			return NewInvalidRequest("unsupported role %d", code)
		}
		*r = Role(code)
		return nil
	}
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return NewInvalidRequest("role must be a string or integer")
	}
	parsed, err := ParseRole(name)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// MeetingRequest is a caller's request for a conferencing session.
// It is passed by value and never modified by the core.
type MeetingRequest struct {
	Platform        Platform  `json:"platform"`
	RequesterID     string    `json:"requester_id"`
	Role            Role      `json:"role"`
	DesiredStart    time.Time `json:"desired_start"`
	DurationSeconds int64     `json:"duration_seconds"`

	// Zoom
	MeetingNumber string `json:"meeting_number,omitempty"`

	// Google Meet
	Summary        string   `json:"summary,omitempty"`
	Description    string   `json:"description,omitempty"`
	Attendees      []string `json:"attendees,omitempty"`
	TimeZone       string   `json:"time_zone,omitempty"`
	IdempotencyKey string   `json:"idempotency_key,omitempty"`
}

// Duration returns the requested session length.
func (r MeetingRequest) Duration() time.Duration {
	return time.Duration(r.DurationSeconds) * time.Second
}

// End returns the requested session end time.
func (r MeetingRequest) End() time.Time {
	return r.DesiredStart.Add(r.Duration())
}

// OAuthCredential is a caller-owned bearer token. The core only uses it for
// the duration of one provisioning call.
type OAuthCredential struct {
	AccessToken string
	TokenType   string
	Expiry      time.Time // zero means unknown
}

// Valid reports whether the credential is present and not expired at now.
func (c *OAuthCredential) Valid(now time.Time) bool {
	if c == nil || strings.TrimSpace(c.AccessToken) == "" {
		return false
	}
	if c.Expiry.IsZero() {
		return true
	}
	return now.Before(c.Expiry)
}

// Token converts the credential to an oauth2 token.
func (c *OAuthCredential) Token() *oauth2.Token {
	tokenType := c.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return &oauth2.Token{
		AccessToken: c.AccessToken,
		TokenType:   tokenType,
		Expiry:      c.Expiry,
	}
}

// String never reveals the token.
func (c OAuthCredential) String() string {
	return fmt.Sprintf("OAuthCredential{token:[%d chars], expiry:%s}", len(c.AccessToken), c.Expiry.Format(time.RFC3339))
}

// LogValue implements slog.LogValuer.
func (c OAuthCredential) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("token_chars", len(c.AccessToken)),
		slog.Time("expiry", c.Expiry),
	)
}

// ProvisionedLink is the Google Meet path result.
type ProvisionedLink struct {
	JoinURL         string    `json:"join_url"`
	CalendarEventID string    `json:"calendar_event_id"`
	ExpiresAt       time.Time `json:"expires_at"`
	HTMLLink        string    `json:"html_link,omitempty"`
	ConferenceID    string    `json:"conference_id,omitempty"`
	RequestID       string    `json:"request_id,omitempty"`
}

// JoinCredential is the Zoom path result: a signed, short-lived SDK token.
type JoinCredential struct {
	SDKKey        string    `json:"sdk_key"`
	MeetingNumber string    `json:"meeting_number"`
	Timestamp     int64     `json:"timestamp"` // Unix milliseconds, embedded in the signed payload
	Role          Role      `json:"role"`
	Signature     string    `json:"signature"` // base64 HMAC-SHA256 digest
	Token         string    `json:"token"`     // base64 of the five delimited fields
	IssuedAt      time.Time `json:"issued_at"`
	ExpiresAt     time.Time `json:"expires_at"` // advisory; enforced by the recipient
}

// Result is the platform-tagged outcome of a provisioning call.
// Exactly one of Link or Credential is set.
type Result struct {
	Platform   Platform         `json:"platform"`
	Link       *ProvisionedLink `json:"link,omitempty"`
	Credential *JoinCredential  `json:"credential,omitempty"`
}
