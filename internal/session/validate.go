package session

import (
	"net/mail"
	"strings"
	"time"
)

const (
	// MaxDurationSeconds bounds a single session to 31 days.
	MaxDurationSeconds = int64(31 * 24 * time.Hour / time.Second)

	// MaxMeetingNumberLen is the longest accepted meeting number, in digits.
	MaxMeetingNumberLen = 20

	maxIdempotencyKeyLen = 1024
)

// NormalizeMeetingNumber strips the spaces and hyphens meeting numbers are
// usually displayed with.
func NormalizeMeetingNumber(s string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, s)
}

// ValidateMeetingNumber checks that s is a non-empty numeric identifier.
func ValidateMeetingNumber(s string) error {
	if s == "" {
		return NewInvalidRequest("meeting number is required")
	}
	if len(s) > MaxMeetingNumberLen {
		return NewInvalidRequest("meeting number too long (%d digits, max %d)", len(s), MaxMeetingNumberLen)
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return NewInvalidRequest("meeting number must be numeric")
		}
	}
	return nil
}

// Validate checks the request shape before dispatch.
func (r MeetingRequest) Validate() error {
	if !r.Platform.Valid() {
		return NewInvalidRequest("unsupported platform %q", r.Platform)
	}
	if strings.TrimSpace(r.RequesterID) == "" {
		return NewInvalidRequest("requester_id is required")
	}
	if !r.Role.Valid() {
		return NewInvalidRequest("unsupported role %d", int(r.Role))
	}
	if r.DurationSeconds <= 0 {
		return NewInvalidRequest("duration_seconds must be positive, got %d", r.DurationSeconds)
	}
	if r.DurationSeconds > MaxDurationSeconds {
		return NewInvalidRequest("duration_seconds must not exceed %d", MaxDurationSeconds)
	}

	switch r.Platform {
	case PlatformZoom:
		return ValidateMeetingNumber(NormalizeMeetingNumber(r.MeetingNumber))
	case PlatformGoogleMeet:
		return r.validateCalendarFields()
	}
	return nil
}

func (r MeetingRequest) validateCalendarFields() error {
	if r.DesiredStart.IsZero() {
		return NewInvalidRequest("desired_start is required for %s", PlatformGoogleMeet)
	}
	if r.TimeZone != "" {
		if _, err := time.LoadLocation(r.TimeZone); err != nil {
			return NewInvalidRequest("unknown time_zone %q", r.TimeZone)
		}
	}
	for _, attendee := range r.Attendees {
		if _, err := mail.ParseAddress(attendee); err != nil {
			return NewInvalidRequest("invalid attendee address %q", attendee)
		}
	}
	if len(r.IdempotencyKey) > maxIdempotencyKeyLen {
		return NewInvalidRequest("idempotency_key must not exceed %d characters", maxIdempotencyKeyLen)
	}
	return nil
}
