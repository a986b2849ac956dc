package calendar

import (
	"crypto/sha256"
	"encoding/base32"
	"strings"
	"time"

	calendar "google.golang.org/api/calendar/v3"

	"github.com/teemow/joinpass/internal/session"
)

const (
	// conferenceSolutionMeet is the conference solution type for Google Meet.
	conferenceSolutionMeet = "hangoutsMeet"

	// entryPointVideo is the entry point type carrying the join URL.
	entryPointVideo = "video"

	// Conference create request status codes.
	conferenceStatusPending = "pending"
	conferenceStatusSuccess = "success"
	conferenceStatusFailure = "failure"

	defaultSummary = "Video call"
)

// LinkRequest describes the calendar event to create.
type LinkRequest struct {
	Start       time.Time
	Duration    time.Duration
	Summary     string
	Description string
	Attendees   []string
	TimeZone    string // IANA name, default UTC

	// IdempotencyKey makes retries resolve to the same event. When empty a
	// fresh request ID is generated and retries create new events.
	IdempotencyKey string
}

// LinkRequestFrom converts a validated meeting request.
func LinkRequestFrom(req session.MeetingRequest) LinkRequest {
	return LinkRequest{
		Start:          req.DesiredStart,
		Duration:       req.Duration(),
		Summary:        req.Summary,
		Description:    req.Description,
		Attendees:      req.Attendees,
		TimeZone:       req.TimeZone,
		IdempotencyKey: req.IdempotencyKey,
	}
}

// End returns the event end time.
func (r LinkRequest) End() time.Time {
	return r.Start.Add(r.Duration)
}

// eventIDEncoding is the alphabet accepted for client-chosen event IDs
// (lower-case base32hex, a-v and 0-9).
var eventIDEncoding = base32.NewEncoding("0123456789abcdefghijklmnopqrstuv").WithPadding(base32.NoPadding)

// EventIDForKey derives a stable calendar event ID from an idempotency key.
func EventIDForKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return eventIDEncoding.EncodeToString(sum[:])
}

// buildEvent converts r to the insert payload.
func buildEvent(r LinkRequest, requestID string) (*calendar.Event, error) {
	tz := r.TimeZone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, session.NewInvalidRequest("unknown time zone %q", tz)
	}

	summary := strings.TrimSpace(r.Summary)
	if summary == "" {
		summary = defaultSummary
	}

	event := &calendar.Event{
		Summary:     summary,
		Description: r.Description,
		Start: &calendar.EventDateTime{
			DateTime: r.Start.In(loc).Format(time.RFC3339),
			TimeZone: tz,
		},
		End: &calendar.EventDateTime{
			DateTime: r.End().In(loc).Format(time.RFC3339),
			TimeZone: tz,
		},
		ConferenceData: &calendar.ConferenceData{
			CreateRequest: &calendar.CreateConferenceRequest{
				RequestId: requestID,
				ConferenceSolutionKey: &calendar.ConferenceSolutionKey{
					Type: conferenceSolutionMeet,
				},
			},
		},
	}

	if r.IdempotencyKey != "" {
		event.Id = EventIDForKey(r.IdempotencyKey)
	}

	for _, email := range r.Attendees {
		event.Attendees = append(event.Attendees, &calendar.EventAttendee{
			Email: email,
		})
	}

	return event, nil
}

// joinURL returns the video entry point of event, if any.
func joinURL(event *calendar.Event) string {
	if event == nil || event.ConferenceData == nil {
		return ""
	}
	for _, ep := range event.ConferenceData.EntryPoints {
		if ep.EntryPointType == entryPointVideo && ep.Uri != "" {
			return ep.Uri
		}
	}
	return ""
}

// conferenceStatus returns the create request status code, or "" when the
// response carries none.
func conferenceStatus(event *calendar.Event) string {
	if event == nil || event.ConferenceData == nil || event.ConferenceData.CreateRequest == nil ||
		event.ConferenceData.CreateRequest.Status == nil {
		return ""
	}
	return event.ConferenceData.CreateRequest.Status.StatusCode
}

// eventEnd parses the event end, falling back to fallback.
func eventEnd(event *calendar.Event, fallback time.Time) time.Time {
	if event != nil && event.End != nil && event.End.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, event.End.DateTime); err == nil {
			return t
		}
	}
	return fallback
}

// toProvisionedLink converts a created event with a conference.
func toProvisionedLink(event *calendar.Event, requestID string, fallbackEnd time.Time) *session.ProvisionedLink {
	link := &session.ProvisionedLink{
		JoinURL:         joinURL(event),
		CalendarEventID: event.Id,
		ExpiresAt:       eventEnd(event, fallbackEnd),
		HTMLLink:        event.HtmlLink,
		RequestID:       requestID,
	}
	if event.ConferenceData != nil {
		link.ConferenceID = event.ConferenceData.ConferenceId
	}
	return link
}
