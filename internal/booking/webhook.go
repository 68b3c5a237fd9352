package booking

import (
	"errors"
	"strings"
)

// EventScheduledTag is the provider event type the flow cares about; anything
// else is acknowledged and ignored.
const EventScheduledTag = "calendly.event_scheduled"

var (
	// ErrUnrecognizedEvent marks callbacks for event types the flow ignores.
	ErrUnrecognizedEvent = errors.New("booking: unrecognized callback event type")
	// ErrMissingSession means the callback carried no session correlation id.
	ErrMissingSession = errors.New("booking: callback missing session id")
	// ErrMissingEventURI means the scheduled event carried no resource URI,
	// so nothing can be fetched from the provider.
	ErrMissingEventURI = errors.New("booking: callback missing event uri")
)

// CallbackEnvelope is the provider webhook body. The session id rides in the
// utm_content tracking field, set when the widget URL was issued.
type CallbackEnvelope struct {
	Event   string          `json:"event"`
	Payload CallbackPayload `json:"payload"`
}

type CallbackPayload struct {
	Event struct {
		URI string `json:"uri"`
	} `json:"event"`
	Invitee struct {
		URI   string `json:"uri"`
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"invitee"`
	Tracking struct {
		UTMSource  string `json:"utm_source"`
		UTMContent string `json:"utm_content"`
	} `json:"tracking"`
}

// ScheduledNotice is a validated event_scheduled callback.
type ScheduledNotice struct {
	SessionID string
	EventURI  string
}

// Validate checks the envelope and extracts the fields reconciliation needs.
// A missing event URI is reported after the session id so the handler can
// still mark the right session failed.
func (e *CallbackEnvelope) Validate() (*ScheduledNotice, error) {
	if e.Event != EventScheduledTag {
		return nil, ErrUnrecognizedEvent
	}
	sessionID := strings.TrimSpace(e.Payload.Tracking.UTMContent)
	if sessionID == "" {
		return nil, ErrMissingSession
	}
	notice := &ScheduledNotice{
		SessionID: sessionID,
		EventURI:  strings.TrimSpace(e.Payload.Event.URI),
	}
	if notice.EventURI == "" {
		return notice, ErrMissingEventURI
	}
	return notice, nil
}
