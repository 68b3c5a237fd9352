// Package calendly contains a thin client for the Calendly v2 API, covering
// the scheduled-event and invitee reads the booking flow needs.
// https://developer.calendly.com/api-docs
package calendly

// Event is a scheduled event resource. Start/end are kept as the provider's
// raw ISO-8601 strings; parsing (and parse failures) belong to the caller.
type Event struct {
	URI       string    `json:"uri"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	EventType string    `json:"event_type"`
	Location  *Location `json:"location,omitempty"`
	CreatedAt string    `json:"created_at"`
	UpdatedAt string    `json:"updated_at"`
}

// Location describes where the event happens. JoinURL is set for video
// conferencing locations.
type Location struct {
	Type     string `json:"type"`
	Location string `json:"location,omitempty"`
	JoinURL  string `json:"join_url,omitempty"`
}

// Invitee is a person booked onto an event.
type Invitee struct {
	URI       string `json:"uri"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	Timezone  string `json:"timezone"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type resourceEnvelope struct {
	Resource Event `json:"resource"`
}

type inviteeEnvelope struct {
	Resource Invitee `json:"resource"`
}

type collectionEnvelope struct {
	Collection []Invitee `json:"collection"`
}
