package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medconnect/telehealth-platform/internal/appointments"
	"github.com/medconnect/telehealth-platform/internal/calendly"
	"github.com/medconnect/telehealth-platform/pkg/logging"
)

type stubProvider struct {
	event       *calendly.Event
	eventErr    error
	invitees    []calendly.Invitee
	inviteesErr error
}

func (s *stubProvider) GetScheduledEvent(ctx context.Context, uri string) (*calendly.Event, error) {
	return s.event, s.eventErr
}

func (s *stubProvider) GetEventInvitees(ctx context.Context, uri string) ([]calendly.Invitee, error) {
	return s.invitees, s.inviteesErr
}

type stubCreator struct {
	created *appointments.Appointment
	id      string
	err     error
}

func (s *stubCreator) Create(ctx context.Context, appt *appointments.Appointment) (string, error) {
	s.created = appt
	if s.err != nil {
		return "", s.err
	}
	if s.id == "" {
		s.id = "appt-1"
	}
	appt.ID = s.id
	return s.id, nil
}

func reconcilerSession() *Session {
	return &Session{
		ID:               "sess-1",
		PatientID:        "pat-1",
		PatientEmail:     "pat@example.com",
		PatientFirstName: "Pat",
		PatientLastName:  "Smith",
		DoctorID:         "doc-1",
		DoctorName:       "Dr. Maria Vega",
		DoctorSpecialty:  "Cardiology",
		State:            StateEventReceived,
	}
}

func newTestReconciler(provider ProviderClient, store AppointmentCreator) *Reconciler {
	r := NewReconciler(provider, store, nil, logging.Default())
	r.now = func() time.Time { return time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC) }
	return r
}

func TestReconcile_PrimaryPathUsesProviderData(t *testing.T) {
	provider := &stubProvider{
		event: &calendly.Event{
			URI:       "https://api.calendly.com/scheduled_events/ev-1",
			Name:      "Cardiology Consult",
			StartTime: "2024-06-03T14:00:00Z",
			EndTime:   "2024-06-03T14:30:00Z",
			Location:  &calendly.Location{Type: "zoom", JoinURL: "https://zoom.example/j/1"},
		},
		invitees: []calendly.Invitee{
			{Email: "other@example.com", Name: "Other Person"},
			{Email: "pat@example.com", Name: "Patricia Smith"},
		},
	}
	creator := &stubCreator{}
	r := newTestReconciler(provider, creator)

	appt, path, err := r.Reconcile(context.Background(), reconcilerSession(), "https://api.calendly.com/scheduled_events/ev-1")
	require.NoError(t, err)
	assert.Equal(t, PathPrimary, path)
	assert.Equal(t, "Cardiology Consult", appt.Title)
	assert.Equal(t, time.Date(2024, 6, 3, 14, 0, 0, 0, time.UTC), appt.Start)
	assert.Equal(t, time.Date(2024, 6, 3, 14, 30, 0, 0, time.UTC), appt.End)
	// Email match wins; name comes from the invitee.
	assert.Equal(t, "Patricia Smith", appt.PatientName)
	assert.Equal(t, "https://api.calendly.com/scheduled_events/ev-1", appt.CalendlyEventID)
	assert.Contains(t, appt.Notes, "Cardiology")
	assert.Contains(t, appt.Notes, "https://zoom.example/j/1")
	assert.Equal(t, appointments.StatusScheduled, appt.Status)
	require.NotNil(t, creator.created)
}

func TestReconcile_ProviderErrorFallsBack(t *testing.T) {
	tests := []struct {
		name     string
		provider *stubProvider
	}{
		{
			name:     "credentials not configured",
			provider: &stubProvider{eventErr: calendly.ErrNotConfigured, inviteesErr: calendly.ErrNotConfigured},
		},
		{
			name:     "provider api failure",
			provider: &stubProvider{eventErr: &calendly.APIError{StatusCode: 502, Body: "bad gateway"}},
		},
		{
			name: "unparsable start time",
			provider: &stubProvider{
				event: &calendly.Event{StartTime: "not-a-time", EndTime: "2024-06-03T14:30:00Z"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creator := &stubCreator{}
			r := newTestReconciler(tt.provider, creator)

			appt, path, err := r.Reconcile(context.Background(), reconcilerSession(), "https://api.calendly.com/scheduled_events/ev-1")
			require.NoError(t, err)
			assert.Equal(t, PathFallback, path)
			// Placeholder slot is exactly the assumed consultation length.
			assert.Equal(t, fallbackDuration, appt.End.Sub(appt.Start))
			assert.Equal(t, "https://api.calendly.com/scheduled_events/ev-1", appt.CalendlyEventID)
			assert.Equal(t, "Pat Smith", appt.PatientName)
			assert.Contains(t, appt.Notes, "could not be confirmed")
		})
	}
}

func TestReconcile_FallbackWithoutEventURISynthesizesID(t *testing.T) {
	creator := &stubCreator{}
	r := newTestReconciler(&stubProvider{eventErr: calendly.ErrNotConfigured}, creator)

	appt, path, err := r.Reconcile(context.Background(), reconcilerSession(), "")
	require.NoError(t, err)
	assert.Equal(t, PathFallback, path)
	assert.True(t, strings.HasPrefix(appt.CalendlyEventID, "calendly_fallback_"), "id = %s", appt.CalendlyEventID)
}

func TestReconcile_PersistFailurePropagates(t *testing.T) {
	creator := &stubCreator{err: fmt.Errorf("appointments: put appointment: %w", errors.New("throttled"))}
	r := newTestReconciler(&stubProvider{eventErr: calendly.ErrNotConfigured}, creator)

	_, _, err := r.Reconcile(context.Background(), reconcilerSession(), "")
	require.Error(t, err)
}

func TestSelectInvitee_Precedence(t *testing.T) {
	invitees := []calendly.Invitee{
		{Email: "first@example.com", Name: "First Person"},
		{Email: "named@example.com", Name: "Pat Jones"},
		{Email: "pat@example.com", Name: "Exact Match"},
	}

	got := selectInvitee(invitees, "pat@example.com", "Pat")
	require.NotNil(t, got)
	assert.Equal(t, "Exact Match", got.Name, "exact email match takes precedence")

	got = selectInvitee(invitees, "missing@example.com", "Pat")
	require.NotNil(t, got)
	assert.Equal(t, "Pat Jones", got.Name, "first-name match is second choice")

	got = selectInvitee(invitees, "PAT@example.com", "Pat")
	require.NotNil(t, got)
	assert.Equal(t, "Pat Jones", got.Name, "email comparison is strict, so casing differences fall to the name heuristic")

	got = selectInvitee(invitees, "missing@example.com", "Zelda")
	require.NotNil(t, got)
	assert.Equal(t, "First Person", got.Name, "first invitee is the last resort")

	assert.Nil(t, selectInvitee(nil, "pat@example.com", "Pat"))
}

func TestReconcile_DefaultsWhenEventSparse(t *testing.T) {
	provider := &stubProvider{
		event: &calendly.Event{
			URI:       "https://api.calendly.com/scheduled_events/ev-2",
			StartTime: "2024-06-03T14:00:00Z",
			EndTime:   "2024-06-03T14:30:00Z",
		},
	}
	creator := &stubCreator{}
	sess := reconcilerSession()
	sess.DoctorSpecialty = ""
	r := newTestReconciler(provider, creator)

	appt, _, err := r.Reconcile(context.Background(), sess, "https://api.calendly.com/scheduled_events/ev-2")
	require.NoError(t, err)
	assert.Equal(t, "Consultation with Dr. Maria Vega", appt.Title)
	assert.Contains(t, appt.Notes, "General consultation")
	// No invitees on the event: the session snapshot names the patient.
	assert.Equal(t, "Pat Smith", appt.PatientName)
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureCategory
	}{
		{"not configured", fmt.Errorf("wrap: %w", calendly.ErrNotConfigured), CategoryNotConfigured},
		{"parse error", &ParseError{Field: "start_time", Value: "x", Err: errors.New("bad")}, CategoryInvalidData},
		{"invalid range", fmt.Errorf("booking: persist appointment: %w", appointments.ErrInvalidTimeRange), CategoryInvalidData},
		{"provider api", fmt.Errorf("wrap: %w", &calendly.APIError{StatusCode: 500}), CategoryProvider},
		{"anything else", errors.New("boom"), CategoryGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			category, message := Categorize(tt.err)
			assert.Equal(t, tt.want, category)
			assert.NotEmpty(t, message)
		})
	}
}
