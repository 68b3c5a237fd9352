package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/medconnect/telehealth-platform/internal/appointments"
	"github.com/medconnect/telehealth-platform/internal/calendly"
	"github.com/medconnect/telehealth-platform/internal/observability/metrics"
	"github.com/medconnect/telehealth-platform/pkg/logging"
)

var tracer = otel.Tracer("github.com/medconnect/telehealth-platform/internal/booking")

// fallbackDuration is the assumed consultation length when the provider's
// times are unavailable.
const fallbackDuration = 30 * time.Minute

// ProviderClient reads scheduled-event data back from the scheduling provider.
type ProviderClient interface {
	GetScheduledEvent(ctx context.Context, eventURI string) (*calendly.Event, error)
	GetEventInvitees(ctx context.Context, eventURI string) ([]calendly.Invitee, error)
}

// AppointmentCreator persists reconciled appointments.
type AppointmentCreator interface {
	Create(ctx context.Context, appt *appointments.Appointment) (string, error)
}

const (
	// PathPrimary means provider data was fetched and used.
	PathPrimary = "primary"
	// PathFallback means provider data was unavailable and placeholder
	// times were recorded.
	PathFallback = "fallback"
)

// Reconciler turns a scheduled-event callback into a stored appointment. When
// the provider cannot be read (missing credentials, API failure, unparsable
// times) it degrades to a fallback appointment rather than losing the booking.
type Reconciler struct {
	provider ProviderClient
	store    AppointmentCreator
	metrics  *metrics.BookingMetrics
	logger   *logging.Logger
	now      func() time.Time
}

func NewReconciler(provider ProviderClient, store AppointmentCreator, m *metrics.BookingMetrics, logger *logging.Logger) *Reconciler {
	if provider == nil {
		panic("booking: nil provider client")
	}
	if store == nil {
		panic("booking: nil appointment store")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Reconciler{
		provider: provider,
		store:    store,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Reconcile builds and persists the appointment for a session's scheduled
// event. It returns the stored appointment and which path produced it.
func (r *Reconciler) Reconcile(ctx context.Context, sess *Session, eventURI string) (*appointments.Appointment, string, error) {
	ctx, span := tracer.Start(ctx, "booking.Reconcile")
	defer span.End()
	span.SetAttributes(
		attribute.String("booking.session_id", sess.ID),
		attribute.String("booking.doctor_id", sess.DoctorID),
	)

	path := PathPrimary
	appt, err := r.fromProvider(ctx, sess, eventURI)
	if err != nil {
		r.logger.Warn("provider reconciliation unavailable, recording fallback appointment",
			"session_id", sess.ID,
			"event_uri", eventURI,
			"error", err,
		)
		path = PathFallback
		appt = r.fallback(sess, eventURI)
	}
	span.SetAttributes(attribute.String("booking.path", path))

	id, err := r.store.Create(ctx, appt)
	if err != nil {
		r.metrics.ObserveReconciliation(path, "error")
		return nil, path, fmt.Errorf("booking: persist appointment: %w", err)
	}
	appt.ID = id
	r.metrics.ObserveReconciliation(path, "ok")
	r.logger.Info("booking reconciled",
		"session_id", sess.ID,
		"appointment_id", id,
		"path", path,
	)
	return appt, path, nil
}

// fromProvider fetches the event and its invitees concurrently and assembles
// the appointment from provider data.
func (r *Reconciler) fromProvider(ctx context.Context, sess *Session, eventURI string) (*appointments.Appointment, error) {
	var (
		event    *calendly.Event
		invitees []calendly.Invitee
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		started := r.now()
		ev, err := r.provider.GetScheduledEvent(gctx, eventURI)
		r.metrics.ObserveProviderLatency("get_scheduled_event", r.now().Sub(started).Seconds())
		if err != nil {
			return err
		}
		event = ev
		return nil
	})
	g.Go(func() error {
		started := r.now()
		inv, err := r.provider.GetEventInvitees(gctx, eventURI)
		r.metrics.ObserveProviderLatency("get_event_invitees", r.now().Sub(started).Seconds())
		if err != nil {
			return err
		}
		invitees = inv
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	start, err := time.Parse(time.RFC3339, event.StartTime)
	if err != nil {
		return nil, &ParseError{Field: "start_time", Value: event.StartTime, Err: err}
	}
	end, err := time.Parse(time.RFC3339, event.EndTime)
	if err != nil {
		return nil, &ParseError{Field: "end_time", Value: event.EndTime, Err: err}
	}

	invitee := selectInvitee(invitees, sess.PatientEmail, sess.PatientFirstName)
	patientName := patientDisplayName(sess)
	if invitee != nil && strings.TrimSpace(invitee.Name) != "" {
		patientName = invitee.Name
	}

	title := strings.TrimSpace(event.Name)
	if title == "" {
		title = "Consultation with " + sess.DoctorName
	}

	notes := "Scheduled via Calendly - " + specialtyOrDefault(sess) + "."
	if event.Location != nil && event.Location.JoinURL != "" {
		notes += " Video call link: " + event.Location.JoinURL
	}

	return &appointments.Appointment{
		PatientID:       sess.PatientID,
		DoctorID:        sess.DoctorID,
		PatientName:     patientName,
		DoctorName:      sess.DoctorName,
		Title:           title,
		Start:           start.UTC(),
		End:             end.UTC(),
		Status:          appointments.StatusScheduled,
		Modality:        appointments.ModalityVideo,
		Notes:           notes,
		CalendlyEventID: event.URI,
	}, nil
}

// fallback records the booking with placeholder times so it is never lost,
// even though the exact slot could not be confirmed.
func (r *Reconciler) fallback(sess *Session, eventURI string) *appointments.Appointment {
	now := r.now().UTC()
	eventID := eventURI
	if eventID == "" {
		eventID = fmt.Sprintf("calendly_fallback_%d", now.UnixMilli())
	}
	return &appointments.Appointment{
		PatientID:       sess.PatientID,
		DoctorID:        sess.DoctorID,
		PatientName:     patientDisplayName(sess),
		DoctorName:      sess.DoctorName,
		Title:           "Consultation with " + sess.DoctorName,
		Start:           now,
		End:             now.Add(fallbackDuration),
		Status:          appointments.StatusScheduled,
		Modality:        appointments.ModalityVideo,
		Notes:           "Scheduled via Calendly - " + specialtyOrDefault(sess) + ". Exact time could not be confirmed with the provider; check your confirmation email.",
		CalendlyEventID: eventID,
	}
}

// selectInvitee picks the invitee most likely to be the booking patient:
// exact email match first, then a name containing the patient's first name,
// then the first invitee on the event. The email comparison is strict; an
// invitee booked under a differently-cased address falls through to the name
// heuristic.
func selectInvitee(invitees []calendly.Invitee, email, firstName string) *calendly.Invitee {
	if len(invitees) == 0 {
		return nil
	}
	if email != "" {
		for i := range invitees {
			if invitees[i].Email == email {
				return &invitees[i]
			}
		}
	}
	first := strings.ToLower(strings.TrimSpace(firstName))
	if first != "" {
		for i := range invitees {
			if strings.Contains(strings.ToLower(invitees[i].Name), first) {
				return &invitees[i]
			}
		}
	}
	return &invitees[0]
}

func patientDisplayName(sess *Session) string {
	first := strings.TrimSpace(sess.PatientFirstName)
	if first == "" {
		first = "Patient"
	}
	return strings.TrimSpace(first + " " + strings.TrimSpace(sess.PatientLastName))
}

func specialtyOrDefault(sess *Session) string {
	if s := strings.TrimSpace(sess.DoctorSpecialty); s != "" {
		return s
	}
	return "General consultation"
}

// FailureCategory classifies a reconciliation failure for the API response.
type FailureCategory string

const (
	CategoryNotConfigured FailureCategory = "provider_not_configured"
	CategoryInvalidData   FailureCategory = "invalid_data"
	CategoryProvider      FailureCategory = "provider_error"
	CategoryGeneric       FailureCategory = "internal_error"
)

// Categorize maps an error from the booking flow to a category and a
// patient-facing message.
func Categorize(err error) (FailureCategory, string) {
	var apiErr *calendly.APIError
	var parseErr *ParseError
	switch {
	case errors.Is(err, calendly.ErrNotConfigured):
		return CategoryNotConfigured, "Scheduling is not fully configured. Your appointment was scheduled with the provider but could not be saved here. Please contact support."
	case errors.As(err, &parseErr),
		errors.Is(err, appointments.ErrInvalidTimeRange),
		errors.Is(err, appointments.ErrMissingParticipant),
		errors.Is(err, appointments.ErrInvalidStatus):
		return CategoryInvalidData, "There was an error saving your appointment. Please try booking again, or contact support if the issue persists."
	case errors.As(err, &apiErr):
		return CategoryProvider, "There was an issue connecting to the scheduling provider. Your appointment may still be scheduled; check your email and contact support."
	default:
		return CategoryGeneric, "There was an error saving your appointment. Please contact support."
	}
}
