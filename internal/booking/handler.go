package booking

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/medconnect/telehealth-platform/internal/appointments"
	"github.com/medconnect/telehealth-platform/internal/doctors"
	"github.com/medconnect/telehealth-platform/internal/identity"
	"github.com/medconnect/telehealth-platform/internal/observability/metrics"
	"github.com/medconnect/telehealth-platform/pkg/logging"
)

// DoctorLookup resolves the doctor a session is opened against.
type DoctorLookup interface {
	GetByID(ctx context.Context, id string) (*doctors.Profile, error)
}

// ConfirmationNotifier sends the booking confirmation after reconciliation.
// May be nil; notification failures never fail the booking.
type ConfirmationNotifier interface {
	AppointmentBooked(ctx context.Context, appt *appointments.Appointment, recipientEmail string) error
}

// Handler exposes the booking session endpoints and the provider webhook.
type Handler struct {
	sessions      *SessionStore
	directory     DoctorLookup
	reconciler    *Reconciler
	notifier      ConfirmationNotifier
	metrics       *metrics.BookingMetrics
	logger        *logging.Logger
	allowedOrigin string
}

func NewHandler(sessions *SessionStore, directory DoctorLookup, reconciler *Reconciler, notifier ConfirmationNotifier, m *metrics.BookingMetrics, allowedOrigin string, logger *logging.Logger) *Handler {
	if sessions == nil {
		panic("booking: nil session store")
	}
	if directory == nil {
		panic("booking: nil doctor lookup")
	}
	if reconciler == nil {
		panic("booking: nil reconciler")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		sessions:      sessions,
		directory:     directory,
		reconciler:    reconciler,
		notifier:      notifier,
		metrics:       m,
		logger:        logger,
		allowedOrigin: strings.TrimRight(allowedOrigin, "/"),
	}
}

type createSessionRequest struct {
	DoctorID string `json:"doctorId"`
}

// CreateSession opens a booking session against a bookable doctor.
// POST /api/bookings/sessions
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	acct, ok := identity.AccountFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.DoctorID) == "" {
		http.Error(w, "doctorId is required", http.StatusBadRequest)
		return
	}

	profile, err := h.directory.GetByID(r.Context(), req.DoctorID)
	if errors.Is(err, doctors.ErrDoctorNotFound) {
		http.Error(w, "doctor not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("doctor lookup failed", "doctor_id", req.DoctorID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !doctors.Bookable(profile) {
		h.sessionError(w, ErrDoctorNotBookable)
		return
	}

	sess, err := h.sessions.Create(r.Context(), &Session{
		PatientID:        acct.ID,
		PatientEmail:     acct.Email,
		PatientFirstName: acct.FirstName,
		PatientLastName:  acct.LastName,
		DoctorID:         profile.ID,
		DoctorName:       profile.DisplayName(),
		DoctorSpecialty:  profile.Specialty,
		SchedulingLink:   profile.CalendlyURL,
	})
	if err != nil {
		h.logger.Error("failed to create booking session", "patient_id", acct.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// OpenWidget marks the widget open and returns the scheduling URL the client
// should embed. The session id rides along as utm_content so the provider's
// callback can be correlated back.
// POST /api/bookings/sessions/{id}/widget
func (h *Handler) OpenWidget(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.ownedSession(w, r)
	if !ok {
		return
	}
	sess, err := h.sessions.Advance(r.Context(), sess.ID, StateWidgetOpen)
	if err != nil {
		h.sessionError(w, err)
		return
	}

	widgetURL, err := url.Parse(sess.SchedulingLink)
	if err != nil {
		h.logger.Error("invalid scheduling link on session", "session_id", sess.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	q := widgetURL.Query()
	q.Set("utm_source", "telehealth")
	q.Set("utm_content", sess.ID)
	q.Set("name", strings.TrimSpace(sess.PatientFirstName+" "+sess.PatientLastName))
	q.Set("email", sess.PatientEmail)
	widgetURL.RawQuery = q.Encode()

	writeJSON(w, http.StatusOK, map[string]any{
		"session": sess,
		"url":     widgetURL.String(),
	})
}

// GetSession returns the session for status polling.
// GET /api/bookings/sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.ownedSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// CloseSession abandons the flow. Closing twice, or closing an expired
// session, succeeds.
// DELETE /api/bookings/sessions/{id}
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	acct, ok := identity.AccountFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	id := chi.URLParam(r, "id")
	sess, err := h.sessions.Get(r.Context(), id)
	if errors.Is(err, ErrSessionNotFound) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		h.logger.Error("failed to load booking session", "session_id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if sess.PatientID != acct.ID && acct.Role != identity.RoleAdmin {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if err := h.sessions.Close(r.Context(), id); err != nil {
		h.logger.Error("failed to close booking session", "session_id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ProviderCallback ingests the scheduling provider's event_scheduled webhook
// and runs reconciliation.
// POST /webhooks/calendly
func (h *Handler) ProviderCallback(w http.ResponseWriter, r *http.Request) {
	if origin := r.Header.Get("Origin"); h.allowedOrigin != "" && origin != h.allowedOrigin {
		h.metrics.ObserveWebhook("unknown", "rejected_origin")
		h.logger.Warn("rejected provider callback from unexpected origin", "origin", origin)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var envelope CallbackEnvelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		h.metrics.ObserveWebhook("unknown", "malformed")
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return
	}

	notice, err := envelope.Validate()
	switch {
	case errors.Is(err, ErrUnrecognizedEvent):
		h.metrics.ObserveWebhook(envelope.Event, "ignored")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	case errors.Is(err, ErrMissingSession):
		h.metrics.ObserveWebhook(envelope.Event, "rejected")
		http.Error(w, "missing session correlation", http.StatusBadRequest)
		return
	case errors.Is(err, ErrMissingEventURI):
		h.metrics.ObserveWebhook(envelope.Event, "failed")
		if _, failErr := h.sessions.Fail(r.Context(), notice.SessionID, "callback carried no event uri"); failErr != nil && !errors.Is(failErr, ErrSessionNotFound) {
			h.logger.Error("failed to mark session failed", "session_id", notice.SessionID, "error", failErr)
		}
		http.Error(w, "missing event uri", http.StatusUnprocessableEntity)
		return
	}

	sess, err := h.sessions.Advance(r.Context(), notice.SessionID, StateEventReceived)
	if errors.Is(err, ErrSessionNotFound) {
		// Expired or superseded session: a stale widget posting after the
		// patient moved on. Do not book.
		h.metrics.ObserveWebhook(envelope.Event, "stale")
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	if errors.Is(err, ErrIllegalTransition) {
		h.metrics.ObserveWebhook(envelope.Event, "duplicate")
		http.Error(w, "session already settled", http.StatusConflict)
		return
	}
	if err != nil {
		h.metrics.ObserveWebhook(envelope.Event, "error")
		h.logger.Error("failed to advance booking session", "session_id", notice.SessionID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	appt, _, err := h.reconciler.Reconcile(r.Context(), sess, notice.EventURI)
	if err != nil {
		category, message := Categorize(err)
		h.metrics.ObserveWebhook(envelope.Event, "failed")
		h.logger.Error("booking reconciliation failed",
			"session_id", sess.ID,
			"category", string(category),
			"error", err,
		)
		if _, failErr := h.sessions.Fail(r.Context(), sess.ID, message); failErr != nil {
			h.logger.Error("failed to mark session failed", "session_id", sess.ID, "error", failErr)
		}
		writeJSON(w, statusForCategory(category), map[string]any{
			"error": map[string]string{
				"category": string(category),
				"message":  message,
			},
		})
		return
	}

	if _, err := h.sessions.Complete(r.Context(), sess.ID, appt.ID); err != nil {
		h.logger.Error("failed to complete booking session", "session_id", sess.ID, "error", err)
	}
	h.metrics.ObserveWebhook(envelope.Event, "accepted")

	if h.notifier != nil {
		if err := h.notifier.AppointmentBooked(r.Context(), appt, sess.PatientEmail); err != nil {
			h.logger.Error("failed to queue booking confirmation", "appointment_id", appt.ID, "error", err)
		}
	}

	writeJSON(w, http.StatusCreated, appt)
}

// ownedSession loads the session in the path and checks the caller owns it
// (admins may read any session).
func (h *Handler) ownedSession(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	acct, ok := identity.AccountFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return nil, false
	}
	id := chi.URLParam(r, "id")
	sess, err := h.sessions.Get(r.Context(), id)
	if errors.Is(err, ErrSessionNotFound) {
		http.Error(w, "session not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		h.logger.Error("failed to load booking session", "session_id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return nil, false
	}
	if sess.PatientID != acct.ID && acct.Role != identity.RoleAdmin {
		http.Error(w, "forbidden", http.StatusForbidden)
		return nil, false
	}
	return sess, true
}

func (h *Handler) sessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		http.Error(w, "session not found", http.StatusNotFound)
	case errors.Is(err, ErrIllegalTransition):
		http.Error(w, "session is not in a state that allows this", http.StatusConflict)
	case errors.Is(err, ErrDoctorNotBookable):
		http.Error(w, "this doctor has not set up online booking yet", http.StatusUnprocessableEntity)
	default:
		h.logger.Error("booking session operation failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func statusForCategory(c FailureCategory) int {
	switch c {
	case CategoryNotConfigured:
		return http.StatusServiceUnavailable
	case CategoryInvalidData:
		return http.StatusUnprocessableEntity
	case CategoryProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
