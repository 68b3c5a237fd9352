package appointments

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/medconnect/telehealth-platform/internal/identity"
	"github.com/medconnect/telehealth-platform/pkg/logging"
)

// Handler handles HTTP requests for appointments
type Handler struct {
	store  *Store
	logger *logging.Logger
}

// NewHandler creates a new appointments handler
func NewHandler(store *Store, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

// ListResponse is the response for listing appointments
type ListResponse struct {
	Appointments []*Appointment `json:"appointments"`
	Count        int            `json:"count"`
}

// List handles GET /api/appointments. Doctors see appointments where they are
// the doctor; everyone else sees their appointments as a patient.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	acct, ok := identity.AccountFromContext(r.Context())
	if !ok {
		http.Error(w, "missing account context", http.StatusUnauthorized)
		return
	}

	role := RolePatient
	if acct.Role == identity.RoleDoctor {
		role = RoleDoctor
	}
	if q := r.URL.Query().Get("role"); q == string(RolePatient) {
		role = RolePatient
	}

	appts, err := h.store.ListByParticipant(r.Context(), acct.ID, role)
	if err != nil {
		h.logger.Error("failed to list appointments", "error", err, "user_id", acct.ID)
		http.Error(w, "failed to list appointments, please try again", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, ListResponse{Appointments: appts, Count: len(appts)})
}

// Calendar handles GET /api/appointments/calendar, returning all appointments
// ordered by start ascending for the calendar view.
func (h *Handler) Calendar(w http.ResponseWriter, r *http.Request) {
	appts, err := h.store.ListAll(r.Context())
	if err != nil {
		h.logger.Error("failed to list calendar appointments", "error", err)
		http.Error(w, "failed to list appointments, please try again", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse{Appointments: appts, Count: len(appts)})
}

type updateStatusRequest struct {
	Status Status `json:"status"`
}

// UpdateStatus handles PATCH /api/appointments/{id}/status.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.store.UpdateStatus(r.Context(), id, req.Status); err != nil {
		if errors.Is(err, ErrInvalidStatus) {
			http.Error(w, "invalid status", http.StatusBadRequest)
			return
		}
		h.logger.Error("failed to update appointment status", "error", err, "appointment_id", id)
		http.Error(w, "failed to update appointment, please try again", http.StatusInternalServerError)
		return
	}

	h.logger.Info("appointment status updated", "appointment_id", id, "status", req.Status)
	w.WriteHeader(http.StatusNoContent)
}

// Cancel handles POST /api/appointments/{id}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.Cancel(r.Context(), id); err != nil {
		h.logger.Error("failed to cancel appointment", "error", err, "appointment_id", id)
		http.Error(w, "failed to cancel appointment, please try again", http.StatusInternalServerError)
		return
	}
	h.logger.Info("appointment cancelled", "appointment_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /api/appointments/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.Delete(r.Context(), id); err != nil {
		h.logger.Error("failed to delete appointment", "error", err, "appointment_id", id)
		http.Error(w, "failed to delete appointment, please try again", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
