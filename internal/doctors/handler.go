package doctors

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/medconnect/telehealth-platform/internal/identity"
	"github.com/medconnect/telehealth-platform/pkg/logging"
)

// Handler handles HTTP requests for the doctor directory
type Handler struct {
	directory *Directory
	avatars   *AvatarStore
	logger    *logging.Logger
}

// NewHandler creates a new doctors handler. The avatar store is optional;
// when nil, avatar uploads are disabled.
func NewHandler(directory *Directory, avatars *AvatarStore, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{directory: directory, avatars: avatars, logger: logger}
}

// ListResponse is the response for listing doctors. Bookable is computed per
// profile so the client can grey out doctors without a scheduling link.
type ListResponse struct {
	Doctors []doctorView `json:"doctors"`
	Count   int          `json:"count"`
}

type doctorView struct {
	*Profile
	Bookable bool `json:"bookable"`
}

// ListActive handles GET /api/doctors.
func (h *Handler) ListActive(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.directory.ListActive(r.Context())
	if err != nil {
		h.logger.Error("failed to list doctors", "error", err)
		http.Error(w, "failed to list doctors, please try again", http.StatusInternalServerError)
		return
	}

	views := make([]doctorView, 0, len(profiles))
	for _, p := range profiles {
		views = append(views, doctorView{Profile: p, Bookable: Bookable(p)})
	}
	writeJSON(w, http.StatusOK, ListResponse{Doctors: views, Count: len(views)})
}

// Get handles GET /api/doctors/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	profile, err := h.directory.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			http.Error(w, "doctor not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to fetch doctor", "error", err, "doctor_id", id)
		http.Error(w, "failed to fetch doctor, please try again", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, doctorView{Profile: profile, Bookable: Bookable(profile)})
}

type updateRequest struct {
	FirstName     *string `json:"firstName"`
	LastName      *string `json:"lastName"`
	Specialty     *string `json:"specialty"`
	LicenseNumber *string `json:"licenseNumber"`
	Experience    *string `json:"experience"`
	Education     *string `json:"education"`
	Bio           *string `json:"bio"`
	CalendlyURL   *string `json:"calendlyUrl"`
}

// Update handles PATCH /api/doctors/{id}. Doctors may only edit their own
// profile; admins may edit anyone's.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	acct, ok := identity.AccountFromContext(r.Context())
	if !ok {
		http.Error(w, "missing account context", http.StatusUnauthorized)
		return
	}
	if acct.ID != id && acct.Role != identity.RoleAdmin {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	err := h.directory.Update(r.Context(), id, UpdateParams{
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Specialty:     req.Specialty,
		LicenseNumber: req.LicenseNumber,
		Experience:    req.Experience,
		Education:     req.Education,
		Bio:           req.Bio,
		CalendlyURL:   req.CalendlyURL,
	})
	if err != nil {
		if errors.Is(err, ErrNoFields) {
			http.Error(w, "no fields to update", http.StatusBadRequest)
			return
		}
		h.logger.Error("failed to update doctor profile", "error", err, "doctor_id", id)
		http.Error(w, "failed to update profile, please try again", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Apply handles POST /api/doctors/apply, promoting the caller's account to a
// pending doctor.
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	acct, ok := identity.AccountFromContext(r.Context())
	if !ok {
		http.Error(w, "missing account context", http.StatusUnauthorized)
		return
	}

	if err := h.directory.Apply(r.Context(), acct.ID); err != nil {
		h.logger.Error("failed to submit doctor application", "error", err, "user_id", acct.ID)
		http.Error(w, "failed to submit application, please try again", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": string(StatusPending)})
}

type avatarUploadRequest struct {
	ContentType string `json:"contentType"`
}

// AvatarUploadURL handles POST /api/doctors/{id}/avatar-upload. It returns a
// presigned S3 PUT and records the public URL on the profile.
func (h *Handler) AvatarUploadURL(w http.ResponseWriter, r *http.Request) {
	if h.avatars == nil {
		http.Error(w, "avatar uploads disabled", http.StatusServiceUnavailable)
		return
	}
	id := chi.URLParam(r, "id")

	acct, ok := identity.AccountFromContext(r.Context())
	if !ok {
		http.Error(w, "missing account context", http.StatusUnauthorized)
		return
	}
	if acct.ID != id && acct.Role != identity.RoleAdmin {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var req avatarUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	upload, err := h.avatars.UploadURL(r.Context(), id, req.ContentType)
	if err != nil {
		h.logger.Error("failed to presign avatar upload", "error", err, "doctor_id", id)
		http.Error(w, "failed to prepare upload, please try again", http.StatusInternalServerError)
		return
	}

	if err := h.directory.Update(r.Context(), id, UpdateParams{ProfileImageURL: &upload.PublicURL}); err != nil {
		h.logger.Error("failed to record avatar url", "error", err, "doctor_id", id)
		http.Error(w, "failed to record avatar, please try again", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, upload)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
