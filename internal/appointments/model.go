package appointments

import "time"

// Status is the lifecycle state of an appointment. No transition rules are
// enforced; any status may be set by any caller.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// ValidStatus reports whether s is a known appointment status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Modality describes how the consultation is held.
type Modality string

const (
	ModalityVideo    Modality = "video"
	ModalityChat     Modality = "chat"
	ModalityInPerson Modality = "in-person"
)

// ParticipantRole selects which side of an appointment a listing filters on.
type ParticipantRole string

const (
	RolePatient ParticipantRole = "patient"
	RoleDoctor  ParticipantRole = "doctor"
)

// Appointment is a booked consultation between a patient and a doctor.
type Appointment struct {
	ID              string    `json:"id"`
	PatientID       string    `json:"patientId"`
	DoctorID        string    `json:"doctorId"`
	PatientName     string    `json:"patientName"`
	DoctorName      string    `json:"doctorName"`
	Title           string    `json:"title"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	Status          Status    `json:"status"`
	Modality        Modality  `json:"modality"`
	Notes           string    `json:"notes,omitempty"`
	CalendlyEventID string    `json:"calendlyEventId,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}
