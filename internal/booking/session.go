// Package booking runs the scheduling flow: a patient opens a booking session
// against a doctor, schedules through the doctor's Calendly widget, and the
// provider's callback is reconciled into a stored appointment.
package booking

import "time"

// State is a booking session's position in the flow.
type State string

const (
	// StateDoctorSelected is the initial state: a doctor was chosen and the
	// session created.
	StateDoctorSelected State = "doctor_selected"
	// StateWidgetOpen means the patient was handed the scheduling widget URL.
	StateWidgetOpen State = "widget_open"
	// StateEventReceived means the provider callback arrived and
	// reconciliation is underway.
	StateEventReceived State = "event_received"
	// StateReconciled is terminal success: an appointment record exists.
	StateReconciled State = "reconciled"
	// StateFailed is terminal failure.
	StateFailed State = "failed"
)

var legalTransitions = map[State][]State{
	StateDoctorSelected: {StateWidgetOpen, StateEventReceived, StateFailed},
	StateWidgetOpen:     {StateEventReceived, StateFailed},
	StateEventReceived:  {StateReconciled, StateFailed},
}

// CanAdvanceTo reports whether next is a legal transition from s. Terminal
// states admit no transitions.
func (s State) CanAdvanceTo(next State) bool {
	for _, allowed := range legalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the session can still move.
func (s State) Terminal() bool {
	return s == StateReconciled || s == StateFailed
}

// Session is one patient's in-flight booking attempt. Patient and doctor
// details are snapshotted at creation so reconciliation never re-reads the
// directory.
type Session struct {
	ID string `json:"id"`

	PatientID        string `json:"patientId"`
	PatientEmail     string `json:"patientEmail"`
	PatientFirstName string `json:"patientFirstName"`
	PatientLastName  string `json:"patientLastName"`

	DoctorID        string `json:"doctorId"`
	DoctorName      string `json:"doctorName"`
	DoctorSpecialty string `json:"doctorSpecialty,omitempty"`
	SchedulingLink  string `json:"schedulingLink"`

	State         State  `json:"state"`
	FailureReason string `json:"failureReason,omitempty"`
	AppointmentID string `json:"appointmentId,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
