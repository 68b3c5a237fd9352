package appointments

import "errors"

var (
	// ErrAppointmentNotFound is returned when the requested appointment does not exist.
	ErrAppointmentNotFound = errors.New("appointments: appointment not found")

	// ErrInvalidTimeRange is returned when an appointment's end is not after its start.
	ErrInvalidTimeRange = errors.New("appointments: end must be after start")

	// ErrMissingParticipant is returned when patient or doctor identifiers are absent.
	ErrMissingParticipant = errors.New("appointments: patient and doctor ids are required")

	// ErrInvalidStatus is returned for a status outside the known set.
	ErrInvalidStatus = errors.New("appointments: invalid status")
)
