package doctors

import "errors"

var (
	// ErrDoctorNotFound is returned when the requested profile does not exist.
	ErrDoctorNotFound = errors.New("doctors: doctor not found")

	// ErrNoFields is returned when an update contains nothing to change.
	ErrNoFields = errors.New("doctors: no fields to update")
)
