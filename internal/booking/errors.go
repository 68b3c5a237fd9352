package booking

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound means no session exists for the id (never created,
	// expired, or already closed).
	ErrSessionNotFound = errors.New("booking: session not found")
	// ErrIllegalTransition means the requested state change is not allowed
	// from the session's current state.
	ErrIllegalTransition = errors.New("booking: illegal state transition")
	// ErrDoctorNotBookable means the chosen doctor has no usable scheduling
	// link or is not an active doctor.
	ErrDoctorNotBookable = errors.New("booking: doctor is not bookable")
)

// ParseError marks a provider field that could not be interpreted. It routes
// reconciliation onto the fallback path rather than failing the booking.
type ParseError struct {
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("booking: parse %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
