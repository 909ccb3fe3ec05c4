package booking

import (
	"errors"
	"fmt"
)

// State is a step of a single booking attempt.
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateAssigning  State = "assigning"
	StateCreating   State = "creating"
	StateSyncing    State = "syncing"
	StateSucceeded  State = "succeeded"
	StateAborted    State = "aborted"
	StateFailed     State = "failed"
)

// User-facing messages.
const (
	MsgMissingDetails = "Missing booking details. Please try again later."
	MsgInvalidTime    = "The selected time could not be read. Please pick a time again."
	MsgInFlight       = "Your booking is already being processed. Please wait a moment."
	MsgRequested      = "Your session has been requested. You’ll receive a confirmation email."
)

var (
	// ErrBookingInFlight is returned when another attempt for the same client
	// has not finished yet.
	ErrBookingInFlight = errors.New("booking: attempt already in flight")

	// ErrMissingIdentity is returned when the client id, therapist email or
	// therapist name cannot be resolved.
	ErrMissingIdentity = errors.New("booking: missing client or therapist identity")

	// ErrInvalidDatetime is returned when the local date/time has no usable date.
	ErrInvalidDatetime = errors.New("booking: invalid local datetime")
)

// AbortError ends an attempt before any backend call was issued.
type AbortError struct {
	Message string
	Err     error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("booking aborted: %v", e.Err)
}

func (e *AbortError) Unwrap() error { return e.Err }

// FailureError ends an attempt after a backend call in a hard-fail step
// (create or sync) failed. Step is where it happened.
type FailureError struct {
	Step State
	Err  error
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("booking failed while %s: %v", e.Step, e.Err)
}

func (e *FailureError) Unwrap() error { return e.Err }

// UserMessage is the alert text shown to the client.
func (e *FailureError) UserMessage() string {
	return fmt.Sprintf("We couldn't book your session: %v. Please try again.", e.Err)
}
