package solhealth

import (
	"errors"
	"fmt"
)

// Generic messages used when the backend gives no reason of its own.
const (
	MsgFetchMatches      = "Failed to fetch matches"
	MsgBookAppointment   = "Failed to book appointment"
	MsgSyncAppointment   = "Failed to sync appointment"
	MsgAssignTherapist   = "Failed to assign therapist"
	MsgFetchSlots        = "Failed to fetch available slots"
	MsgFetchConfirmation = "Failed to load booking details"
)

var (
	// ErrMissingResponseID is returned when a lookup is attempted without a
	// survey response id.
	ErrMissingResponseID = errors.New("response_id is required")
)

// APIError is a non-2xx answer from the backend. Its message is the one the
// server supplied, or a generic one for the operation.
type APIError struct {
	StatusCode int
	Path       string
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// Detail includes the status and path, for logs.
func (e *APIError) Detail() string {
	return fmt.Sprintf("%s %d: %s", e.Path, e.StatusCode, e.Message)
}

// UserMessage is the text to show a client for err: the backend's own message
// when there is one, otherwise fallback.
func UserMessage(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

// IsAPIError reports whether err is, or wraps, an *APIError.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}
