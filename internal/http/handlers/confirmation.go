package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/solhealth/match-booking/internal/bookings"
	"github.com/solhealth/match-booking/internal/solhealth"
	"github.com/solhealth/match-booking/pkg/logging"
)

// ConfirmationFetcher loads the confirmation summary for a response.
type ConfirmationFetcher interface {
	FetchConfirmation(ctx context.Context, responseID string) (*solhealth.Confirmation, error)
}

// AttemptLookup finds the newest recorded booking attempt for a response.
type AttemptLookup interface {
	Latest(ctx context.Context, responseID string) (*bookings.Attempt, error)
}

// ConfirmationHandler serves the booking confirmation view.
type ConfirmationHandler struct {
	confirmations ConfirmationFetcher
	attempts      AttemptLookup
	logger        *logging.Logger
}

// NewConfirmationHandler creates the handler. attempts may be nil when no
// audit database is configured.
func NewConfirmationHandler(confirmations ConfirmationFetcher, attempts AttemptLookup, logger *logging.Logger) *ConfirmationHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &ConfirmationHandler{confirmations: confirmations, attempts: attempts, logger: logger}
}

type confirmationResponse struct {
	*solhealth.Confirmation
	LatestAttempt *bookings.Attempt `json:"latest_attempt,omitempty"`
}

// GetConfirmation returns who was booked with whom and when.
// GET /api/booking/confirmed?response_id=
func (h *ConfirmationHandler) GetConfirmation(w http.ResponseWriter, r *http.Request) {
	responseID := strings.TrimSpace(r.URL.Query().Get("response_id"))
	if responseID == "" {
		jsonError(w, "Missing response_id", http.StatusBadRequest)
		return
	}

	conf, err := h.confirmations.FetchConfirmation(r.Context(), responseID)
	if err != nil {
		h.logger.Warn("confirmation fetch failed", "response_id", responseID, "error", err)
		jsonError(w, solhealth.UserMessage(err, solhealth.MsgFetchConfirmation), http.StatusBadGateway)
		return
	}

	resp := confirmationResponse{Confirmation: conf}
	if h.attempts != nil {
		attempt, err := h.attempts.Latest(r.Context(), responseID)
		switch {
		case err == nil:
			resp.LatestAttempt = attempt
		case !errors.Is(err, bookings.ErrAttemptNotFound):
			h.logger.Warn("booking attempt lookup failed", "response_id", responseID, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
