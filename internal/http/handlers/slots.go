package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/solhealth/match-booking/internal/booking"
	"github.com/solhealth/match-booking/internal/solhealth"
	"github.com/solhealth/match-booking/pkg/logging"
)

// SlotsFetcher loads a therapist's open slots.
type SlotsFetcher interface {
	FetchSlots(ctx context.Context, query solhealth.SlotsQuery) ([]string, error)
}

// SlotsHandler serves therapist availability for the time picker.
type SlotsHandler struct {
	slots     SlotsFetcher
	defaultTZ string
	logger    *logging.Logger
}

func NewSlotsHandler(slots SlotsFetcher, defaultTZ string, logger *logging.Logger) *SlotsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &SlotsHandler{slots: slots, defaultTZ: defaultTZ, logger: logger}
}

type slotsResponse struct {
	AvailableSlots []string `json:"available_slots"`
	Timezone       string   `json:"timezone"`
}

// GetSlots returns open slots and the zone they should be shown in.
// GET /api/therapists/slots?email=&state=&response_id=
func (h *SlotsHandler) GetSlots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := solhealth.SlotsQuery{
		Email:      strings.TrimSpace(q.Get("email")),
		State:      strings.ToUpper(strings.TrimSpace(q.Get("state"))),
		ResponseID: strings.TrimSpace(q.Get("response_id")),
	}
	if query.Email == "" {
		jsonError(w, "Missing email", http.StatusBadRequest)
		return
	}

	slots, err := h.slots.FetchSlots(r.Context(), query)
	if err != nil {
		h.logger.Warn("slots fetch failed", "therapist_email", query.Email, "error", err)
		jsonError(w, solhealth.UserMessage(err, solhealth.MsgFetchSlots), http.StatusBadGateway)
		return
	}
	if slots == nil {
		slots = []string{}
	}
	writeJSON(w, http.StatusOK, slotsResponse{
		AvailableSlots: slots,
		Timezone:       booking.ResolveLocation("", query.State, booking.ResolveLocation(h.defaultTZ, "", nil)).String(),
	})
}
