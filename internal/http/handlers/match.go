package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/solhealth/match-booking/internal/booking"
	"github.com/solhealth/match-booking/internal/matchcache"
	"github.com/solhealth/match-booking/internal/media"
	"github.com/solhealth/match-booking/internal/observability/metrics"
	"github.com/solhealth/match-booking/internal/solhealth"
	"github.com/solhealth/match-booking/pkg/logging"
)

// MatchFetcher loads matches for a survey response.
type MatchFetcher interface {
	FetchMatches(ctx context.Context, responseID string, opts solhealth.MatchOptions) (*solhealth.MatchResult, error)
}

// Booker runs booking attempts.
type Booker interface {
	Book(ctx context.Context, a booking.Attempt) (*booking.Outcome, error)
}

// MatchHandlerConfig wires a MatchHandler. Cache, Media and Metrics are
// optional.
type MatchHandlerConfig struct {
	Matches MatchFetcher
	Booker  Booker
	Cache   matchcache.Store
	Media   *media.Resolver
	Metrics *metrics.BookingMetrics
	Logger  *logging.Logger
	Limit   int
	// DefaultTimezone applies when neither the browser nor the client's
	// state yields a zone.
	DefaultTimezone string
}

// MatchHandler serves the match page: loading matches and booking one.
type MatchHandler struct {
	matches   MatchFetcher
	booker    Booker
	cache     matchcache.Store
	media     *media.Resolver
	metrics   *metrics.BookingMetrics
	logger    *logging.Logger
	limit     int
	defaultTZ string
}

// NewMatchHandler creates a match page handler.
func NewMatchHandler(cfg MatchHandlerConfig) *MatchHandler {
	if cfg.Matches == nil || cfg.Booker == nil {
		panic("handlers: match fetcher and booker required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &MatchHandler{
		matches:   cfg.Matches,
		booker:    cfg.Booker,
		cache:     cfg.Cache,
		media:     cfg.Media,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		limit:     cfg.Limit,
		defaultTZ: cfg.DefaultTimezone,
	}
}

type matchResponse struct {
	Client     *solhealth.ClientRecord    `json:"client"`
	Therapists []solhealth.TherapistMatch `json:"therapists"`
}

// GetMatches returns the client and ranked therapists for a response id.
// GET /api/match?response_id=&limit=&exclude_therapist_id=
func (h *MatchHandler) GetMatches(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	responseID := strings.TrimSpace(q.Get("response_id"))
	if responseID == "" {
		jsonError(w, "Missing response_id", http.StatusBadRequest)
		return
	}
	opts := solhealth.MatchOptions{Limit: h.limit}
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			opts.Limit = n
		}
	}
	for _, id := range q["exclude_therapist_id"] {
		if id = strings.TrimSpace(id); id != "" {
			opts.ExcludeTherapistIDs = append(opts.ExcludeTherapistIDs, id)
		}
	}

	result, err := h.fetch(r.Context(), responseID, opts)
	if err != nil {
		jsonError(w, solhealth.UserMessage(err, solhealth.MsgFetchMatches), http.StatusBadGateway)
		return
	}

	// The cache keeps raw links; media URLs are resolved on every response.
	resp := matchResponse{Client: result.Client, Therapists: append([]solhealth.TherapistMatch(nil), result.Therapists...)}
	if resp.Therapists == nil {
		resp.Therapists = []solhealth.TherapistMatch{}
	}
	h.media.ApplyAll(r.Context(), &solhealth.MatchResult{Therapists: resp.Therapists})
	writeJSON(w, http.StatusOK, resp)
}

func (h *MatchHandler) fetch(ctx context.Context, responseID string, opts solhealth.MatchOptions) (*solhealth.MatchResult, error) {
	result, err := h.matches.FetchMatches(ctx, responseID, opts)
	h.metrics.ObserveMatchFetch("backend", err != nil)
	if err != nil {
		h.logger.Warn("match fetch failed", "response_id", responseID, "error", err)
		return nil, err
	}
	if h.cache != nil {
		if err := h.cache.Put(ctx, responseID, result); err != nil {
			h.logger.Warn("match cache write failed", "response_id", responseID, "error", err)
		}
	}
	return result, nil
}

// load prefers the page view's cached matches and refetches on a miss.
func (h *MatchHandler) load(ctx context.Context, responseID string) (*solhealth.MatchResult, error) {
	if h.cache != nil {
		cached, err := h.cache.Get(ctx, responseID)
		switch {
		case err != nil:
			h.logger.Warn("match cache read failed", "response_id", responseID, "error", err)
		case cached != nil:
			h.metrics.ObserveMatchFetch("cache", false)
			return cached, nil
		}
	}
	return h.fetch(ctx, responseID, solhealth.MatchOptions{Limit: h.limit})
}

type bookRequest struct {
	ResponseID    string `json:"response_id"`
	TherapistID   string `json:"therapist_id"`
	DatetimeLocal string `json:"datetime_local"`
	Timezone      string `json:"timezone"`
}

type bookResponse struct {
	State         booking.State `json:"state"`
	Message       string        `json:"message,omitempty"`
	RedirectURL   string        `json:"redirect_url,omitempty"`
	Datetime      string        `json:"datetime,omitempty"`
	AppointmentID string        `json:"appointment_id,omitempty"`
	AttemptID     string        `json:"attempt_id,omitempty"`
}

// BookAppointment books the chosen therapist at the chosen local time.
// POST /api/match/book
func (h *MatchHandler) BookAppointment(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.ResponseID = strings.TrimSpace(req.ResponseID)
	req.TherapistID = strings.TrimSpace(req.TherapistID)

	attempt := booking.Attempt{LocalDatetime: req.DatetimeLocal}
	if req.ResponseID != "" {
		result, err := h.load(r.Context(), req.ResponseID)
		if err != nil {
			writeJSON(w, http.StatusBadGateway, bookResponse{
				State:   booking.StateFailed,
				Message: solhealth.UserMessage(err, solhealth.MsgFetchMatches),
			})
			return
		}
		attempt.Client = result.Client
		if match, ok := result.FindTherapist(req.TherapistID); ok {
			attempt.Therapist = match.Therapist
		}
	}
	var state string
	if attempt.Client != nil {
		state = attempt.Client.State
	}
	attempt.Location = booking.ResolveLocation(req.Timezone, state, h.defaultLocation())

	// Missing client or therapist is rejected by the orchestrator before any
	// backend call.
	out, err := h.booker.Book(r.Context(), attempt)
	h.writeOutcome(w, out, err)
}

func (h *MatchHandler) defaultLocation() *time.Location {
	return booking.ResolveLocation(h.defaultTZ, "", nil)
}

func (h *MatchHandler) writeOutcome(w http.ResponseWriter, out *booking.Outcome, err error) {
	resp := bookResponse{}
	if out != nil {
		resp = bookResponse{
			State:         out.State,
			Message:       out.Message,
			RedirectURL:   out.RedirectURL,
			Datetime:      out.Datetime,
			AppointmentID: out.Appointment.ID(),
			AttemptID:     out.AttemptID.String(),
		}
	}

	var (
		abortErr   *booking.AbortError
		failureErr *booking.FailureError
	)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, booking.ErrBookingInFlight):
		writeJSON(w, http.StatusConflict, resp)
	case errors.As(err, &abortErr):
		writeJSON(w, http.StatusUnprocessableEntity, resp)
	case errors.As(err, &failureErr):
		writeJSON(w, http.StatusBadGateway, resp)
	default:
		h.logger.Error("unexpected booking error", "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
	}
}
