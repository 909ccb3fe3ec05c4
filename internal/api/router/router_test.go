package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/solhealth/match-booking/internal/booking"
	"github.com/solhealth/match-booking/internal/http/handlers"
	httpmiddleware "github.com/solhealth/match-booking/internal/http/middleware"
	"github.com/solhealth/match-booking/internal/solhealth"
	"github.com/solhealth/match-booking/pkg/logging"
)

type stubMatches struct{}

func (stubMatches) FetchMatches(_ context.Context, responseID string, _ solhealth.MatchOptions) (*solhealth.MatchResult, error) {
	return &solhealth.MatchResult{
		Client: &solhealth.ClientRecord{ResponseID: responseID},
	}, nil
}

type stubBooker struct{ calls int }

func (b *stubBooker) Book(context.Context, booking.Attempt) (*booking.Outcome, error) {
	b.calls++
	return &booking.Outcome{State: booking.StateSucceeded}, nil
}

type stubSlots struct{}

func (stubSlots) FetchSlots(context.Context, solhealth.SlotsQuery) ([]string, error) {
	return []string{"2024-03-15T14:00:00"}, nil
}

func newTestRouter(t *testing.T, limiter *httpmiddleware.RateLimiter) (http.Handler, *stubBooker) {
	t.Helper()

	logger := logging.Default()
	booker := &stubBooker{}
	cfg := &Config{
		Logger:             logger,
		MatchHandler:       handlers.NewMatchHandler(handlers.MatchHandlerConfig{Matches: stubMatches{}, Booker: booker, Logger: logger}),
		SlotsHandler:       handlers.NewSlotsHandler(stubSlots{}, "America/New_York", logger),
		MetricsHandler:     http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("# metrics")) }),
		CORSAllowedOrigins: []string{"https://app.solhealth.co"},
		BookingLimiter:     limiter,
	}
	return New(cfg), booker
}

func TestRouterHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}

	var resp map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}

	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %v", resp["status"])
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK || rr.Body.String() != "# metrics" {
		t.Fatalf("unexpected metrics response: %d %q", rr.Code, rr.Body.String())
	}
}

func TestRouterMatchRoutes(t *testing.T) {
	router, booker := newTestRouter(t, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/match?response_id=resp-1", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from match, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	body := strings.NewReader(`{"response_id":"resp-1","therapist_id":"t1","datetime_local":"2024-03-15T14:30:00"}`)
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/match/book", body))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from book, got %d: %s", rr.Code, rr.Body.String())
	}
	if booker.calls != 1 {
		t.Fatalf("expected one booking call, got %d", booker.calls)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/match/book", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET book, got %d", rr.Code)
	}
}

func TestRouterSlotsRoute(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/therapists/slots?email=dana@solhealth.co", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "2024-03-15T14:00:00") {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
}

func TestRouterUnconfiguredRouteIs404(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/booking/confirmed?response_id=x", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without a confirmation handler, got %d", rr.Code)
	}
}

func TestRouterBookingRateLimit(t *testing.T) {
	router, booker := newTestRouter(t, httpmiddleware.NewRateLimiter(0.01, 1))

	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/match/book", strings.NewReader(`{"response_id":"resp-1","therapist_id":"t1","datetime_local":"2024-03-15T14:30:00"}`))
		req.RemoteAddr = "203.0.113.7:5555"
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	if rr := post(); rr.Code != http.StatusOK {
		t.Fatalf("first booking should pass, got %d", rr.Code)
	}
	rr := post()
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	if booker.calls != 1 {
		t.Fatalf("throttled request reached the booker: %d calls", booker.calls)
	}

	// Reads are not throttled.
	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/match?response_id=resp-1", nil)
	req.RemoteAddr = "203.0.113.7:5555"
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for reads, got %d", rr.Code)
	}
}

func TestRouterCORSPreflight(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/match/book", nil)
	req.Header.Set("Origin", "https://app.solhealth.co")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://app.solhealth.co" {
		t.Fatalf("unexpected allow origin %q", got)
	}
}
