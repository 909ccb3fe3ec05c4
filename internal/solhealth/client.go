package solhealth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/solhealth/match-booking/pkg/logging"
)

const (
	defaultTimeout      = 10 * time.Second
	defaultMatchTimeout = 30 * time.Second
	defaultMatchLimit   = 50
)

var tracer = otel.Tracer("solhealth.internal.solhealth")

// Client wraps the match and scheduling backend's REST API.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	matchTimeout time.Duration
	logger       *logging.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout applied by the HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithMatchTimeout sets the deadline for a match fetch.
func WithMatchTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.matchTimeout = d
		}
	}
}

// NewClient constructs a backend client rooted at baseURL.
func NewClient(baseURL string, logger *logging.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	c := &Client{
		httpClient:   &http.Client{Timeout: defaultTimeout},
		baseURL:      strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		matchTimeout: defaultMatchTimeout,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchMatches loads the client record and ranked therapist matches for a
// survey response. It is a single attempt bounded by the match timeout.
func (c *Client) FetchMatches(ctx context.Context, responseID string, opts MatchOptions) (*MatchResult, error) {
	if strings.TrimSpace(responseID) == "" {
		return nil, ErrMissingResponseID
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultMatchLimit
	}

	ctx, cancel := context.WithTimeout(ctx, c.matchTimeout)
	defer cancel()
	ctx, span := tracer.Start(ctx, "solhealth.fetch_matches")
	defer span.End()
	span.SetAttributes(
		attribute.String("solhealth.response_id", responseID),
		attribute.Int("solhealth.limit", limit),
		attribute.Int("solhealth.excluded", len(opts.ExcludeTherapistIDs)),
	)

	q := url.Values{}
	q.Set("response_id", responseID)
	q.Set("limit", itoa(limit))
	for _, id := range opts.ExcludeTherapistIDs {
		q.Add("exclude_therapist_id", id)
	}

	var payload matchPayload
	if err := c.doJSON(ctx, call{
		op:       "fetch matches",
		method:   http.MethodGet,
		path:     "/therapists/match",
		query:    q,
		out:      &payload,
		fallback: MsgFetchMatches,
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	result := normalizeMatches(payload)
	span.SetAttributes(attribute.Int("solhealth.matches", len(result.Therapists)))
	return result, nil
}

// AssignTherapist tells the backend a therapist was tentatively chosen for a
// response. Callers treat failure as non-fatal.
func (c *Client) AssignTherapist(ctx context.Context, responseID, therapistEmail string) error {
	body := map[string]string{
		"response_id":     responseID,
		"therapist_email": therapistEmail,
	}
	return c.doJSON(ctx, call{
		op:       "assign therapist",
		method:   http.MethodPost,
		path:     "/therapists/assign",
		body:     body,
		fallback: MsgAssignTherapist,
	})
}

// CreateAppointment issues one create request and returns the scheduler's
// appointment object. It is never retried.
func (c *Client) CreateAppointment(ctx context.Context, req AppointmentRequest) (Appointment, error) {
	headers := http.Header{}
	if req.IdempotencyKey != "" {
		headers.Set("Idempotency-Key", req.IdempotencyKey)
	}
	var appt Appointment
	if err := c.doJSON(ctx, call{
		op:       "create appointment",
		method:   http.MethodPost,
		path:     "/appointments",
		headers:  headers,
		body:     req.body(),
		out:      &appt,
		fallback: MsgBookAppointment,
	}); err != nil {
		return nil, err
	}
	if appt == nil {
		appt = Appointment{}
	}
	return appt, nil
}

// SyncAppointment pushes a created appointment, tagged with the client's
// state, back into the client record store.
func (c *Client) SyncAppointment(ctx context.Context, appt Appointment, state string) error {
	body, err := appt.withState(state)
	if err != nil {
		return fmt.Errorf("sync appointment: encode state: %w", err)
	}
	return c.doJSON(ctx, call{
		op:       "sync appointment",
		method:   http.MethodPost,
		path:     "/appointments/sync",
		body:     body,
		fallback: MsgSyncAppointment,
	})
}

// FetchSlots lists a therapist's open slots as the backend formats them.
func (c *Client) FetchSlots(ctx context.Context, query SlotsQuery) ([]string, error) {
	if strings.TrimSpace(query.Email) == "" {
		return nil, fmt.Errorf("fetch slots: therapist email is required")
	}
	q := url.Values{}
	q.Set("email", query.Email)
	if query.State != "" {
		q.Set("state", query.State)
	}
	if query.ResponseID != "" {
		q.Set("response_id", query.ResponseID)
	}
	var resp struct {
		AvailableSlots flexStrings `json:"available_slots"`
	}
	if err := c.doJSON(ctx, call{
		op:       "fetch slots",
		method:   http.MethodGet,
		path:     "/therapists/slots",
		query:    q,
		out:      &resp,
		fallback: MsgFetchSlots,
	}); err != nil {
		return nil, err
	}
	return []string(resp.AvailableSlots), nil
}

// FetchConfirmation loads the booking summary for the confirmation view.
func (c *Client) FetchConfirmation(ctx context.Context, responseID string) (*Confirmation, error) {
	if strings.TrimSpace(responseID) == "" {
		return nil, ErrMissingResponseID
	}
	var out Confirmation
	if err := c.doJSON(ctx, call{
		op:       "fetch confirmation",
		method:   http.MethodGet,
		path:     "/client-responses/" + url.PathEscape(responseID),
		out:      &out,
		fallback: MsgFetchConfirmation,
	}); err != nil {
		return nil, err
	}
	return &out, nil
}

type call struct {
	op       string
	method   string
	path     string
	query    url.Values
	headers  http.Header
	body     interface{}
	out      interface{}
	fallback string
}

func (c *Client) doJSON(ctx context.Context, cl call) error {
	endpoint := c.baseURL + cl.path
	if len(cl.query) > 0 {
		endpoint += "?" + cl.query.Encode()
	}

	var bodyReader io.Reader
	if cl.body != nil {
		payload, err := json.Marshal(cl.body)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", cl.op, err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, endpoint, bodyReader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", cl.op, err)
	}
	req.Header.Set("Accept", "application/json")
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vals := range cl.headers {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("backend request failed", "op", cl.op, "path", cl.path, "error", err)
		return fmt.Errorf("%s: http request: %w", cl.op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", cl.op, err)
	}
	c.logger.Debug("backend response",
		"op", cl.op,
		"path", cl.path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := errorMessage(respBody)
		if msg == "" {
			msg = cl.fallback
		}
		apiErr := &APIError{StatusCode: resp.StatusCode, Path: cl.path, Message: msg}
		c.logger.Warn("backend non-2xx response", "op", cl.op, "status", resp.StatusCode, "path", cl.path, "message", msg)
		return apiErr
	}

	if len(bytes.TrimSpace(respBody)) == 0 || cl.out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, cl.out); err != nil {
		return fmt.Errorf("%s: decode response: %w", cl.op, err)
	}
	return nil
}
