// Package booking runs a single booking attempt: validate the selection,
// tell the backend which therapist was picked, create the appointment, sync
// it into the client record, and hand back the confirmation target.
package booking

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/solhealth/match-booking/internal/observability/metrics"
	"github.com/solhealth/match-booking/internal/solhealth"
	"github.com/solhealth/match-booking/pkg/logging"
)

var bookingTracer = otel.Tracer("solhealth.internal.booking")

// ConfirmationPath is where the client is sent after a successful booking.
const ConfirmationPath = "/booking/confirmed"

// BackendAPI is the subset of the backend client the orchestrator drives.
type BackendAPI interface {
	AssignTherapist(ctx context.Context, responseID, therapistEmail string) error
	CreateAppointment(ctx context.Context, req solhealth.AppointmentRequest) (solhealth.Appointment, error)
	SyncAppointment(ctx context.Context, appt solhealth.Appointment, state string) error
}

// AttemptRecord describes an attempt that passed validation.
type AttemptRecord struct {
	ID               uuid.UUID
	IdempotencyKey   string
	ClientResponseID string
	TherapistEmail   string
	TherapistName    string
	ScheduledFor     time.Time
}

// AttemptLog keeps an audit trail of attempts. Failures to write it never
// change the outcome of an attempt.
type AttemptLog interface {
	Started(ctx context.Context, rec AttemptRecord) error
	Transitioned(ctx context.Context, id uuid.UUID, state State, appointmentID, reason string) error
}

// OpsNotifier delivers operator alerts.
type OpsNotifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// Attempt is one user action: a therapist and a wall-clock time chosen on the
// match page.
type Attempt struct {
	Client        *solhealth.ClientRecord
	Therapist     solhealth.Therapist
	LocalDatetime string
	// Location is the zone the time was picked in. Nil means the
	// orchestrator's default location.
	Location *time.Location
}

// Outcome is the result of an attempt, successful or not.
type Outcome struct {
	AttemptID   uuid.UUID
	State       State
	Datetime    string
	RedirectURL string
	Message     string
	Appointment solhealth.Appointment
}

// Config wires an Orchestrator.
type Config struct {
	API             BackendAPI
	Guard           Guard
	AttemptLog      AttemptLog
	Ops             OpsNotifier
	Metrics         *metrics.BookingMetrics
	Logger          *logging.Logger
	DefaultLocation *time.Location
}

// Orchestrator sequences assign, create and sync for one attempt at a time
// per client.
type Orchestrator struct {
	api        BackendAPI
	guard      Guard
	attempts   AttemptLog
	ops        OpsNotifier
	metrics    *metrics.BookingMetrics
	logger     *logging.Logger
	defaultLoc *time.Location
	newKey     func() string
}

// NewOrchestrator builds an orchestrator. API is required; a LocalGuard is
// used when no guard is given.
func NewOrchestrator(cfg Config) *Orchestrator {
	if cfg.API == nil {
		panic("booking: backend API required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Guard == nil {
		cfg.Guard = NewLocalGuard()
	}
	if cfg.DefaultLocation == nil {
		cfg.DefaultLocation = time.UTC
	}
	return &Orchestrator{
		api:        cfg.API,
		guard:      cfg.Guard,
		attempts:   cfg.AttemptLog,
		ops:        cfg.Ops,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		defaultLoc: cfg.DefaultLocation,
		newKey:     uuid.NewString,
	}
}

// DefaultLocation is the zone used when an attempt carries none.
func (o *Orchestrator) DefaultLocation() *time.Location {
	return o.defaultLoc
}

type validated struct {
	clientID       string
	therapistEmail string
	therapistName  string
	state          string
	scheduledFor   time.Time
}

// validate resolves identity and the UTC instant without touching the network.
func (o *Orchestrator) validate(a Attempt) (validated, error) {
	v := validated{
		clientID:       a.Client.BookingID(),
		therapistEmail: a.Therapist.BookingEmail(),
		therapistName:  strings.TrimSpace(a.Therapist.Name),
	}
	if a.Client != nil {
		v.state = a.Client.State
	}
	if v.clientID == "" || v.therapistEmail == "" || v.therapistName == "" {
		return v, &AbortError{Message: MsgMissingDetails, Err: ErrMissingIdentity}
	}
	loc := a.Location
	if loc == nil {
		loc = o.defaultLoc
	}
	at, err := NormalizeLocalDatetime(a.LocalDatetime, loc)
	if err != nil {
		return v, &AbortError{Message: MsgInvalidTime, Err: err}
	}
	v.scheduledFor = at
	return v, nil
}

// Book runs one attempt. The returned Outcome is always non-nil; the error is
// an *AbortError (no backend call was made) or a *FailureError (create or
// sync failed).
func (o *Orchestrator) Book(ctx context.Context, a Attempt) (*Outcome, error) {
	ctx, span := bookingTracer.Start(ctx, "booking.book")
	defer span.End()

	out := &Outcome{AttemptID: uuid.New(), State: StateValidating}
	logger := o.logger.With("attempt_id", out.AttemptID.String())

	v, err := o.validate(a)
	if err != nil {
		return o.abort(span, logger, out, err)
	}
	out.Datetime = ISOString(v.scheduledFor)
	span.SetAttributes(
		attribute.String("booking.client_id", v.clientID),
		attribute.String("booking.therapist_email", v.therapistEmail),
		attribute.String("booking.datetime", out.Datetime),
	)
	logger = logger.With("response_id", v.clientID, "therapist_email", v.therapistEmail)

	release, err := o.guard.Acquire(ctx, v.clientID)
	switch {
	case errors.Is(err, ErrBookingInFlight):
		return o.abort(span, logger, out, &AbortError{Message: MsgInFlight, Err: err})
	case err != nil:
		// The idempotency key still covers the create call.
		logger.Warn("booking guard unavailable, continuing unguarded", "error", err)
	default:
		defer release(context.WithoutCancel(ctx))
	}

	key := o.newKey()
	o.recordStart(ctx, logger, AttemptRecord{
		ID:               out.AttemptID,
		IdempotencyKey:   key,
		ClientResponseID: v.clientID,
		TherapistEmail:   v.therapistEmail,
		TherapistName:    v.therapistName,
		ScheduledFor:     v.scheduledFor,
	})

	out.State = StateAssigning
	o.bestEffort(ctx, logger, StateAssigning, func(ctx context.Context) error {
		return o.api.AssignTherapist(ctx, v.clientID, v.therapistEmail)
	})

	out.State = StateCreating
	o.recordTransition(ctx, logger, out.AttemptID, StateCreating, "", "")
	var appt solhealth.Appointment
	if err := o.hardFail(ctx, logger, StateCreating, func(ctx context.Context) error {
		var err error
		appt, err = o.api.CreateAppointment(ctx, solhealth.AppointmentRequest{
			ClientResponseID: v.clientID,
			TherapistEmail:   v.therapistEmail,
			TherapistName:    v.therapistName,
			Datetime:         out.Datetime,
			IdempotencyKey:   key,
		})
		return err
	}); err != nil {
		return o.fail(ctx, span, logger, out, StateCreating, err)
	}
	out.Appointment = appt

	out.State = StateSyncing
	o.recordTransition(ctx, logger, out.AttemptID, StateSyncing, appt.ID(), "")
	if err := o.hardFail(ctx, logger, StateSyncing, func(ctx context.Context) error {
		return o.api.SyncAppointment(ctx, appt, v.state)
	}); err != nil {
		o.alertUnsynced(ctx, logger, v, out, err)
		return o.fail(ctx, span, logger, out, StateSyncing, err)
	}

	out.State = StateSucceeded
	out.RedirectURL = ConfirmationURL(v.clientID)
	out.Message = MsgRequested
	o.recordTransition(ctx, logger, out.AttemptID, StateSucceeded, appt.ID(), "")
	o.metrics.ObserveAttempt(string(StateSucceeded))
	logger.Info("booking succeeded", "appointment_id", appt.ID(), "datetime", out.Datetime)
	return out, nil
}

// ConfirmationURL is the client-side navigation target for a booked response.
func ConfirmationURL(responseID string) string {
	return ConfirmationPath + "?response_id=" + url.QueryEscape(responseID)
}

// bestEffort runs a step whose failure is logged and counted but never
// changes the flow.
func (o *Orchestrator) bestEffort(ctx context.Context, logger *logging.Logger, step State, fn func(context.Context) error) {
	start := time.Now()
	err := fn(ctx)
	o.metrics.ObserveStep(string(step), time.Since(start).Seconds(), err != nil)
	if err != nil {
		o.metrics.ObserveBestEffortFailure(string(step))
		logger.Warn("best-effort booking step failed", "step", step, "error", err)
	}
}

// hardFail runs a step whose failure ends the attempt.
func (o *Orchestrator) hardFail(ctx context.Context, logger *logging.Logger, step State, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	o.metrics.ObserveStep(string(step), time.Since(start).Seconds(), err != nil)
	if err != nil {
		return &FailureError{Step: step, Err: err}
	}
	logger.Debug("booking step completed", "step", step)
	return nil
}

func (o *Orchestrator) abort(span trace.Span, logger *logging.Logger, out *Outcome, err error) (*Outcome, error) {
	var abortErr *AbortError
	if errors.As(err, &abortErr) {
		out.Message = abortErr.Message
	}
	out.State = StateAborted
	span.SetStatus(codes.Error, "aborted")
	o.metrics.ObserveAttempt(string(StateAborted))
	logger.Info("booking aborted", "reason", err)
	return out, err
}

func (o *Orchestrator) fail(ctx context.Context, span trace.Span, logger *logging.Logger, out *Outcome, step State, err error) (*Outcome, error) {
	var failure *FailureError
	if !errors.As(err, &failure) {
		failure = &FailureError{Step: step, Err: err}
	}
	out.State = StateFailed
	out.Message = failure.UserMessage()
	span.RecordError(failure)
	span.SetStatus(codes.Error, failure.Error())
	o.metrics.ObserveAttempt(string(StateFailed))
	o.recordTransition(ctx, logger, out.AttemptID, StateFailed, out.Appointment.ID(), failure.Error())
	logger.Error("booking failed", "step", step, "error", failure.Err)
	return out, failure
}

// alertUnsynced tells operators an appointment exists that the client record
// does not know about.
func (o *Orchestrator) alertUnsynced(ctx context.Context, logger *logging.Logger, v validated, out *Outcome, cause error) {
	if o.ops == nil {
		return
	}
	subject := fmt.Sprintf("Unsynced appointment for response %s", v.clientID)
	body := fmt.Sprintf(
		"An appointment was created but could not be synced.\n\nResponse ID: %s\nTherapist: %s <%s>\nStart (UTC): %s\nAppointment ID: %s\nAttempt ID: %s\nError: %v\n",
		v.clientID, v.therapistName, v.therapistEmail, out.Datetime, out.Appointment.ID(), out.AttemptID, cause,
	)
	o.bestEffort(context.WithoutCancel(ctx), logger, "alerting", func(ctx context.Context) error {
		return o.ops.Notify(ctx, subject, body)
	})
}

func (o *Orchestrator) recordStart(ctx context.Context, logger *logging.Logger, rec AttemptRecord) {
	if o.attempts == nil {
		return
	}
	if err := o.attempts.Started(context.WithoutCancel(ctx), rec); err != nil {
		logger.Warn("failed to record booking attempt", "error", err)
	}
}

func (o *Orchestrator) recordTransition(ctx context.Context, logger *logging.Logger, id uuid.UUID, state State, appointmentID, reason string) {
	if o.attempts == nil {
		return
	}
	if err := o.attempts.Transitioned(context.WithoutCancel(ctx), id, state, appointmentID, reason); err != nil {
		logger.Warn("failed to record booking transition", "state", state, "error", err)
	}
}
