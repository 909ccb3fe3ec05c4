// Package bookings keeps the audit trail of booking attempts in Postgres.
package bookings

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/solhealth/match-booking/internal/booking"
	"github.com/solhealth/match-booking/pkg/logging"
)

var bookingsTracer = otel.Tracer("solhealth.internal.bookings")

// Service records booking attempts and their transitions. It satisfies
// booking.AttemptLog.
type Service struct {
	repo   *Repository
	logger *logging.Logger
}

// NewService constructs a bookings service.
func NewService(repo *Repository, logger *logging.Logger) *Service {
	if repo == nil {
		panic("bookings: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, logger: logger}
}

var _ booking.AttemptLog = (*Service)(nil)

// Started inserts the attempt row once validation has passed.
func (s *Service) Started(ctx context.Context, rec booking.AttemptRecord) error {
	ctx, span := bookingsTracer.Start(ctx, "bookings.started")
	defer span.End()
	span.SetAttributes(
		attribute.String("booking.attempt_id", rec.ID.String()),
		attribute.String("booking.client_id", rec.ClientResponseID),
	)

	err := s.repo.Insert(ctx, Attempt{
		ID:               rec.ID,
		IdempotencyKey:   rec.IdempotencyKey,
		ClientResponseID: rec.ClientResponseID,
		TherapistEmail:   rec.TherapistEmail,
		TherapistName:    rec.TherapistName,
		ScheduledFor:     rec.ScheduledFor,
		State:            string(booking.StateAssigning),
	})
	if err != nil {
		span.RecordError(err)
		return err
	}
	s.logger.Debug("booking attempt recorded", "attempt_id", rec.ID, "response_id", rec.ClientResponseID)
	return nil
}

// Transitioned stores the attempt's new state.
func (s *Service) Transitioned(ctx context.Context, id uuid.UUID, state booking.State, appointmentID, reason string) error {
	ctx, span := bookingsTracer.Start(ctx, "bookings.transitioned")
	defer span.End()
	span.SetAttributes(
		attribute.String("booking.attempt_id", id.String()),
		attribute.String("booking.state", string(state)),
	)

	if err := s.repo.UpdateState(ctx, id, string(state), appointmentID, reason); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// Latest returns the newest attempt for a response id, or ErrAttemptNotFound.
func (s *Service) Latest(ctx context.Context, responseID string) (*Attempt, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.latest")
	defer span.End()
	return s.repo.LatestForResponse(ctx, responseID)
}
