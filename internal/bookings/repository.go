package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Attempt is one row of the booking_attempts audit table.
type Attempt struct {
	ID               uuid.UUID  `json:"id"`
	IdempotencyKey   string     `json:"idempotency_key"`
	ClientResponseID string     `json:"client_response_id"`
	TherapistEmail   string     `json:"therapist_email"`
	TherapistName    string     `json:"therapist_name"`
	ScheduledFor     time.Time  `json:"scheduled_for"`
	State            string     `json:"state"`
	AppointmentID    string     `json:"appointment_id,omitempty"`
	FailureReason    string     `json:"failure_reason,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty"`
}

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists booking attempts.
type Repository struct {
	db rowQuerier
}

// NewRepository creates a repository backed by pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("bookings: pgx pool required")
	}
	return &Repository{db: pool}
}

func newRepositoryWithQuerier(db rowQuerier) *Repository {
	if db == nil {
		panic("bookings: querier required")
	}
	return &Repository{db: db}
}

// Insert records a new attempt. A repeated idempotency key is ignored.
func (r *Repository) Insert(ctx context.Context, a Attempt) error {
	query := `
		INSERT INTO booking_attempts (
			id, idempotency_key, client_response_id, therapist_email, therapist_name,
			scheduled_for, state, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (idempotency_key) DO NOTHING
	`
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx, query,
		toPGUUID(a.ID),
		a.IdempotencyKey,
		a.ClientResponseID,
		a.TherapistEmail,
		a.TherapistName,
		toPGTime(a.ScheduledFor),
		a.State,
		toPGTime(createdAt),
	)
	if err != nil {
		return fmt.Errorf("bookings: insert attempt: %w", err)
	}
	return nil
}

// ErrAttemptNotFound is returned when no row matches.
var ErrAttemptNotFound = errors.New("bookings: attempt not found")

// UpdateState moves an attempt to state. Empty appointmentID or reason keep
// the stored values.
func (r *Repository) UpdateState(ctx context.Context, id uuid.UUID, state, appointmentID, reason string) error {
	query := `
		UPDATE booking_attempts
		SET state = $2,
			appointment_id = COALESCE(NULLIF($3, ''), appointment_id),
			failure_reason = COALESCE(NULLIF($4, ''), failure_reason),
			updated_at = NOW()
		WHERE id = $1
	`
	ct, err := r.db.Exec(ctx, query, toPGUUID(id), state, appointmentID, reason)
	if err != nil {
		return fmt.Errorf("bookings: update attempt state: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrAttemptNotFound
	}
	return nil
}

// LatestForResponse returns the most recent attempt for a survey response.
func (r *Repository) LatestForResponse(ctx context.Context, responseID string) (*Attempt, error) {
	query := `
		SELECT id, idempotency_key, client_response_id, therapist_email, therapist_name,
			scheduled_for, state, appointment_id, failure_reason, created_at, updated_at
		FROM booking_attempts
		WHERE client_response_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	var (
		a             Attempt
		id            pgtype.UUID
		scheduledFor  pgtype.Timestamptz
		appointmentID pgtype.Text
		failure       pgtype.Text
		createdAt     pgtype.Timestamptz
		updatedAt     pgtype.Timestamptz
	)
	err := r.db.QueryRow(ctx, query, responseID).Scan(
		&id,
		&a.IdempotencyKey,
		&a.ClientResponseID,
		&a.TherapistEmail,
		&a.TherapistName,
		&scheduledFor,
		&a.State,
		&appointmentID,
		&failure,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("bookings: load latest attempt: %w", err)
	}
	if id.Valid {
		a.ID = uuid.UUID(id.Bytes)
	}
	a.ScheduledFor = scheduledFor.Time
	a.AppointmentID = appointmentID.String
	a.FailureReason = failure.String
	a.CreatedAt = createdAt.Time
	if updatedAt.Valid {
		t := updatedAt.Time
		a.UpdatedAt = &t
	}
	return &a, nil
}

func toPGUUID(id uuid.UUID) pgtype.UUID {
	if id == uuid.Nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{
		Bytes: [16]byte(id),
		Valid: true,
	}
}

func toPGTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{
		Time:  t,
		Valid: true,
	}
}
