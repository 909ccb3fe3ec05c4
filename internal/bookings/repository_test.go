package bookings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	pgxmock "github.com/pashagolub/pgxmock/v3"

	"github.com/solhealth/match-booking/internal/booking"
)

func TestServiceStartedInsertsAttempt(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	svc := NewService(newRepositoryWithQuerier(mock), nil)
	id := uuid.New()
	scheduled := time.Date(2024, 3, 15, 19, 30, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO booking_attempts").
		WithArgs(
			pgtype.UUID{Bytes: [16]byte(id), Valid: true},
			"key-1",
			"resp-1",
			"dana@example.com",
			"Dana Reyes",
			pgtype.Timestamptz{Time: scheduled, Valid: true},
			"assigning",
			pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = svc.Started(context.Background(), booking.AttemptRecord{
		ID:               id,
		IdempotencyKey:   "key-1",
		ClientResponseID: "resp-1",
		TherapistEmail:   "dana@example.com",
		TherapistName:    "Dana Reyes",
		ScheduledFor:     scheduled,
	})
	if err != nil {
		t.Fatalf("Started returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestServiceTransitionedUpdatesState(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	svc := NewService(newRepositoryWithQuerier(mock), nil)
	id := uuid.New()
	pgID := pgtype.UUID{Bytes: [16]byte(id), Valid: true}

	mock.ExpectExec("UPDATE booking_attempts").
		WithArgs(pgID, "syncing", "appt-1", "").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	if err := svc.Transitioned(context.Background(), id, booking.StateSyncing, "appt-1", ""); err != nil {
		t.Fatalf("Transitioned returned error: %v", err)
	}

	mock.ExpectExec("UPDATE booking_attempts").
		WithArgs(pgID, "failed", "", "sync rejected").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	err = svc.Transitioned(context.Background(), id, booking.StateFailed, "", "sync rejected")
	if !errors.Is(err, ErrAttemptNotFound) {
		t.Fatalf("expected ErrAttemptNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRepositoryInsertError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := newRepositoryWithQuerier(mock)
	mock.ExpectExec("INSERT INTO booking_attempts").WillReturnError(errors.New("connection refused"))

	err = repo.Insert(context.Background(), Attempt{ID: uuid.New(), IdempotencyKey: "k", State: "assigning"})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestRepositoryLatestForResponse(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := newRepositoryWithQuerier(mock)
	id := uuid.New()
	scheduled := time.Date(2024, 3, 15, 19, 30, 0, 0, time.UTC)
	created := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows([]string{
		"id", "idempotency_key", "client_response_id", "therapist_email", "therapist_name",
		"scheduled_for", "state", "appointment_id", "failure_reason", "created_at", "updated_at",
	}).AddRow(
		pgtype.UUID{Bytes: [16]byte(id), Valid: true},
		"key-1",
		"resp-1",
		"dana@example.com",
		"Dana Reyes",
		pgtype.Timestamptz{Time: scheduled, Valid: true},
		"succeeded",
		pgtype.Text{String: "appt-1", Valid: true},
		pgtype.Text{},
		pgtype.Timestamptz{Time: created, Valid: true},
		pgtype.Timestamptz{},
	)
	mock.ExpectQuery("SELECT (.+) FROM booking_attempts").WithArgs("resp-1").WillReturnRows(rows)

	got, err := repo.LatestForResponse(context.Background(), "resp-1")
	if err != nil {
		t.Fatalf("LatestForResponse returned error: %v", err)
	}
	if got.ID != id || got.State != "succeeded" || got.AppointmentID != "appt-1" {
		t.Fatalf("unexpected attempt: %+v", got)
	}
	if !got.ScheduledFor.Equal(scheduled) {
		t.Errorf("scheduled_for = %s", got.ScheduledFor)
	}
	if got.UpdatedAt != nil {
		t.Errorf("expected nil updated_at, got %v", got.UpdatedAt)
	}

	mock.ExpectQuery("SELECT (.+) FROM booking_attempts").WithArgs("resp-miss").WillReturnError(pgx.ErrNoRows)
	if _, err := repo.LatestForResponse(context.Background(), "resp-miss"); !errors.Is(err, ErrAttemptNotFound) {
		t.Fatalf("expected ErrAttemptNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
