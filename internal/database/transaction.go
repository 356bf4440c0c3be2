package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/smarttransit/booking-engine/internal/models"
)

// SQLSTATE raised by FOR UPDATE NOWAIT when the row is already locked
const lockNotAvailable = "55P03"

// DefaultTransactionTimeout bounds a unit of work when no timeout is configured
const DefaultTransactionTimeout = 10 * time.Second

// TripWork is a unit of work executed while the trip row is locked
type TripWork func(ctx context.Context, uow TripUnitOfWork) error

// TripLocker runs work under an exclusive, non-blocking lock on one trip row
type TripLocker interface {
	WithTripLock(ctx context.Context, tripID uuid.UUID, work TripWork) error
}

// TripTxRunner is the Postgres TripLocker. Every booking mutation goes through it.
type TripTxRunner struct {
	db      *sqlx.DB
	timeout time.Duration
	logger  *logrus.Logger
}

// NewTripTxRunner creates a runner with the given wall-clock bound
func NewTripTxRunner(db *sqlx.DB, timeout time.Duration, logger *logrus.Logger) *TripTxRunner {
	if timeout <= 0 {
		timeout = DefaultTransactionTimeout
	}
	return &TripTxRunner{db: db, timeout: timeout, logger: logger}
}

// WithTripLock begins a transaction, locks the trip with NOWAIT and runs work.
// The work is rolled back on error, on panic and when the timeout elapses.
// Cancelling the caller's context does not abort a unit of work in flight.
func (r *TripTxRunner) WithTripLock(ctx context.Context, tripID uuid.UUID, work TripWork) (err error) {
	ctx, span := otel.Tracer("database").Start(ctx, "TripTxRunner.WithTripLock")
	span.SetAttributes(attribute.String("trip.id", tripID.String()))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return r.classify(ctx, fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	trip := &models.Trip{}
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1 FOR UPDATE NOWAIT`
	if err := tx.GetContext(ctx, trip, query, tripID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrTripNotFound
		}
		if isLockNotAvailable(err) {
			r.logger.WithField("trip_id", tripID).Debug("Trip row locked by a concurrent transaction")
			return &models.LockContentionError{TripID: tripID}
		}
		return r.classify(ctx, fmt.Errorf("failed to lock trip: %w", err))
	}

	uow := &tripUnitOfWork{tx: tx, trip: trip}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- fmt.Errorf("panic in unit of work: %v", p)
			}
		}()
		done <- work(ctx, uow)
	}()

	select {
	case err := <-done:
		if err != nil {
			return r.classify(ctx, err)
		}
	case <-ctx.Done():
		r.logger.WithFields(logrus.Fields{
			"trip_id": tripID,
			"timeout": r.timeout.String(),
		}).Warn("Unit of work exceeded timeout, rolling back")
		return &models.TransactionTimeoutError{Timeout: r.timeout}
	}

	if err := tx.Commit(); err != nil {
		return r.classify(ctx, fmt.Errorf("failed to commit transaction: %w", err))
	}

	return nil
}

// classify turns driver errors caused by the deadline into TransactionTimeout
func (r *TripTxRunner) classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		var typed *models.TransactionTimeoutError
		if !errors.As(err, &typed) {
			return &models.TransactionTimeoutError{Timeout: r.timeout}
		}
	}
	return err
}

func isLockNotAvailable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == lockNotAvailable
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == lockNotAvailable
	}
	return false
}
