package database

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smarttransit/booking-engine/internal/models"
)

const lockQuery = `SELECT .* FROM trips WHERE id = \$1 FOR UPDATE NOWAIT`

var tripColumnNames = []string{
	"id", "company_id", "total_slots", "available_slots", "status", "booking_halted",
	"low_slot_alert_sent", "admin_resumed_from_auto_halt", "auto_resume_enabled",
	"driver_id", "conductor_id", "vehicle_id", "departure_time", "departure_date", "price",
	"created_at", "updated_at",
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func tripRow(tripID uuid.UUID, total, available int) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(tripColumnNames).AddRow(
		tripID.String(), uuid.New().String(), total, available, "SCHEDULED", false,
		false, false, false,
		nil, nil, nil, now.Add(48*time.Hour), "2026-03-01", "1500.00",
		now, now,
	)
}

func TestWithTripLock_Success(t *testing.T) {
	db, mock := newMockDB(t)
	runner := NewTripTxRunner(db, time.Second, testLogger())
	tripID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(lockQuery).WithArgs(tripID).WillReturnRows(tripRow(tripID, 40, 12))
	mock.ExpectExec(`UPDATE trips SET`).
		WithArgs(tripID, 11, false, false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := runner.WithTripLock(context.Background(), tripID, func(ctx context.Context, uow TripUnitOfWork) error {
		trip := uow.Trip()
		assert.Equal(t, 40, trip.TotalSlots)
		assert.Equal(t, models.TripStatusScheduled, trip.Status)
		assert.Equal(t, "1500", trip.Price.String())
		require.NoError(t, trip.ApplyCapacityDelta(1))
		return uow.SaveTripCapacity(ctx)
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTripLock_LockContention(t *testing.T) {
	lockErrors := map[string]error{
		"lib/pq": &pq.Error{Code: "55P03", Message: "could not obtain lock on row in relation \"trips\""},
		"pgx":    &pgconn.PgError{Code: "55P03", Message: "could not obtain lock on row in relation \"trips\""},
	}

	for name, lockErr := range lockErrors {
		t.Run(name, func(t *testing.T) {
			db, mock := newMockDB(t)
			runner := NewTripTxRunner(db, time.Second, testLogger())
			tripID := uuid.New()

			mock.ExpectBegin()
			mock.ExpectQuery(lockQuery).WithArgs(tripID).WillReturnError(lockErr)
			mock.ExpectRollback()

			called := false
			err := runner.WithTripLock(context.Background(), tripID, func(ctx context.Context, uow TripUnitOfWork) error {
				called = true
				return nil
			})

			require.Error(t, err)
			assert.False(t, called)
			assert.True(t, errors.Is(err, models.ErrLockContention))
			assert.True(t, models.IsRetryable(err))

			var contention *models.LockContentionError
			require.True(t, errors.As(err, &contention))
			assert.Equal(t, tripID, contention.TripID)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestWithTripLock_TripNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	runner := NewTripTxRunner(db, time.Second, testLogger())
	tripID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(lockQuery).WithArgs(tripID).WillReturnRows(sqlmock.NewRows(tripColumnNames))
	mock.ExpectRollback()

	err := runner.WithTripLock(context.Background(), tripID, func(ctx context.Context, uow TripUnitOfWork) error {
		return nil
	})

	assert.ErrorIs(t, err, models.ErrTripNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTripLock_WorkErrorRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	runner := NewTripTxRunner(db, time.Second, testLogger())
	tripID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(lockQuery).WithArgs(tripID).WillReturnRows(tripRow(tripID, 40, 1))
	mock.ExpectRollback()

	err := runner.WithTripLock(context.Background(), tripID, func(ctx context.Context, uow TripUnitOfWork) error {
		return uow.Trip().ApplyCapacityDelta(2)
	})

	assert.ErrorIs(t, err, models.ErrInsufficientCapacity)
	assert.False(t, models.IsRetryable(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTripLock_PanicRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	runner := NewTripTxRunner(db, time.Second, testLogger())
	tripID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(lockQuery).WithArgs(tripID).WillReturnRows(tripRow(tripID, 40, 10))
	mock.ExpectRollback()

	err := runner.WithTripLock(context.Background(), tripID, func(ctx context.Context, uow TripUnitOfWork) error {
		panic("boom")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic in unit of work")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTripLock_Timeout(t *testing.T) {
	db, mock := newMockDB(t)
	runner := NewTripTxRunner(db, 50*time.Millisecond, testLogger())
	tripID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(lockQuery).WithArgs(tripID).WillReturnRows(tripRow(tripID, 40, 10))
	mock.ExpectRollback()

	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	err := runner.WithTripLock(context.Background(), tripID, func(ctx context.Context, uow TripUnitOfWork) error {
		<-release
		return nil
	})

	assert.Less(t, time.Since(start), time.Second)
	assert.ErrorIs(t, err, models.ErrTransactionTimeout)
	assert.True(t, models.IsRetryable(err))

	var timeout *models.TransactionTimeoutError
	require.True(t, errors.As(err, &timeout))
	assert.Equal(t, 50*time.Millisecond, timeout.Timeout)

	// database/sql rolls the transaction back from its own goroutine once the context expires
	assert.Eventually(t, func() bool {
		return mock.ExpectationsWereMet() == nil
	}, time.Second, 10*time.Millisecond)
}

func TestWithTripLock_CallerCancellationDoesNotAbort(t *testing.T) {
	db, mock := newMockDB(t)
	runner := NewTripTxRunner(db, time.Second, testLogger())
	tripID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(lockQuery).WithArgs(tripID).WillReturnRows(tripRow(tripID, 40, 10))
	mock.ExpectCommit()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runner.WithTripLock(ctx, tripID, func(ctx context.Context, uow TripUnitOfWork) error {
		return nil
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewTripTxRunner_DefaultTimeout(t *testing.T) {
	db, _ := newMockDB(t)
	runner := NewTripTxRunner(db, 0, testLogger())
	assert.Equal(t, DefaultTransactionTimeout, runner.timeout)
}
