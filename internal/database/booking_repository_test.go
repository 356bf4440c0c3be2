package database

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smarttransit/booking-engine/internal/models"
)

func TestBookingRepository_GetByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		bookingID := uuid.New()
		tripID := uuid.New()
		now := time.Now()

		mock.ExpectQuery(`SELECT .* FROM bookings WHERE id = \$1`).
			WithArgs(bookingID).
			WillReturnRows(sqlmock.NewRows(bookingColumnNames).AddRow(
				bookingID.String(), tripID.String(), uuid.New().String(), "PAID", "web",
				"211.50", "10.00", "1.50", nil, nil, now, now,
			))

		booking, err := repo.GetByID(ctx, bookingID)
		require.NoError(t, err)
		assert.Equal(t, tripID, booking.TripID)
		assert.Equal(t, models.BookingStatusPaid, booking.Status)
		assert.True(t, booking.IsReleasable())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Found", func(t *testing.T) {
		bookingID := uuid.New()
		mock.ExpectQuery(`SELECT .* FROM bookings WHERE id = \$1`).
			WithArgs(bookingID).
			WillReturnRows(sqlmock.NewRows(bookingColumnNames))

		booking, err := repo.GetByID(ctx, bookingID)
		assert.Nil(t, booking)
		assert.ErrorIs(t, err, models.ErrBookingNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBookingRepository_FindExpiredPending(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)
	cutoff := time.Now().Add(-15 * time.Minute)
	created := cutoff.Add(-time.Minute)

	mock.ExpectQuery(`SELECT .* FROM bookings WHERE status = 'PENDING' AND created_at <= \$1 ORDER BY created_at LIMIT \$2`).
		WithArgs(cutoff, 100).
		WillReturnRows(sqlmock.NewRows(bookingColumnNames).
			AddRow(uuid.New().String(), uuid.New().String(), uuid.New().String(), "PENDING", "chatbot",
				"211.50", "10.00", "1.50", nil, nil, created, created).
			AddRow(uuid.New().String(), uuid.New().String(), uuid.New().String(), "PENDING", "web",
				"105.75", "5.00", "0.75", nil, nil, created, created))

	bookings, err := repo.FindExpiredPending(context.Background(), cutoff, 100)
	require.NoError(t, err)
	require.Len(t, bookings, 2)
	assert.True(t, bookings[0].IsExpired(time.Now(), 15*time.Minute))
	assert.Equal(t, models.BookingChannelChatbot, bookings[0].Channel)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_GetPassengers(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)
	bookingID := uuid.New()
	tripID := uuid.New()

	mock.ExpectQuery(`SELECT .* FROM passengers WHERE booking_id = \$1 ORDER BY seat_number`).
		WithArgs(bookingID).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "booking_id", "trip_id", "seat_number", "name", "national_id", "phone", "created_at",
		}).AddRow(uuid.New().String(), bookingID.String(), tripID.String(), 12, "Sunil Silva", "851234567V", "0761234567", time.Now()))

	passengers, err := repo.GetPassengers(context.Background(), bookingID)
	require.NoError(t, err)
	require.Len(t, passengers, 1)
	assert.Equal(t, 12, passengers[0].SeatNumber)
	assert.Equal(t, "Sunil Silva", passengers[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditLogRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAuditLogRepository(db)

	actorID := uuid.New()
	tripID := uuid.New()
	reason := "Relief driver unavailable, approved by depot manager"
	details := map[string]interface{}{"conflicts": 1}
	encoded, err := json.Marshal(details)
	require.NoError(t, err)

	mock.ExpectExec(`INSERT INTO audit_logs`).
		WithArgs(sqlmock.AnyArg(), actorID, models.AuditActionConflictOverridden, models.AuditEntityTrip,
			tripID, reason, "203.0.113.7", "curl/8.5.0", encoded, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	entry := &models.AuditLog{
		ActorID:       &actorID,
		Action:        models.AuditActionConflictOverridden,
		EntityType:    models.AuditEntityTrip,
		EntityID:      &tripID,
		Justification: &reason,
		IPAddress:     "203.0.113.7",
		UserAgent:     "curl/8.5.0",
		Details:       details,
	}

	require.NoError(t, repo.Create(context.Background(), entry))
	assert.NotEqual(t, uuid.Nil, entry.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditLogRepository_DeleteOlderThan(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAuditLogRepository(db)

	mock.ExpectExec(`DELETE FROM audit_logs WHERE created_at < \$1`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 7))

	deleted, err := repo.DeleteOlderThan(context.Background(), 90*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(7), deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
