package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/smarttransit/booking-engine/internal/models"
)

// BookingRepository handles booking reads outside the trip lock
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// GetByID retrieves a booking by ID
func (r *BookingRepository) GetByID(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error) {
	booking := &models.Booking{}
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	err := r.db.GetContext(ctx, booking, query, bookingID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return booking, nil
}

// GetPassengers returns the passengers of a booking ordered by seat
func (r *BookingRepository) GetPassengers(ctx context.Context, bookingID uuid.UUID) ([]models.Passenger, error) {
	passengers := []models.Passenger{}
	query := `
		SELECT id, booking_id, trip_id, seat_number, name, national_id, phone, created_at
		FROM passengers
		WHERE booking_id = $1
		ORDER BY seat_number`
	if err := r.db.SelectContext(ctx, &passengers, query, bookingID); err != nil {
		return nil, fmt.Errorf("failed to get passengers: %w", err)
	}
	return passengers, nil
}

// FindExpiredPending returns PENDING bookings created at or before cutoff, oldest first
func (r *BookingRepository) FindExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]models.Booking, error) {
	bookings := []models.Booking{}
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status = 'PENDING' AND created_at <= $1
		ORDER BY created_at
		LIMIT $2`
	if err := r.db.SelectContext(ctx, &bookings, query, cutoff, limit); err != nil {
		return nil, fmt.Errorf("failed to find expired pending bookings: %w", err)
	}
	return bookings, nil
}
