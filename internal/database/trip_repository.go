package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/smarttransit/booking-engine/internal/models"
)

// TripRepository handles trip reads and creation outside the booking path
type TripRepository struct {
	db *sqlx.DB
}

// NewTripRepository creates a new TripRepository
func NewTripRepository(db *sqlx.DB) *TripRepository {
	return &TripRepository{db: db}
}

// GetByID retrieves a trip without locking it
func (r *TripRepository) GetByID(ctx context.Context, tripID uuid.UUID) (*models.Trip, error) {
	trip := &models.Trip{}
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1`
	err := r.db.GetContext(ctx, trip, query, tripID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrTripNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}
	return trip, nil
}

// Create inserts a new trip with every slot available
func (r *TripRepository) Create(ctx context.Context, trip *models.Trip) error {
	now := time.Now().UTC()
	if trip.ID == uuid.Nil {
		trip.ID = uuid.New()
	}
	if trip.Status == "" {
		trip.Status = models.TripStatusScheduled
	}
	trip.AvailableSlots = trip.TotalSlots
	trip.CreatedAt = now
	trip.UpdatedAt = now

	query := `
		INSERT INTO trips (
			id, company_id, total_slots, available_slots, status, booking_halted,
			low_slot_alert_sent, admin_resumed_from_auto_halt, auto_resume_enabled,
			driver_id, conductor_id, vehicle_id, departure_time, departure_date, price,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err := r.db.ExecContext(ctx, query,
		trip.ID, trip.CompanyID, trip.TotalSlots, trip.AvailableSlots, trip.Status, trip.BookingHalted,
		trip.LowSlotAlertSent, trip.AdminResumedFromAutoHalt, trip.AutoResumeEnabled,
		trip.DriverID, trip.ConductorID, trip.VehicleID, trip.DepartureTime, trip.DepartureDate, trip.Price,
		trip.CreatedAt, trip.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create trip: %w", err)
	}
	return nil
}

// FindActiveByResources returns non-cancelled trips in the date bucket that use
// any of the given resources. excludeTripID skips the trip being edited.
func (r *TripRepository) FindActiveByResources(
	ctx context.Context,
	dateBucket string,
	driverID, conductorID, vehicleID *uuid.UUID,
	excludeTripID uuid.UUID,
) ([]models.Trip, error) {
	trips := []models.Trip{}
	if driverID == nil && conductorID == nil && vehicleID == nil {
		return trips, nil
	}

	query := `
		SELECT ` + tripColumns + `
		FROM trips
		WHERE departure_date = $1::date
		  AND status <> 'CANCELLED'
		  AND id <> $2
		  AND (
			($3::uuid IS NOT NULL AND driver_id = $3::uuid) OR
			($4::uuid IS NOT NULL AND conductor_id = $4::uuid) OR
			($5::uuid IS NOT NULL AND vehicle_id = $5::uuid)
		  )
		ORDER BY departure_time`

	err := r.db.SelectContext(ctx, &trips, query, dateBucket, excludeTripID, driverID, conductorID, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("failed to find trips by resources: %w", err)
	}
	return trips, nil
}

// OccupiedSeats lists seats held by non-cancelled bookings, for availability reads
func (r *TripRepository) OccupiedSeats(ctx context.Context, tripID uuid.UUID) ([]int, error) {
	var held pq.Int64Array
	query := `
		SELECT COALESCE(array_agg(p.seat_number ORDER BY p.seat_number), '{}')
		FROM passengers p
		JOIN bookings b ON b.id = p.booking_id
		WHERE p.trip_id = $1 AND b.status <> 'CANCELLED'`
	if err := r.db.GetContext(ctx, &held, query, tripID); err != nil {
		return nil, fmt.Errorf("failed to load occupied seats: %w", err)
	}

	seats := make([]int, len(held))
	for i, seat := range held {
		seats[i] = int(seat)
	}
	return seats, nil
}
