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

const tripColumns = `id, company_id, total_slots, available_slots, status, booking_halted,
	low_slot_alert_sent, admin_resumed_from_auto_halt, auto_resume_enabled,
	driver_id, conductor_id, vehicle_id, departure_time,
	to_char(departure_date, 'YYYY-MM-DD') AS departure_date, price,
	created_at, updated_at`

const bookingColumns = `id, trip_id, user_id, status, channel, total_amount, commission,
	commission_vat, cancellation_reason, cancelled_at, created_at, updated_at`

// TripUnitOfWork is the view of the store available while a trip row is locked.
// Only code running inside TripLocker.WithTripLock receives one.
type TripUnitOfWork interface {
	// Trip returns the locked row; mutations are persisted with SaveTripCapacity / SaveTrip
	Trip() *models.Trip
	CompanyAutoHaltDisabled(ctx context.Context) (bool, error)

	// FindPendingBooking returns nil when the user holds no PENDING booking on the trip
	FindPendingBooking(ctx context.Context, userID uuid.UUID) (*models.Booking, error)
	GetBooking(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error)
	OccupiedSeats(ctx context.Context, excludeBookingID uuid.UUID) ([]int, error)
	BookingSeats(ctx context.Context, bookingID uuid.UUID) ([]int, error)

	CreateBooking(ctx context.Context, booking *models.Booking) error
	UpdateBooking(ctx context.Context, booking *models.Booking) error
	DeleteBooking(ctx context.Context, bookingID uuid.UUID) error
	ReplacePassengers(ctx context.Context, bookingID uuid.UUID, passengers []models.Passenger) error

	SaveTripCapacity(ctx context.Context) error
	SaveTrip(ctx context.Context) error
}

type tripUnitOfWork struct {
	tx   *sqlx.Tx
	trip *models.Trip
}

func (u *tripUnitOfWork) Trip() *models.Trip {
	return u.trip
}

func (u *tripUnitOfWork) CompanyAutoHaltDisabled(ctx context.Context) (bool, error) {
	var disabled bool
	query := `SELECT disable_auto_halt_globally FROM companies WHERE id = $1`
	err := u.tx.GetContext(ctx, &disabled, query, u.trip.CompanyID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read company halt settings: %w", err)
	}
	return disabled, nil
}

func (u *tripUnitOfWork) FindPendingBooking(ctx context.Context, userID uuid.UUID) (*models.Booking, error) {
	booking := &models.Booking{}
	query := `SELECT ` + bookingColumns + ` FROM bookings
		WHERE trip_id = $1 AND user_id = $2 AND status = 'PENDING'
		LIMIT 1`
	err := u.tx.GetContext(ctx, booking, query, u.trip.ID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find pending booking: %w", err)
	}
	return booking, nil
}

func (u *tripUnitOfWork) GetBooking(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error) {
	booking := &models.Booking{}
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1 AND trip_id = $2`
	err := u.tx.GetContext(ctx, booking, query, bookingID, u.trip.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return booking, nil
}

func (u *tripUnitOfWork) OccupiedSeats(ctx context.Context, excludeBookingID uuid.UUID) ([]int, error) {
	seats := []int{}
	query := `
		SELECT p.seat_number
		FROM passengers p
		JOIN bookings b ON b.id = p.booking_id
		WHERE p.trip_id = $1 AND b.status <> 'CANCELLED' AND b.id <> $2
		ORDER BY p.seat_number`
	if err := u.tx.SelectContext(ctx, &seats, query, u.trip.ID, excludeBookingID); err != nil {
		return nil, fmt.Errorf("failed to load occupied seats: %w", err)
	}
	return seats, nil
}

func (u *tripUnitOfWork) BookingSeats(ctx context.Context, bookingID uuid.UUID) ([]int, error) {
	seats := []int{}
	query := `SELECT seat_number FROM passengers WHERE booking_id = $1 ORDER BY seat_number`
	if err := u.tx.SelectContext(ctx, &seats, query, bookingID); err != nil {
		return nil, fmt.Errorf("failed to load booking seats: %w", err)
	}
	return seats, nil
}

func (u *tripUnitOfWork) CreateBooking(ctx context.Context, booking *models.Booking) error {
	now := time.Now().UTC()
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	booking.TripID = u.trip.ID
	booking.CreatedAt = now
	booking.UpdatedAt = now

	query := `
		INSERT INTO bookings (
			id, trip_id, user_id, status, channel, total_amount, commission,
			commission_vat, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := u.tx.ExecContext(ctx, query,
		booking.ID, booking.TripID, booking.UserID, booking.Status, booking.Channel,
		booking.TotalAmount, booking.Commission, booking.CommissionVAT,
		booking.CreatedAt, booking.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

func (u *tripUnitOfWork) UpdateBooking(ctx context.Context, booking *models.Booking) error {
	booking.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE bookings SET
			status = $2, channel = $3, total_amount = $4, commission = $5,
			commission_vat = $6, cancellation_reason = $7, cancelled_at = $8, updated_at = $9
		WHERE id = $1`
	result, err := u.tx.ExecContext(ctx, query,
		booking.ID, booking.Status, booking.Channel, booking.TotalAmount, booking.Commission,
		booking.CommissionVAT, booking.CancellationReason, booking.CancelledAt, booking.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	return expectOneRow(result, models.ErrBookingNotFound)
}

func (u *tripUnitOfWork) DeleteBooking(ctx context.Context, bookingID uuid.UUID) error {
	// passengers cascade
	result, err := u.tx.ExecContext(ctx, `DELETE FROM bookings WHERE id = $1`, bookingID)
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	return expectOneRow(result, models.ErrBookingNotFound)
}

func (u *tripUnitOfWork) ReplacePassengers(ctx context.Context, bookingID uuid.UUID, passengers []models.Passenger) error {
	if _, err := u.tx.ExecContext(ctx, `DELETE FROM passengers WHERE booking_id = $1`, bookingID); err != nil {
		return fmt.Errorf("failed to delete passengers: %w", err)
	}

	query := `
		INSERT INTO passengers (id, booking_id, trip_id, seat_number, name, national_id, phone, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	now := time.Now().UTC()
	for i := range passengers {
		p := &passengers[i]
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		p.BookingID = bookingID
		p.TripID = u.trip.ID
		p.CreatedAt = now

		if _, err := u.tx.ExecContext(ctx, query,
			p.ID, p.BookingID, p.TripID, p.SeatNumber, p.Name, p.NationalID, p.Phone, p.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert passenger for seat %d: %w", p.SeatNumber, err)
		}
	}
	return nil
}

func (u *tripUnitOfWork) SaveTripCapacity(ctx context.Context) error {
	t := u.trip
	query := `
		UPDATE trips SET
			available_slots = $2, booking_halted = $3, low_slot_alert_sent = $4, updated_at = NOW()
		WHERE id = $1`
	if _, err := u.tx.ExecContext(ctx, query, t.ID, t.AvailableSlots, t.BookingHalted, t.LowSlotAlertSent); err != nil {
		return fmt.Errorf("failed to save trip capacity: %w", err)
	}
	return nil
}

func (u *tripUnitOfWork) SaveTrip(ctx context.Context) error {
	t := u.trip
	query := `
		UPDATE trips SET
			status = $2, available_slots = $3, booking_halted = $4, low_slot_alert_sent = $5,
			admin_resumed_from_auto_halt = $6, auto_resume_enabled = $7,
			driver_id = $8, conductor_id = $9, vehicle_id = $10,
			departure_time = $11, departure_date = $12, updated_at = NOW()
		WHERE id = $1`
	_, err := u.tx.ExecContext(ctx, query,
		t.ID, t.Status, t.AvailableSlots, t.BookingHalted, t.LowSlotAlertSent,
		t.AdminResumedFromAutoHalt, t.AutoResumeEnabled,
		t.DriverID, t.ConductorID, t.VehicleID,
		t.DepartureTime, t.DepartureDate,
	)
	if err != nil {
		return fmt.Errorf("failed to save trip: %w", err)
	}
	return nil
}

func expectOneRow(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return notFound
	}
	return nil
}
