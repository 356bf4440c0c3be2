package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/smarttransit/booking-engine/internal/database"
	"github.com/smarttransit/booking-engine/internal/models"
)

// EventSink accepts capacity events without blocking the caller
type EventSink interface {
	Dispatch(event models.CapacityChangedEvent) bool
}

// BookingReader loads bookings outside the trip lock
type BookingReader interface {
	GetByID(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error)
}

// TripReader loads trips and their seat map outside the trip lock
type TripReader interface {
	GetByID(ctx context.Context, tripID uuid.UUID) (*models.Trip, error)
	OccupiedSeats(ctx context.Context, tripID uuid.UUID) ([]int, error)
}

// BookingCoordinator is the single entry point for seat-holding mutations.
// Every mutation runs inside one TripLocker unit of work; events are sent after commit.
type BookingCoordinator struct {
	locker     database.TripLocker
	trips      TripReader
	bookings   BookingReader
	allocator  *SeatAllocator
	calculator *FareCalculator
	monitor    *CapacityMonitor
	events     EventSink
	logger     *logrus.Logger
	tracer     trace.Tracer
}

// NewBookingCoordinator creates a new BookingCoordinator
func NewBookingCoordinator(
	locker database.TripLocker,
	trips TripReader,
	bookings BookingReader,
	allocator *SeatAllocator,
	calculator *FareCalculator,
	monitor *CapacityMonitor,
	events EventSink,
	logger *logrus.Logger,
) *BookingCoordinator {
	return &BookingCoordinator{
		locker:     locker,
		trips:      trips,
		bookings:   bookings,
		allocator:  allocator,
		calculator: calculator,
		monitor:    monitor,
		events:     events,
		logger:     logger,
		tracer:     otel.Tracer("services/booking"),
	}
}

// ============================================================================
// UPSERT
// ============================================================================

// UpsertBooking creates the user's PENDING booking on the trip or, when one
// already exists, replaces its passengers and totals in place. The capacity
// check and the seat delta use the net change in passenger count.
func (c *BookingCoordinator) UpsertBooking(ctx context.Context, req models.BookingRequest) (result *models.BookingResult, err error) {
	ctx, span := c.tracer.Start(ctx, "BookingCoordinator.UpsertBooking")
	defer func() { endSpan(span, err) }()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("trip.id", req.TripID.String()),
		attribute.String("booking.channel", string(req.Channel)),
		attribute.Int("booking.passengers", len(req.Passengers)),
	)

	var event *models.CapacityChangedEvent

	err = c.locker.WithTripLock(ctx, req.TripID, func(ctx context.Context, uow database.TripUnitOfWork) error {
		trip := uow.Trip()
		if !trip.IsBookable() {
			return &models.TripNotBookableError{TripID: trip.ID, Status: trip.Status, Halted: trip.BookingHalted}
		}

		existing, err := uow.FindPendingBooking(ctx, req.UserID)
		if err != nil {
			return err
		}

		heldSeats := []int{}
		excludeID := uuid.Nil
		if existing != nil {
			excludeID = existing.ID
			if heldSeats, err = uow.BookingSeats(ctx, existing.ID); err != nil {
				return err
			}
		}

		delta := len(req.Passengers) - len(heldSeats)
		if delta > trip.AvailableSlots {
			return &models.InsufficientCapacityError{
				TripID:    trip.ID,
				Requested: len(req.Passengers),
				Available: trip.AvailableSlots + len(heldSeats),
			}
		}

		occupied, err := uow.OccupiedSeats(ctx, excludeID)
		if err != nil {
			return err
		}
		requested := keepHeldSeats(req.RequestedSeats(), heldSeats)
		seats, err := c.allocator.Allocate(trip.ID, occupied, trip.TotalSlots, requested)
		if err != nil {
			return err
		}

		fare, err := c.calculator.Calculate(trip.Price, len(req.Passengers))
		if err != nil {
			return err
		}
		stored := fare.Rounded()

		booking := existing
		if booking == nil {
			booking = &models.Booking{
				UserID: req.UserID,
				Status: models.BookingStatusPending,
			}
		}
		booking.Channel = req.Channel
		booking.TotalAmount = stored.TotalAmount
		booking.Commission = stored.BaseCommission
		booking.CommissionVAT = stored.VAT

		if existing == nil {
			err = uow.CreateBooking(ctx, booking)
		} else {
			err = uow.UpdateBooking(ctx, booking)
		}
		if err != nil {
			return err
		}

		passengers := make([]models.Passenger, len(req.Passengers))
		for i, p := range req.Passengers {
			passengers[i] = models.Passenger{
				SeatNumber: seats[i],
				Name:       p.Name,
				NationalID: p.NationalID,
				Phone:      p.Phone,
			}
		}
		if err := uow.ReplacePassengers(ctx, booking.ID, passengers); err != nil {
			return err
		}

		if err := trip.ApplyCapacityDelta(delta); err != nil {
			return err
		}

		decision := HaltDecision{}
		if delta > 0 {
			companyDisabled, err := uow.CompanyAutoHaltDisabled(ctx)
			if err != nil {
				return err
			}
			decision = c.monitor.Apply(trip, HaltFlagsFor(trip, companyDisabled))
		}

		if delta != 0 || decision.Halt {
			if err := uow.SaveTripCapacity(ctx); err != nil {
				return err
			}
			e := models.NewCapacityChangedEvent(trip, models.CapacityReasonBooked, decision.Halt)
			event = &e
		}

		sortedSeats := append([]int(nil), seats...)
		sort.Ints(sortedSeats)

		result = &models.BookingResult{
			BookingID:      booking.ID,
			TripID:         trip.ID,
			Status:         booking.Status,
			SeatNumbers:    sortedSeats,
			TicketTotal:    stored.TicketTotal,
			TotalAmount:    stored.TotalAmount,
			Commission:     stored.BaseCommission,
			CommissionVAT:  stored.VAT,
			Resumed:        existing != nil,
			AvailableSlots: trip.AvailableSlots,
			BookingHalted:  trip.BookingHalted,
		}
		return nil
	})

	if err != nil {
		c.logFailure("Booking upsert failed", req.TripID, err, logrus.Fields{
			"user_id": req.UserID,
			"channel": req.Channel,
		})
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"booking_id":      result.BookingID,
		"trip_id":         result.TripID,
		"user_id":         req.UserID,
		"channel":         req.Channel,
		"seats":           result.SeatNumbers,
		"resumed":         result.Resumed,
		"available_slots": result.AvailableSlots,
		"booking_halted":  result.BookingHalted,
	}).Info("Booking upserted")

	c.publish(event)
	return result, nil
}

// keepHeldSeats hands the seats a resumed booking already holds to passengers
// without an explicit choice, lowest first, skipping seats someone asked for.
func keepHeldSeats(requested []int, held []int) []int {
	if len(held) == 0 {
		return requested
	}

	explicit := make(map[int]bool, len(requested))
	for _, seat := range requested {
		if seat != 0 {
			explicit[seat] = true
		}
	}

	pool := make([]int, 0, len(held))
	for _, seat := range held {
		if !explicit[seat] {
			pool = append(pool, seat)
		}
	}
	sort.Ints(pool)

	out := append([]int(nil), requested...)
	for i := range out {
		if out[i] == 0 && len(pool) > 0 {
			out[i] = pool[0]
			pool = pool[1:]
		}
	}
	return out
}

// ============================================================================
// RELEASE
// ============================================================================

// ReleaseBooking cancels a PENDING or PAID booking and returns its seats to
// the trip. A non-nil userID restricts the release to that user's bookings.
// Releasing never clears a booking halt.
func (c *BookingCoordinator) ReleaseBooking(ctx context.Context, bookingID, userID uuid.UUID, reason string) (result *models.ReleaseResult, err error) {
	ctx, span := c.tracer.Start(ctx, "BookingCoordinator.ReleaseBooking")
	defer func() { endSpan(span, err) }()

	current, err := c.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if userID != uuid.Nil && current.UserID != userID {
		return nil, models.ErrBookingNotFound
	}

	var event *models.CapacityChangedEvent

	err = c.locker.WithTripLock(ctx, current.TripID, func(ctx context.Context, uow database.TripUnitOfWork) error {
		booking, err := uow.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if !booking.IsReleasable() {
			return fmt.Errorf("%w: booking %s is %s", models.ErrBookingNotReleasable, booking.ID, booking.Status)
		}

		seats, err := uow.BookingSeats(ctx, booking.ID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		booking.Status = models.BookingStatusCancelled
		booking.CancelledAt = &now
		if reason != "" {
			booking.CancellationReason = &reason
		}
		if err := uow.UpdateBooking(ctx, booking); err != nil {
			return err
		}
		if err := uow.ReplacePassengers(ctx, booking.ID, nil); err != nil {
			return err
		}

		trip := uow.Trip()
		if err := trip.ApplyCapacityDelta(-len(seats)); err != nil {
			return err
		}
		if err := uow.SaveTripCapacity(ctx); err != nil {
			return err
		}

		e := models.NewCapacityChangedEvent(trip, models.CapacityReasonReleased, false)
		event = &e
		result = &models.ReleaseResult{
			BookingID:      booking.ID,
			TripID:         trip.ID,
			Status:         booking.Status,
			ReleasedSeats:  seats,
			AvailableSlots: trip.AvailableSlots,
		}
		return nil
	})

	if err != nil {
		c.logFailure("Booking release failed", current.TripID, err, logrus.Fields{"booking_id": bookingID})
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"booking_id":      bookingID,
		"trip_id":         result.TripID,
		"released_seats":  result.ReleasedSeats,
		"available_slots": result.AvailableSlots,
	}).Info("Booking released")

	c.publish(event)
	return result, nil
}

// ExpireBooking deletes a booking that is still PENDING and was created at or
// before cutoff, returning its seats. It reports false when the booking was
// paid, cancelled or removed in the meantime.
func (c *BookingCoordinator) ExpireBooking(ctx context.Context, bookingID uuid.UUID, cutoff time.Time) (expired bool, err error) {
	ctx, span := c.tracer.Start(ctx, "BookingCoordinator.ExpireBooking")
	defer func() { endSpan(span, err) }()

	current, err := c.bookings.GetByID(ctx, bookingID)
	if errors.Is(err, models.ErrBookingNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var event *models.CapacityChangedEvent

	err = c.locker.WithTripLock(ctx, current.TripID, func(ctx context.Context, uow database.TripUnitOfWork) error {
		booking, err := uow.GetBooking(ctx, bookingID)
		if errors.Is(err, models.ErrBookingNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if booking.Status != models.BookingStatusPending || booking.CreatedAt.After(cutoff) {
			return nil
		}

		seats, err := uow.BookingSeats(ctx, booking.ID)
		if err != nil {
			return err
		}
		if err := uow.DeleteBooking(ctx, booking.ID); err != nil {
			return err
		}

		trip := uow.Trip()
		if err := trip.ApplyCapacityDelta(-len(seats)); err != nil {
			return err
		}
		if err := uow.SaveTripCapacity(ctx); err != nil {
			return err
		}

		e := models.NewCapacityChangedEvent(trip, models.CapacityReasonExpired, false)
		event = &e
		expired = true
		return nil
	})

	if err != nil {
		c.logFailure("Booking expiry failed", current.TripID, err, logrus.Fields{"booking_id": bookingID})
		return false, err
	}

	if expired {
		c.logger.WithFields(logrus.Fields{
			"booking_id": bookingID,
			"trip_id":    current.TripID,
		}).Info("Expired pending booking")
		c.publish(event)
	}
	return expired, nil
}

// ============================================================================
// READS
// ============================================================================

// Availability returns the current seat map of a trip without locking it
func (c *BookingCoordinator) Availability(ctx context.Context, tripID uuid.UUID) (*models.TripAvailability, error) {
	trip, err := c.trips.GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	occupied, err := c.trips.OccupiedSeats(ctx, tripID)
	if err != nil {
		return nil, err
	}
	return &models.TripAvailability{
		TripID:         trip.ID,
		Status:         trip.Status,
		TotalSlots:     trip.TotalSlots,
		AvailableSlots: trip.AvailableSlots,
		BookingHalted:  trip.BookingHalted,
		OccupiedSeats:  occupied,
		Price:          trip.Price,
		DepartureTime:  trip.DepartureTime,
	}, nil
}

// ============================================================================
// HELPERS
// ============================================================================

func (c *BookingCoordinator) publish(event *models.CapacityChangedEvent) {
	if event == nil || c.events == nil {
		return
	}
	c.events.Dispatch(*event)
}

func (c *BookingCoordinator) logFailure(msg string, tripID uuid.UUID, err error, fields logrus.Fields) {
	fields["trip_id"] = tripID
	fields["code"] = models.ErrorCodeOf(err)
	fields["error"] = err.Error()
	entry := c.logger.WithFields(fields)

	switch code := models.ErrorCodeOf(err); {
	case models.IsRetryable(err):
		entry.Warn(msg)
	case code == models.CodeInternal:
		entry.Error(msg)
	default:
		entry.Info(msg)
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
