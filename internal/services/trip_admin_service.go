package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/smarttransit/booking-engine/internal/database"
	"github.com/smarttransit/booking-engine/internal/models"
)

// TripStore is the trip persistence used by administration
type TripStore interface {
	GetByID(ctx context.Context, tripID uuid.UUID) (*models.Trip, error)
	Create(ctx context.Context, trip *models.Trip) error
	FindActiveByResources(ctx context.Context, dateBucket string, driverID, conductorID, vehicleID *uuid.UUID, excludeTripID uuid.UUID) ([]models.Trip, error)
}

// TripAuditor records administrative trip actions
type TripAuditor interface {
	LogTripCreated(ctx context.Context, actor models.Actor, trip *models.Trip) error
	LogTripEdited(ctx context.Context, actor models.Actor, before, after *models.Trip) error
	LogConflictOverride(ctx context.Context, actor models.Actor, tripID uuid.UUID, conflicts []models.ResourceConflict, reason string) error
	LogBookingsResumed(ctx context.Context, actor models.Actor, trip *models.Trip, wasHalted bool) error
	LogAutoResumeChanged(ctx context.Context, actor models.Actor, tripID uuid.UUID, enabled bool) error
	LogTripStatusChanged(ctx context.Context, actor models.Actor, tripID uuid.UUID, from, to models.TripStatus) error
}

// TripAdminService creates and edits trips under the resource exclusivity rule
// and owns the admin switches of the auto-halt policy.
type TripAdminService struct {
	trips     TripStore
	locker    database.TripLocker
	validator *ResourceConflictValidator
	audit     TripAuditor
	events    EventSink
	logger    *logrus.Logger
	tracer    trace.Tracer
}

// NewTripAdminService creates a new TripAdminService
func NewTripAdminService(
	trips TripStore,
	locker database.TripLocker,
	validator *ResourceConflictValidator,
	audit TripAuditor,
	events EventSink,
	logger *logrus.Logger,
) *TripAdminService {
	return &TripAdminService{
		trips:     trips,
		locker:    locker,
		validator: validator,
		audit:     audit,
		events:    events,
		logger:    logger,
		tracer:    otel.Tracer("services/trip_admin"),
	}
}

// CreateTrip validates resource exclusivity and inserts the trip
func (s *TripAdminService) CreateTrip(ctx context.Context, actor models.Actor, req models.CreateTripRequest) (trip *models.Trip, err error) {
	ctx, span := s.tracer.Start(ctx, "TripAdminService.CreateTrip")
	defer func() { endSpan(span, err) }()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	trip = &models.Trip{
		ID:            uuid.New(),
		CompanyID:     req.CompanyID,
		TotalSlots:    req.TotalSlots,
		Price:         req.Price,
		DriverID:      req.DriverID,
		ConductorID:   req.ConductorID,
		VehicleID:     req.VehicleID,
		DepartureTime: req.DepartureTime,
	}

	conflicts, err := s.checkConflicts(ctx, trip, req.ResourceOverride)
	if err != nil {
		return nil, err
	}

	if err := s.trips.Create(ctx, trip); err != nil {
		return nil, err
	}

	s.auditOverride(ctx, actor, trip.ID, conflicts, req.ResourceOverride)
	if err := s.audit.LogTripCreated(ctx, actor, trip); err != nil {
		s.logger.WithError(err).Warn("Trip created without audit entry")
	}

	s.logger.WithFields(logrus.Fields{
		"trip_id":        trip.ID,
		"company_id":     trip.CompanyID,
		"total_slots":    trip.TotalSlots,
		"departure_date": trip.DepartureDate,
		"overridden":     len(conflicts),
	}).Info("Trip created")

	return trip, nil
}

// EditTrip changes the resources or departure of a trip. The conflict check
// excludes the trip itself; the update runs under the trip lock.
func (s *TripAdminService) EditTrip(ctx context.Context, actor models.Actor, req models.TripEditRequest) (trip *models.Trip, err error) {
	ctx, span := s.tracer.Start(ctx, "TripAdminService.EditTrip")
	defer func() { endSpan(span, err) }()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("trip.id", req.TripID.String()))

	current, err := s.trips.GetByID(ctx, req.TripID)
	if err != nil {
		return nil, err
	}

	candidate := *current
	candidate.DriverID = req.DriverID
	candidate.ConductorID = req.ConductorID
	candidate.VehicleID = req.VehicleID
	candidate.DepartureTime = req.DepartureTime

	conflicts, err := s.checkConflicts(ctx, &candidate, req.ResourceOverride)
	if err != nil {
		return nil, err
	}

	var before models.Trip
	err = s.locker.WithTripLock(ctx, req.TripID, func(ctx context.Context, uow database.TripUnitOfWork) error {
		locked := uow.Trip()
		if locked.Status.IsTerminal() {
			return fmt.Errorf("%w: trip %s is %s", models.ErrInvalidStatusTransition, locked.ID, locked.Status)
		}
		before = *locked

		locked.DriverID = candidate.DriverID
		locked.ConductorID = candidate.ConductorID
		locked.VehicleID = candidate.VehicleID
		locked.DepartureTime = candidate.DepartureTime
		locked.DepartureDate = candidate.DepartureDate
		if err := uow.SaveTrip(ctx); err != nil {
			return err
		}
		trip = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.auditOverride(ctx, actor, trip.ID, conflicts, req.ResourceOverride)
	if err := s.audit.LogTripEdited(ctx, actor, &before, trip); err != nil {
		s.logger.WithError(err).Warn("Trip edited without audit entry")
	}

	s.logger.WithFields(logrus.Fields{
		"trip_id":        trip.ID,
		"departure_date": trip.DepartureDate,
		"overridden":     len(conflicts),
	}).Info("Trip edited")

	return trip, nil
}

// ResumeBookings lifts a booking halt. The admin-resumed flag keeps the
// monitor from halting the trip again.
func (s *TripAdminService) ResumeBookings(ctx context.Context, actor models.Actor, tripID uuid.UUID) (*models.Trip, error) {
	var (
		trip      *models.Trip
		wasHalted bool
	)

	err := s.locker.WithTripLock(ctx, tripID, func(ctx context.Context, uow database.TripUnitOfWork) error {
		locked := uow.Trip()
		if locked.Status.IsTerminal() {
			return &models.TripNotBookableError{TripID: locked.ID, Status: locked.Status, Halted: locked.BookingHalted}
		}
		wasHalted = locked.BookingHalted
		locked.BookingHalted = false
		locked.AdminResumedFromAutoHalt = true
		if err := uow.SaveTrip(ctx); err != nil {
			return err
		}
		trip = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.audit.LogBookingsResumed(ctx, actor, trip, wasHalted); err != nil {
		s.logger.WithError(err).Warn("Bookings resumed without audit entry")
	}
	if s.events != nil {
		s.events.Dispatch(models.NewCapacityChangedEvent(trip, models.CapacityReasonResumed, false))
	}

	s.logger.WithFields(logrus.Fields{
		"trip_id":         trip.ID,
		"was_halted":      wasHalted,
		"available_slots": trip.AvailableSlots,
		"actor_id":        actor.UserID,
	}).Info("Trip bookings resumed")

	return trip, nil
}

// SetAutoResume toggles the auto-resume override of a trip
func (s *TripAdminService) SetAutoResume(ctx context.Context, actor models.Actor, tripID uuid.UUID, enabled bool) (*models.Trip, error) {
	var trip *models.Trip

	err := s.locker.WithTripLock(ctx, tripID, func(ctx context.Context, uow database.TripUnitOfWork) error {
		locked := uow.Trip()
		locked.AutoResumeEnabled = enabled
		if err := uow.SaveTrip(ctx); err != nil {
			return err
		}
		trip = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.audit.LogAutoResumeChanged(ctx, actor, tripID, enabled); err != nil {
		s.logger.WithError(err).Warn("Auto resume changed without audit entry")
	}
	return trip, nil
}

// TransitionStatus moves a trip along SCHEDULED → BOARDING → DEPARTED → COMPLETED,
// or to CANCELLED from any non-terminal status.
func (s *TripAdminService) TransitionStatus(ctx context.Context, actor models.Actor, tripID uuid.UUID, next models.TripStatus) (*models.Trip, error) {
	var (
		trip     *models.Trip
		previous models.TripStatus
	)

	err := s.locker.WithTripLock(ctx, tripID, func(ctx context.Context, uow database.TripUnitOfWork) error {
		locked := uow.Trip()
		if !locked.Status.CanTransitionTo(next) {
			return fmt.Errorf("%w: %s -> %s", models.ErrInvalidStatusTransition, locked.Status, next)
		}
		previous = locked.Status
		locked.Status = next
		if err := uow.SaveTrip(ctx); err != nil {
			return err
		}
		trip = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.audit.LogTripStatusChanged(ctx, actor, tripID, previous, next); err != nil {
		s.logger.WithError(err).Warn("Trip status changed without audit entry")
	}

	s.logger.WithFields(logrus.Fields{
		"trip_id": tripID,
		"from":    previous,
		"to":      next,
	}).Info("Trip status changed")

	return trip, nil
}

// checkConflicts sets the date bucket on candidate and returns the conflicts
// that were overridden. Conflicts without an override fail the request.
func (s *TripAdminService) checkConflicts(ctx context.Context, candidate *models.Trip, override models.ResourceOverride) ([]models.ResourceConflict, error) {
	candidate.DepartureDate = s.validator.DateBucket(candidate.DepartureTime)

	existing, err := s.trips.FindActiveByResources(ctx, candidate.DepartureDate,
		candidate.DriverID, candidate.ConductorID, candidate.VehicleID, candidate.ID)
	if err != nil {
		return nil, err
	}

	conflicts := s.validator.Validate(candidate, existing)
	if len(conflicts) == 0 {
		return nil, nil
	}
	if !override.OverrideConflict {
		s.logger.WithFields(logrus.Fields{
			"trip_id":   candidate.ID,
			"date":      candidate.DepartureDate,
			"conflicts": len(conflicts),
		}).Info("Resource conflict rejected")
		return nil, &models.ResourceConflictError{Conflicts: conflicts}
	}
	return conflicts, nil
}

func (s *TripAdminService) auditOverride(ctx context.Context, actor models.Actor, tripID uuid.UUID, conflicts []models.ResourceConflict, override models.ResourceOverride) {
	if len(conflicts) == 0 {
		return
	}
	if err := s.audit.LogConflictOverride(ctx, actor, tripID, conflicts, override.OverrideReason); err != nil {
		s.logger.WithError(err).Error("Resource conflict override without audit entry")
		return
	}
	s.logger.WithFields(logrus.Fields{
		"trip_id":   tripID,
		"actor_id":  actor.UserID,
		"conflicts": len(conflicts),
	}).Warn("Resource conflict overridden")
}
