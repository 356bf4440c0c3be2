package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/smarttransit/booking-engine/internal/models"
	"github.com/smarttransit/booking-engine/internal/utils"
)

// AuditStore persists audit entries
type AuditStore interface {
	Create(ctx context.Context, entry *models.AuditLog) error
	DeleteOlderThan(ctx context.Context, olderThan time.Duration) (int64, error)
}

// AuditService records administrative actions on trips and bookings
type AuditService struct {
	store  AuditStore
	logger *logrus.Logger
}

// NewAuditService creates a new audit service
func NewAuditService(store AuditStore, logger *logrus.Logger) *AuditService {
	return &AuditService{
		store:  store,
		logger: logger,
	}
}

// AuditEvent is one action to be written to the audit trail
type AuditEvent struct {
	Actor         models.Actor
	Action        string
	EntityType    string
	EntityID      uuid.UUID
	Justification string
	Details       map[string]interface{}
}

// LogTripCreated records a new trip
func (s *AuditService) LogTripCreated(ctx context.Context, actor models.Actor, trip *models.Trip) error {
	return s.Record(ctx, AuditEvent{
		Actor:      actor,
		Action:     models.AuditActionTripCreated,
		EntityType: models.AuditEntityTrip,
		EntityID:   trip.ID,
		Details: map[string]interface{}{
			"company_id":     trip.CompanyID,
			"total_slots":    trip.TotalSlots,
			"departure_time": trip.DepartureTime,
			"resources":      trip.Assignments(),
		},
	})
}

// LogTripEdited records a resource or departure change
func (s *AuditService) LogTripEdited(ctx context.Context, actor models.Actor, before, after *models.Trip) error {
	return s.Record(ctx, AuditEvent{
		Actor:      actor,
		Action:     models.AuditActionTripEdited,
		EntityType: models.AuditEntityTrip,
		EntityID:   after.ID,
		Details: map[string]interface{}{
			"previous_departure": before.DepartureTime,
			"departure_time":     after.DepartureTime,
			"previous_resources": before.Assignments(),
			"resources":          after.Assignments(),
		},
	})
}

// LogConflictOverride records conflicts an administrator chose to override, with the justification
func (s *AuditService) LogConflictOverride(ctx context.Context, actor models.Actor, tripID uuid.UUID, conflicts []models.ResourceConflict, reason string) error {
	described := make([]string, len(conflicts))
	for i, c := range conflicts {
		described[i] = c.String()
	}

	return s.Record(ctx, AuditEvent{
		Actor:         actor,
		Action:        models.AuditActionConflictOverridden,
		EntityType:    models.AuditEntityTrip,
		EntityID:      tripID,
		Justification: reason,
		Details: map[string]interface{}{
			"conflicts":      described,
			"conflict_count": len(conflicts),
		},
	})
}

// LogBookingsResumed records an explicit admin resume of a halted trip
func (s *AuditService) LogBookingsResumed(ctx context.Context, actor models.Actor, trip *models.Trip, wasHalted bool) error {
	return s.Record(ctx, AuditEvent{
		Actor:      actor,
		Action:     models.AuditActionBookingsResumed,
		EntityType: models.AuditEntityTrip,
		EntityID:   trip.ID,
		Details: map[string]interface{}{
			"was_halted":      wasHalted,
			"available_slots": trip.AvailableSlots,
		},
	})
}

// LogAutoResumeChanged records a toggle of the auto-resume override
func (s *AuditService) LogAutoResumeChanged(ctx context.Context, actor models.Actor, tripID uuid.UUID, enabled bool) error {
	return s.Record(ctx, AuditEvent{
		Actor:      actor,
		Action:     models.AuditActionAutoResumeChanged,
		EntityType: models.AuditEntityTrip,
		EntityID:   tripID,
		Details:    map[string]interface{}{"enabled": enabled},
	})
}

// LogTripStatusChanged records a lifecycle transition
func (s *AuditService) LogTripStatusChanged(ctx context.Context, actor models.Actor, tripID uuid.UUID, from, to models.TripStatus) error {
	return s.Record(ctx, AuditEvent{
		Actor:      actor,
		Action:     models.AuditActionTripStatusChanged,
		EntityType: models.AuditEntityTrip,
		EntityID:   tripID,
		Details:    map[string]interface{}{"from": from, "to": to},
	})
}

// LogBookingCancelled records an explicit cancellation
func (s *AuditService) LogBookingCancelled(ctx context.Context, actor models.Actor, result *models.ReleaseResult, reason string) error {
	return s.Record(ctx, AuditEvent{
		Actor:         actor,
		Action:        models.AuditActionBookingCancelled,
		EntityType:    models.AuditEntityBooking,
		EntityID:      result.BookingID,
		Justification: reason,
		Details: map[string]interface{}{
			"trip_id":        result.TripID,
			"released_seats": result.ReleasedSeats,
		},
	})
}

// Record writes one audit entry, adding the parsed device info of the actor
func (s *AuditService) Record(ctx context.Context, event AuditEvent) error {
	details := event.Details
	if details == nil {
		details = make(map[string]interface{})
	}
	details["device_info"] = utils.ParseUserAgent(event.Actor.UserAgent)

	entry := &models.AuditLog{
		Action:     event.Action,
		EntityType: event.EntityType,
		IPAddress:  event.Actor.IPAddress,
		UserAgent:  event.Actor.UserAgent,
		Details:    details,
	}
	if event.Actor.UserID != uuid.Nil {
		actorID := event.Actor.UserID
		entry.ActorID = &actorID
	}
	if event.EntityID != uuid.Nil {
		entityID := event.EntityID
		entry.EntityID = &entityID
	}
	if event.Justification != "" {
		justification := event.Justification
		entry.Justification = &justification
	}

	if err := s.store.Create(ctx, entry); err != nil {
		s.logger.WithFields(logrus.Fields{
			"action":    event.Action,
			"entity_id": event.EntityID,
			"error":     err.Error(),
		}).Error("Failed to write audit log")
		return fmt.Errorf("failed to record %s: %w", event.Action, err)
	}
	return nil
}

// CleanupOldAuditLogs removes audit logs older than the specified duration
func (s *AuditService) CleanupOldAuditLogs(ctx context.Context, olderThan time.Duration) (int64, error) {
	deleted, err := s.store.DeleteOlderThan(ctx, olderThan)
	if err != nil {
		return 0, err
	}
	s.logger.WithFields(logrus.Fields{
		"deleted":    deleted,
		"older_than": olderThan.String(),
	}).Info("Cleaned up old audit logs")
	return deleted, nil
}
