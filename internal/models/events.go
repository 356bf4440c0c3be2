package models

import (
	"time"

	"github.com/google/uuid"
)

// CapacityChangeReason says which mutation moved the trip counter
type CapacityChangeReason string

const (
	CapacityReasonBooked   CapacityChangeReason = "BOOKED"
	CapacityReasonReleased CapacityChangeReason = "RELEASED"
	CapacityReasonExpired  CapacityChangeReason = "EXPIRED"
	CapacityReasonResumed  CapacityChangeReason = "RESUMED"
)

// CapacityChangedEvent is published after a booking mutation commits
type CapacityChangedEvent struct {
	TripID           uuid.UUID            `json:"trip_id"`
	AvailableSlots   int                  `json:"available_slots"`
	TotalSlots       int                  `json:"total_slots"`
	BookingHalted    bool                 `json:"booking_halted"`
	LowSlotAlertSent bool                 `json:"low_slot_alert_sent"`
	HaltedNow        bool                 `json:"halted_now"`
	Reason           CapacityChangeReason `json:"reason"`
	OccurredAt       time.Time            `json:"occurred_at"`
}

// NewCapacityChangedEvent snapshots the trip counters
func NewCapacityChangedEvent(trip *Trip, reason CapacityChangeReason, haltedNow bool) CapacityChangedEvent {
	return CapacityChangedEvent{
		TripID:           trip.ID,
		AvailableSlots:   trip.AvailableSlots,
		TotalSlots:       trip.TotalSlots,
		BookingHalted:    trip.BookingHalted,
		LowSlotAlertSent: trip.LowSlotAlertSent,
		HaltedNow:        haltedNow,
		Reason:           reason,
		OccurredAt:       time.Now().UTC(),
	}
}
