package models

import (
	"time"

	"github.com/google/uuid"
)

// Audit actions recorded by the engine
const (
	AuditActionTripCreated        = "trip_created"
	AuditActionTripEdited         = "trip_edited"
	AuditActionConflictOverridden = "resource_conflict_overridden"
	AuditActionBookingsResumed    = "trip_bookings_resumed"
	AuditActionAutoResumeChanged  = "trip_auto_resume_changed"
	AuditActionTripStatusChanged  = "trip_status_changed"
	AuditActionBookingCancelled   = "booking_cancelled"
	AuditEntityTrip               = "trip"
	AuditEntityBooking            = "booking"
)

// AuditLog is one row of the audit trail
type AuditLog struct {
	ID            uuid.UUID              `json:"id" db:"id"`
	ActorID       *uuid.UUID             `json:"actor_id,omitempty" db:"actor_id"`
	Action        string                 `json:"action" db:"action"`
	EntityType    string                 `json:"entity_type" db:"entity_type"`
	EntityID      *uuid.UUID             `json:"entity_id,omitempty" db:"entity_id"`
	Justification *string                `json:"justification,omitempty" db:"justification"`
	IPAddress     string                 `json:"ip_address" db:"ip_address"`
	UserAgent     string                 `json:"user_agent" db:"user_agent"`
	Details       map[string]interface{} `json:"details" db:"-"`
	CreatedAt     time.Time              `json:"created_at" db:"created_at"`
}

// Actor identifies who triggered an administrative action
type Actor struct {
	UserID    uuid.UUID
	IPAddress string
	UserAgent string
}
