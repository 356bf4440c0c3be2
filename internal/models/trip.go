package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TripStatus represents the lifecycle status of a trip
type TripStatus string

const (
	TripStatusScheduled TripStatus = "SCHEDULED"
	TripStatusBoarding  TripStatus = "BOARDING"
	TripStatusDeparted  TripStatus = "DEPARTED"
	TripStatusCompleted TripStatus = "COMPLETED"
	TripStatusCancelled TripStatus = "CANCELLED"
)

// tripTransitions lists the statuses reachable from each status
var tripTransitions = map[TripStatus][]TripStatus{
	TripStatusScheduled: {TripStatusBoarding, TripStatusCancelled},
	TripStatusBoarding:  {TripStatusDeparted, TripStatusCancelled},
	TripStatusDeparted:  {TripStatusCompleted, TripStatusCancelled},
}

// IsValid reports whether s is a known trip status
func (s TripStatus) IsValid() bool {
	switch s {
	case TripStatusScheduled, TripStatusBoarding, TripStatusDeparted, TripStatusCompleted, TripStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible
func (s TripStatus) IsTerminal() bool {
	return s == TripStatusCompleted || s == TripStatusCancelled
}

// CanTransitionTo checks the trip status machine
func (s TripStatus) CanTransitionTo(next TripStatus) bool {
	for _, allowed := range tripTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Trip represents a single scheduled bus departure.
// AvailableSlots is the single source of truth for remaining capacity.
type Trip struct {
	ID                       uuid.UUID       `json:"id" db:"id"`
	CompanyID                uuid.UUID       `json:"company_id" db:"company_id"`
	TotalSlots               int             `json:"total_slots" db:"total_slots"`
	AvailableSlots           int             `json:"available_slots" db:"available_slots"`
	Status                   TripStatus      `json:"status" db:"status"`
	BookingHalted            bool            `json:"booking_halted" db:"booking_halted"`
	LowSlotAlertSent         bool            `json:"low_slot_alert_sent" db:"low_slot_alert_sent"`
	AdminResumedFromAutoHalt bool            `json:"admin_resumed_from_auto_halt" db:"admin_resumed_from_auto_halt"`
	AutoResumeEnabled        bool            `json:"auto_resume_enabled" db:"auto_resume_enabled"`
	DriverID                 *uuid.UUID      `json:"driver_id,omitempty" db:"driver_id"`
	ConductorID              *uuid.UUID      `json:"conductor_id,omitempty" db:"conductor_id"`
	VehicleID                *uuid.UUID      `json:"vehicle_id,omitempty" db:"vehicle_id"`
	DepartureTime            time.Time       `json:"departure_time" db:"departure_time"`
	DepartureDate            string          `json:"departure_date" db:"departure_date"`
	Price                    decimal.Decimal `json:"price" db:"price"`
	CreatedAt                time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt                time.Time       `json:"updated_at" db:"updated_at"`
}

// IsBookable checks whether the trip accepts booking mutations
func (t *Trip) IsBookable() bool {
	if t.BookingHalted {
		return false
	}
	switch t.Status {
	case TripStatusScheduled, TripStatusBoarding:
		return true
	}
	return false
}

// BookedSlots returns the number of seats currently held
func (t *Trip) BookedSlots() int {
	return t.TotalSlots - t.AvailableSlots
}

// ApplyCapacityDelta consumes (positive delta) or releases (negative delta) seats.
// The trip is left untouched when the result would leave [0, TotalSlots].
func (t *Trip) ApplyCapacityDelta(delta int) error {
	next := t.AvailableSlots - delta
	if next < 0 {
		return &InsufficientCapacityError{TripID: t.ID, Requested: delta, Available: t.AvailableSlots}
	}
	if next > t.TotalSlots {
		return &CapacityInvariantError{TripID: t.ID, TotalSlots: t.TotalSlots, AvailableSlots: next}
	}
	t.AvailableSlots = next
	return nil
}

// Company holds the company-level booking switches
type Company struct {
	ID                      uuid.UUID `json:"id" db:"id"`
	Name                    string    `json:"name" db:"name"`
	DisableAutoHaltGlobally bool      `json:"disable_auto_halt_globally" db:"disable_auto_halt_globally"`
	CreatedAt               time.Time `json:"created_at" db:"created_at"`
	UpdatedAt               time.Time `json:"updated_at" db:"updated_at"`
}

// TripAvailability is the read model returned to channels before booking
type TripAvailability struct {
	TripID         uuid.UUID       `json:"trip_id"`
	Status         TripStatus      `json:"status"`
	TotalSlots     int             `json:"total_slots"`
	AvailableSlots int             `json:"available_slots"`
	BookingHalted  bool            `json:"booking_halted"`
	OccupiedSeats  []int           `json:"occupied_seats"`
	Price          decimal.Decimal `json:"price"`
	DepartureTime  time.Time       `json:"departure_time"`
}
