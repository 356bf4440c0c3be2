package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/smarttransit/booking-engine/pkg/validator"
)

// MinOverrideReasonLength is the shortest accepted justification for a resource conflict override
const MinOverrideReasonLength = 10

// MaxPassengersPerBooking bounds a single booking request
const MaxPassengersPerBooking = 20

// PassengerInput is one seat holder in a booking request
type PassengerInput struct {
	Name       string `json:"name" validate:"required,max=100"`
	NationalID string `json:"national_id" validate:"required,max=20"`
	Phone      string `json:"phone" validate:"required,lkphone"`
	SeatNumber *int   `json:"seat_number,omitempty" validate:"omitempty,gte=1"`
}

// BookingRequest is built by every channel adapter and handed to the booking coordinator
type BookingRequest struct {
	UserID         uuid.UUID        `json:"user_id"`
	TripID         uuid.UUID        `json:"trip_id"`
	Channel        BookingChannel   `json:"channel"`
	Passengers     []PassengerInput `json:"passengers" validate:"required,min=1,max=20,dive"`
	PreferredSeats []int            `json:"preferred_seats,omitempty" validate:"omitempty,dive,gte=1"`
}

// Validate checks field rules and normalizes passenger phone numbers in place
func (r *BookingRequest) Validate() error {
	if r.UserID == uuid.Nil {
		return fmt.Errorf("%w: user_id is required", ErrInvalidRequest)
	}
	if r.TripID == uuid.Nil {
		return fmt.Errorf("%w: trip_id is required", ErrInvalidRequest)
	}
	if r.Channel == "" {
		r.Channel = BookingChannelWeb
	}
	if !r.Channel.IsValid() {
		return fmt.Errorf("%w: unknown channel %q", ErrInvalidRequest, r.Channel)
	}
	if err := validator.Struct(r); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, err.Error())
	}
	if len(r.PreferredSeats) > len(r.Passengers) {
		return fmt.Errorf("%w: %d preferred seats for %d passengers", ErrInvalidRequest, len(r.PreferredSeats), len(r.Passengers))
	}

	for i := range r.Passengers {
		phone, err := validator.NormalizePhone(r.Passengers[i].Phone)
		if err != nil {
			return fmt.Errorf("%w: passengers[%d].phone: %s", ErrInvalidRequest, i, err.Error())
		}
		r.Passengers[i].Phone = phone
	}

	return nil
}

// RequestedSeats returns the explicit seat choice for each passenger, 0 meaning "any".
// A passenger's own seat number wins over the positional preferred seat.
func (r *BookingRequest) RequestedSeats() []int {
	seats := make([]int, len(r.Passengers))
	for i, p := range r.Passengers {
		switch {
		case p.SeatNumber != nil:
			seats[i] = *p.SeatNumber
		case i < len(r.PreferredSeats):
			seats[i] = r.PreferredSeats[i]
		}
	}
	return seats
}

// ResourceOverride carries an explicit, justified override of resource conflicts
type ResourceOverride struct {
	OverrideConflict bool   `json:"override_conflict"`
	OverrideReason   string `json:"override_reason,omitempty" validate:"max=500"`
}

func (o ResourceOverride) validate() error {
	if o.OverrideConflict && len([]rune(o.OverrideReason)) < MinOverrideReasonLength {
		return fmt.Errorf("%w: at least %d characters required", ErrOverrideReasonTooShort, MinOverrideReasonLength)
	}
	return nil
}

// CreateTripRequest creates a trip and runs the resource conflict check
type CreateTripRequest struct {
	CompanyID     uuid.UUID       `json:"company_id"`
	TotalSlots    int             `json:"total_slots" validate:"required,gt=0,lte=120"`
	Price         decimal.Decimal `json:"price"`
	DriverID      *uuid.UUID      `json:"driver_id,omitempty"`
	ConductorID   *uuid.UUID      `json:"conductor_id,omitempty"`
	VehicleID     *uuid.UUID      `json:"vehicle_id,omitempty"`
	DepartureTime time.Time       `json:"departure_time" validate:"required"`
	ResourceOverride
}

// Validate checks the create trip request
func (r *CreateTripRequest) Validate() error {
	if r.CompanyID == uuid.Nil {
		return fmt.Errorf("%w: company_id is required", ErrInvalidRequest)
	}
	if err := validator.Struct(r); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, err.Error())
	}
	if !r.Price.IsPositive() {
		return fmt.Errorf("%w: price must be positive", ErrInvalidRequest)
	}
	return r.ResourceOverride.validate()
}

// TripEditRequest changes the resources or departure of an existing trip
type TripEditRequest struct {
	TripID        uuid.UUID  `json:"trip_id"`
	DriverID      *uuid.UUID `json:"driver_id,omitempty"`
	ConductorID   *uuid.UUID `json:"conductor_id,omitempty"`
	VehicleID     *uuid.UUID `json:"vehicle_id,omitempty"`
	DepartureTime time.Time  `json:"departure_time" validate:"required"`
	ResourceOverride
}

// Validate checks the edit request
func (r *TripEditRequest) Validate() error {
	if r.TripID == uuid.Nil {
		return fmt.Errorf("%w: trip_id is required", ErrInvalidRequest)
	}
	if err := validator.Struct(r); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, err.Error())
	}
	return r.ResourceOverride.validate()
}

// TripStatusRequest moves a trip along its lifecycle
type TripStatusRequest struct {
	Status TripStatus `json:"status" validate:"required,oneof=SCHEDULED BOARDING DEPARTED COMPLETED CANCELLED"`
}

// AutoResumeRequest toggles the auto-resume override of a trip
type AutoResumeRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// CancelBookingRequest carries the optional reason for an explicit cancellation
type CancelBookingRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=255"`
}

// ValidateRequest runs the tag rules of a small request body
func ValidateRequest(req any) error {
	if err := validator.Struct(req); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, err.Error())
	}
	return nil
}
