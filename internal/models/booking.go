package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BookingStatus represents the status of a booking
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusPaid      BookingStatus = "PAID"
	BookingStatusCompleted BookingStatus = "COMPLETED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

// BookingChannel identifies the adapter a booking request came through
type BookingChannel string

const (
	BookingChannelWeb     BookingChannel = "web"
	BookingChannelSMS     BookingChannel = "sms"
	BookingChannelChatbot BookingChannel = "chatbot"
)

// IsValid reports whether c is a known channel
func (c BookingChannel) IsValid() bool {
	switch c {
	case BookingChannelWeb, BookingChannelSMS, BookingChannelChatbot:
		return true
	}
	return false
}

// Booking represents one customer's reservation of seats on a trip
type Booking struct {
	ID                 uuid.UUID       `json:"id" db:"id"`
	TripID             uuid.UUID       `json:"trip_id" db:"trip_id"`
	UserID             uuid.UUID       `json:"user_id" db:"user_id"`
	Status             BookingStatus   `json:"status" db:"status"`
	Channel            BookingChannel  `json:"channel" db:"channel"`
	TotalAmount        decimal.Decimal `json:"total_amount" db:"total_amount"`
	Commission         decimal.Decimal `json:"commission" db:"commission"`
	CommissionVAT      decimal.Decimal `json:"commission_vat" db:"commission_vat"`
	CancellationReason *string         `json:"cancellation_reason,omitempty" db:"cancellation_reason"`
	CancelledAt        *time.Time      `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at" db:"updated_at"`
}

// HoldsSeats reports whether the booking's passengers occupy seats
func (b *Booking) HoldsSeats() bool {
	return b.Status != BookingStatusCancelled
}

// IsReleasable reports whether an explicit cancellation may release the booking
func (b *Booking) IsReleasable() bool {
	return b.Status == BookingStatusPending || b.Status == BookingStatusPaid
}

// IsExpired reports whether a pending booking outlived the payment window
func (b *Booking) IsExpired(now time.Time, window time.Duration) bool {
	return b.Status == BookingStatusPending && !b.CreatedAt.Add(window).After(now)
}

// Passenger is a seat holder owned by exactly one booking
type Passenger struct {
	ID         uuid.UUID `json:"id" db:"id"`
	BookingID  uuid.UUID `json:"booking_id" db:"booking_id"`
	TripID     uuid.UUID `json:"trip_id" db:"trip_id"`
	SeatNumber int       `json:"seat_number" db:"seat_number"`
	Name       string    `json:"name" db:"name"`
	NationalID string    `json:"national_id" db:"national_id"`
	Phone      string    `json:"phone" db:"phone"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// BookingResult is returned to channel adapters after a successful upsert
type BookingResult struct {
	BookingID      uuid.UUID       `json:"booking_id"`
	TripID         uuid.UUID       `json:"trip_id"`
	Status         BookingStatus   `json:"status"`
	SeatNumbers    []int           `json:"seat_numbers"`
	TicketTotal    decimal.Decimal `json:"ticket_total"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Commission     decimal.Decimal `json:"commission"`
	CommissionVAT  decimal.Decimal `json:"commission_vat"`
	Resumed        bool            `json:"resumed"`
	AvailableSlots int             `json:"available_slots"`
	BookingHalted  bool            `json:"booking_halted"`
}

// ReleaseResult is returned after seats of a booking were handed back to the trip
type ReleaseResult struct {
	BookingID      uuid.UUID     `json:"booking_id"`
	TripID         uuid.UUID     `json:"trip_id"`
	Status         BookingStatus `json:"status"`
	ReleasedSeats  []int         `json:"released_seats"`
	AvailableSlots int           `json:"available_slots"`
}
