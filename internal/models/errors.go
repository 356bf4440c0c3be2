package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Error codes returned to channel adapters
const (
	CodeInsufficientCapacity    = "INSUFFICIENT_CAPACITY"
	CodeSeatUnavailable         = "SEAT_UNAVAILABLE"
	CodeTripNotBookable         = "TRIP_NOT_BOOKABLE"
	CodeResourceConflict        = "RESOURCE_CONFLICT"
	CodeLockContention          = "LOCK_CONTENTION"
	CodeTransactionTimeout      = "TRANSACTION_TIMEOUT"
	CodeTripNotFound            = "TRIP_NOT_FOUND"
	CodeBookingNotFound         = "BOOKING_NOT_FOUND"
	CodeInvalidRequest          = "INVALID_REQUEST"
	CodeOverrideReasonTooShort  = "OVERRIDE_REASON_TOO_SHORT"
	CodeInvalidStatusTransition = "INVALID_STATUS_TRANSITION"
	CodeBookingNotReleasable    = "BOOKING_NOT_RELEASABLE"
	CodeInternal                = "INTERNAL_ERROR"
)

var (
	ErrInsufficientCapacity    = errors.New("insufficient capacity")
	ErrSeatUnavailable         = errors.New("seat unavailable")
	ErrTripNotBookable         = errors.New("trip not bookable")
	ErrResourceConflict        = errors.New("resource conflict")
	ErrLockContention          = errors.New("trip is locked by a concurrent booking")
	ErrTransactionTimeout      = errors.New("transaction timed out")
	ErrCapacityInvariant       = errors.New("capacity invariant violated")
	ErrTripNotFound            = errors.New("trip not found")
	ErrBookingNotFound         = errors.New("booking not found")
	ErrInvalidRequest          = errors.New("invalid request")
	ErrOverrideReasonTooShort  = errors.New("override reason too short")
	ErrInvalidStatusTransition = errors.New("invalid trip status transition")
	ErrBookingNotReleasable    = errors.New("booking cannot be released")
)

// InsufficientCapacityError is returned when a booking needs more seats than remain
type InsufficientCapacityError struct {
	TripID    uuid.UUID `json:"trip_id"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}

func (e *InsufficientCapacityError) Error() string {
	return fmt.Sprintf("insufficient capacity on trip %s: requested %d, available %d", e.TripID, e.Requested, e.Available)
}

func (e *InsufficientCapacityError) Is(target error) bool { return target == ErrInsufficientCapacity }

// SeatUnavailableError names the requested seats that cannot be assigned
type SeatUnavailableError struct {
	TripID     uuid.UUID `json:"trip_id"`
	Seats      []int     `json:"seats"`
	OutOfRange []int     `json:"out_of_range,omitempty"`
}

func (e *SeatUnavailableError) Error() string {
	parts := []string{}
	if len(e.Seats) > 0 {
		parts = append(parts, fmt.Sprintf("taken %v", e.Seats))
	}
	if len(e.OutOfRange) > 0 {
		parts = append(parts, fmt.Sprintf("out of range %v", e.OutOfRange))
	}
	return fmt.Sprintf("seats unavailable on trip %s: %s", e.TripID, strings.Join(parts, ", "))
}

func (e *SeatUnavailableError) Is(target error) bool { return target == ErrSeatUnavailable }

// TripNotBookableError is returned for cancelled, departed, completed or halted trips
type TripNotBookableError struct {
	TripID uuid.UUID  `json:"trip_id"`
	Status TripStatus `json:"status"`
	Halted bool       `json:"booking_halted"`
}

func (e *TripNotBookableError) Error() string {
	if e.Halted {
		return fmt.Sprintf("trip %s is not bookable: bookings halted", e.TripID)
	}
	return fmt.Sprintf("trip %s is not bookable: status %s", e.TripID, e.Status)
}

func (e *TripNotBookableError) Is(target error) bool { return target == ErrTripNotBookable }

// ResourceConflictError carries every conflict found for a trip create/edit
type ResourceConflictError struct {
	Conflicts []ResourceConflict `json:"conflicts"`
}

func (e *ResourceConflictError) Error() string {
	descs := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		descs = append(descs, c.String())
	}
	return "resource conflict: " + strings.Join(descs, "; ")
}

func (e *ResourceConflictError) Is(target error) bool { return target == ErrResourceConflict }

// LockContentionError is returned when the trip row is locked by another transaction
type LockContentionError struct {
	TripID uuid.UUID `json:"trip_id"`
}

func (e *LockContentionError) Error() string {
	return fmt.Sprintf("trip %s is locked by a concurrent booking, retry later", e.TripID)
}

func (e *LockContentionError) Is(target error) bool { return target == ErrLockContention }

// TransactionTimeoutError is returned when a unit of work exceeds its time bound
type TransactionTimeoutError struct {
	Timeout time.Duration `json:"timeout"`
}

func (e *TransactionTimeoutError) Error() string {
	return fmt.Sprintf("transaction exceeded %s and was rolled back", e.Timeout)
}

func (e *TransactionTimeoutError) Is(target error) bool { return target == ErrTransactionTimeout }

// CapacityInvariantError signals that a release would push available slots above capacity
type CapacityInvariantError struct {
	TripID         uuid.UUID `json:"trip_id"`
	TotalSlots     int       `json:"total_slots"`
	AvailableSlots int       `json:"available_slots"`
}

func (e *CapacityInvariantError) Error() string {
	return fmt.Sprintf("trip %s would have %d of %d slots available", e.TripID, e.AvailableSlots, e.TotalSlots)
}

func (e *CapacityInvariantError) Is(target error) bool { return target == ErrCapacityInvariant }

// ErrorCodeOf maps an error chain to the code reported to channel adapters
func ErrorCodeOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInsufficientCapacity):
		return CodeInsufficientCapacity
	case errors.Is(err, ErrSeatUnavailable):
		return CodeSeatUnavailable
	case errors.Is(err, ErrTripNotBookable):
		return CodeTripNotBookable
	case errors.Is(err, ErrResourceConflict):
		return CodeResourceConflict
	case errors.Is(err, ErrLockContention):
		return CodeLockContention
	case errors.Is(err, ErrTransactionTimeout):
		return CodeTransactionTimeout
	case errors.Is(err, ErrTripNotFound):
		return CodeTripNotFound
	case errors.Is(err, ErrBookingNotFound):
		return CodeBookingNotFound
	case errors.Is(err, ErrInvalidRequest):
		return CodeInvalidRequest
	case errors.Is(err, ErrOverrideReasonTooShort):
		return CodeOverrideReasonTooShort
	case errors.Is(err, ErrInvalidStatusTransition):
		return CodeInvalidStatusTransition
	case errors.Is(err, ErrBookingNotReleasable):
		return CodeBookingNotReleasable
	}
	return CodeInternal
}

// IsRetryable reports whether the caller may retry the same request unchanged
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLockContention) || errors.Is(err, ErrTransactionTimeout)
}
