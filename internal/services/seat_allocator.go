package services

import (
	"sort"

	"github.com/google/uuid"

	"github.com/smarttransit/booking-engine/internal/models"
)

// SeatAllocator assigns seat numbers from a trip's occupancy set.
// It is deterministic: the same occupancy and request always yield the same seats.
type SeatAllocator struct{}

// NewSeatAllocator creates a new SeatAllocator
func NewSeatAllocator() *SeatAllocator {
	return &SeatAllocator{}
}

// Allocate returns one seat per entry of requested. A non-zero entry is an
// explicit seat that must be free and within 1..totalSlots; zero entries are
// filled with the lowest free seat numbers in ascending order.
// Nothing is allocated unless every seat can be.
func (a *SeatAllocator) Allocate(tripID uuid.UUID, occupied []int, totalSlots int, requested []int) ([]int, error) {
	taken := make(map[int]bool, len(occupied)+len(requested))
	for _, seat := range occupied {
		taken[seat] = true
	}

	var collisions, outOfRange []int
	claimed := make(map[int]bool, len(requested))
	autoCount := 0

	for _, seat := range requested {
		if seat == 0 {
			autoCount++
			continue
		}
		switch {
		case seat < 1 || seat > totalSlots:
			outOfRange = append(outOfRange, seat)
		case taken[seat] || claimed[seat]:
			collisions = append(collisions, seat)
		default:
			claimed[seat] = true
		}
	}

	if len(collisions) > 0 || len(outOfRange) > 0 {
		sort.Ints(collisions)
		sort.Ints(outOfRange)
		return nil, &models.SeatUnavailableError{TripID: tripID, Seats: collisions, OutOfRange: outOfRange}
	}

	for seat := range claimed {
		taken[seat] = true
	}

	free := make([]int, 0, autoCount)
	for seat := 1; seat <= totalSlots && len(free) < autoCount; seat++ {
		if !taken[seat] {
			free = append(free, seat)
		}
	}
	if len(free) < autoCount {
		return nil, &models.InsufficientCapacityError{
			TripID:    tripID,
			Requested: autoCount,
			Available: len(free),
		}
	}

	seats := make([]int, len(requested))
	next := 0
	for i, seat := range requested {
		if seat == 0 {
			seats[i] = free[next]
			next++
			continue
		}
		seats[i] = seat
	}

	return seats, nil
}

// AutoAssign picks the lowest count free seats
func (a *SeatAllocator) AutoAssign(tripID uuid.UUID, occupied []int, totalSlots, count int) ([]int, error) {
	return a.Allocate(tripID, occupied, totalSlots, make([]int, count))
}
