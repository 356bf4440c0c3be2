package services

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smarttransit/booking-engine/internal/models"
)

func TestSeatAllocator_AutoAssign(t *testing.T) {
	allocator := NewSeatAllocator()
	tripID := uuid.New()

	t.Run("Lowest free seats first", func(t *testing.T) {
		seats, err := allocator.AutoAssign(tripID, []int{1, 2, 4}, 10, 3)
		require.NoError(t, err)
		assert.Equal(t, []int{3, 5, 6}, seats)
	})

	t.Run("Deterministic", func(t *testing.T) {
		occupied := []int{7, 1, 3}
		first, err := allocator.AutoAssign(tripID, occupied, 10, 4)
		require.NoError(t, err)
		for i := 0; i < 10; i++ {
			again, err := allocator.AutoAssign(tripID, occupied, 10, 4)
			require.NoError(t, err)
			assert.Equal(t, first, again)
		}
		assert.Equal(t, []int{2, 4, 5, 6}, first)
	})

	t.Run("Insufficient capacity", func(t *testing.T) {
		_, err := allocator.AutoAssign(tripID, []int{1, 2, 3}, 4, 2)
		require.Error(t, err)

		var capErr *models.InsufficientCapacityError
		require.True(t, errors.As(err, &capErr))
		assert.Equal(t, 2, capErr.Requested)
		assert.Equal(t, 1, capErr.Available)
	})
}

func TestSeatAllocator_PreferredSeats(t *testing.T) {
	allocator := NewSeatAllocator()
	tripID := uuid.New()

	t.Run("Free preferred seats", func(t *testing.T) {
		seats, err := allocator.Allocate(tripID, []int{1, 2}, 40, []int{12, 13})
		require.NoError(t, err)
		assert.Equal(t, []int{12, 13}, seats)
	})

	t.Run("Collision names every taken seat", func(t *testing.T) {
		_, err := allocator.Allocate(tripID, []int{5, 9}, 40, []int{9, 10, 5})
		require.Error(t, err)
		assert.ErrorIs(t, err, models.ErrSeatUnavailable)

		var seatErr *models.SeatUnavailableError
		require.True(t, errors.As(err, &seatErr))
		assert.Equal(t, []int{5, 9}, seatErr.Seats)
		assert.Empty(t, seatErr.OutOfRange)
	})

	t.Run("Out of range", func(t *testing.T) {
		_, err := allocator.Allocate(tripID, nil, 40, []int{41, 3})

		var seatErr *models.SeatUnavailableError
		require.True(t, errors.As(err, &seatErr))
		assert.Equal(t, []int{41}, seatErr.OutOfRange)
	})

	t.Run("Duplicate within request", func(t *testing.T) {
		_, err := allocator.Allocate(tripID, nil, 40, []int{8, 8})

		var seatErr *models.SeatUnavailableError
		require.True(t, errors.As(err, &seatErr))
		assert.Equal(t, []int{8}, seatErr.Seats)
	})

	t.Run("Mixed explicit and auto", func(t *testing.T) {
		seats, err := allocator.Allocate(tripID, []int{1}, 10, []int{0, 2, 0})
		require.NoError(t, err)
		assert.Equal(t, []int{3, 2, 4}, seats)
	})
}
