package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/smarttransit/booking-engine/internal/models"
)

// ExpiredBookingFinder lists PENDING bookings created at or before a cutoff
type ExpiredBookingFinder interface {
	FindExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]models.Booking, error)
}

// BookingExpirer removes one stale PENDING booking under its trip lock
type BookingExpirer interface {
	ExpireBooking(ctx context.Context, bookingID uuid.UUID, cutoff time.Time) (bool, error)
}

// ReapResult summarises one reaper pass
type ReapResult struct {
	Scanned   int
	Expired   int
	Contended int
	Failed    int
}

// PendingBookingReaper returns the seats of PENDING bookings that outlived the pending window
type PendingBookingReaper struct {
	finder    ExpiredBookingFinder
	expirer   BookingExpirer
	window    time.Duration
	batchSize int
	logger    *logrus.Logger
	now       func() time.Time
}

// NewPendingBookingReaper creates a new PendingBookingReaper
func NewPendingBookingReaper(finder ExpiredBookingFinder, expirer BookingExpirer, window time.Duration, batchSize int, logger *logrus.Logger) *PendingBookingReaper {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &PendingBookingReaper{
		finder:    finder,
		expirer:   expirer,
		window:    window,
		batchSize: batchSize,
		logger:    logger,
		now:       time.Now,
	}
}

// RunOnce expires one batch. Bookings on a locked trip are left for the next pass.
func (r *PendingBookingReaper) RunOnce(ctx context.Context) (ReapResult, error) {
	result := ReapResult{}
	cutoff := r.now().Add(-r.window)

	candidates, err := r.finder.FindExpiredPending(ctx, cutoff, r.batchSize)
	if err != nil {
		return result, err
	}
	result.Scanned = len(candidates)

	for _, booking := range candidates {
		expired, err := r.expirer.ExpireBooking(ctx, booking.ID, cutoff)
		switch {
		case err == nil && expired:
			result.Expired++
		case err == nil:
		case models.IsRetryable(err):
			result.Contended++
		default:
			result.Failed++
			r.logger.WithFields(logrus.Fields{
				"booking_id": booking.ID,
				"trip_id":    booking.TripID,
				"error":      err.Error(),
			}).Error("Failed to expire pending booking")
		}
	}

	return result, nil
}
