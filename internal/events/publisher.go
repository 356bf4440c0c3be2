package events

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/smarttransit/booking-engine/internal/models"
)

// Publisher delivers capacity-changed events to observability and notification collaborators
type Publisher interface {
	Publish(ctx context.Context, event models.CapacityChangedEvent) error
	Close() error
}

// LogPublisher writes events to the application log
type LogPublisher struct {
	logger *logrus.Logger
}

// NewLogPublisher creates a publisher that only logs
func NewLogPublisher(logger *logrus.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, event models.CapacityChangedEvent) error {
	entry := p.logger.WithFields(logrus.Fields{
		"trip_id":         event.TripID,
		"available_slots": event.AvailableSlots,
		"total_slots":     event.TotalSlots,
		"booking_halted":  event.BookingHalted,
		"reason":          event.Reason,
	})
	if event.HaltedNow {
		entry.Warn("Trip auto-halted on low slots")
		return nil
	}
	entry.Info("Trip capacity changed")
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}
