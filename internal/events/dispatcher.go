package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/smarttransit/booking-engine/internal/models"
)

// publishTimeout bounds a single delivery attempt
const publishTimeout = 5 * time.Second

// Dispatcher queues events in memory and publishes them from one goroutine.
// Dispatch never blocks: when the buffer is full the event is dropped.
type Dispatcher struct {
	publisher Publisher
	logger    *logrus.Logger
	queue     chan models.CapacityChangedEvent
	done      chan struct{}

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
	failed  atomic.Int64
}

// NewDispatcher creates a dispatcher; call Start to begin delivery
func NewDispatcher(publisher Publisher, bufferSize int, logger *logrus.Logger) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Dispatcher{
		publisher: publisher,
		logger:    logger,
		queue:     make(chan models.CapacityChangedEvent, bufferSize),
		done:      make(chan struct{}),
	}
}

// Start launches the delivery goroutine
func (d *Dispatcher) Start() {
	go d.run()
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for event := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := d.publisher.Publish(ctx, event); err != nil {
			d.failed.Add(1)
			d.logger.WithFields(logrus.Fields{
				"trip_id": event.TripID,
				"reason":  event.Reason,
				"error":   err.Error(),
			}).Error("Failed to publish capacity event")
		}
		cancel()
	}
}

// Dispatch enqueues the event and reports whether it was accepted
func (d *Dispatcher) Dispatch(event models.CapacityChangedEvent) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.dropped.Add(1)
		return false
	}

	select {
	case d.queue <- event:
		return true
	default:
		d.dropped.Add(1)
		d.logger.WithFields(logrus.Fields{
			"trip_id":         event.TripID,
			"available_slots": event.AvailableSlots,
		}).Warn("Capacity event buffer full, dropping event")
		return false
	}
}

// Close stops accepting events, drains the queue and closes the publisher
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return d.publisher.Close()
}

// Dropped returns how many events were discarded
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Failed returns how many deliveries the publisher rejected
func (d *Dispatcher) Failed() int64 {
	return d.failed.Load()
}
