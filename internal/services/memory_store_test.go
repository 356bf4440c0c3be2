package services

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/smarttransit/booking-engine/internal/database"
	"github.com/smarttransit/booking-engine/internal/models"
)

// memoryStore is an in-memory stand-in for Postgres. Trip locks are taken with
// TryLock so a held lock fails fast like FOR UPDATE NOWAIT, and each unit of
// work runs against copies that are only written back on success.
type memoryStore struct {
	mu         sync.Mutex
	trips      map[uuid.UUID]*models.Trip
	companies  map[uuid.UUID]bool
	bookings   map[uuid.UUID]*models.Booking
	passengers map[uuid.UUID][]models.Passenger
	locks      map[uuid.UUID]*sync.Mutex

	// holdLock keeps the trip lock for this long inside every unit of work
	holdLock time.Duration
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		trips:      map[uuid.UUID]*models.Trip{},
		companies:  map[uuid.UUID]bool{},
		bookings:   map[uuid.UUID]*models.Booking{},
		passengers: map[uuid.UUID][]models.Passenger{},
		locks:      map[uuid.UUID]*sync.Mutex{},
	}
}

func (s *memoryStore) addTrip(total, available int) *models.Trip {
	s.mu.Lock()
	defer s.mu.Unlock()
	trip := &models.Trip{
		ID:             uuid.New(),
		CompanyID:      uuid.New(),
		TotalSlots:     total,
		AvailableSlots: available,
		Status:         models.TripStatusScheduled,
		DepartureTime:  time.Now().Add(24 * time.Hour),
		Price:          decimal.RequireFromString("100"),
	}
	s.trips[trip.ID] = trip
	return trip
}

// seedBooking stores a booking holding seats without touching the trip counter
func (s *memoryStore) seedBooking(tripID, userID uuid.UUID, status models.BookingStatus, createdAt time.Time, seats ...int) *models.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	booking := &models.Booking{
		ID:        uuid.New(),
		TripID:    tripID,
		UserID:    userID,
		Status:    status,
		Channel:   models.BookingChannelWeb,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	s.bookings[booking.ID] = booking
	for _, seat := range seats {
		s.passengers[booking.ID] = append(s.passengers[booking.ID], models.Passenger{
			ID: uuid.New(), BookingID: booking.ID, TripID: tripID, SeatNumber: seat, Name: "Seeded",
		})
	}
	return booking
}

func (s *memoryStore) lockFor(tripID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[tripID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[tripID] = lock
	}
	return lock
}

func (s *memoryStore) WithTripLock(ctx context.Context, tripID uuid.UUID, work database.TripWork) error {
	lock := s.lockFor(tripID)
	if !lock.TryLock() {
		return &models.LockContentionError{TripID: tripID}
	}
	defer lock.Unlock()

	tx, err := s.begin(tripID)
	if err != nil {
		return err
	}
	if s.holdLock > 0 {
		time.Sleep(s.holdLock)
	}
	if err := work(ctx, tx); err != nil {
		return err
	}
	s.commit(tx)
	return nil
}

func (s *memoryStore) begin(tripID uuid.UUID) (*memoryTx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	trip, ok := s.trips[tripID]
	if !ok {
		return nil, models.ErrTripNotFound
	}
	tripCopy := *trip
	tx := &memoryTx{
		trip:            &tripCopy,
		companyDisabled: s.companies[trip.CompanyID],
		bookings:        map[uuid.UUID]*models.Booking{},
		passengers:      map[uuid.UUID][]models.Passenger{},
	}
	for id, b := range s.bookings {
		if b.TripID != tripID {
			continue
		}
		bookingCopy := *b
		tx.bookings[id] = &bookingCopy
		tx.passengers[id] = append([]models.Passenger(nil), s.passengers[id]...)
	}
	return tx, nil
}

func (s *memoryStore) commit(tx *memoryTx) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, b := range s.bookings {
		if b.TripID == tx.trip.ID {
			delete(s.bookings, id)
			delete(s.passengers, id)
		}
	}
	for id, b := range tx.bookings {
		s.bookings[id] = b
		if len(tx.passengers[id]) > 0 {
			s.passengers[id] = tx.passengers[id]
		}
	}
	s.trips[tx.trip.ID] = tx.trip
}

// TripReader / BookingReader

func (s *memoryStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, models.ErrBookingNotFound
	}
	copied := *b
	return &copied, nil
}

type memoryTripReader struct{ store *memoryStore }

func (r memoryTripReader) GetByID(ctx context.Context, id uuid.UUID) (*models.Trip, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	t, ok := r.store.trips[id]
	if !ok {
		return nil, models.ErrTripNotFound
	}
	copied := *t
	return &copied, nil
}

func (r memoryTripReader) OccupiedSeats(ctx context.Context, tripID uuid.UUID) ([]int, error) {
	return r.store.heldSeats(tripID), nil
}

// test helpers

func (s *memoryStore) trip(id uuid.UUID) models.Trip {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.trips[id]
}

func (s *memoryStore) heldSeats(tripID uuid.UUID) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	seats := []int{}
	for id, b := range s.bookings {
		if b.TripID != tripID || b.Status == models.BookingStatusCancelled {
			continue
		}
		for _, p := range s.passengers[id] {
			seats = append(seats, p.SeatNumber)
		}
	}
	sort.Ints(seats)
	return seats
}

func (s *memoryStore) pendingBookings(tripID, userID uuid.UUID) []models.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Booking{}
	for _, b := range s.bookings {
		if b.TripID == tripID && b.UserID == userID && b.Status == models.BookingStatusPending {
			out = append(out, *b)
		}
	}
	return out
}

func (s *memoryStore) passengersOf(bookingID uuid.UUID) []models.Passenger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Passenger(nil), s.passengers[bookingID]...)
}

type memoryTx struct {
	trip            *models.Trip
	companyDisabled bool
	bookings        map[uuid.UUID]*models.Booking
	passengers      map[uuid.UUID][]models.Passenger
}

func (t *memoryTx) Trip() *models.Trip { return t.trip }

func (t *memoryTx) CompanyAutoHaltDisabled(ctx context.Context) (bool, error) {
	return t.companyDisabled, nil
}

func (t *memoryTx) FindPendingBooking(ctx context.Context, userID uuid.UUID) (*models.Booking, error) {
	for _, b := range t.bookings {
		if b.UserID == userID && b.Status == models.BookingStatusPending {
			return b, nil
		}
	}
	return nil, nil
}

func (t *memoryTx) GetBooking(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error) {
	b, ok := t.bookings[bookingID]
	if !ok {
		return nil, models.ErrBookingNotFound
	}
	return b, nil
}

func (t *memoryTx) OccupiedSeats(ctx context.Context, excludeBookingID uuid.UUID) ([]int, error) {
	seats := []int{}
	for id, b := range t.bookings {
		if id == excludeBookingID || b.Status == models.BookingStatusCancelled {
			continue
		}
		for _, p := range t.passengers[id] {
			seats = append(seats, p.SeatNumber)
		}
	}
	sort.Ints(seats)
	return seats, nil
}

func (t *memoryTx) BookingSeats(ctx context.Context, bookingID uuid.UUID) ([]int, error) {
	seats := []int{}
	for _, p := range t.passengers[bookingID] {
		seats = append(seats, p.SeatNumber)
	}
	sort.Ints(seats)
	return seats, nil
}

func (t *memoryTx) CreateBooking(ctx context.Context, booking *models.Booking) error {
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	booking.TripID = t.trip.ID
	booking.CreatedAt = time.Now()
	booking.UpdatedAt = booking.CreatedAt
	t.bookings[booking.ID] = booking
	return nil
}

func (t *memoryTx) UpdateBooking(ctx context.Context, booking *models.Booking) error {
	if _, ok := t.bookings[booking.ID]; !ok {
		return models.ErrBookingNotFound
	}
	booking.UpdatedAt = time.Now()
	t.bookings[booking.ID] = booking
	return nil
}

func (t *memoryTx) DeleteBooking(ctx context.Context, bookingID uuid.UUID) error {
	if _, ok := t.bookings[bookingID]; !ok {
		return models.ErrBookingNotFound
	}
	delete(t.bookings, bookingID)
	delete(t.passengers, bookingID)
	return nil
}

func (t *memoryTx) ReplacePassengers(ctx context.Context, bookingID uuid.UUID, passengers []models.Passenger) error {
	replaced := make([]models.Passenger, len(passengers))
	for i, p := range passengers {
		p.ID = uuid.New()
		p.BookingID = bookingID
		p.TripID = t.trip.ID
		replaced[i] = p
	}
	t.passengers[bookingID] = replaced
	return nil
}

func (t *memoryTx) SaveTripCapacity(ctx context.Context) error { return nil }

func (t *memoryTx) SaveTrip(ctx context.Context) error { return nil }

// recordingSink collects dispatched events
type recordingSink struct {
	mu     sync.Mutex
	events []models.CapacityChangedEvent
}

func (s *recordingSink) Dispatch(event models.CapacityChangedEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return true
}

func (s *recordingSink) all() []models.CapacityChangedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.CapacityChangedEvent(nil), s.events...)
}

func nullLogger() *logrus.Logger {
	logger, _ := logtest.NewNullLogger()
	return logger
}

func newTestCoordinator(t *testing.T, store *memoryStore) (*BookingCoordinator, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	coordinator := NewBookingCoordinator(
		store,
		memoryTripReader{store: store},
		store,
		NewSeatAllocator(),
		NewFareCalculator(DefaultCommissionRate, DefaultVATRate),
		NewCapacityMonitor(DefaultLowSlotThreshold),
		sink,
		nullLogger(),
	)
	return coordinator, sink
}
