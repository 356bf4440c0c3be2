package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smarttransit/booking-engine/internal/models"
)

// fakeTripAdmin records the last request of each operation
type fakeTripAdmin struct {
	actor      models.Actor
	createReq  models.CreateTripRequest
	editReq    models.TripEditRequest
	tripID     uuid.UUID
	autoResume *bool
	status     models.TripStatus

	trip *models.Trip
	err  error
}

func (f *fakeTripAdmin) CreateTrip(ctx context.Context, actor models.Actor, req models.CreateTripRequest) (*models.Trip, error) {
	f.actor, f.createReq = actor, req
	return f.trip, f.err
}

func (f *fakeTripAdmin) EditTrip(ctx context.Context, actor models.Actor, req models.TripEditRequest) (*models.Trip, error) {
	f.actor, f.editReq = actor, req
	return f.trip, f.err
}

func (f *fakeTripAdmin) ResumeBookings(ctx context.Context, actor models.Actor, tripID uuid.UUID) (*models.Trip, error) {
	f.actor, f.tripID = actor, tripID
	return f.trip, f.err
}

func (f *fakeTripAdmin) SetAutoResume(ctx context.Context, actor models.Actor, tripID uuid.UUID, enabled bool) (*models.Trip, error) {
	f.actor, f.tripID, f.autoResume = actor, tripID, &enabled
	return f.trip, f.err
}

func (f *fakeTripAdmin) TransitionStatus(ctx context.Context, actor models.Actor, tripID uuid.UUID, next models.TripStatus) (*models.Trip, error) {
	f.actor, f.tripID, f.status = actor, tripID, next
	return f.trip, f.err
}

func setupAdminRouter(admin *fakeTripAdmin, userID uuid.UUID) *gin.Engine {
	router := setupTestRouter()
	handler := NewTripAdminHandler(admin, testLogger())

	trips := router.Group("/api/v1/admin/trips", withUser(userID, RoleAdmin))
	trips.POST("", handler.CreateTrip)
	trips.PUT("/:trip_id", handler.EditTrip)
	trips.POST("/:trip_id/resume-booking", handler.ResumeBookings)
	trips.PUT("/:trip_id/auto-resume", handler.SetAutoResume)
	trips.PUT("/:trip_id/status", handler.UpdateStatus)
	return router
}

func TestTripAdminHandler_CreateTrip(t *testing.T) {
	userID := uuid.New()
	vehicleID := uuid.New()
	body := map[string]interface{}{
		"company_id":     uuid.New(),
		"total_slots":    40,
		"price":          "850.00",
		"vehicle_id":     vehicleID,
		"departure_time": "2026-11-02T07:30:00+05:30",
	}

	t.Run("Success", func(t *testing.T) {
		trip := &models.Trip{ID: uuid.New(), TotalSlots: 40, AvailableSlots: 40, Status: models.TripStatusScheduled}
		admin := &fakeTripAdmin{trip: trip}
		router := setupAdminRouter(admin, userID)

		w := doJSON(t, router, http.MethodPost, "/api/v1/admin/trips", body)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, userID, admin.actor.UserID)
		assert.Contains(t, admin.actor.UserAgent, "Mozilla")
		assert.NotEmpty(t, admin.actor.IPAddress)
		assert.Equal(t, 40, admin.createReq.TotalSlots)
		require.NotNil(t, admin.createReq.VehicleID)
		assert.Equal(t, vehicleID, *admin.createReq.VehicleID)
		assert.Equal(t, "850", admin.createReq.Price.String())

		var created models.Trip
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
		assert.Equal(t, trip.ID, created.ID)
	})

	t.Run("Conflict", func(t *testing.T) {
		conflictingTrip := uuid.New()
		admin := &fakeTripAdmin{err: &models.ResourceConflictError{Conflicts: []models.ResourceConflict{{
			Type:              models.ResourceTypeVehicle,
			ResourceID:        vehicleID,
			DateBucket:        "2026-11-02",
			ConflictingTripID: conflictingTrip,
		}}}}
		router := setupAdminRouter(admin, userID)

		w := doJSON(t, router, http.MethodPost, "/api/v1/admin/trips", body)

		assert.Equal(t, http.StatusConflict, w.Code)
		resp := decodeError(t, w)
		assert.Equal(t, models.CodeResourceConflict, resp.Code)
		conflicts, ok := resp.Details["conflicts"].([]interface{})
		require.True(t, ok)
		require.Len(t, conflicts, 1)
		first := conflicts[0].(map[string]interface{})
		assert.Equal(t, conflictingTrip.String(), first["conflicting_trip_id"])
		assert.Equal(t, "2026-11-02", first["date_bucket"])
	})

	t.Run("OverrideReasonTooShort", func(t *testing.T) {
		admin := &fakeTripAdmin{err: fmt.Errorf("%w: at least 10 characters required", models.ErrOverrideReasonTooShort)}
		router := setupAdminRouter(admin, userID)

		w := doJSON(t, router, http.MethodPost, "/api/v1/admin/trips", body)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, models.CodeOverrideReasonTooShort, decodeError(t, w).Code)
	})
}

func TestTripAdminHandler_EditTrip(t *testing.T) {
	tripID := uuid.New()
	admin := &fakeTripAdmin{trip: &models.Trip{ID: tripID}}
	router := setupAdminRouter(admin, uuid.New())

	w := doJSON(t, router, http.MethodPut, "/api/v1/admin/trips/"+tripID.String(), map[string]interface{}{
		"trip_id":           uuid.New(),
		"departure_time":    time.Date(2026, 11, 3, 6, 0, 0, 0, time.UTC),
		"override_conflict": true,
		"override_reason":   "replacement vehicle arranged",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, tripID, admin.editReq.TripID)
	assert.True(t, admin.editReq.OverrideConflict)
	assert.Equal(t, "replacement vehicle arranged", admin.editReq.OverrideReason)
}

func TestTripAdminHandler_ResumeBookings(t *testing.T) {
	tripID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		admin := &fakeTripAdmin{trip: &models.Trip{ID: tripID, AdminResumedFromAutoHalt: true}}
		router := setupAdminRouter(admin, uuid.New())

		w := doJSON(t, router, http.MethodPost, "/api/v1/admin/trips/"+tripID.String()+"/resume-booking", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, tripID, admin.tripID)
	})

	t.Run("InvalidTripID", func(t *testing.T) {
		router := setupAdminRouter(&fakeTripAdmin{}, uuid.New())

		w := doJSON(t, router, http.MethodPost, "/api/v1/admin/trips/abc/resume-booking", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Locked", func(t *testing.T) {
		admin := &fakeTripAdmin{err: &models.LockContentionError{TripID: tripID}}
		router := setupAdminRouter(admin, uuid.New())

		w := doJSON(t, router, http.MethodPost, "/api/v1/admin/trips/"+tripID.String()+"/resume-booking", nil)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.True(t, decodeError(t, w).Retryable)
	})
}

func TestTripAdminHandler_SetAutoResume(t *testing.T) {
	tripID := uuid.New()
	path := "/api/v1/admin/trips/" + tripID.String() + "/auto-resume"

	t.Run("Enable", func(t *testing.T) {
		admin := &fakeTripAdmin{trip: &models.Trip{ID: tripID, AutoResumeEnabled: true}}
		router := setupAdminRouter(admin, uuid.New())

		w := doJSON(t, router, http.MethodPut, path, map[string]bool{"enabled": true})

		assert.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, admin.autoResume)
		assert.True(t, *admin.autoResume)
	})

	t.Run("Disable", func(t *testing.T) {
		admin := &fakeTripAdmin{trip: &models.Trip{ID: tripID}}
		router := setupAdminRouter(admin, uuid.New())

		w := doJSON(t, router, http.MethodPut, path, map[string]bool{"enabled": false})

		assert.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, admin.autoResume)
		assert.False(t, *admin.autoResume)
	})

	t.Run("MissingFlag", func(t *testing.T) {
		admin := &fakeTripAdmin{}
		router := setupAdminRouter(admin, uuid.New())

		w := doJSON(t, router, http.MethodPut, path, map[string]interface{}{})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Nil(t, admin.autoResume)
	})
}

func TestTripAdminHandler_UpdateStatus(t *testing.T) {
	tripID := uuid.New()
	path := "/api/v1/admin/trips/" + tripID.String() + "/status"

	t.Run("Success", func(t *testing.T) {
		admin := &fakeTripAdmin{trip: &models.Trip{ID: tripID, Status: models.TripStatusBoarding}}
		router := setupAdminRouter(admin, uuid.New())

		w := doJSON(t, router, http.MethodPut, path, map[string]string{"status": "BOARDING"})

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, models.TripStatusBoarding, admin.status)
	})

	t.Run("UnknownStatus", func(t *testing.T) {
		admin := &fakeTripAdmin{}
		router := setupAdminRouter(admin, uuid.New())

		w := doJSON(t, router, http.MethodPut, path, map[string]string{"status": "FLYING"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, admin.status)
	})

	t.Run("InvalidTransition", func(t *testing.T) {
		admin := &fakeTripAdmin{err: fmt.Errorf("%w: COMPLETED -> BOARDING", models.ErrInvalidStatusTransition)}
		router := setupAdminRouter(admin, uuid.New())

		w := doJSON(t, router, http.MethodPut, path, map[string]string{"status": "BOARDING"})

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, models.CodeInvalidStatusTransition, decodeError(t, w).Code)
	})
}
