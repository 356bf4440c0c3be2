package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/smarttransit/booking-engine/internal/middleware"
	"github.com/smarttransit/booking-engine/internal/models"
	"github.com/smarttransit/booking-engine/internal/utils"
)

// TripAdmin is the trip administration used by operators
type TripAdmin interface {
	CreateTrip(ctx context.Context, actor models.Actor, req models.CreateTripRequest) (*models.Trip, error)
	EditTrip(ctx context.Context, actor models.Actor, req models.TripEditRequest) (*models.Trip, error)
	ResumeBookings(ctx context.Context, actor models.Actor, tripID uuid.UUID) (*models.Trip, error)
	SetAutoResume(ctx context.Context, actor models.Actor, tripID uuid.UUID, enabled bool) (*models.Trip, error)
	TransitionStatus(ctx context.Context, actor models.Actor, tripID uuid.UUID, next models.TripStatus) (*models.Trip, error)
}

// TripAdminHandler handles operator requests on trips
type TripAdminHandler struct {
	admin  TripAdmin
	logger *logrus.Logger
}

// NewTripAdminHandler creates a new TripAdminHandler
func NewTripAdminHandler(admin TripAdmin, logger *logrus.Logger) *TripAdminHandler {
	return &TripAdminHandler{
		admin:  admin,
		logger: logger,
	}
}

// actorFrom builds the audit actor of the request; false means the response was written
func actorFrom(c *gin.Context) (models.Actor, bool) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": "MISSING_USER_CONTEXT"})
		return models.Actor{}, false
	}
	return models.Actor{
		UserID:    userCtx.UserID,
		IPAddress: utils.GetRealIP(c),
		UserAgent: utils.GetUserAgent(c),
	}, true
}

func tripIDParam(c *gin.Context) (uuid.UUID, bool) {
	tripID, err := uuid.Parse(c.Param("trip_id"))
	if err != nil {
		badRequest(c, "Invalid trip ID")
		return uuid.Nil, false
	}
	return tripID, true
}

// ============================================================================
// CREATE TRIP - POST /api/v1/admin/trips
// ============================================================================

// CreateTrip creates a trip after the resource conflict check
func (h *TripAdminHandler) CreateTrip(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req models.CreateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	trip, err := h.admin.CreateTrip(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, trip)
}

// ============================================================================
// EDIT TRIP - PUT /api/v1/admin/trips/:trip_id
// ============================================================================

// EditTrip reassigns resources or moves the departure of a trip
func (h *TripAdminHandler) EditTrip(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	tripID, ok := tripIDParam(c)
	if !ok {
		return
	}

	var req models.TripEditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	req.TripID = tripID

	trip, err := h.admin.EditTrip(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, trip)
}

// ============================================================================
// RESUME BOOKINGS - POST /api/v1/admin/trips/:trip_id/resume-booking
// ============================================================================

// ResumeBookings lifts the booking halt of a trip
func (h *TripAdminHandler) ResumeBookings(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	tripID, ok := tripIDParam(c)
	if !ok {
		return
	}

	trip, err := h.admin.ResumeBookings(c.Request.Context(), actor, tripID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, trip)
}

// ============================================================================
// AUTO RESUME - PUT /api/v1/admin/trips/:trip_id/auto-resume
// ============================================================================

// SetAutoResume toggles the auto-resume override of a trip
func (h *TripAdminHandler) SetAutoResume(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	tripID, ok := tripIDParam(c)
	if !ok {
		return
	}

	var req models.AutoResumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if err := models.ValidateRequest(&req); err != nil {
		respondError(c, h.logger, err)
		return
	}

	trip, err := h.admin.SetAutoResume(c.Request.Context(), actor, tripID, *req.Enabled)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, trip)
}

// ============================================================================
// STATUS - PUT /api/v1/admin/trips/:trip_id/status
// ============================================================================

// UpdateStatus moves a trip along its lifecycle
func (h *TripAdminHandler) UpdateStatus(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	tripID, ok := tripIDParam(c)
	if !ok {
		return
	}

	var req models.TripStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if err := models.ValidateRequest(&req); err != nil {
		respondError(c, h.logger, err)
		return
	}

	trip, err := h.admin.TransitionStatus(c.Request.Context(), actor, tripID, req.Status)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, trip)
}
