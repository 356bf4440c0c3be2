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

// RoleAdmin may cancel bookings on behalf of any user
const RoleAdmin = "admin"

// BookingService is the booking coordinator as seen by channel adapters
type BookingService interface {
	UpsertBooking(ctx context.Context, req models.BookingRequest) (*models.BookingResult, error)
	ReleaseBooking(ctx context.Context, bookingID, userID uuid.UUID, reason string) (*models.ReleaseResult, error)
	Availability(ctx context.Context, tripID uuid.UUID) (*models.TripAvailability, error)
}

// BookingAuditor records explicit cancellations
type BookingAuditor interface {
	LogBookingCancelled(ctx context.Context, actor models.Actor, result *models.ReleaseResult, reason string) error
}

// BookingHandler is the web channel adapter
type BookingHandler struct {
	bookings BookingService
	audit    BookingAuditor
	logger   *logrus.Logger
}

// NewBookingHandler creates a new BookingHandler
func NewBookingHandler(bookings BookingService, audit BookingAuditor, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{
		bookings: bookings,
		audit:    audit,
		logger:   logger,
	}
}

// webBookingRequest is the body of a web booking; trip and user come from the path and token
type webBookingRequest struct {
	Passengers     []models.PassengerInput `json:"passengers"`
	PreferredSeats []int                   `json:"preferred_seats,omitempty"`
}

// ============================================================================
// UPSERT BOOKING - POST /api/v1/trips/:trip_id/bookings
// ============================================================================

// UpsertBooking creates the caller's pending booking on a trip or resumes it
func (h *BookingHandler) UpsertBooking(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": "MISSING_USER_CONTEXT"})
		return
	}

	tripID, err := uuid.Parse(c.Param("trip_id"))
	if err != nil {
		badRequest(c, "Invalid trip ID")
		return
	}

	var body webBookingRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.bookings.UpsertBooking(c.Request.Context(), models.BookingRequest{
		UserID:         userCtx.UserID,
		TripID:         tripID,
		Channel:        models.BookingChannelWeb,
		Passengers:     body.Passengers,
		PreferredSeats: body.PreferredSeats,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	status := http.StatusCreated
	if result.Resumed {
		status = http.StatusOK
	}
	c.JSON(status, result)
}

// ============================================================================
// CANCEL BOOKING - DELETE /api/v1/bookings/:booking_id
// ============================================================================

// CancelBooking releases the seats of a pending booking. Admins may cancel any booking.
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": "MISSING_USER_CONTEXT"})
		return
	}

	bookingID, err := uuid.Parse(c.Param("booking_id"))
	if err != nil {
		badRequest(c, "Invalid booking ID")
		return
	}

	var req models.CancelBookingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request body: "+err.Error())
			return
		}
	}
	if err := models.ValidateRequest(&req); err != nil {
		respondError(c, h.logger, err)
		return
	}

	owner := userCtx.UserID
	if userCtx.HasRole(RoleAdmin) {
		owner = uuid.Nil
	}

	result, err := h.bookings.ReleaseBooking(c.Request.Context(), bookingID, owner, req.Reason)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	actor := models.Actor{
		UserID:    userCtx.UserID,
		IPAddress: utils.GetRealIP(c),
		UserAgent: utils.GetUserAgent(c),
	}
	if err := h.audit.LogBookingCancelled(c.Request.Context(), actor, result, req.Reason); err != nil {
		h.logger.WithError(err).Warn("Booking cancelled without audit entry")
	}

	c.JSON(http.StatusOK, result)
}

// ============================================================================
// AVAILABILITY - GET /api/v1/trips/:trip_id/availability
// ============================================================================

// GetAvailability returns the remaining capacity and free seats of a trip
func (h *BookingHandler) GetAvailability(c *gin.Context) {
	tripID, err := uuid.Parse(c.Param("trip_id"))
	if err != nil {
		badRequest(c, "Invalid trip ID")
		return
	}

	availability, err := h.bookings.Availability(c.Request.Context(), tripID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, availability)
}
