package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/smarttransit/booking-engine/internal/middleware"
	"github.com/smarttransit/booking-engine/internal/models"
)

// ChannelBookingHandler serves the SMS gateway and chat-bot workers. The
// worker has already resolved the end user, so the user ID travels in the body.
type ChannelBookingHandler struct {
	bookings BookingService
	logger   *logrus.Logger
}

// NewChannelBookingHandler creates a new ChannelBookingHandler
func NewChannelBookingHandler(bookings BookingService, logger *logrus.Logger) *ChannelBookingHandler {
	return &ChannelBookingHandler{
		bookings: bookings,
		logger:   logger,
	}
}

// ============================================================================
// UPSERT BOOKING - POST /api/v1/channels/:channel/bookings
// ============================================================================

// UpsertBooking submits a booking on behalf of a channel user
func (h *ChannelBookingHandler) UpsertBooking(c *gin.Context) {
	channel, ok := middleware.GetChannel(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": "MISSING_CHANNEL"})
		return
	}

	var req models.BookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	req.Channel = channel

	result, err := h.bookings.UpsertBooking(c.Request.Context(), req)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"channel": channel,
			"trip_id": req.TripID,
			"user_id": req.UserID,
			"code":    models.ErrorCodeOf(err),
		}).Info("Channel booking rejected")
		respondError(c, h.logger, err)
		return
	}

	status := http.StatusCreated
	if result.Resumed {
		status = http.StatusOK
	}
	c.JSON(status, result)
}
