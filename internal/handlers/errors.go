package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/smarttransit/booking-engine/internal/models"
)

// ErrorResponse is the body of every failed engine request
type ErrorResponse struct {
	Error     string                 `json:"error"`
	Code      string                 `json:"code"`
	Retryable bool                   `json:"retryable"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

var statusByCode = map[string]int{
	models.CodeInsufficientCapacity:    http.StatusConflict,
	models.CodeSeatUnavailable:         http.StatusConflict,
	models.CodeResourceConflict:        http.StatusConflict,
	models.CodeLockContention:          http.StatusConflict,
	models.CodeBookingNotReleasable:    http.StatusConflict,
	models.CodeInvalidStatusTransition: http.StatusConflict,
	models.CodeTripNotBookable:         http.StatusUnprocessableEntity,
	models.CodeTransactionTimeout:      http.StatusGatewayTimeout,
	models.CodeInvalidRequest:          http.StatusBadRequest,
	models.CodeOverrideReasonTooShort:  http.StatusBadRequest,
	models.CodeTripNotFound:            http.StatusNotFound,
	models.CodeBookingNotFound:         http.StatusNotFound,
}

// respondError maps a domain error to its status code and structured body
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	code := models.ErrorCodeOf(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}

	resp := ErrorResponse{
		Error:     err.Error(),
		Code:      code,
		Retryable: models.IsRetryable(err),
		Details:   errorDetails(err),
	}

	if status == http.StatusInternalServerError {
		logger.WithFields(logrus.Fields{
			"path":  c.Request.URL.Path,
			"error": err.Error(),
		}).Error("Unhandled engine error")
		resp.Error = "internal server error"
	}

	if errors.Is(err, models.ErrLockContention) {
		c.Header("Retry-After", "1")
	}

	c.JSON(status, resp)
}

func errorDetails(err error) map[string]interface{} {
	var (
		capacityErr  *models.InsufficientCapacityError
		seatErr      *models.SeatUnavailableError
		bookableErr  *models.TripNotBookableError
		conflictErr  *models.ResourceConflictError
		lockErr      *models.LockContentionError
		timeoutErr   *models.TransactionTimeoutError
		invariantErr *models.CapacityInvariantError
	)

	switch {
	case errors.As(err, &capacityErr):
		return map[string]interface{}{
			"trip_id":   capacityErr.TripID,
			"requested": capacityErr.Requested,
			"available": capacityErr.Available,
		}
	case errors.As(err, &seatErr):
		return map[string]interface{}{
			"trip_id":      seatErr.TripID,
			"seats":        seatErr.Seats,
			"out_of_range": seatErr.OutOfRange,
		}
	case errors.As(err, &bookableErr):
		return map[string]interface{}{
			"trip_id": bookableErr.TripID,
			"status":  bookableErr.Status,
			"halted":  bookableErr.Halted,
		}
	case errors.As(err, &conflictErr):
		return map[string]interface{}{"conflicts": conflictErr.Conflicts}
	case errors.As(err, &lockErr):
		return map[string]interface{}{"trip_id": lockErr.TripID}
	case errors.As(err, &timeoutErr):
		return map[string]interface{}{"timeout": timeoutErr.Timeout.String()}
	case errors.As(err, &invariantErr):
		return nil
	}
	return nil
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error: message,
		Code:  models.CodeInvalidRequest,
	})
}
