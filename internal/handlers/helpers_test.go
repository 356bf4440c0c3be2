package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/smarttransit/booking-engine/internal/middleware"
	"github.com/smarttransit/booking-engine/internal/models"
)

func testLogger() *logrus.Logger {
	logger, _ := logtest.NewNullLogger()
	return logger
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

// withUser stands in for AuthMiddleware
func withUser(userID uuid.UUID, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserContextKey, middleware.UserContext{
			UserID: userID,
			Phone:  "0771234567",
			Roles:  roles,
		})
		c.Next()
	}
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120.0")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// fakeBookingService records the last call and returns the configured outcome
type fakeBookingService struct {
	upsertReq    models.BookingRequest
	upsertResult *models.BookingResult
	upsertErr    error

	releaseBookingID uuid.UUID
	releaseUserID    uuid.UUID
	releaseReason    string
	releaseResult    *models.ReleaseResult
	releaseErr       error

	availability    *models.TripAvailability
	availabilityErr error
}

func (f *fakeBookingService) UpsertBooking(ctx context.Context, req models.BookingRequest) (*models.BookingResult, error) {
	f.upsertReq = req
	return f.upsertResult, f.upsertErr
}

func (f *fakeBookingService) ReleaseBooking(ctx context.Context, bookingID, userID uuid.UUID, reason string) (*models.ReleaseResult, error) {
	f.releaseBookingID = bookingID
	f.releaseUserID = userID
	f.releaseReason = reason
	return f.releaseResult, f.releaseErr
}

func (f *fakeBookingService) Availability(ctx context.Context, tripID uuid.UUID) (*models.TripAvailability, error) {
	return f.availability, f.availabilityErr
}

type fakeBookingAuditor struct {
	actors  []models.Actor
	reasons []string
	err     error
}

func (f *fakeBookingAuditor) LogBookingCancelled(ctx context.Context, actor models.Actor, result *models.ReleaseResult, reason string) error {
	f.actors = append(f.actors, actor)
	f.reasons = append(f.reasons, reason)
	return f.err
}

func passengerBody(n int) []map[string]interface{} {
	out := make([]map[string]interface{}, n)
	for i := range out {
		out[i] = map[string]interface{}{
			"name":        "Passenger",
			"national_id": "199012345678",
			"phone":       "0771234567",
		}
	}
	return out
}
