package middleware

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/smarttransit/booking-engine/internal/services"
	"github.com/smarttransit/booking-engine/internal/utils"
)

// RequestLimiter counts requests per identifier
type RequestLimiter interface {
	Allow(ctx context.Context, identifier string) error
}

// RateLimit throttles booking writes per user, or per client IP before
// authentication. A limiter backend failure lets the request through.
func RateLimit(limiter RequestLimiter, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		identifier := "ip:" + utils.GetRealIP(c)
		if userCtx, ok := GetUserContext(c); ok {
			identifier = "user:" + userCtx.UserID.String()
		}

		err := limiter.Allow(c.Request.Context(), identifier)
		if err == nil {
			c.Next()
			return
		}

		var limitErr *services.RateLimitError
		if !errors.As(err, &limitErr) {
			logger.WithError(err).Warn("Rate limiter unavailable, allowing request")
			c.Next()
			return
		}

		seconds := int(math.Ceil(limitErr.RetryAfter.Seconds()))
		c.Header("Retry-After", strconv.Itoa(seconds))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":       "rate_limited",
			"message":     limitErr.Error(),
			"code":        "RATE_LIMIT_EXCEEDED",
			"retryable":   true,
			"retry_after": seconds,
		})
	}
}
