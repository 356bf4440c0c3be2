package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/smarttransit/booking-engine/internal/models"
)

// ChannelKeyHeader carries the API key of a channel worker
const ChannelKeyHeader = "X-Channel-Key"

// ChannelContextKey is the key used to store the authenticated channel in Gin context
const ChannelContextKey = "channel"

// ChannelKeyAuth authenticates SMS gateway and chat-bot workers. The :channel
// path parameter selects which bcrypt hash the X-Channel-Key header is checked against.
func ChannelKeyAuth(keyHashes map[models.BookingChannel]string, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		channel := models.BookingChannel(c.Param("channel"))
		hash, ok := keyHashes[channel]
		if !ok || hash == "" || channel == models.BookingChannelWeb {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Unknown booking channel",
				"code":    "UNKNOWN_CHANNEL",
			})
			return
		}

		key := c.GetHeader(ChannelKeyHeader)
		if key == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) != nil {
			logger.WithFields(logrus.Fields{
				"channel": channel,
				"ip":      c.ClientIP(),
				"has_key": key != "",
			}).Warn("Channel key rejected")
			abortUnauthorized(c, "unauthorized", "Invalid channel key", "INVALID_CHANNEL_KEY")
			return
		}

		c.Set(ChannelContextKey, channel)
		c.Next()
	}
}

// GetChannel returns the channel authenticated by ChannelKeyAuth
func GetChannel(c *gin.Context) (models.BookingChannel, bool) {
	value, exists := c.Get(ChannelContextKey)
	if !exists {
		return "", false
	}
	channel, ok := value.(models.BookingChannel)
	return channel, ok
}
