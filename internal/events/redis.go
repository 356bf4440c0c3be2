package events

import (
	"context"
	"encoding/json"
	"fmt"

	goRedis "github.com/redis/go-redis/v9"

	"github.com/smarttransit/booking-engine/internal/models"
)

type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *goRedis.IntCmd
}

// RedisPublisher fans events out over redis pub/sub
type RedisPublisher struct {
	client  redisPublisher
	channel string
}

// NewRedisPublisher creates a publisher on the given pub/sub channel
func NewRedisPublisher(client redisPublisher, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, event models.CapacityChangedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal capacity event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish capacity event to redis: %w", err)
	}
	return nil
}

// Close is a no-op, the redis client is shared and closed by its owner
func (p *RedisPublisher) Close() error {
	return nil
}
