package services

import (
	"context"
	"fmt"
	"time"

	goRedis "github.com/redis/go-redis/v9"
)

// RateCounter is the subset of the redis client used for fixed-window counting
type RateCounter interface {
	Incr(ctx context.Context, key string) *goRedis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *goRedis.BoolCmd
	TTL(ctx context.Context, key string) *goRedis.DurationCmd
}

// RateLimitService limits booking requests per identifier in a fixed window
type RateLimitService struct {
	counter RateCounter
	limit   int
	window  time.Duration
	prefix  string
}

// NewRateLimitService creates a new rate limit service
func NewRateLimitService(counter RateCounter, limit int, window time.Duration) *RateLimitService {
	return &RateLimitService{
		counter: counter,
		limit:   limit,
		window:  window,
		prefix:  "ratelimit:booking:",
	}
}

// RateLimitError represents a rate limit exceeded error
type RateLimitError struct {
	Identifier string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("too many booking requests, retry in %s", e.RetryAfter.Round(time.Second))
}

// Allow counts one request for identifier and returns a RateLimitError once
// the window's limit is exceeded.
func (s *RateLimitService) Allow(ctx context.Context, identifier string) error {
	key := s.prefix + identifier

	count, err := s.counter.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to count request: %w", err)
	}
	if count == 1 {
		if err := s.counter.Expire(ctx, key, s.window).Err(); err != nil {
			return fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}

	if count <= int64(s.limit) {
		return nil
	}

	retryAfter, err := s.counter.TTL(ctx, key).Result()
	if err != nil || retryAfter <= 0 {
		retryAfter = s.window
	}
	return &RateLimitError{Identifier: identifier, RetryAfter: retryAfter}
}
