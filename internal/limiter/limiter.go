package limiter

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

// Limiter is a Redis-backed fixed-window rate limiter guarding the expensive
// generation endpoint. Windows are one minute wide, keyed by client identity.
// Redis errors fail open — losing rate limiting is better than losing the API.
type Limiter struct {
	client    *redis.Client
	perMinute int
}

func New(redisURL string, perMinute int) (*Limiter, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Limiter{client: client, perMinute: perMinute}, nil
}

func (l *Limiter) Close() error {
	return l.client.Close()
}

// windowKey buckets a client identity into the current minute.
func windowKey(identity string, now time.Time) string {
	return fmt.Sprintf("ratelimit:%s:%d", identity, now.Unix()/60)
}

// Allow reports whether the identified client may submit another generation
// in the current window.
func (l *Limiter) Allow(ctx context.Context, identity string) bool {
	key := windowKey(identity, time.Now())

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		log.Printf("[Limiter] Redis INCR failed (failing open): %v", err)
		return true
	}

	if count == 1 {
		// First hit in this window sets the TTL; 2x window covers clock skew
		if err := l.client.Expire(ctx, key, 2*time.Minute).Err(); err != nil {
			log.Printf("[Limiter] Redis EXPIRE failed: %v", err)
		}
	}

	return count <= int64(l.perMinute)
}
