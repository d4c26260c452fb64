// Package cache provides an optional Redis-backed cache for the analytics
// dashboard. When REDIS_URL is unset the cache is disabled and every call is
// a no-op miss, so handlers never need to branch on availability.
package cache

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	dashboardKeyPrefix = "dashboard:"

	// DefaultTTL is how long an aggregated dashboard stays cached.
	DefaultTTL = 2 * time.Minute
)

// Dashboard caches serialized dashboard responses keyed by user and
// timeframe. A nil client means caching is disabled.
type Dashboard struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDashboard wraps a Redis client. Pass a nil client to disable caching.
func NewDashboard(client *redis.Client, ttl time.Duration) *Dashboard {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &Dashboard{client: client, ttl: ttl}
}

// Connect dials the Redis URL and verifies the connection with a ping.
// An empty URL returns a nil client without error.
func Connect(redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	log.Printf("[Cache][Connect] redis connected addr=%s", opts.Addr)
	return client, nil
}

// Key builds the cache key for one user's dashboard over a timeframe.
func Key(userID, timeframe string) string {
	return userID + ":" + timeframe
}

// Get returns the cached payload for a key, or a miss when the cache is
// disabled, the key is absent, or Redis errors.
func (d *Dashboard) Get(ctx context.Context, key string) ([]byte, bool) {
	if d == nil || d.client == nil {
		return nil, false
	}
	val, err := d.client.Get(ctx, dashboardKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		log.Printf("[Cache][Get] key=%s err=%v", key, err)
		return nil, false
	}
	return val, true
}

// Set stores a payload with the configured TTL. Errors are logged, not
// returned; a broken cache must never fail the request.
func (d *Dashboard) Set(ctx context.Context, key string, payload []byte) {
	if d == nil || d.client == nil {
		return
	}
	if err := d.client.Set(ctx, dashboardKeyPrefix+key, payload, d.ttl).Err(); err != nil {
		log.Printf("[Cache][Set] key=%s err=%v", key, err)
	}
}

// InvalidateUser drops every cached timeframe for one user. Called when
// content performance changes so the next dashboard read is fresh.
func (d *Dashboard) InvalidateUser(ctx context.Context, userID string) {
	if d == nil || d.client == nil {
		return
	}
	var cursor uint64
	for {
		keys, next, err := d.client.Scan(ctx, cursor, dashboardKeyPrefix+userID+":*", 100).Result()
		if err != nil {
			log.Printf("[Cache][InvalidateUser] user=%s err=%v", userID, err)
			return
		}
		if len(keys) > 0 {
			if err := d.client.Del(ctx, keys...).Err(); err != nil {
				log.Printf("[Cache][InvalidateUser] delete user=%s err=%v", userID, err)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
}
