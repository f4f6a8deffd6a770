package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds Redis connection settings for a shared limiter.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// fixedWindow increments the counter and starts the window on the first hit.
// It returns the count after this request and the window's remaining TTL in ms.
// Requests over the limit are not counted so the window is never extended.
var fixedWindow = redis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
local limit = tonumber(ARGV[1])
if current >= limit then
	return {current, redis.call("PTTL", KEYS[1]), 0}
end
current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return {current, redis.call("PTTL", KEYS[1]), 1}
`)

// RedisStore shares fixed-window counters between processes through Redis.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	now       func() time.Time
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisStoreWithClient(client, ""), nil
}

// NewRedisStoreWithClient creates a store on an existing client.
func NewRedisStoreWithClient(client *redis.Client, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "ratelimit:"
	}
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
		now:       time.Now,
	}
}

// Check implements Store.
func (s *RedisStore) Check(ctx context.Context, key string, policy Policy) (Outcome, error) {
	res, err := fixedWindow.Run(ctx, s.client,
		[]string{s.keyPrefix + key},
		policy.Limit, policy.Window.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Outcome{}, fmt.Errorf("ratelimit: redis check %s: %w", key, err)
	}
	if len(res) != 3 {
		return Outcome{}, fmt.Errorf("ratelimit: unexpected script reply %v", res)
	}

	ttl := time.Duration(res[1]) * time.Millisecond
	if ttl < 0 {
		// Key without expiry should not happen; treat it as a fresh window.
		ttl = policy.Window
	}

	return Outcome{
		Allowed: res[2] == 1,
		Count:   int(res[0]),
		ResetAt: s.now().Add(ttl),
	}, nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)
