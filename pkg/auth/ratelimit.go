package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// LoginThrottle limits failed login attempts per key. Keys are
// "tenant:username" so an attacker grinding one account cannot lock out a
// whole tenant.
type LoginThrottle interface {
	// Allow reports whether another attempt may proceed for key.
	Allow(ctx context.Context, key string) (bool, error)
	// Reset clears the counter for key, called after a successful login.
	Reset(ctx context.Context, key string) error
}

// MemoryThrottle is a fixed-window in-memory LoginThrottle for single
// process deployments.
type MemoryThrottle struct {
	mu       sync.Mutex
	attempts map[string]*window
	limit    int
	interval time.Duration
}

type window struct {
	count   int
	resetAt time.Time
}

// NewMemoryThrottle allows limit attempts per interval for each key.
func NewMemoryThrottle(limit int, interval time.Duration) *MemoryThrottle {
	return &MemoryThrottle{
		attempts: make(map[string]*window),
		limit:    limit,
		interval: interval,
	}
}

// Allow implements LoginThrottle.
func (t *MemoryThrottle) Allow(ctx context.Context, key string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	w, ok := t.attempts[key]
	if !ok || now.After(w.resetAt) {
		t.attempts[key] = &window{count: 1, resetAt: now.Add(t.interval)}
		return true, nil
	}
	w.count++
	return w.count <= t.limit, nil
}

// Reset implements LoginThrottle.
func (t *MemoryThrottle) Reset(ctx context.Context, key string) error {
	t.mu.Lock()
	delete(t.attempts, key)
	t.mu.Unlock()
	return nil
}

// RedisThrottle is a Redis-backed LoginThrottle shared across gateway
// instances. A Redis error fails open so an outage of the throttle backend
// does not take logins down with it.
type RedisThrottle struct {
	redis    *redis.Client
	prefix   string
	limit    int
	interval time.Duration
}

// NewRedisThrottle creates a distributed throttle on the given client.
func NewRedisThrottle(client *redis.Client, limit int, interval time.Duration) *RedisThrottle {
	return &RedisThrottle{
		redis:    client,
		prefix:   "trackgate:login",
		limit:    limit,
		interval: interval,
	}
}

// Allow implements LoginThrottle.
func (t *RedisThrottle) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := fmt.Sprintf("%s:%s", t.prefix, key)

	pipe := t.redis.Pipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, t.interval)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, fmt.Errorf("redis error: %w", err)
	}

	return incr.Val() <= int64(t.limit), nil
}

// Reset implements LoginThrottle.
func (t *RedisThrottle) Reset(ctx context.Context, key string) error {
	return t.redis.Del(ctx, fmt.Sprintf("%s:%s", t.prefix, key)).Err()
}
