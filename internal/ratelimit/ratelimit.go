package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const counterTTL = 24 * time.Hour

// CounterStore is the atomic-increment primitive backing the limiter. The
// store's INCR atomicity is the only concurrency control: the application
// holds no locks and never caches counts locally.
type CounterStore interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// RedisCounter adapts a go-redis client to CounterStore.
type RedisCounter struct {
	client *redis.Client
}

func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client}
}

func (r *RedisCounter) Incr(ctx context.Context, key string) (int64, error) {
	return r.client.Incr(ctx, key).Result()
}

func (r *RedisCounter) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return r.client.Expire(ctx, key, ttl).Err()
}

var _ CounterStore = (*RedisCounter)(nil)

// Options configures a Limiter. Now is injectable for calendar-day tests
// and defaults to time.Now.
type Options struct {
	Store  CounterStore
	Logger zerolog.Logger
	Now    func() time.Time
}

// Limiter counts generation attempts per user per calendar day. The count
// is consumed up front and never rolled back: a failed generation still
// spends quota.
type Limiter struct {
	store  CounterStore
	logger zerolog.Logger
	now    func() time.Time
}

func New(opts Options) *Limiter {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Limiter{store: opts.Store, logger: opts.Logger, now: now}
}

// Hit increments the caller's counter for today and returns the
// post-increment count. The first increment of a day arms a 24-hour expiry
// so counters reset on rollover without any sweeper.
func (l *Limiter) Hit(ctx context.Context, userID string) (int64, error) {
	key := fmt.Sprintf("rate_limit:%s:%s", userID, l.now().Format("2006-01-02"))

	count, err := l.store.Incr(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("increment rate counter: %w", err)
	}

	if count == 1 {
		// Best effort: a counter without TTL over-limits tomorrow's user
		// rather than failing today's request.
		if err := l.store.Expire(ctx, key, counterTTL); err != nil {
			l.logger.Warn().Err(err).Str("key", key).Msg("ratelimit: failed to arm counter expiry")
		}
	}

	return count, nil
}
