package middleware

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisLimiter is a fixed-window limiter shared across instances. It fails
// open: when Redis is unreachable requests pass and the error is logged.
type RedisLimiter struct {
	client  *redis.Client
	logger  zerolog.Logger
	prefix  string
	limit   int
	window  time.Duration
	timeout time.Duration
}

func NewRedisLimiter(addr, password string, db, limit int, window time.Duration, logger zerolog.Logger) (*RedisLimiter, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &RedisLimiter{
		client:  client,
		logger:  logger,
		prefix:  "predictor:ratelimit:",
		limit:   limit,
		window:  window,
		timeout: 250 * time.Millisecond,
	}, nil
}

func (rl *RedisLimiter) Allow(key string) bool {
	if rl.limit <= 0 {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), rl.timeout)
	defer cancel()

	redisKey := rl.prefix + key
	counter, err := rl.client.Incr(ctx, redisKey).Result()
	if err != nil {
		rl.logger.Error().Err(err).Str("op", "incr").Msg("redis rate limiter error")
		return true
	}
	if counter == 1 {
		if err := rl.client.Expire(ctx, redisKey, rl.window).Err(); err != nil {
			rl.logger.Error().Err(err).Str("op", "expire").Msg("redis rate limiter error")
		}
	}
	return int(counter) <= rl.limit
}

// Close releases the underlying Redis connection.
func (rl *RedisLimiter) Close() {
	if rl.client != nil {
		_ = rl.client.Close()
	}
}

var _ Limiter = (*RedisLimiter)(nil)
