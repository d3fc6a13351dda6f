package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RateLimiter caps calls per time source instance with a sliding one-second
// window kept in a Redis sorted set, so the cap holds across replicas.
type RateLimiter struct {
	redisClient *redis.Client
	logger      *slog.Logger
	script      *redis.Script
	window      time.Duration
}

// Trims the window, then admits and records the call if the set is below the
// limit. Returns 1 when admitted, 0 otherwise.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

if redis.call('ZCARD', key) < limit then
    redis.call('ZADD', key, now, member)
    redis.call('EXPIRE', key, math.ceil(window / 1000) + 1)
    return 1
end
return 0
`)

func NewRateLimiter(redisClient *redis.Client, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		redisClient: redisClient,
		logger:      logger,
		script:      slidingWindowScript,
		window:      time.Second,
	}
}

func rlKey(instance string) string {
	return "rl:timesource:" + instance
}

// Allow reports whether another call to instance fits within limit calls per
// window. A limit <= 0 disables limiting; Redis errors fail open.
func (rl *RateLimiter) Allow(ctx context.Context, instance string, limit int) bool {
	if limit <= 0 {
		return true
	}

	result, err := rl.script.Run(ctx, rl.redisClient, []string{rlKey(instance)},
		time.Now().UnixMilli(), rl.window.Milliseconds(), limit, uuid.NewString(),
	).Int64()
	if err != nil {
		rl.logger.Error("rate limiter script failed", "instance", instance, "error", err)
		return true
	}

	if result == 0 {
		rl.logger.Debug("time source instance throttled", "instance", instance, "limit", limit)
		return false
	}
	return true
}
