package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LimitResult is the outcome of one rate limit check.
type LimitResult struct {
	Allowed    bool
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter performs sliding-window rate limiting backed by Redis sorted sets.
// It always fails open: with no Redis client, or when Redis errors, every
// check passes. The gateway treats rate limiting as protection, not as a
// correctness requirement.
type Limiter struct {
	rdb *redis.Client
}

func NewLimiter(rdb *redis.Client) *Limiter {
	return &Limiter{rdb: rdb}
}

// The script prunes entries older than the window, counts what is left, and
// admits the request by inserting a new member when under the limit. One
// round trip, atomic under concurrent checks for the same key.
// KEYS[1] bucket, ARGV: window start (µs), now (µs), limit, key TTL seconds.
// Returns [count after check, 1 admitted / 0 rejected].
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local window_start = tonumber(ARGV[1])
local now = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)
local count = redis.call('ZCARD', key)

if count < limit then
    redis.call('ZADD', key, now, now .. ':' .. math.random(1000000))
    redis.call('EXPIRE', key, ttl)
    return {count + 1, 1}
end

redis.call('EXPIRE', key, ttl)
return {count, 0}
`)

// Check admits or rejects one request against the bucket identified by key,
// allowing at most limit requests per sliding window.
func (l *Limiter) Check(ctx context.Context, key string, limit int64, window time.Duration) (LimitResult, error) {
	if l.rdb == nil {
		return LimitResult{Allowed: true, Remaining: limit - 1, ResetAt: time.Now().Add(window)}, nil
	}

	now := time.Now()
	redisKey := fmt.Sprintf("moch:rl:%s", key)

	result, err := slidingWindowScript.Run(ctx, l.rdb, []string{redisKey},
		now.Add(-window).UnixMicro(),
		now.UnixMicro(),
		limit,
		int64(window.Seconds())+1,
	).Int64Slice()
	if err != nil {
		return LimitResult{Allowed: true, Remaining: limit, ResetAt: now.Add(window)}, nil
	}

	count, allowed := result[0], result[1] == 1
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}

	res := LimitResult{
		Allowed:   allowed,
		Remaining: remaining,
		ResetAt:   now.Add(window),
	}
	if !allowed {
		// The oldest window entry expires somewhere within the window; half is
		// a usable middle-ground hint for Retry-After.
		res.RetryAfter = window / 2
	}
	return res, nil
}
