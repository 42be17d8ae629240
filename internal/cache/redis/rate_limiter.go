package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/booksampler/internal/domain"
)

// slidingWindowLua trims entries at or before the cutoff, then admits the
// request if fewer than limit remain. Scores stay in their string form so
// microsecond timestamps keep full precision. Returns {allowed, count}.
//
//	KEYS[1] sorted set of request timestamps (µs)
//	ARGV[1] now (µs)  ARGV[2] cutoff (µs)  ARGV[3] limit
//	ARGV[4] unique member  ARGV[5] key TTL (ms)
const slidingWindowLua = `
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[2])
local count = redis.call('ZCARD', KEYS[1])
if count < limit then
    redis.call('ZADD', KEYS[1], ARGV[1], ARGV[4])
    redis.call('PEXPIRE', KEYS[1], ARGV[5])
    return {1, count + 1}
end
return {0, count}
`

var slidingWindowScript = redis.NewScript(slidingWindowLua)

const waitPollInterval = 50 * time.Millisecond

// RateLimiter implements domain.FetchLimiter with a sliding window shared by
// every instance pointed at the same Redis.
type RateLimiter struct {
	rdb    redis.Scripter
	limit  int
	window time.Duration
	poll   time.Duration
	now    func() time.Time
	token  func() string
}

// NewRateLimiter allows limit requests per key in any window.
func NewRateLimiter(c *Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		rdb:    c.Underlying(),
		limit:  limit,
		window: window,
		poll:   waitPollInterval,
		now:    time.Now,
		token:  uuid.NewString,
	}
}

func rateLimitKey(key string) string {
	return "ratelimit:" + key
}

// Allow counts one request against key and reports whether it fits the
// window.
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := rl.now().UnixMicro()
	ttl := max(rl.window.Milliseconds(), 1)
	result, err := slidingWindowScript.Run(
		ctx,
		rl.rdb,
		[]string{rateLimitKey(key)},
		now,
		now-rl.window.Microseconds(),
		rl.limit,
		rl.token(),
		ttl,
	).Int64Slice()
	if err != nil {
		return false, fmt.Errorf("redis: rate limit allow %s: %w", key, err)
	}
	if len(result) < 2 {
		return false, fmt.Errorf("redis: rate limit allow %s: unexpected result length %d", key, len(result))
	}
	return result[0] == 1, nil
}

// Wait blocks until a request for key is allowed or ctx ends.
func (rl *RateLimiter) Wait(ctx context.Context, key string) error {
	for {
		allowed, err := rl.Allow(ctx, key)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		timer := time.NewTimer(rl.poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("redis: rate limit wait %s: %w", key, ctx.Err())
		case <-timer.C:
		}
	}
}

var _ domain.FetchLimiter = (*RateLimiter)(nil)
