package httpx

import (
	"context"
	"fmt"
	"time"

	"github.com/aussiebroadwan/siteauth/pkg/idx"
	"github.com/redis/go-redis/v9"
)

// slidingWindow keeps one sorted set per key whose members are request
// timestamps in milliseconds. Entries older than the window are trimmed
// before counting.
var slidingWindow = redis.NewScript(`
	local key = KEYS[1]
	local now_ms = tonumber(ARGV[1])
	local window_ms = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local member = ARGV[4]

	redis.call('ZREMRANGEBYSCORE', key, '-inf', now_ms - window_ms)

	local count = redis.call('ZCARD', key)
	if count < limit then
		redis.call('ZADD', key, now_ms, member)
		redis.call('PEXPIRE', key, window_ms)
		return {1, 0}
	end

	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	local retry_ms = window_ms
	if oldest[2] then
		retry_ms = (tonumber(oldest[2]) + window_ms) - now_ms
	end
	return {0, retry_ms}
`)

// RedisLimiter is a sliding-window limiter shared by every replica that
// points at the same Redis.
type RedisLimiter struct {
	client redis.Scripter
	cfg    RateLimitConfig
	prefix string
	now    func() time.Time
}

// NewRedisLimiter builds a limiter over client. Keys are stored as
// "<prefix>:<name>:<key>".
func NewRedisLimiter(client redis.Scripter, cfg RateLimitConfig, prefix string, now func() time.Time) *RedisLimiter {
	if now == nil {
		now = time.Now
	}
	if prefix == "" {
		prefix = "rl"
	}
	return &RedisLimiter{client: client, cfg: cfg, prefix: prefix, now: now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	args := []any{
		l.now().UnixMilli(),
		l.cfg.Window.Milliseconds(),
		l.cfg.RequestsPerWindow,
		idx.New().String(),
	}

	vals, err := slidingWindow.Run(ctx, l.client, []string{l.prefix + ":" + key}, args...).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("httpx: redis rate limit: %w", err)
	}
	if len(vals) != 2 {
		return false, 0, fmt.Errorf("httpx: unexpected rate limit reply %v", vals)
	}

	return vals[0] == 1, time.Duration(vals[1]) * time.Millisecond, nil
}
