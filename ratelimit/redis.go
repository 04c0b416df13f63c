package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KEYS[1]=counter  ARGV[1]=limit  ARGV[2]=window ms
// Returns {count, pttl_ms, allowed}.
const fixedWindowScript = `
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local count = tonumber(redis.call("GET", KEYS[1]) or "0")
local pttl = redis.call("PTTL", KEYS[1])

if count == 0 or pttl <= 0 then
  redis.call("SET", KEYS[1], "1", "PX", ARGV[2])
  if limit >= 1 then
    return {1, window, 1}
  end
  return {1, window, 0}
end

if count >= limit then
  return {count, pttl, 0}
end

count = redis.call("INCR", KEYS[1])
return {count, pttl, 1}
`

var fixedWindowLua = redis.NewScript(fixedWindowScript)

// RedisWindow keeps fixed-window counters in Redis so several instances share quotas.
type RedisWindow struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisWindow creates a [RedisWindow] under prefix (default "grl").
func NewRedisWindow(client redis.UniversalClient, prefix string) *RedisWindow {
	if prefix == "" {
		prefix = "grl"
	}
	return &RedisWindow{redis: client, prefix: prefix}
}

// Hit implements [Backend].
//
//	Performance: 1 Lua EVALSHA (atomic check-and-increment).
func (r *RedisWindow) Hit(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (int, time.Time, bool, error) {
	result, err := fixedWindowLua.Run(
		ctx,
		r.redis,
		[]string{r.prefix + ":" + key},
		limit,
		window.Milliseconds(),
	).Result()
	if err != nil {
		return 0, time.Time{}, false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) != 3 {
		return 0, time.Time{}, false, fmt.Errorf("%w: invalid script response", ErrBackendUnavailable)
	}
	count, ok1 := parts[0].(int64)
	pttl, ok2 := parts[1].(int64)
	allowed, ok3 := parts[2].(int64)
	if !ok1 || !ok2 || !ok3 {
		return 0, time.Time{}, false, fmt.Errorf("%w: invalid script types", ErrBackendUnavailable)
	}

	return int(count), now.Add(time.Duration(pttl) * time.Millisecond), allowed == 1, nil
}
