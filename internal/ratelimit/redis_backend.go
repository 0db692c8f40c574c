package ratelimit

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// tokenBucketScript refills and draws from one bucket atomically. Time comes
// from the Redis server so daemons with skewed clocks share one timeline.
//
// KEYS[1] bucket key
// ARGV[1] max tokens, ARGV[2] refill rate per second, ARGV[3] requested
// Returns {allowed (0/1), remaining tokens}
var tokenBucketScript = redis.NewScript(`
local max_tokens = tonumber(ARGV[1])
local refill_rate = tonumber(ARGV[2])
local requested = tonumber(ARGV[3])

local t = redis.call("TIME")
local now = tonumber(t[1]) * 1000000 + tonumber(t[2])

local bucket = redis.call("HMGET", KEYS[1], "tokens", "last_refill")
local tokens = tonumber(bucket[1])
local last_refill = tonumber(bucket[2])
if tokens == nil then
    tokens = max_tokens
    last_refill = now
end

local elapsed = (now - last_refill) / 1000000.0
if elapsed > 0 then
    tokens = math.min(max_tokens, tokens + elapsed * refill_rate)
end

local allowed = 0
if tokens >= requested then
    tokens = tokens - requested
    allowed = 1
end

redis.call("HSET", KEYS[1], "tokens", tostring(tokens), "last_refill", tostring(now))
-- Idle buckets expire once they would have refilled twice over
local ttl = math.ceil(max_tokens / refill_rate * 2)
if ttl < 60 then ttl = 60 end
redis.call("EXPIRE", KEYS[1], ttl)

return {allowed, math.floor(tokens)}
`)

// RedisBackend implements Backend on the cache's Redis so that every daemon
// of a deployment draws from the same buckets.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

// NewRedisBackend creates a Redis-backed backend. Bucket keys are written
// under prefix + "rl:".
func NewRedisBackend(client *redis.Client, prefix string) *RedisBackend {
	return &RedisBackend{
		client: client,
		prefix: prefix + "rl:",
	}
}

func (b *RedisBackend) CheckRateLimit(ctx context.Context, key string, maxTokens int, refillRate float64, requested int) (bool, int, error) {
	result, err := tokenBucketScript.Run(ctx, b.client, []string{b.prefix + key},
		maxTokens, refillRate, requested,
	).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("redis rate limit check: %w", err)
	}
	if len(result) != 2 {
		return false, 0, fmt.Errorf("redis rate limit check: unexpected reply length %d", len(result))
	}
	return result[0] == 1, int(result[1]), nil
}
