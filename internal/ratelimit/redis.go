package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ratelimit:login:"

// hitScript mirrors apply(). Times are unix milliseconds computed by the
// caller; ARGV: now, max, window end, lockout end, window ttl, lockout ttl.
var hitScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local max = tonumber(ARGV[2])

local count = tonumber(redis.call('HGET', key, 'count') or '0')
local resetAt = tonumber(redis.call('HGET', key, 'reset_at') or '0')
local lockedUntil = tonumber(redis.call('HGET', key, 'locked_until') or '0')

if lockedUntil > 0 and now < lockedUntil then
  return {0, 0, lockedUntil}
end

if count == 0 or lockedUntil > 0 or now > resetAt then
  redis.call('DEL', key)
  redis.call('HSET', key, 'count', '1', 'reset_at', ARGV[3])
  redis.call('PEXPIRE', key, ARGV[5])
  return {1, max - 1, 0}
end

if count >= max then
  redis.call('HSET', key, 'locked_until', ARGV[4])
  redis.call('PEXPIRE', key, ARGV[6])
  return {0, 0, tonumber(ARGV[4])}
end

count = redis.call('HINCRBY', key, 'count', 1)
return {1, max - count, 0}
`)

// RedisStore shares attempt counters across API instances. The whole
// read-modify-write runs inside one Lua script, so it is atomic per key.
type RedisStore struct {
	client redis.Cmdable
}

func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Hit(ctx context.Context, key string, now time.Time, policy Policy) (Decision, error) {
	res, err := hitScript.Run(ctx, s.client, []string{redisKeyPrefix + key},
		now.UnixMilli(),
		policy.MaxAttempts,
		now.Add(policy.Window).UnixMilli(),
		now.Add(policy.LockoutDuration).UnixMilli(),
		(policy.Window + time.Second).Milliseconds(),
		(policy.LockoutDuration + time.Second).Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit script: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("rate limit script: unexpected reply length %d", len(res))
	}

	decision := Decision{
		Allowed:      res[0] == 1,
		AttemptsLeft: int(res[1]),
	}
	if res[2] > 0 {
		decision.LockedUntil = time.UnixMilli(res[2])
	}
	return decision, nil
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, redisKeyPrefix+key).Err()
}
