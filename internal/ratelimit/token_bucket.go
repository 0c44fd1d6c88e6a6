package ratelimit

import (
	"context"
	"errors"
	"math"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// The bucket state lives in one hash per key. Tokens are stored in
// thousandths so the reply survives Redis truncating Lua numbers to integers.
const tokenBucketScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2]) * 1000
local ttl = tonumber(ARGV[3])

local clock = redis.call("TIME")
local now = (clock[1] * 1000) + math.floor(clock[2] / 1000)

local state = redis.call("HMGET", KEYS[1], "milli", "ts")
local milli = tonumber(state[1])
local ts = tonumber(state[2])

if milli == nil then
  milli = burst
else
  local elapsed = math.max(0, now - ts)
  milli = math.min(burst, milli + elapsed * rate)
end

local allowed = 0
if milli >= 1000 then
  allowed = 1
  milli = milli - 1000
end

redis.call("HSET", KEYS[1], "milli", milli, "ts", now)
redis.call("PEXPIRE", KEYS[1], ttl)

return {allowed, math.floor(milli)}
`

var (
	errBucketUnconfigured = errors.New("rate limiter not configured")
	errBucketArguments    = errors.New("rate limiter needs a key and a positive rate and burst")
	errBucketReply        = errors.New("invalid rate limit script reply")
)

// TokenBucket is a Redis-backed token bucket evaluated atomically in Lua.
type TokenBucket struct {
	client *redis.Client
	script *redis.Script
}

// Decision is the outcome of taking one token.
type Decision struct {
	Allowed bool
	// RetryAfter is how long until the next token refills; zero when allowed.
	RetryAfter time.Duration
}

func NewTokenBucket(client *redis.Client) *TokenBucket {
	if client == nil {
		return nil
	}
	return &TokenBucket{
		client: client,
		script: redis.NewScript(tokenBucketScript),
	}
}

// Take removes one token from key's bucket, refilling at rate tokens per
// second up to burst.
func (t *TokenBucket) Take(ctx context.Context, key string, rate float64, burst int) (Decision, error) {
	if t == nil || t.client == nil {
		return Decision{}, errBucketUnconfigured
	}
	if key == "" || rate <= 0 || burst <= 0 {
		return Decision{}, errBucketArguments
	}

	ttl := bucketTTL(rate, burst)
	reply, err := t.script.Run(ctx, t.client, []string{key}, rate, burst, ttl.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, err
	}
	if len(reply) != 2 {
		return Decision{}, errBucketReply
	}
	return decide(reply[0] == 1, reply[1], rate), nil
}

// decide turns the script reply into a Decision. milli is the remaining
// balance in thousandths of a token.
func decide(allowed bool, milli int64, rate float64) Decision {
	if allowed {
		return Decision{Allowed: true}
	}
	missing := float64(1000-milli) / 1000
	if missing <= 0 {
		return Decision{}
	}
	return Decision{RetryAfter: time.Duration(missing / rate * float64(time.Second))}
}

// bucketTTL keeps an idle bucket around for twice the time it takes to refill.
func bucketTTL(rate float64, burst int) time.Duration {
	if rate <= 0 || burst <= 0 {
		return time.Second
	}
	seconds := math.Max(1, math.Ceil(float64(burst)/rate*2))
	return time.Duration(seconds) * time.Second
}
