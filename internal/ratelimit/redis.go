package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// recordScript increments the counter and opens the window on the first
// hit.  Running both steps in one script makes the increment atomic with
// respect to the expiry, so concurrent callers never under-count.
var recordScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 or redis.call('PTTL', KEYS[1]) < 0 then
    redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return count
`)

// Redis is a Limiter backed by expiring Redis keys.  Redis reclaims the
// keys itself once their window ends.
type Redis struct {
	rdb  redis.UniversalClient
	opts Options
	log  zerolog.Logger
}

// NewRedis returns a Redis-backed limiter.
func NewRedis(rdb redis.UniversalClient, opts Options, log zerolog.Logger) *Redis {
	return &Redis{rdb: rdb, opts: opts.normalized(), log: log}
}

func (r *Redis) failed() bool { return r.opts.OnError == FailClosed }

func (r *Redis) IsLimited(ctx context.Context, key string) bool {
	n, err := r.rdb.Get(ctx, r.opts.key(key)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false
		}
		r.log.Warn().Err(err).Str("key", key).Msg("rate limit check failed")
		return r.failed()
	}
	return n >= r.opts.Max
}

func (r *Redis) RecordAttempt(ctx context.Context, key string) {
	err := recordScript.Run(ctx, r.rdb, []string{r.opts.key(key)}, r.opts.Window.Milliseconds()).Err()
	if err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("rate limit record failed")
	}
}

func (r *Redis) Reset(ctx context.Context, key string) {
	if err := r.rdb.Del(ctx, r.opts.key(key)).Err(); err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("rate limit reset failed")
	}
}

func (r *Redis) RetryAfter(ctx context.Context, key string) (time.Duration, bool) {
	if !r.IsLimited(ctx, key) {
		return 0, false
	}
	ttl, err := r.rdb.PTTL(ctx, r.opts.key(key)).Result()
	if err != nil || ttl < 0 {
		// limited by policy or key without expiry; report a full window
		return r.opts.Window, true
	}
	return ttl, true
}
