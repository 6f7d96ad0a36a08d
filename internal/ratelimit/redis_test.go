package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func newRedis(t *testing.T, opts Options) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1, DialTimeout: 200 * time.Millisecond})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedis(rdb, opts, zerolog.Nop()), mr
}

func TestRedisLimitsWithinWindow(t *testing.T) {
	t.Parallel()
	r, mr := newRedis(t, Options{Max: 5, Window: 15 * time.Minute, Prefix: "rl:pickup"})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if r.IsLimited(ctx, "ip:1.2.3.4") {
			t.Fatalf("limited after %d attempts", i)
		}
		r.RecordAttempt(ctx, "ip:1.2.3.4")
	}
	if !r.IsLimited(ctx, "ip:1.2.3.4") {
		t.Fatal("not limited after five attempts")
	}
	if got := mr.TTL("rl:pickup:ip:1.2.3.4"); got != 15*time.Minute {
		t.Fatalf("key ttl = %v; later attempts must not extend the window", got)
	}

	mr.FastForward(10 * time.Minute)
	d, ok := r.RetryAfter(ctx, "ip:1.2.3.4")
	if !ok || d != 5*time.Minute {
		t.Fatalf("RetryAfter = %v, %v", d, ok)
	}

	mr.FastForward(5 * time.Minute)
	if r.IsLimited(ctx, "ip:1.2.3.4") {
		t.Fatal("still limited after the window")
	}
	r.RecordAttempt(ctx, "ip:1.2.3.4")
	if n, _ := mr.Get("rl:pickup:ip:1.2.3.4"); n != "1" {
		t.Fatalf("fresh window count = %s, want 1", n)
	}
}

func TestRedisReset(t *testing.T) {
	t.Parallel()
	r, mr := newRedis(t, Options{Max: 1, Window: time.Minute})
	ctx := context.Background()
	r.RecordAttempt(ctx, "k")
	r.Reset(ctx, "k")
	if r.IsLimited(ctx, "k") || mr.Exists("k") {
		t.Fatal("key survived reset")
	}
}

func TestRedisConcurrentAttempts(t *testing.T) {
	t.Parallel()
	r, mr := newRedis(t, Options{Max: 50, Window: time.Minute})
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.RecordAttempt(ctx, "k")
		}()
	}
	wg.Wait()
	if n, _ := mr.Get("k"); n != "50" {
		t.Fatalf("count = %s, want 50", n)
	}
	if !r.IsLimited(ctx, "k") {
		t.Fatal("not limited")
	}
}

func TestRedisFailurePolicy(t *testing.T) {
	t.Parallel()
	closed, mr1 := newRedis(t, Options{Max: 5, Window: time.Minute, OnError: FailClosed})
	open, mr2 := newRedis(t, Options{Max: 5, Window: time.Minute, OnError: FailOpen})
	mr1.Close()
	mr2.Close()
	ctx := context.Background()

	if !closed.IsLimited(ctx, "k") {
		t.Fatal("fail-closed limiter let the request through")
	}
	if open.IsLimited(ctx, "k") {
		t.Fatal("fail-open limiter blocked the request")
	}
	// recording against a dead backend is logged, never fatal
	closed.RecordAttempt(ctx, "k")
	closed.Reset(ctx, "k")
	if d, ok := closed.RetryAfter(ctx, "k"); !ok || d != time.Minute {
		t.Fatalf("RetryAfter = %v, %v; want a full window", d, ok)
	}
}
