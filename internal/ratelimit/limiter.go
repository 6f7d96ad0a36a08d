// Package ratelimit implements fixed-window attempt counters keyed by an
// opaque string.  Two backends share one contract: Memory keeps counters in
// process and Redis keeps them in a TTL'd key.  Neither ever returns an
// error to the caller; a backend failure resolves to the instance's
// FailurePolicy, which each use site picks for itself.
package ratelimit

import (
	"context"
	"time"
)

// Limiter counts attempts per key inside a window.
type Limiter interface {
	// IsLimited reports whether key has reached the maximum inside its
	// still-active window.
	IsLimited(ctx context.Context, key string) bool
	// RecordAttempt increments the counter, starting a fresh window of count
	// 1 when the previous window has expired.
	RecordAttempt(ctx context.Context, key string)
	// Reset forgets key.
	Reset(ctx context.Context, key string)
	// RetryAfter returns the time left in key's window while it is limited.
	RetryAfter(ctx context.Context, key string) (time.Duration, bool)
}

// FailurePolicy decides what IsLimited answers when the backend fails.
type FailurePolicy int

const (
	// FailOpen lets the request through.
	FailOpen FailurePolicy = iota
	// FailClosed blocks the request.
	FailClosed
)

// Options configures either backend.
type Options struct {
	Max     int           // attempts allowed per window, at least 1
	Window  time.Duration // window length
	OnError FailurePolicy // answer given when the backend fails
	Prefix  string        // key namespace, e.g. "rl:pickup"
}

func (o Options) normalized() Options {
	if o.Max < 1 {
		o.Max = 1
	}
	if o.Window <= 0 {
		o.Window = time.Minute
	}
	return o
}

func (o Options) key(k string) string {
	if o.Prefix == "" {
		return k
	}
	return o.Prefix + ":" + k
}
