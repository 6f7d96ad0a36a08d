package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count   int
	expires time.Time
}

// Memory is an in-process Limiter.  Expired windows are reclaimed by a
// background sweeper started with Start, and lazily whenever an expired
// key is touched, so the map never grows without bound.
type Memory struct {
	opts Options
	now  func() time.Time

	mu      sync.Mutex
	windows map[string]*window

	stopOnce sync.Once
	stop     chan struct{}
}

// NewMemory returns an in-process limiter.  now may be nil.
func NewMemory(opts Options, now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{
		opts:    opts.normalized(),
		now:     now,
		windows: make(map[string]*window),
		stop:    make(chan struct{}),
	}
}

// Start runs the sweeper every interval until Stop or ctx is done.
func (m *Memory) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = m.opts.Window
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stop:
				return
			case <-t.C:
				m.Sweep()
			}
		}
	}()
}

// Stop ends the sweeper.
func (m *Memory) Stop() { m.stopOnce.Do(func() { close(m.stop) }) }

// Sweep drops every expired window and returns how many were removed.
func (m *Memory) Sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, w := range m.windows {
		if !now.Before(w.expires) {
			delete(m.windows, k)
			n++
		}
	}
	return n
}

// Len returns the number of tracked keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}

// live returns key's window if it has not expired.  Callers hold mu.
func (m *Memory) live(key string, now time.Time) *window {
	w, ok := m.windows[key]
	if !ok {
		return nil
	}
	if !now.Before(w.expires) {
		delete(m.windows, key)
		return nil
	}
	return w
}

func (m *Memory) IsLimited(_ context.Context, key string) bool {
	key = m.opts.key(key)
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.live(key, now)
	return w != nil && w.count >= m.opts.Max
}

func (m *Memory) RecordAttempt(_ context.Context, key string) {
	key = m.opts.key(key)
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	if w := m.live(key, now); w != nil {
		w.count++
		return
	}
	m.windows[key] = &window{count: 1, expires: now.Add(m.opts.Window)}
}

func (m *Memory) Reset(_ context.Context, key string) {
	key = m.opts.key(key)
	m.mu.Lock()
	delete(m.windows, key)
	m.mu.Unlock()
}

func (m *Memory) RetryAfter(_ context.Context, key string) (time.Duration, bool) {
	key = m.opts.key(key)
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.live(key, now)
	if w == nil || w.count < m.opts.Max {
		return 0, false
	}
	return w.expires.Sub(now), true
}
