package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/checkin-core/internal/access"
	"github.com/iliyamo/checkin-core/internal/queue"
)

// AllowAll authorizes everything except the listed people and locations.
type AllowAll struct {
	DenyPeople    map[int64]bool
	DenyLocations map[int64]bool
}

func (a AllowAll) AuthorizePersonAccess(_ context.Context, personID int64) error {
	if a.DenyPeople[personID] {
		return access.ErrUnauthorized
	}
	return nil
}

func (a AllowAll) AuthorizeLocationAccess(_ context.Context, locationID int64) error {
	if a.DenyLocations[locationID] {
		return access.ErrUnauthorized
	}
	return nil
}

func (a AllowAll) AuthorizeCheckinOperation(ctx context.Context, personID, locationID int64) error {
	if err := a.AuthorizePersonAccess(ctx, personID); err != nil {
		return err
	}
	return a.AuthorizeLocationAccess(ctx, locationID)
}

// Scheduled is one job handed to a Scheduler fake.
type Scheduled struct {
	Job   queue.FollowUpJob
	Delay time.Duration
}

// Scheduler records every job it is given.
type Scheduler struct {
	mu   sync.Mutex
	Jobs []Scheduled
	Err  error
}

func (s *Scheduler) Enqueue(ctx context.Context, job queue.FollowUpJob) (string, error) {
	return s.Schedule(ctx, job, 0)
}

func (s *Scheduler) Schedule(_ context.Context, job queue.FollowUpJob, delay time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return "", s.Err
	}
	s.Jobs = append(s.Jobs, Scheduled{Job: job, Delay: delay})
	return job.ID, nil
}

// Pop removes and returns the oldest recorded job.
func (s *Scheduler) Pop() (Scheduled, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Jobs) == 0 {
		return Scheduled{}, false
	}
	j := s.Jobs[0]
	s.Jobs = s.Jobs[1:]
	return j, true
}

// Len reports how many jobs are recorded.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Jobs)
}

// ErrEnqueue is returned by FailingEnqueuer.
var ErrEnqueue = errors.New("queue unavailable")

// FailingEnqueuer fails or panics on every enqueue.
type FailingEnqueuer struct {
	Panic bool
	mu    sync.Mutex
	calls int
}

func (f *FailingEnqueuer) Enqueue(context.Context, int64, int64, int) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.Panic {
		panic("enqueue exploded")
	}
	return "", ErrEnqueue
}

// Calls reports how many times Enqueue ran.
func (f *FailingEnqueuer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Logger returns a zerolog logger writing into a buffer the caller can
// inspect, plus that buffer.
func Logger() (zerolog.Logger, *SyncBuffer) {
	buf := &SyncBuffer{}
	return zerolog.New(buf), buf
}

// SyncBuffer is a goroutine-safe log sink.
type SyncBuffer struct {
	mu sync.Mutex
	b  []byte
}

func (s *SyncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.b = append(s.b, p...)
	return len(p), nil
}

func (s *SyncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.b)
}
