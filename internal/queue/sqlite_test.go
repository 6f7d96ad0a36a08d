package queue

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time          { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func openTestStore(t *testing.T) (*SQLiteStore, *testClock) {
	t.Helper()
	s, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "jobs.db"), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	c := &testClock{t: time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)}
	s.now = c.now
	return s, c
}

func collect(out *[]FollowUpJob, err error) Handler {
	return func(_ context.Context, job FollowUpJob) error {
		*out = append(*out, job)
		return err
	}
}

func TestSQLiteRunsDueJobs(t *testing.T) {
	t.Parallel()
	s, _ := openTestStore(t)
	ctx := context.Background()

	id, err := s.Enqueue(ctx, FollowUpJob{PersonID: 7, AttendanceID: 70})
	if err != nil || id == "" {
		t.Fatalf("id = %q, err = %v", id, err)
	}
	var seen []FollowUpJob
	n, err := s.RunOnce(ctx, collect(&seen, nil))
	if err != nil || n != 1 {
		t.Fatalf("ran %d, err = %v", n, err)
	}
	if seen[0].ID != id || seen[0].PersonID != 7 || seen[0].AttendanceID != 70 {
		t.Fatalf("job = %+v", seen[0])
	}
	rows, err := s.Rows(ctx, id)
	if err != nil || len(rows) != 1 || rows[0].Status != StatusSucceeded {
		t.Fatalf("rows = %+v, err = %v", rows, err)
	}
	if n, _ := s.RunOnce(ctx, collect(&seen, nil)); n != 0 {
		t.Fatal("a succeeded job ran again")
	}
}

func TestSQLiteHoldsDelayedJobs(t *testing.T) {
	t.Parallel()
	s, clock := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Schedule(ctx, FollowUpJob{ID: "later", PersonID: 7, AttendanceID: 70, Attempt: 2}, 5*time.Minute); err != nil {
		t.Fatal(err)
	}
	var seen []FollowUpJob
	clock.advance(5*time.Minute - time.Second)
	if n, _ := s.RunOnce(ctx, collect(&seen, nil)); n != 0 {
		t.Fatal("job ran before its delay")
	}
	clock.advance(time.Second)
	if n, err := s.RunOnce(ctx, collect(&seen, nil)); n != 1 || err != nil {
		t.Fatalf("ran %d, err = %v", n, err)
	}
	if seen[0].Attempt != 2 || seen[0].ID != "later" {
		t.Fatalf("job = %+v", seen[0])
	}
}

func TestSQLiteTerminalFailureIsKept(t *testing.T) {
	t.Parallel()
	s, _ := openTestStore(t)
	ctx := context.Background()
	id, _ := s.Enqueue(ctx, FollowUpJob{PersonID: 7, AttendanceID: 70})

	var seen []FollowUpJob
	if _, err := s.RunOnce(ctx, collect(&seen, fmt.Errorf("out of retries: %w", ErrTerminal))); err != nil {
		t.Fatal(err)
	}
	rows, _ := s.Rows(ctx, id)
	if len(rows) != 1 || rows[0].Status != StatusFailed || rows[0].LastError == "" {
		t.Fatalf("rows = %+v", rows)
	}
	if n, _ := s.RunOnce(ctx, collect(&seen, nil)); n != 0 {
		t.Fatal("a failed job was redelivered")
	}
}

func TestSQLiteTransientFailureIsRedelivered(t *testing.T) {
	t.Parallel()
	s, clock := openTestStore(t)
	ctx := context.Background()
	id, _ := s.Enqueue(ctx, FollowUpJob{PersonID: 7, AttendanceID: 70})

	var seen []FollowUpJob
	if _, err := s.RunOnce(ctx, collect(&seen, errors.New("lock wait timeout"))); err != nil {
		t.Fatal(err)
	}
	rows, _ := s.Rows(ctx, id)
	if rows[0].Status != StatusScheduled || !rows[0].RunAt.Equal(clock.now().Add(s.RetryDelay)) {
		t.Fatalf("row = %+v", rows[0])
	}
	if n, _ := s.RunOnce(ctx, collect(&seen, nil)); n != 0 {
		t.Fatal("redelivered before the retry delay")
	}
	clock.advance(s.RetryDelay)
	if n, _ := s.RunOnce(ctx, collect(&seen, nil)); n != 1 {
		t.Fatal("not redelivered after the retry delay")
	}
	if len(seen) != 2 || seen[1].ID != id {
		t.Fatalf("deliveries = %+v", seen)
	}
}

func TestSQLiteRecoverRequeuesAbandonedRows(t *testing.T) {
	t.Parallel()
	s, _ := openTestStore(t)
	ctx := context.Background()
	id, _ := s.Enqueue(ctx, FollowUpJob{PersonID: 7, AttendanceID: 70})
	// a worker claimed the row and died before finishing it
	if _, err := s.db.ExecContext(ctx, `UPDATE followup_jobs SET status = ? WHERE job_id = ?`, StatusRunning, id); err != nil {
		t.Fatal(err)
	}

	var seen []FollowUpJob
	if n, _ := s.RunOnce(ctx, collect(&seen, nil)); n != 0 {
		t.Fatal("a running row was claimed twice")
	}
	n, err := s.Recover(ctx)
	if err != nil || n != 1 {
		t.Fatalf("recovered %d, err = %v", n, err)
	}
	if n, _ := s.RunOnce(ctx, collect(&seen, nil)); n != 1 {
		t.Fatal("recovered row did not run")
	}
}

func TestSQLitePollStopsWithContext(t *testing.T) {
	t.Parallel()
	s, _ := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	_, _ = s.Enqueue(ctx, FollowUpJob{PersonID: 7, AttendanceID: 70})

	done := make(chan error, 1)
	ran := make(chan struct{}, 1)
	go func() {
		done <- s.Poll(ctx, 10*time.Millisecond, func(context.Context, FollowUpJob) error {
			ran <- struct{}{}
			return nil
		})
	}()
	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("poll never delivered the job")
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Poll returned %v", err)
	}
}
