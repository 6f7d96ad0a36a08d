package followup

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/iliyamo/checkin-core/internal/queue"
	"github.com/iliyamo/checkin-core/internal/testutil"
)

var errTransient = errors.New("deadlock found when trying to get lock")

// drain runs every scheduled job through q until the scheduler is empty
// and returns the delays the jobs were scheduled with.
func drain(t *testing.T, q *Queue, sched *testutil.Scheduler) ([]time.Duration, error) {
	t.Helper()
	var (
		delays []time.Duration
		last   error
	)
	for i := 0; i < 20; i++ {
		s, ok := sched.Pop()
		if !ok {
			return delays, last
		}
		delays = append(delays, s.Delay)
		_, last = q.Process(context.Background(), s.Job)
	}
	t.Fatal("queue did not settle")
	return nil, nil
}

func TestRetriesUntilCreated(t *testing.T) {
	t.Parallel()
	store := testutil.NewStore()
	store.FollowUpErr = func(call int) error {
		if call < 4 {
			return errTransient
		}
		return nil
	}
	sched := &testutil.Scheduler{}
	log, _ := testutil.Logger()
	q := New(sched, store, log)

	if _, err := q.Enqueue(context.Background(), 7, 70, 0); err != nil {
		t.Fatal(err)
	}
	delays, err := drain(t, q, sched)
	if err != nil {
		t.Fatalf("final attempt: %v", err)
	}
	want := []time.Duration{0, time.Minute, 5 * time.Minute, 15 * time.Minute, 60 * time.Minute}
	if len(delays) != len(want) {
		t.Fatalf("delays = %v, want %v", delays, want)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Fatalf("delay %d = %v, want %v", i, delays[i], want[i])
		}
	}
	if store.FollowUpCalls() != 5 || !store.HasFollowUp(7, 70) {
		t.Fatalf("calls = %d, created = %v", store.FollowUpCalls(), store.HasFollowUp(7, 70))
	}
}

func TestExhaustedRetriesFailTerminally(t *testing.T) {
	t.Parallel()
	store := testutil.NewStore()
	store.FollowUpErr = func(int) error { return errTransient }
	sched := &testutil.Scheduler{}
	log, buf := testutil.Logger()
	q := New(sched, store, log)

	if _, err := q.Enqueue(context.Background(), 7, 70, 0); err != nil {
		t.Fatal(err)
	}
	_, err := drain(t, q, sched)
	if !errors.Is(err, ErrExhausted) || !errors.Is(err, queue.ErrTerminal) || !errors.Is(err, errTransient) {
		t.Fatalf("err = %v, want exhausted wrapping the cause", err)
	}
	if store.FollowUpCalls() != MaxAttempts {
		t.Fatalf("attempts = %d, want %d", store.FollowUpCalls(), MaxAttempts)
	}
	if sched.Len() != 0 {
		t.Fatal("an attempt beyond the maximum was scheduled")
	}
	if !strings.Contains(buf.String(), `"severity":"critical"`) {
		t.Fatalf("no critical log:\n%s", buf.String())
	}
}

func TestProcessKeepsJobIdentity(t *testing.T) {
	t.Parallel()
	store := testutil.NewStore()
	store.FollowUpErr = func(call int) error {
		if call == 0 {
			return errTransient
		}
		return nil
	}
	sched := &testutil.Scheduler{}
	log, _ := testutil.Logger()
	q := New(sched, store, log)

	job := queue.FollowUpJob{ID: "job-1", PersonID: 7, AttendanceID: 70}
	state, err := q.Process(context.Background(), job)
	if err != nil || state != StateScheduled {
		t.Fatalf("state = %s, err = %v", state, err)
	}
	next, ok := sched.Pop()
	if !ok || next.Job.ID != "job-1" || next.Job.Attempt != 1 || next.Delay != time.Minute {
		t.Fatalf("next = %+v", next)
	}
	state, err = q.Process(context.Background(), next.Job)
	if err != nil || state != StateSucceeded {
		t.Fatalf("retry: state = %s, err = %v", state, err)
	}
}

func TestRetryScheduleFailureRedelivers(t *testing.T) {
	t.Parallel()
	store := testutil.NewStore()
	store.FollowUpErr = func(int) error { return errTransient }
	sched := &testutil.Scheduler{Err: errors.New("broker unreachable")}
	log, _ := testutil.Logger()
	q := New(sched, store, log)

	state, err := q.Process(context.Background(), queue.FollowUpJob{ID: "j", PersonID: 7, AttendanceID: 70, Attempt: 1})
	if state != StateRunning || err == nil || errors.Is(err, queue.ErrTerminal) {
		t.Fatalf("state = %s, err = %v; want a redeliverable error", state, err)
	}
}

func TestInvalidJobs(t *testing.T) {
	t.Parallel()
	sched := &testutil.Scheduler{}
	log, _ := testutil.Logger()
	q := New(sched, testutil.NewStore(), log)

	for _, tc := range []struct {
		person, attendance int64
		attempt            int
	}{
		{0, 1, 0}, {1, 0, 0}, {1, 1, -1}, {-4, 1, 0},
	} {
		if _, err := q.Enqueue(context.Background(), tc.person, tc.attendance, tc.attempt); !errors.Is(err, ErrInvalidJob) {
			t.Errorf("Enqueue(%d, %d, %d) err = %v", tc.person, tc.attendance, tc.attempt, err)
		}
	}
	if sched.Len() != 0 {
		t.Fatal("invalid jobs were scheduled")
	}
	_, err := q.Process(context.Background(), queue.FollowUpJob{PersonID: 0, AttendanceID: 1})
	if !errors.Is(err, ErrInvalidJob) || !errors.Is(err, queue.ErrTerminal) {
		t.Fatalf("Process err = %v", err)
	}
}

func TestDelayFor(t *testing.T) {
	t.Parallel()
	cases := map[int]time.Duration{
		-1: 0,
		0:  0,
		1:  time.Minute,
		2:  5 * time.Minute,
		3:  15 * time.Minute,
		4:  time.Hour,
		5:  4 * time.Hour,
		9:  4 * time.Hour,
	}
	for attempt, want := range cases {
		if got := DelayFor(attempt); got != want {
			t.Errorf("DelayFor(%d) = %v, want %v", attempt, got, want)
		}
	}
}

func TestCreationIsIdempotent(t *testing.T) {
	t.Parallel()
	store := testutil.NewStore()
	log, _ := testutil.Logger()
	q := New(&testutil.Scheduler{}, store, log)

	job := queue.FollowUpJob{ID: "dup", PersonID: 7, AttendanceID: 70}
	for i := 0; i < 2; i++ {
		if err := q.Handler()(context.Background(), job); err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
	}
	if !store.HasFollowUp(7, 70) {
		t.Fatal("follow-up missing")
	}
}
