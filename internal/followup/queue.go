// Package followup guarantees that a first-time visitor gets a follow-up
// task even when creating it fails transiently.  Creation is retried on a
// durable scheduler with exponential backoff for a bounded number of
// attempts; once they are exhausted the job fails terminally and is left
// for operators.
package followup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/iliyamo/checkin-core/internal/queue"
)

// MaxAttempts is the number of times creation is attempted per job.
const MaxAttempts = 5

// Delays holds the wait before each attempt, indexed by attempt number.
// Attempt 0 runs immediately.
var Delays = []time.Duration{
	0,
	1 * time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	60 * time.Minute,
	240 * time.Minute,
}

// DelayFor returns the wait before attempt.
func DelayFor(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	if attempt >= len(Delays) {
		return Delays[len(Delays)-1]
	}
	return Delays[attempt]
}

// State is where a job stands after a Process call.
type State string

const (
	StateScheduled State = "scheduled"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateExhausted State = "exhausted"
)

// ErrExhausted is returned by Process when the final attempt fails.  It
// wraps queue.ErrTerminal so substrates stop redelivering the job.
var ErrExhausted = fmt.Errorf("follow-up retries exhausted: %w", queue.ErrTerminal)

// ErrInvalidJob is returned for non-positive identifiers or a negative
// attempt number, before anything is scheduled.
var ErrInvalidJob = errors.New("invalid follow-up job")

// Creator persists the follow-up.  It must be idempotent per
// (person, attendance) because delivery is at-least-once.
type Creator interface {
	CreateFollowUp(ctx context.Context, personID, attendanceID int64) error
}

// Scheduler is the durable job substrate.
type Scheduler interface {
	Enqueue(ctx context.Context, job queue.FollowUpJob) (string, error)
	Schedule(ctx context.Context, job queue.FollowUpJob, delay time.Duration) (string, error)
}

// Queue enqueues and processes follow-up jobs.
type Queue struct {
	sched   Scheduler
	creator Creator
	log     zerolog.Logger
}

// New returns a Queue.
func New(sched Scheduler, creator Creator, log zerolog.Logger) *Queue {
	return &Queue{sched: sched, creator: creator, log: log.With().Str("component", "followup").Logger()}
}

func validate(personID, attendanceID int64, attempt int) error {
	switch {
	case personID <= 0:
		return fmt.Errorf("%w: person id %d", ErrInvalidJob, personID)
	case attendanceID <= 0:
		return fmt.Errorf("%w: attendance id %d", ErrInvalidJob, attendanceID)
	case attempt < 0:
		return fmt.Errorf("%w: attempt %d", ErrInvalidJob, attempt)
	}
	return nil
}

// Enqueue schedules attempt number attempt of the follow-up job for
// (personID, attendanceID) and returns the job handle.
func (q *Queue) Enqueue(ctx context.Context, personID, attendanceID int64, attempt int) (string, error) {
	return q.enqueue(ctx, queue.FollowUpJob{PersonID: personID, AttendanceID: attendanceID, Attempt: attempt})
}

func (q *Queue) enqueue(ctx context.Context, job queue.FollowUpJob) (string, error) {
	if err := validate(job.PersonID, job.AttendanceID, job.Attempt); err != nil {
		return "", err
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Attempt == 0 {
		return q.sched.Enqueue(ctx, job)
	}
	return q.sched.Schedule(ctx, job, DelayFor(job.Attempt))
}

// Process runs one attempt of job.  A failed attempt with attempts left
// schedules the next one and reports StateScheduled with a nil error, so
// the substrate acknowledges this delivery.  A failed final attempt
// reports StateExhausted and ErrExhausted.  If scheduling the retry itself
// fails the error is returned so the substrate redelivers this attempt.
func (q *Queue) Process(ctx context.Context, job queue.FollowUpJob) (State, error) {
	if err := validate(job.PersonID, job.AttendanceID, job.Attempt); err != nil {
		return StateExhausted, fmt.Errorf("%w: %w", queue.ErrTerminal, err)
	}
	log := q.log.With().Str("job_id", job.ID).Int64("person_id", job.PersonID).
		Int64("attendance_id", job.AttendanceID).Int("attempt", job.Attempt).Logger()

	err := q.creator.CreateFollowUp(ctx, job.PersonID, job.AttendanceID)
	if err == nil {
		log.Info().Msg("follow-up created")
		return StateSucceeded, nil
	}

	if job.Attempt+1 < MaxAttempts {
		next := job
		next.Attempt++
		if _, serr := q.enqueue(ctx, next); serr != nil {
			log.Error().Err(serr).AnErr("cause", err).Msg("could not schedule follow-up retry")
			return StateRunning, fmt.Errorf("schedule attempt %d: %w", next.Attempt, serr)
		}
		log.Warn().Err(err).Int("next_attempt", next.Attempt).
			Dur("delay", DelayFor(next.Attempt)).Msg("follow-up creation failed; retry scheduled")
		return StateScheduled, nil
	}

	log.Error().Err(err).Str("severity", "critical").Int("max_attempts", MaxAttempts).
		Msg("follow-up creation exhausted all retries; manual intervention required")
	return StateExhausted, fmt.Errorf("%w: %w", ErrExhausted, err)
}

// Handler adapts Process to the substrate's handler signature.
func (q *Queue) Handler() queue.Handler {
	return func(ctx context.Context, job queue.FollowUpJob) error {
		_, err := q.Process(ctx, job)
		return err
	}
}
