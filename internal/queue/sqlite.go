package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// Job row states in the SQLite store.
const (
	StatusScheduled = "scheduled"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS followup_jobs (
    row_id        TEXT PRIMARY KEY,
    job_id        TEXT NOT NULL,
    person_id     INTEGER NOT NULL,
    attendance_id INTEGER NOT NULL,
    attempt       INTEGER NOT NULL,
    run_at_ms     INTEGER NOT NULL,
    status        TEXT NOT NULL,
    last_error    TEXT,
    enqueued_at   INTEGER NOT NULL,
    updated_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS followup_jobs_due ON followup_jobs (status, run_at_ms);
`

// SQLiteStore is a file-backed job store for single-node deployments.
// Every attempt is its own row, so a job's history stays inspectable and
// failed rows remain for operators.
type SQLiteStore struct {
	db  *sql.DB
	log zerolog.Logger
	now func() time.Time

	// RetryDelay is how long a transiently failing delivery waits before it
	// is picked up again.
	RetryDelay time.Duration
}

// OpenSQLiteStore opens (creating if needed) the job database at path.
func OpenSQLiteStore(path string, log zerolog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	// one writer keeps sqlite from returning SQLITE_BUSY under load
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create job schema: %w", err)
	}
	return &SQLiteStore{db: db, log: log, now: time.Now, RetryDelay: 30 * time.Second}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Enqueue stores job for immediate delivery.
func (s *SQLiteStore) Enqueue(ctx context.Context, job FollowUpJob) (string, error) {
	return s.Schedule(ctx, job, 0)
}

// Schedule stores job for delivery once delay has elapsed.
func (s *SQLiteStore) Schedule(ctx context.Context, job FollowUpJob, delay time.Duration) (string, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := s.now().UTC()
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = now
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO followup_jobs (row_id, job_id, person_id, attendance_id, attempt, run_at_ms, status, enqueued_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), job.ID, job.PersonID, job.AttendanceID, job.Attempt,
		now.Add(delay).UnixMilli(), StatusScheduled, job.EnqueuedAt.UnixMilli(), now.UnixMilli())
	if err != nil {
		return "", fmt.Errorf("store job: %w", err)
	}
	return job.ID, nil
}

type claimed struct {
	rowID string
	job   FollowUpJob
}

// due returns up to limit scheduled rows whose time has come.
func (s *SQLiteStore) due(ctx context.Context, limit int) ([]claimed, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT row_id, job_id, person_id, attendance_id, attempt, enqueued_at
		 FROM followup_jobs WHERE status = ? AND run_at_ms <= ?
		 ORDER BY run_at_ms LIMIT ?`,
		StatusScheduled, s.now().UTC().UnixMilli(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []claimed
	for rows.Next() {
		var (
			c          claimed
			enqueuedMs int64
		)
		if err := rows.Scan(&c.rowID, &c.job.ID, &c.job.PersonID, &c.job.AttendanceID, &c.job.Attempt, &enqueuedMs); err != nil {
			return nil, err
		}
		c.job.EnqueuedAt = time.UnixMilli(enqueuedMs).UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) transition(ctx context.Context, rowID, from, to string, lastErr error, runAt *time.Time) (bool, error) {
	var msg sql.NullString
	if lastErr != nil {
		msg = sql.NullString{String: lastErr.Error(), Valid: true}
	}
	now := s.now().UTC().UnixMilli()
	q := `UPDATE followup_jobs SET status = ?, last_error = ?, updated_at = ? WHERE row_id = ? AND status = ?`
	args := []any{to, msg, now, rowID, from}
	if runAt != nil {
		q = `UPDATE followup_jobs SET status = ?, last_error = ?, updated_at = ?, run_at_ms = ? WHERE row_id = ? AND status = ?`
		args = []any{to, msg, now, runAt.UnixMilli(), rowID, from}
	}
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// RunOnce claims and executes every due job and returns how many ran.
func (s *SQLiteStore) RunOnce(ctx context.Context, handle Handler) (int, error) {
	jobs, err := s.due(ctx, 32)
	if err != nil {
		return 0, err
	}
	ran := 0
	for _, c := range jobs {
		ok, err := s.transition(ctx, c.rowID, StatusScheduled, StatusRunning, nil, nil)
		if err != nil {
			return ran, err
		}
		if !ok {
			continue // claimed elsewhere
		}
		ran++
		herr := handle(ctx, c.job)
		switch {
		case herr == nil:
			_, err = s.transition(ctx, c.rowID, StatusRunning, StatusSucceeded, nil, nil)
		case errors.Is(herr, ErrTerminal):
			_, err = s.transition(ctx, c.rowID, StatusRunning, StatusFailed, herr, nil)
		default:
			next := s.now().UTC().Add(s.RetryDelay)
			s.log.Warn().Err(herr).Str("job_id", c.job.ID).Time("retry_at", next).Msg("job failed; rescheduling delivery")
			_, err = s.transition(ctx, c.rowID, StatusRunning, StatusScheduled, herr, &next)
		}
		if err != nil {
			return ran, err
		}
	}
	return ran, nil
}

// Recover puts rows left running by a crashed worker back on the schedule.
// Delivery is at-least-once, so a job interrupted mid-run executes again.
func (s *SQLiteStore) Recover(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE followup_jobs SET status = ?, updated_at = ? WHERE status = ?`,
		StatusScheduled, s.now().UTC().UnixMilli(), StatusRunning)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Poll recovers abandoned rows, then runs due jobs every interval until ctx
// is cancelled.
func (s *SQLiteStore) Poll(ctx context.Context, interval time.Duration, handle Handler) error {
	if n, err := s.Recover(ctx); err != nil {
		return err
	} else if n > 0 {
		s.log.Info().Int64("rows", n).Msg("recovered abandoned follow-up jobs")
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if _, err := s.RunOnce(ctx, handle); err != nil && ctx.Err() == nil {
			s.log.Error().Err(err).Msg("follow-up poll failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// JobRow is one stored attempt, exposed for inspection.
type JobRow struct {
	Job       FollowUpJob
	Status    string
	LastError string
	RunAt     time.Time
}

// Rows lists the stored attempts for jobID in attempt order.
func (s *SQLiteStore) Rows(ctx context.Context, jobID string) ([]JobRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT job_id, person_id, attendance_id, attempt, status, COALESCE(last_error, ''), run_at_ms
		 FROM followup_jobs WHERE job_id = ? ORDER BY attempt, run_at_ms`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []JobRow
	for rows.Next() {
		var (
			r     JobRow
			runAt int64
		)
		if err := rows.Scan(&r.Job.ID, &r.Job.PersonID, &r.Job.AttendanceID, &r.Job.Attempt, &r.Status, &r.LastError, &runAt); err != nil {
			return nil, err
		}
		r.RunAt = time.UnixMilli(runAt).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}
