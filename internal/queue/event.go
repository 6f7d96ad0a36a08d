// Package queue carries follow-up jobs between the check-in path and the
// workers that execute them.  Jobs are durable: the RabbitMQ backend
// publishes persistent messages and parks delayed jobs in TTL queues that
// dead-letter back into the work queue; the SQLite backend keeps jobs in a
// local table polled by the worker.
package queue

import (
	"context"
	"errors"
	"time"
)

// FollowUpQueueName is the work queue follow-up jobs are delivered from.
const FollowUpQueueName = "followup.create"

// FollowUpJob asks a worker to create the follow-up for a first-time
// visit.  ID stays the same across attempts of one (person, attendance)
// job; Attempt counts from 0.
type FollowUpJob struct {
	ID           string    `json:"id"`
	PersonID     int64     `json:"person_id"`
	AttendanceID int64     `json:"attendance_id"`
	Attempt      int       `json:"attempt"`
	EnqueuedAt   time.Time `json:"enqueued_at"`
}

// Handler executes one delivery of a job.  Returning an error wrapping
// ErrTerminal marks the job failed for good; any other error asks the
// substrate to deliver it again.
type Handler func(ctx context.Context, job FollowUpJob) error

// ErrTerminal marks a job that must not be redelivered.
var ErrTerminal = errors.New("job failed permanently")
