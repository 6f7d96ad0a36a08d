package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Consumer delivers follow-up jobs from RabbitMQ to a Handler.  Successful
// deliveries are acked, terminal failures are rejected without requeue so
// the broker dead-letters them into the failed-job queue, and any other
// error requeues the message.
type Consumer struct {
	URL      string
	Queue    string
	Prefetch int
	Log      zerolog.Logger
	Handle   Handler
}

// Run connects and consumes until ctx is cancelled.  Broker outages are
// retried with exponential backoff capped at 30s.
func (c *Consumer) Run(ctx context.Context) error {
	if c.Queue == "" {
		c.Queue = FollowUpQueueName
	}
	if c.Prefetch <= 0 {
		c.Prefetch = 16
	}
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Log.Warn().Err(err).Dur("retry_in", backoff).Msg("failed to dial broker")
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.Log.Warn().Err(err).Msg("consume loop ended; reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(c.Prefetch, 0, false); err != nil {
		c.Log.Warn().Err(err).Msg("set QoS failed")
	}
	if err := declareTopology(ch, c.Queue); err != nil {
		return err
	}
	msgs, err := ch.Consume(c.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.deliver(ctx, d)
		}
	}
}

func (c *Consumer) deliver(ctx context.Context, d amqp.Delivery) {
	var job FollowUpJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		c.Log.Error().Err(err).Str("message_id", d.MessageId).Msg("undecodable job rejected")
		_ = d.Nack(false, false)
		return
	}
	err := c.Handle(ctx, job)
	switch {
	case err == nil:
		_ = d.Ack(false)
	case errors.Is(err, ErrTerminal):
		// dead-letters into the failed queue for operators
		_ = d.Nack(false, false)
	default:
		c.Log.Warn().Err(err).Str("job_id", job.ID).Msg("job failed; requeueing")
		_ = d.Nack(false, true)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
