package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iliyamo/checkin-core/internal/queue"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the follow-up worker",
	RunE:  runWorker,
}

func runWorker(cmd *cobra.Command, _ []string) error {
	log := newLogger()
	a, err := newApp(log)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("backend", a.cfg.FollowUp.Backend).Msg("follow-up worker started")
	if a.sqlite != nil {
		err = a.sqlite.Poll(ctx, a.cfg.FollowUp.PollInterval, a.followUp.Handler())
	} else {
		c := &queue.Consumer{
			URL:    a.cfg.FollowUp.RabbitURL,
			Queue:  queue.FollowUpQueueName,
			Log:    log.With().Str("component", "consumer").Logger(),
			Handle: a.followUp.Handler(),
		}
		err = c.Run(ctx)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
