package main

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/iliyamo/checkin-core/internal/access"
	"github.com/iliyamo/checkin-core/internal/checkin"
	"github.com/iliyamo/checkin-core/internal/config"
	"github.com/iliyamo/checkin-core/internal/database"
	"github.com/iliyamo/checkin-core/internal/followup"
	"github.com/iliyamo/checkin-core/internal/queue"
	"github.com/iliyamo/checkin-core/internal/repository"
	"github.com/iliyamo/checkin-core/internal/utils"
)

// app holds the dependencies shared by serve and worker.
type app struct {
	cfg      config.Config
	log      zerolog.Logger
	db       *sql.DB
	keys     *utils.IDKeys
	followUp *followup.Queue
	amqp     *queue.AMQPScheduler
	sqlite   *queue.SQLiteStore
}

func newApp(log zerolog.Logger) (*app, error) {
	cfg := config.Load()
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	keys, err := utils.NewIDKeys(cfg.IDKeySalt)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("identity keys: %w", err)
	}
	a := &app{cfg: cfg, log: log, db: db, keys: keys}

	var sched followup.Scheduler
	switch cfg.FollowUp.Backend {
	case config.BackendSQLite:
		a.sqlite, err = queue.OpenSQLiteStore(cfg.FollowUp.SQLitePath, log.With().Str("component", "jobs").Logger())
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("open job store: %w", err)
		}
		sched = a.sqlite
	default:
		a.amqp = queue.NewAMQPScheduler(cfg.FollowUp.RabbitURL, queue.FollowUpQueueName, log.With().Str("component", "jobs").Logger())
		sched = a.amqp
	}
	a.followUp = followup.New(sched, repository.NewFollowUpRepo(db), log)
	return a, nil
}

// checkinService wires the check-in core onto MySQL.
func (a *app) checkinService() *checkin.Service {
	locations := repository.NewLocationRepo(a.db)
	attendance := repository.NewAttendanceRepo(a.db)
	return checkin.New(checkin.Deps{
		People:      repository.NewPersonRepo(a.db),
		Locations:   locations,
		Occurrences: repository.NewOccurrenceRepo(a.db),
		Codes:       repository.NewCodeRepo(a.db),
		Attendance:  attendance,
		IDs:         a.keys,
		Auth:        access.NewAuthorizer(locations),
		FollowUps:   a.followUp,
		Log:         a.log,
	}, checkin.Options{
		Timezone:           a.cfg.Checkin.Timezone,
		CodeLength:         a.cfg.Checkin.CodeLength,
		CodeAttempts:       a.cfg.Checkin.CodeAttempts,
		BatchConcurrency:   a.cfg.Checkin.BatchConcurrency,
		LatencyBudget:      a.cfg.Checkin.LatencyBudget,
		BatchLatencyBudget: a.cfg.Checkin.BatchLatencyBudget,
	})
}

func (a *app) close() error {
	var errs []error
	if a.amqp != nil {
		errs = append(errs, a.amqp.Close())
	}
	if a.sqlite != nil {
		errs = append(errs, a.sqlite.Close())
	}
	errs = append(errs, a.db.Close())
	return errors.Join(errs...)
}
