package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/checkin-core/internal/config"
	"github.com/iliyamo/checkin-core/internal/handler"
	"github.com/iliyamo/checkin-core/internal/middleware"
	"github.com/iliyamo/checkin-core/internal/pickup"
	"github.com/iliyamo/checkin-core/internal/ratelimit"
	"github.com/iliyamo/checkin-core/internal/repository"
	"github.com/iliyamo/checkin-core/internal/router"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the check-in HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	log := newLogger()
	a, err := newApp(log)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := config.NewRedisClient()
	if err != nil {
		// pickup fails closed until Redis answers
		log.Warn().Err(err).Msg("redis unreachable at startup")
	}
	defer rdb.Close()

	pickupLimiter := ratelimit.NewRedis(rdb, ratelimit.Options{
		Max: a.cfg.Pickup.Max, Window: a.cfg.Pickup.Window, OnError: ratelimit.FailClosed, Prefix: "rl",
	}, log.With().Str("component", "ratelimit").Logger())
	trackingLimiter := ratelimit.NewMemory(ratelimit.Options{
		Max: a.cfg.Tracking.Max, Window: a.cfg.Tracking.Window, OnError: ratelimit.FailOpen,
	}, nil)
	trackingLimiter.Start(ctx, a.cfg.Tracking.Sweep)
	defer trackingLimiter.Stop()
	loginLimiter := ratelimit.NewMemory(ratelimit.Options{Max: 10, Window: time.Minute, OnError: ratelimit.FailOpen}, nil)
	loginLimiter.Start(ctx, time.Minute)
	defer loginLimiter.Stop()

	svc := a.checkinService()
	attendance := repository.NewAttendanceRepo(a.db)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = middleware.NewValidator()
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(log))
	router.RegisterRoutes(e, router.Handlers{
		Health:       handler.Health(a.db),
		Auth:         handler.NewAuthHandler(repository.NewStaffRepo(a.db), a.cfg.JWTSecret, a.cfg.AccessTTLMin, log),
		Checkin:      handler.NewCheckinHandler(svc, a.keys, log),
		Pickup:       handler.NewPickupHandler(pickup.New(attendance, pickupLimiter, a.cfg.Checkin.Timezone, nil, log), a.keys, log),
		Tracking:     handler.NewTrackingHandler(repository.NewInteractionRepo(a.db), trackingLimiter, log),
		LoginLimiter: loginLimiter,
	}, a.cfg.JWTSecret)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + a.cfg.Port
		log.Info().Str("addr", addr).Str("env", a.cfg.Env).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if a.sqlite != nil {
		// single-node deployments run the worker in-process
		g.Go(func() error {
			err := a.sqlite.Poll(gctx, a.cfg.FollowUp.PollInterval, a.followUp.Handler())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(sctx); err != nil {
			log.Error().Err(err).Msg("http shutdown")
		}
		svc.Wait()
		log.Info().Msg("stopped")
		return nil
	})
	return g.Wait()
}
