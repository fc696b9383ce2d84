// The automation worker runs the traffic generator headless: it starts the
// scheduler on boot and stops it on SIGINT, with no admin API attached. Use
// it to drive a shared environment while the api binary stays read-mostly.
package main

import (
	"context"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jdgallegos/beaconshop-backend/internal/automation"
	"github.com/jdgallegos/beaconshop-backend/internal/dispatch"
	"github.com/jdgallegos/beaconshop-backend/internal/eventlog"
	"github.com/jdgallegos/beaconshop-backend/internal/events"
	"github.com/jdgallegos/beaconshop-backend/internal/ratelimit"
	"github.com/jdgallegos/beaconshop-backend/internal/settings"
	"github.com/jdgallegos/beaconshop-backend/pkg/capi"
	"github.com/jdgallegos/beaconshop-backend/pkg/config"
	"github.com/jdgallegos/beaconshop-backend/pkg/db"
	"github.com/jdgallegos/beaconshop-backend/pkg/logger"
	"github.com/jdgallegos/beaconshop-backend/pkg/metrics"
	"github.com/jdgallegos/beaconshop-backend/pkg/migrate"
	"github.com/jdgallegos/beaconshop-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "automation-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "automation-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(context.Background(), cfg.Redis)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	}

	settingsSvc, err := settings.NewService(settings.NewRepository(dbClient.DB()), cfg)
	if err != nil {
		logg.Error(context.Background(), "failed to create settings service", err)
		os.Exit(1)
	}

	eventLogRepo, err := eventlog.NewRepository(dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create event log repository", err)
		os.Exit(1)
	}

	builder, err := events.NewBuilder(settingsSvc, cfg.App.BaseURL, rand.New(rand.NewSource(time.Now().UnixNano())))
	if err != nil {
		logg.Error(context.Background(), "failed to create event builder", err)
		os.Exit(1)
	}

	capiClient, err := capi.NewClient(cfg.CAPI, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create conversion api client", err)
		os.Exit(1)
	}

	dispatchMetrics := metrics.NewDispatchMetrics(prometheus.DefaultRegisterer)

	pixelQPS, capiQPS := settingsSvc.QPS(context.Background())
	dispatcher, err := dispatch.NewService(dispatch.ServiceParams{
		Logger:      logg,
		Settings:    settingsSvc,
		EventLog:    eventLogRepo,
		CAPIClient:  capiClient,
		Metrics:     dispatchMetrics,
		PixelBucket: ratelimit.NewBucket(pixelQPS, pixelQPS),
		CAPIBucket:  ratelimit.NewBucket(capiQPS, capiQPS),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create dispatch service", err)
		os.Exit(1)
	}

	var lock automation.Lock
	if redisClient != nil {
		lock, err = automation.NewRedisLock(redisClient, redisClient.LockKey("automation"), 0)
		if err != nil {
			logg.Error(context.Background(), "failed to create automation lock", err)
			os.Exit(1)
		}
	}

	scheduler, err := automation.NewScheduler(automation.SchedulerParams{
		Logger:         logg,
		Builder:        builder,
		Dispatcher:     dispatcher,
		Intervals:      settingsSvc,
		EventLog:       eventLogRepo,
		Metrics:        dispatchMetrics,
		Lock:           lock,
		MaxConcurrency: cfg.Automation.MaxConcurrency,
		StopTimeout:    cfg.Automation.StopTimeout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create automation scheduler", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithField(ctx, "env", cfg.App.Env)
	logg.Info(ctx, "starting automation worker")

	if err := scheduler.Start(ctx); err != nil {
		logg.Error(ctx, "failed to start automation", err)
		os.Exit(1)
	}

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Automation.StopTimeout+time.Second)
	defer cancel()
	if err := scheduler.Stop(shutdownCtx); err != nil {
		logg.Error(shutdownCtx, "automation shutdown incomplete", err)
		os.Exit(1)
	}
	logg.Info(context.Background(), "automation worker shutting down gracefully")
}
