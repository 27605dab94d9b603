// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package app

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/AccelByte/extend-dayend-engine/internal/bootstrap"
	"github.com/AccelByte/extend-dayend-engine/internal/config"
	"github.com/AccelByte/extend-dayend-engine/internal/server"
	"github.com/AccelByte/extend-dayend-engine/pkg/common"
	"github.com/AccelByte/extend-dayend-engine/pkg/dayclock"
	"github.com/AccelByte/extend-dayend-engine/pkg/dayend"
	"github.com/AccelByte/extend-dayend-engine/pkg/docstore"
	"github.com/AccelByte/extend-dayend-engine/pkg/ledger"
	"github.com/AccelByte/extend-dayend-engine/pkg/maintenance"
)

// App holds all application dependencies and manages the application lifecycle.
type App struct {
	cfg               *config.Config
	httpServer        *server.HTTPServer
	metricsServer     *server.MetricsServer
	redisClient       *redis.Client
	processor         *dayend.Processor
	scheduler         *cron.Cron
	shutdownTelemetry func(context.Context) error
}

// New creates and initializes a new application instance.
// Components are initialized in dependency order: Redis, scoring policy,
// engine components, servers, scheduler, telemetry.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logrus.Info("initializing application...")

	app := &App{cfg: cfg}

	if err := app.initRedis(ctx); err != nil {
		return nil, fmt.Errorf("failed to init Redis: %w", err)
	}

	strategy, err := bootstrap.LoadPolicy(cfg.ScoringConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load scoring policy from %s: %w", cfg.ScoringConfigPath, err)
	}

	store := docstore.NewRedisStore(app.redisClient, docstore.RedisStoreConfig{})
	clock := dayclock.New(cfg.DayOffsetMinutes)
	logrus.Infof("day boundaries resolved at UTC offset %+d minutes", cfg.DayOffsetMinutes)

	manager := maintenance.NewManager(store, clock)
	persister := ledger.NewPersister(store, clock, strategy)
	app.processor = dayend.NewProcessor(store, clock, manager, persister, dayend.Config{
		UserBatchSize: cfg.UserBatchSize,
		BatchPause:    time.Duration(cfg.BatchPauseMs) * time.Millisecond,
	})

	app.httpServer = server.NewHTTPServer(cfg.HTTPPort, app.processor, clock)

	app.metricsServer = server.NewMetricsServer(cfg.MetricsPort, "/metrics")
	if err := app.metricsServer.Setup(); err != nil {
		return nil, fmt.Errorf("failed to setup metrics server: %w", err)
	}

	if err := app.initScheduler(); err != nil {
		return nil, fmt.Errorf("failed to init scheduler: %w", err)
	}

	if cfg.OtelEnabled {
		shutdownTelemetry, err := server.SetupTelemetry(ctx, cfg.ServiceName, cfg.Environment, common.GenerateRandomInt())
		if err != nil {
			return nil, fmt.Errorf("failed to setup telemetry: %w", err)
		}
		app.shutdownTelemetry = shutdownTelemetry
	}

	logrus.Info("application initialized successfully")

	return app, nil
}

// initRedis initializes the Redis client.
func (a *App) initRedis(ctx context.Context) error {
	client := redis.NewClient(&redis.Options{
		Addr:         a.cfg.RedisHost + ":" + a.cfg.RedisPort,
		Password:     a.cfg.RedisPassword,
		DB:           0, // use default DB
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Duration(a.cfg.RedisRetryDelayMs) * time.Millisecond
	maxRetries := backoff.WithMaxRetries(b, uint64(a.cfg.RedisMaxRetries))

	err := backoff.Retry(
		func() error {
			_, err := client.Ping(ctx).Result()
			if err != nil {
				logrus.Warnf("Redis connection failed: %v, retrying...", err)
				return err
			}
			return nil
		},
		maxRetries,
	)

	if err != nil {
		return err
	}

	a.redisClient = client
	logrus.Info("Redis client initialized")
	return nil
}

// initScheduler configures the nightly all-users run. The schedule is
// expressed in UTC so that "30 18 * * *" crosses the UTC+5:30 midnight
// boundary exactly when every user's day has ended.
func (a *App) initScheduler() error {
	if !a.cfg.CronEnabled {
		logrus.Info("scheduled day-end run is disabled")
		return nil
	}

	a.scheduler = cron.New(cron.WithLocation(time.UTC))
	_, err := a.scheduler.AddFunc(a.cfg.CronSchedule, func() {
		logrus.Info("scheduled day-end run starting")
		summary, err := a.processor.ProcessAllUsers(context.Background())
		if err != nil {
			logrus.WithError(err).Error("scheduled day-end run failed")
			return
		}
		logrus.Infof("scheduled day-end run finished: %d/%d users processed, %d errors, took %s",
			summary.UsersProcessed, summary.UsersTotal, summary.UserErrors, summary.Duration)
	})
	if err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", a.cfg.CronSchedule, err)
	}

	logrus.Infof("scheduled day-end run registered: %q (UTC)", a.cfg.CronSchedule)
	return nil
}
