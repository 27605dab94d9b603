// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Command dayend-admin is the operational CLI for the day-end engine:
// history backfills, range recalculations, and legacy data migrations.
// It talks to the same Redis store as the service, configured through
// the same environment variables.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/AccelByte/extend-dayend-engine/internal/bootstrap"
	"github.com/AccelByte/extend-dayend-engine/internal/config"
	"github.com/AccelByte/extend-dayend-engine/pkg/dayclock"
	"github.com/AccelByte/extend-dayend-engine/pkg/docstore"
	"github.com/AccelByte/extend-dayend-engine/pkg/history"
	"github.com/AccelByte/extend-dayend-engine/pkg/ledger"
)

var rootCmd = &cobra.Command{
	Use:   "dayend-admin",
	Short: "Operational tooling for the day-end engine",
	Long: `dayend-admin runs maintenance operations against the day-end engine's
document store: rebuilding rolling score history, recalculating daily
records over a date range, and migrating legacy daily records to
date-keyed document IDs.`,
	SilenceUsage: true,
}

// env bundles the store-facing dependencies each command needs.
type env struct {
	cfg       *config.Config
	client    *redis.Client
	store     docstore.Store
	clock     *dayclock.Clock
	persister *ledger.Persister
	compactor *history.Compactor
}

func newEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.RedisHost + ":" + cfg.RedisPort,
		Password:    cfg.RedisPassword,
		DB:          0,
		MaxRetries:  3,
		DialTimeout: 5 * time.Second,
	})
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s:%s: %w", cfg.RedisHost, cfg.RedisPort, err)
	}

	strategy, err := bootstrap.LoadPolicy(cfg.ScoringConfigPath)
	if err != nil {
		return nil, err
	}

	store := docstore.NewRedisStore(client, docstore.RedisStoreConfig{})
	clock := dayclock.New(cfg.DayOffsetMinutes)

	return &env{
		cfg:       cfg,
		client:    client,
		store:     store,
		clock:     clock,
		persister: ledger.NewPersister(store, clock, strategy),
		compactor: history.NewCompactor(store),
	}, nil
}

func (e *env) Close() {
	if err := e.client.Close(); err != nil {
		logrus.Warnf("Redis close error: %v", err)
	}
}

// resolveUsers turns the --user/--all flag pair into a target list.
func resolveUsers(ctx context.Context, store docstore.Store, user string, all bool) ([]string, error) {
	if user != "" && all {
		return nil, fmt.Errorf("--user and --all are mutually exclusive")
	}
	if user != "" {
		return []string{user}, nil
	}
	if !all {
		return nil, fmt.Errorf("either --user or --all is required")
	}
	users, err := store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{})
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
