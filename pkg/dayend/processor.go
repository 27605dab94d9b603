// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package dayend drives the whole day-end flow across all users. Users
// are independent and run in bounded parallel batches with a short pause
// between batches to limit load on the shared store; per-user failures
// are counted and isolated, never aborting the run.
package dayend

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AccelByte/extend-dayend-engine/pkg/common"
	"github.com/AccelByte/extend-dayend-engine/pkg/dayclock"
	"github.com/AccelByte/extend-dayend-engine/pkg/docstore"
	"github.com/AccelByte/extend-dayend-engine/pkg/ledger"
	"github.com/AccelByte/extend-dayend-engine/pkg/maintenance"
)

const defaultUserBatchSize = 10

// Config tunes the multi-user run. BatchPause is purely a throttling
// device, not a correctness requirement.
type Config struct {
	UserBatchSize int
	BatchPause    time.Duration
}

// Processor runs maintenance plus scoring for one user or for everyone.
type Processor struct {
	store     docstore.Store
	clock     *dayclock.Clock
	manager   *maintenance.Manager
	persister *ledger.Persister
	cfg       Config
}

func NewProcessor(store docstore.Store, clock *dayclock.Clock, manager *maintenance.Manager, persister *ledger.Persister, cfg Config) *Processor {
	if cfg.UserBatchSize < 1 {
		cfg.UserBatchSize = defaultUserBatchSize
	}
	return &Processor{
		store:     store,
		clock:     clock,
		manager:   manager,
		persister: persister,
		cfg:       cfg,
	}
}

// Summary reports one full run.
type Summary struct {
	UsersTotal     int
	UsersProcessed int
	UserErrors     int
	Duration       time.Duration
}

// ProcessAllUsers runs the day-end flow for every known user in batches
// of cfg.UserBatchSize. Returns a summary; the only error returned is a
// failure to enumerate users or a cancelled context, since per-user
// failures are isolated by design.
func (p *Processor) ProcessAllUsers(ctx context.Context) (Summary, error) {
	scope := common.GetScopeFromContext(ctx, "dayend.ProcessAllUsers")
	defer scope.Finish()

	started := time.Now()

	users, err := p.store.ListUsers(scope.Ctx)
	if err != nil {
		scope.TraceError(err)
		RunsTotal.WithLabelValues("error").Inc()
		return Summary{}, err
	}
	scope.SetAttributes("users.total", len(users))
	scope.Log.Infof("starting day-end run for %d users", len(users))

	var processed, failed int64
	for start := 0; start < len(users); start += p.cfg.UserBatchSize {
		if err := ctx.Err(); err != nil {
			RunsTotal.WithLabelValues("cancelled").Inc()
			return p.summary(users, processed, failed, started), err
		}

		end := start + p.cfg.UserBatchSize
		if end > len(users) {
			end = len(users)
		}

		var wg sync.WaitGroup
		for _, userID := range users[start:end] {
			wg.Add(1)
			go func(userID string) {
				defer wg.Done()
				timer := time.Now()
				if err := p.processUser(scope.Ctx, userID); err != nil {
					atomic.AddInt64(&failed, 1)
					UserErrorsTotal.Inc()
					scope.Log.WithError(err).Errorf("day-end processing failed for user %s", userID)
					return
				}
				atomic.AddInt64(&processed, 1)
				UsersProcessedTotal.Inc()
				UserProcessingDuration.Observe(time.Since(timer).Seconds())
			}(userID)
		}
		wg.Wait()

		if end < len(users) && p.cfg.BatchPause > 0 {
			select {
			case <-time.After(p.cfg.BatchPause):
			case <-ctx.Done():
			}
		}
	}

	s := p.summary(users, processed, failed, started)
	scope.SetAttributes("users.processed", s.UsersProcessed)
	scope.SetAttributes("users.failed", s.UserErrors)
	scope.Log.Infof("day-end run finished: %d processed, %d failed in %s",
		s.UsersProcessed, s.UserErrors, s.Duration)
	RunsTotal.WithLabelValues("ok").Inc()
	return s, nil
}

func (p *Processor) summary(users []string, processed, failed int64, started time.Time) Summary {
	return Summary{
		UsersTotal:     len(users),
		UsersProcessed: int(processed),
		UserErrors:     int(failed),
		Duration:       time.Since(started),
	}
}

// processUser is the scheduled per-user flow: lifecycle maintenance
// first, then scoring for every day between the newest record and
// yesterday.
func (p *Processor) processUser(ctx context.Context, userID string) error {
	p.manager.RunDayTransition(ctx, userID)
	return p.persister.CatchUpMissedDays(ctx, userID)
}

// ProcessUserDay is the synchronous single-user variant used by the
// interactive entry points: maintenance plus one day's persistence, with
// errors surfaced to the caller.
func (p *Processor) ProcessUserDay(ctx context.Context, userID string, date time.Time, opts ledger.Options) error {
	scope := common.GetScopeFromContext(ctx, "dayend.ProcessUserDay")
	defer scope.Finish()
	scope.AddBaggage("user.id", userID)
	scope.AddBaggage("day", p.clock.DateKey(date))

	p.manager.RunDayTransition(scope.Ctx, userID)
	if err := p.persister.PersistDay(scope.Ctx, userID, date, opts); err != nil {
		scope.TraceError(err)
		return err
	}
	return nil
}

// Persister exposes the underlying ledger persister for the interactive
// range/backfill entry points.
func (p *Processor) Persister() *ledger.Persister {
	return p.persister
}
