// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package dayend

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"github.com/AccelByte/extend-dayend-engine/pkg/activity"
	"github.com/AccelByte/extend-dayend-engine/pkg/dayclock"
	"github.com/AccelByte/extend-dayend-engine/pkg/docstore"
	"github.com/AccelByte/extend-dayend-engine/pkg/ledger"
	"github.com/AccelByte/extend-dayend-engine/pkg/maintenance"
	"github.com/AccelByte/extend-dayend-engine/pkg/scoring"
)

func setupProcessor(t *testing.T, cfg Config) (*Processor, docstore.Store, *dayclock.Clock) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := docstore.NewRedisStore(client, docstore.RedisStoreConfig{})
	clock := dayclock.NewFrozen(0, time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	manager := maintenance.NewManager(store, clock)
	persister := ledger.NewPersister(store, clock, scoring.DayCountRecovery{})
	return NewProcessor(store, clock, manager, persister, cfg), store, clock
}

func seedUser(t *testing.T, store docstore.Store, userID string, day time.Time) {
	t.Helper()
	completedAt := day.Add(9 * time.Hour)
	inst := activity.Instance{
		TemplateID:           "tpl-1",
		Status:               activity.StatusCompleted,
		DueDate:              &day,
		BelongsToDate:        &day,
		CompletedAt:          &completedAt,
		IsActive:             true,
		TemplateName:         "habit",
		TemplateCategoryType: activity.CategoryHabit,
		TemplatePriority:     1,
		TemplateTrackingType: activity.TrackingBinary,
	}
	if err := store.Set(context.Background(), userID, activity.InstancesCollection, "inst-1", inst); err != nil {
		t.Fatalf("failed to seed user %s: %v", userID, err)
	}
}

func TestProcessAllUsers(t *testing.T) {
	proc, store, clock := setupProcessor(t, Config{UserBatchSize: 2})
	ctx := context.Background()
	yesterday := clock.YesterdayStart()

	users := []string{"alice", "bob", "carol", "dave", "erin"}
	for _, u := range users {
		seedUser(t, store, u, yesterday)
	}

	summary, err := proc.ProcessAllUsers(ctx)
	if err != nil {
		t.Fatalf("ProcessAllUsers failed: %v", err)
	}
	if summary.UsersTotal != len(users) || summary.UsersProcessed != len(users) {
		t.Errorf("summary = %+v, want all %d processed", summary, len(users))
	}
	if summary.UserErrors != 0 {
		t.Errorf("user errors = %d, want 0", summary.UserErrors)
	}

	for _, u := range users {
		if _, err := store.Get(ctx, u, ledger.RecordsCollection, "2026-03-09"); err != nil {
			t.Errorf("user %s missing yesterday's record: %v", u, err)
		}
	}
}

func TestProcessAllUsers_Rerun(t *testing.T) {
	proc, store, clock := setupProcessor(t, Config{})
	ctx := context.Background()
	seedUser(t, store, "alice", clock.YesterdayStart())

	if _, err := proc.ProcessAllUsers(ctx); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	first, err := store.Get(ctx, "alice", ledger.RecordsCollection, "2026-03-09")
	if err != nil {
		t.Fatalf("missing record: %v", err)
	}

	// Second run is a no-op for already-finalized days.
	if _, err := proc.ProcessAllUsers(ctx); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	second, err := store.Get(ctx, "alice", ledger.RecordsCollection, "2026-03-09")
	if err != nil {
		t.Fatalf("missing record after rerun: %v", err)
	}
	if string(first.Data) != string(second.Data) {
		t.Error("finalized record changed on rerun")
	}
}

func TestProcessUserDay(t *testing.T) {
	proc, store, clock := setupProcessor(t, Config{})
	ctx := context.Background()
	yesterday := clock.YesterdayStart()
	seedUser(t, store, "bob", yesterday)

	if err := proc.ProcessUserDay(ctx, "bob", yesterday, ledger.Options{}); err != nil {
		t.Fatalf("ProcessUserDay failed: %v", err)
	}
	if _, err := store.Get(ctx, "bob", ledger.RecordsCollection, "2026-03-09"); err != nil {
		t.Errorf("missing record: %v", err)
	}
}
