// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package maintenance

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"github.com/AccelByte/extend-dayend-engine/pkg/activity"
	"github.com/AccelByte/extend-dayend-engine/pkg/dayclock"
	"github.com/AccelByte/extend-dayend-engine/pkg/docstore"
)

// setupManager freezes the clock at 2026-03-10 noon UTC, so today is
// 2026-03-10 and yesterday 2026-03-09.
func setupManager(t *testing.T) (*Manager, docstore.Store, *dayclock.Clock) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := docstore.NewRedisStore(client, docstore.RedisStoreConfig{})
	clock := dayclock.NewFrozen(0, time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	return NewManager(store, clock), store, clock
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seedInstance(t *testing.T, store docstore.Store, userID, id string, inst activity.Instance) {
	t.Helper()
	if err := store.Set(context.Background(), userID, activity.InstancesCollection, id, inst); err != nil {
		t.Fatalf("failed to seed instance %s: %v", id, err)
	}
}

func loadInstances(t *testing.T, store docstore.Store, userID string) map[string]activity.Instance {
	t.Helper()
	docs, err := store.Query(context.Background(), userID, activity.InstancesCollection, docstore.Query{})
	if err != nil {
		t.Fatalf("failed to list instances: %v", err)
	}
	out := make(map[string]activity.Instance, len(docs))
	for _, doc := range docs {
		var inst activity.Instance
		if err := json.Unmarshal(doc.Data, &inst); err != nil {
			t.Fatalf("failed to decode instance %s: %v", doc.ID, err)
		}
		out[doc.ID] = inst
	}
	return out
}

func pendingHabit(templateID string, belongs, windowEnd time.Time, duration int) activity.Instance {
	return activity.Instance{
		TemplateID:           templateID,
		Status:               activity.StatusPending,
		DueDate:              &belongs,
		BelongsToDate:        &belongs,
		WindowEndDate:        &windowEnd,
		WindowDuration:       duration,
		IsActive:             true,
		TemplateName:         "habit-" + templateID,
		TemplateCategoryType: activity.CategoryHabit,
		TemplatePriority:     1,
		TemplateTrackingType: activity.TrackingBinary,
	}
}

func TestAutoSkipExpired(t *testing.T) {
	mgr, store, clock := setupManager(t)
	ctx := context.Background()

	// Window ended 2026-03-05, four days before yesterday: expired.
	expired := pendingHabit("tpl-1", date(2026, 3, 3), date(2026, 3, 5), 3)
	seedInstance(t, store, "alice", "inst-expired", expired)

	// Window ended yesterday: inside the grace period, untouched.
	fresh := pendingHabit("tpl-2", date(2026, 3, 9), date(2026, 3, 9), 1)
	seedInstance(t, store, "alice", "inst-fresh", fresh)

	if err := mgr.autoSkipExpired(ctx, "alice", clock.YesterdayStart()); err != nil {
		t.Fatalf("autoSkipExpired failed: %v", err)
	}

	instances := loadInstances(t, store, "alice")
	if len(instances) != 3 {
		t.Fatalf("instances = %d, want 3 (expired + fresh + successor)", len(instances))
	}

	got := instances["inst-expired"]
	if got.Status != activity.StatusSkipped {
		t.Errorf("expired status = %s, want skipped", got.Status)
	}
	if got.SkippedAt == nil || !clock.SameDay(*got.SkippedAt, date(2026, 3, 5)) {
		t.Errorf("skippedAt = %v, want window end day", got.SkippedAt)
	}
	if instances["inst-fresh"].Status != activity.StatusPending {
		t.Error("fresh instance was touched")
	}

	// Successor starts the day after the old window end and inherits
	// the duration.
	var successor *activity.Instance
	for id, inst := range instances {
		if id != "inst-expired" && id != "inst-fresh" {
			s := inst
			successor = &s
		}
	}
	if successor == nil {
		t.Fatal("no successor created")
	}
	if !clock.SameDay(*successor.BelongsToDate, date(2026, 3, 6)) {
		t.Errorf("successor start = %v, want 2026-03-06", successor.BelongsToDate)
	}
	if !clock.SameDay(*successor.WindowEndDate, date(2026, 3, 8)) {
		t.Errorf("successor window end = %v, want 2026-03-08", successor.WindowEndDate)
	}
	if successor.WindowDuration != 3 || successor.Status != activity.StatusPending {
		t.Errorf("successor = %+v", successor)
	}
	if successor.TemplateName != "habit-tpl-1" {
		t.Errorf("successor lost denormalized fields: %+v", successor)
	}

	// Re-running creates no duplicate successor.
	if err := mgr.autoSkipExpired(ctx, "alice", clock.YesterdayStart()); err != nil {
		t.Fatalf("second autoSkipExpired failed: %v", err)
	}
	if n := len(loadInstances(t, store, "alice")); n != 3 {
		t.Errorf("instances after re-run = %d, want 3", n)
	}
}

func TestEnsurePending_CreatesInitialInstance(t *testing.T) {
	mgr, store, clock := setupManager(t)
	ctx := context.Background()

	tpl := activity.Template{
		Name:         "meditate",
		CategoryType: activity.CategoryHabit,
		Priority:     2,
		TrackingType: activity.TrackingBinary,
		IsActive:     true,
	}
	if err := store.Set(ctx, "bob", activity.TemplatesCollection, "tpl-med", tpl); err != nil {
		t.Fatalf("failed to seed template: %v", err)
	}

	if err := mgr.ensurePending(ctx, "bob", clock.YesterdayStart()); err != nil {
		t.Fatalf("ensurePending failed: %v", err)
	}

	instances := loadInstances(t, store, "bob")
	if len(instances) != 1 {
		t.Fatalf("instances = %d, want 1", len(instances))
	}
	for _, inst := range instances {
		if !clock.SameDay(*inst.BelongsToDate, clock.TodayStart()) {
			t.Errorf("initial instance start = %v, want today", inst.BelongsToDate)
		}
		if inst.WindowDuration != 1 || inst.Status != activity.StatusPending {
			t.Errorf("initial instance = %+v", inst)
		}
		if inst.TemplateName != "meditate" || inst.TemplatePriority != 2 {
			t.Errorf("initial instance missing template snapshot: %+v", inst)
		}
	}

	// Covered now; a second run creates nothing.
	if err := mgr.ensurePending(ctx, "bob", clock.YesterdayStart()); err != nil {
		t.Fatalf("second ensurePending failed: %v", err)
	}
	if n := len(loadInstances(t, store, "bob")); n != 1 {
		t.Errorf("instances after re-run = %d, want 1", n)
	}
}

func TestEnsurePending_RollsOverStaleInstance(t *testing.T) {
	mgr, store, clock := setupManager(t)
	ctx := context.Background()

	tpl := activity.Template{
		Name:         "stretch",
		CategoryType: activity.CategoryHabit,
		IsActive:     true,
	}
	if err := store.Set(ctx, "carol", activity.TemplatesCollection, "tpl-str", tpl); err != nil {
		t.Fatalf("failed to seed template: %v", err)
	}
	// Newest instance's window ended 2026-03-07, before yesterday, and
	// covers neither yesterday nor today.
	stale := pendingHabit("tpl-str", date(2026, 3, 7), date(2026, 3, 7), 1)
	seedInstance(t, store, "carol", "inst-stale", stale)

	if err := mgr.ensurePending(ctx, "carol", clock.YesterdayStart()); err != nil {
		t.Fatalf("ensurePending failed: %v", err)
	}

	instances := loadInstances(t, store, "carol")
	if len(instances) != 2 {
		t.Fatalf("instances = %d, want 2", len(instances))
	}
	if instances["inst-stale"].Status != activity.StatusSkipped {
		t.Errorf("stale status = %s, want skipped", instances["inst-stale"].Status)
	}
	for id, inst := range instances {
		if id == "inst-stale" {
			continue
		}
		if !clock.SameDay(*inst.BelongsToDate, date(2026, 3, 8)) {
			t.Errorf("successor start = %v, want 2026-03-08", inst.BelongsToDate)
		}
	}
}

func TestEnsurePending_YesterdayCoverageSuppressesCreation(t *testing.T) {
	mgr, store, clock := setupManager(t)
	ctx := context.Background()

	tpl := activity.Template{Name: "read", CategoryType: activity.CategoryHabit, IsActive: true}
	if err := store.Set(ctx, "dave", activity.TemplatesCollection, "tpl-read", tpl); err != nil {
		t.Fatalf("failed to seed template: %v", err)
	}
	covering := pendingHabit("tpl-read", date(2026, 3, 9), date(2026, 3, 9), 1)
	seedInstance(t, store, "dave", "inst-yday", covering)

	if err := mgr.ensurePending(ctx, "dave", clock.YesterdayStart()); err != nil {
		t.Fatalf("ensurePending failed: %v", err)
	}
	if n := len(loadInstances(t, store, "dave")); n != 1 {
		t.Errorf("instances = %d, want 1 (yesterday coverage suffices)", n)
	}
}

func TestSnapshotLastDayValues(t *testing.T) {
	mgr, store, clock := setupManager(t)
	ctx := context.Background()

	// Open window past yesterday: snapshotted.
	open := pendingHabit("tpl-a", date(2026, 3, 8), date(2026, 3, 12), 5)
	open.TemplateTrackingType = activity.TrackingQuantity
	open.CurrentValue = activity.NewValue(7)
	open.LastDayValue = activity.NewValue(2)
	seedInstance(t, store, "erin", "inst-open", open)

	// Window ending yesterday: left alone.
	closing := pendingHabit("tpl-b", date(2026, 3, 9), date(2026, 3, 9), 1)
	closing.CurrentValue = activity.NewValue(3)
	seedInstance(t, store, "erin", "inst-closing", closing)

	if err := mgr.snapshotLastDayValues(ctx, "erin", clock.YesterdayStart()); err != nil {
		t.Fatalf("snapshotLastDayValues failed: %v", err)
	}

	instances := loadInstances(t, store, "erin")
	if got := instances["inst-open"].LastDayValue.Float64(); got != 7 {
		t.Errorf("open lastDayValue = %v, want 7", got)
	}
	if got := instances["inst-closing"].LastDayValue.Float64(); got != 0 {
		t.Errorf("closing lastDayValue = %v, want untouched 0", got)
	}
}

func TestRunDayTransition_Idempotent(t *testing.T) {
	mgr, store, _ := setupManager(t)
	ctx := context.Background()

	tpl := activity.Template{Name: "walk", CategoryType: activity.CategoryHabit, IsActive: true}
	if err := store.Set(ctx, "frank", activity.TemplatesCollection, "tpl-walk", tpl); err != nil {
		t.Fatalf("failed to seed template: %v", err)
	}
	// Window ended the day before yesterday: inside the grace period,
	// rolled over to a successor covering yesterday in one pass.
	stale := pendingHabit("tpl-walk", date(2026, 3, 8), date(2026, 3, 8), 1)
	seedInstance(t, store, "frank", "inst-old", stale)

	mgr.RunDayTransition(ctx, "frank")
	first := loadInstances(t, store, "frank")
	if len(first) != 2 {
		t.Fatalf("instances after first run = %d, want 2", len(first))
	}
	if first["inst-old"].Status != activity.StatusSkipped {
		t.Errorf("stale instance status = %s, want skipped", first["inst-old"].Status)
	}

	mgr.RunDayTransition(ctx, "frank")
	second := loadInstances(t, store, "frank")
	if len(second) != len(first) {
		t.Errorf("instance count changed on re-run: %d then %d", len(first), len(second))
	}
}
