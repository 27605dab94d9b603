// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/AccelByte/extend-dayend-engine/pkg/activity"
	"github.com/AccelByte/extend-dayend-engine/pkg/dayclock"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func day(t *testing.T, key string) time.Time {
	t.Helper()
	clock := dayclock.New(0)
	d, err := clock.ParseDateKey(key)
	if err != nil {
		t.Fatalf("bad date key %q: %v", key, err)
	}
	return d
}

func habit(name string, status activity.Status, priority int, due time.Time) activity.Instance {
	return activity.Instance{
		TemplateName:         name,
		TemplateCategoryType: activity.CategoryHabit,
		TemplateTrackingType: activity.TrackingBinary,
		TemplatePriority:     priority,
		Status:               status,
		DueDate:              &due,
	}
}

func TestAggregate_WindowFilterAndEarnedSet(t *testing.T) {
	engine := NewEngine(dayclock.New(0))
	target := day(t, "2026-03-10")
	before := day(t, "2026-03-08")
	after := day(t, "2026-03-12")

	completedToday := habit("read", activity.StatusCompleted, 2, target)
	completedToday.CompletedAt = &target

	// Completed inside its window but on a different day: contributes
	// to the target sum, never to earned.
	completedEarlier := habit("write", activity.StatusCompleted, 1, before)
	completedEarlier.WindowEndDate = &after
	completedEarlier.WindowDuration = 5
	completedEarlier.CompletedAt = &before

	pendingToday := habit("run", activity.StatusPending, 1, target)

	outOfWindow := habit("swim", activity.StatusPending, 3, after)

	essential := habit("sleep", activity.StatusCompleted, 5, target)
	essential.TemplateCategoryType = activity.CategoryEssential
	essential.CompletedAt = &target

	agg := engine.Aggregate(target, []activity.Instance{
		completedToday, completedEarlier, pendingToday, outOfWindow, essential,
	}, nil)

	// Targets: read 2 + write 1 + run 1 = 4. Earned: read 2 only.
	if !almostEqual(agg.TargetPoints, 4) {
		t.Errorf("target points = %v, want 4", agg.TargetPoints)
	}
	if !almostEqual(agg.EarnedPoints, 2) {
		t.Errorf("earned points = %v, want 2", agg.EarnedPoints)
	}
	if !almostEqual(agg.CompletionPct, 50) {
		t.Errorf("completion = %v, want 50", agg.CompletionPct)
	}
	if len(agg.Habits) != 3 {
		t.Fatalf("habit breakdowns = %d, want 3", len(agg.Habits))
	}
	// Only the habit completed on the target day counts as completed.
	if agg.HabitCounts.Total != 3 || agg.HabitCounts.Completed != 1 {
		t.Errorf("habit counts = %+v", agg.HabitCounts)
	}
}

func TestAggregate_StatusCounts(t *testing.T) {
	engine := NewEngine(dayclock.New(0))
	target := day(t, "2026-03-10")
	before := day(t, "2026-03-08")

	partialHabit := habit("meditate", activity.StatusPending, 1, target)
	partialHabit.CurrentValue = activity.NewValue(2)

	skippedHabit := habit("journal", activity.StatusSkipped, 1, target)

	// Completed on a prior day: excluded from the completed count.
	carriedHabit := habit("stretch", activity.StatusCompleted, 1, target)
	carriedHabit.CompletedAt = &before

	partialTask := activity.Instance{
		TemplateName:         "write draft",
		TemplateCategoryType: activity.CategoryTask,
		TemplatePriority:     2,
		Status:               activity.StatusPending,
		DueDate:              &target,
		CurrentValue:         activity.NewValue(1),
	}

	agg := engine.Aggregate(target, []activity.Instance{
		partialHabit, skippedHabit, carriedHabit, partialTask,
	}, nil)

	if agg.HabitCounts.Completed != 0 {
		t.Errorf("habit completed = %d, want 0", agg.HabitCounts.Completed)
	}
	if agg.HabitCounts.Partial != 1 {
		t.Errorf("habit partial = %d, want 1", agg.HabitCounts.Partial)
	}
	if agg.HabitCounts.Skipped != 1 {
		t.Errorf("habit skipped = %d, want 1", agg.HabitCounts.Skipped)
	}
	if agg.TaskCounts.Partial != 1 {
		t.Errorf("task partial = %d, want 1", agg.TaskCounts.Partial)
	}
	if agg.TaskCounts.Completed != 0 {
		t.Errorf("task completed = %d, want 0", agg.TaskCounts.Completed)
	}
}

func TestAggregate_Tasks(t *testing.T) {
	engine := NewEngine(dayclock.New(0))
	target := day(t, "2026-03-10")
	earlier := day(t, "2026-03-05")
	later := day(t, "2026-03-20")

	doneToday := activity.Instance{
		TemplateName:         "file taxes",
		TemplateCategoryType: activity.CategoryTask,
		TemplatePriority:     3,
		Status:               activity.StatusCompleted,
		DueDate:              &target,
		CompletedAt:          &target,
	}
	overdue := activity.Instance{
		TemplateName:         "renew passport",
		TemplateCategoryType: activity.CategoryTask,
		TemplatePriority:     2,
		Status:               activity.StatusPending,
		DueDate:              &earlier,
	}
	future := activity.Instance{
		TemplateName:         "book flights",
		TemplateCategoryType: activity.CategoryTask,
		TemplatePriority:     1,
		Status:               activity.StatusPending,
		DueDate:              &later,
	}
	doneEarlier := activity.Instance{
		TemplateName:         "submit report",
		TemplateCategoryType: activity.CategoryTask,
		TemplatePriority:     4,
		Status:               activity.StatusCompleted,
		DueDate:              &earlier,
		CompletedAt:          &earlier,
	}

	agg := engine.Aggregate(target, []activity.Instance{doneToday, overdue, future, doneEarlier}, nil)

	// Targets: 3 (done today) + 2 (overdue pending). Earned: 3.
	if !almostEqual(agg.TargetPoints, 5) {
		t.Errorf("target points = %v, want 5", agg.TargetPoints)
	}
	if !almostEqual(agg.EarnedPoints, 3) {
		t.Errorf("earned points = %v, want 3", agg.EarnedPoints)
	}
	if agg.TaskCounts.Total != 2 || agg.TaskCounts.Completed != 1 {
		t.Errorf("task counts = %+v", agg.TaskCounts)
	}
	if len(agg.Tasks) != 2 {
		t.Errorf("task breakdowns = %d, want 2", len(agg.Tasks))
	}
}

func TestAggregate_NeglectedCategories(t *testing.T) {
	engine := NewEngine(dayclock.New(0))
	target := day(t, "2026-03-10")

	categories := []activity.Category{
		{ID: "fit", Name: "Fitness", CategoryType: activity.CategoryHabit},
		{ID: "mind", Name: "Mind", CategoryType: activity.CategoryHabit},
		{ID: "solo", Name: "Solo", CategoryType: activity.CategoryHabit},
	}

	mk := func(name, catID string, status activity.Status, counter float64) activity.Instance {
		inst := habit(name, status, 1, target)
		inst.TemplateCategoryID = catID
		if counter > 0 {
			inst.CurrentValue = activity.NewValue(counter)
		}
		if status == activity.StatusCompleted {
			inst.CompletedAt = &target
		}
		return inst
	}

	agg := engine.Aggregate(target, []activity.Instance{
		// Fitness: two habits, no activity on either.
		mk("run", "fit", activity.StatusPending, 0),
		mk("lift", "fit", activity.StatusPending, 0),
		// Mind: two habits, one with a positive counter.
		mk("read", "mind", activity.StatusPending, 3),
		mk("meditate", "mind", activity.StatusPending, 0),
		// Solo: one habit, idle. Single-habit categories never count.
		mk("journal", "solo", activity.StatusPending, 0),
	}, categories)

	if len(agg.NeglectedCategories) != 1 || agg.NeglectedCategories[0] != "Fitness" {
		t.Errorf("neglected = %v, want [Fitness]", agg.NeglectedCategories)
	}
	if cb := agg.Categories["mind"]; cb == nil || !cb.Active {
		t.Errorf("mind category should be active: %+v", cb)
	}
}

func TestAggregate_ZeroTarget(t *testing.T) {
	engine := NewEngine(dayclock.New(0))
	agg := engine.Aggregate(day(t, "2026-03-10"), nil, nil)
	if agg.CompletionPct != 0 {
		t.Errorf("completion with no target = %v, want 0", agg.CompletionPct)
	}
}

func TestBasePoints(t *testing.T) {
	// 100% completion earning 2 points: 10 + sqrt(2)/2.
	want := 10 + math.Sqrt(2)/2
	if got := BasePoints(100, 2); !almostEqual(got, want) {
		t.Errorf("BasePoints(100, 2) = %v, want %v", got, want)
	}
	if got := BasePoints(0, 0); got != 0 {
		t.Errorf("BasePoints(0, 0) = %v, want 0", got)
	}
}

func TestConsistencyBonus_Boundaries(t *testing.T) {
	week := func(qualified int) []float64 {
		pcts := make([]float64, 7)
		for i := range pcts {
			if i < qualified {
				pcts[i] = 90
			} else {
				pcts[i] = 70
			}
		}
		return pcts
	}

	tests := []struct {
		name string
		pcts []float64
		want float64
	}{
		{"all seven qualify", week(7), 5},
		{"six qualify", week(6), 2},
		{"five qualify", week(5), 2},
		{"four qualify", week(4), 0},
		{"short history", []float64{90, 90, 90, 90, 90, 90}, 0},
		{"exactly 80 qualifies", []float64{80, 80, 80, 80, 80, 80, 80}, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ConsistencyBonus(tt.pcts); got != tt.want {
				t.Errorf("ConsistencyBonus() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDayCountRecovery_DecayDiminishes(t *testing.T) {
	strategy := DayCountRecovery{}

	s := SlumpState{}
	var prev float64 = math.Inf(1)
	for dayN := 1; dayN <= 10; dayN++ {
		decay, recovery, next := strategy.Advance(0, s)
		if recovery != 0 {
			t.Fatalf("day %d: unexpected recovery %v", dayN, recovery)
		}
		if next.LowDays != dayN {
			t.Fatalf("day %d: low days = %d", dayN, next.LowDays)
		}
		if decay >= prev {
			t.Errorf("day %d: decay %v did not shrink from %v", dayN, decay, prev)
		}
		prev = decay
		s = next
	}

	// First-day magnitude: (50-0)*0.04/ln(2).
	firstDecay, _, _ := strategy.Advance(0, SlumpState{})
	want := 50 * 0.04 / math.Log(2)
	if !almostEqual(firstDecay, want) {
		t.Errorf("first-day decay = %v, want %v", firstDecay, want)
	}
}

func TestDayCountRecovery_BonusAndCap(t *testing.T) {
	strategy := DayCountRecovery{}

	// Three low days then a good day: min(5, sqrt(3)).
	_, recovery, next := strategy.Advance(100, SlumpState{LowDays: 3})
	if !almostEqual(recovery, math.Sqrt(3)) {
		t.Errorf("recovery after 3 low days = %v, want sqrt(3)", recovery)
	}
	if next.LowDays != 0 {
		t.Errorf("counter not reset: %+v", next)
	}

	// A very long slump still caps at 5.
	_, recovery, _ = strategy.Advance(100, SlumpState{LowDays: 400})
	if recovery != MaxRecoveryBonus {
		t.Errorf("capped recovery = %v, want %v", recovery, MaxRecoveryBonus)
	}

	// No preceding slump, no bonus.
	_, recovery, _ = strategy.Advance(100, SlumpState{})
	if recovery != 0 {
		t.Errorf("recovery without slump = %v, want 0", recovery)
	}
}

func TestLossPoolRecovery(t *testing.T) {
	strategy := LossPoolRecovery{}

	s := SlumpState{}
	var pooled float64
	for i := 0; i < 3; i++ {
		decay, _, next := strategy.Advance(0, s)
		pooled += decay
		if !almostEqual(next.LossPool, pooled) {
			t.Fatalf("loss pool = %v, want %v", next.LossPool, pooled)
		}
		s = next
	}

	_, recovery, next := strategy.Advance(100, s)
	if !almostEqual(recovery, math.Min(MaxRecoveryBonus, pooled)) {
		t.Errorf("recovery = %v, want %v", recovery, math.Min(MaxRecoveryBonus, pooled))
	}
	if next.LowDays != 0 || next.LossPool != 0 {
		t.Errorf("state not reset: %+v", next)
	}
}

func TestParseStrategy(t *testing.T) {
	if s, err := ParseStrategy(""); err != nil || s.Name() != StrategyDayCount {
		t.Errorf("default strategy = %v, %v", s, err)
	}
	if s, err := ParseStrategy("loss-pool"); err != nil || s.Name() != StrategyLossPool {
		t.Errorf("loss-pool strategy = %v, %v", s, err)
	}
	if _, err := ParseStrategy("nope"); err == nil {
		t.Error("expected error for unknown strategy")
	}
}

func TestScore_FullStack(t *testing.T) {
	// Day one of a fresh user: 100% completion, 2 earned points, no
	// history, no slump, no neglect.
	c, next := Score(100, 2, nil, SlumpState{}, 0, DayCountRecovery{})
	wantBase := 10 + math.Sqrt(2)/2
	if !almostEqual(c.Base, wantBase) {
		t.Errorf("base = %v, want %v", c.Base, wantBase)
	}
	if c.Consistency != 0 || c.Decay != 0 || c.Recovery != 0 || c.Neglect != 0 {
		t.Errorf("unexpected extra components: %+v", c)
	}
	if !almostEqual(c.Net, wantBase) {
		t.Errorf("net = %v, want %v", c.Net, wantBase)
	}
	if next.LowDays != 0 {
		t.Errorf("slump advanced unexpectedly: %+v", next)
	}

	// A low day with two neglected categories.
	c, next = Score(20, 0.5, nil, SlumpState{}, 2, DayCountRecovery{})
	wantDecay := (50 - 20.0) * 0.04 / math.Log(2)
	if !almostEqual(c.Decay, wantDecay) {
		t.Errorf("decay = %v, want %v", c.Decay, wantDecay)
	}
	if !almostEqual(c.Neglect, 0.8) {
		t.Errorf("neglect = %v, want 0.8", c.Neglect)
	}
	if next.LowDays != 1 {
		t.Errorf("low days = %d, want 1", next.LowDays)
	}
	wantNet := BasePoints(20, 0.5) - wantDecay - 0.8
	if !almostEqual(c.Net, wantNet) {
		t.Errorf("net = %v, want %v", c.Net, wantNet)
	}
}
