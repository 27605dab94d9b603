// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package scoring turns one user's activity instances for a target day
// into an aggregate (targets, earned points, breakdowns) and applies the
// daily score formula stack on top of it.
package scoring

import (
	"sort"
	"time"

	"github.com/AccelByte/extend-dayend-engine/pkg/activity"
	"github.com/AccelByte/extend-dayend-engine/pkg/dayclock"
	"github.com/AccelByte/extend-dayend-engine/pkg/points"
)

// Engine builds day aggregates. Day membership is resolved through the
// injected clock so the whole process shares one day-boundary offset.
type Engine struct {
	clock *dayclock.Clock
}

func NewEngine(clock *dayclock.Clock) *Engine {
	return &Engine{clock: clock}
}

// StatusCounts summarizes instance outcomes for one day.
type StatusCounts struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Partial   int `json:"partial"`
	Skipped   int `json:"skipped"`
}

// Base is the part shared by every per-activity breakdown entry.
// Progress is earned/target capped at 1.
type Base struct {
	Name     string          `json:"name"`
	Status   activity.Status `json:"status"`
	Target   float64         `json:"target"`
	Earned   float64         `json:"earned"`
	Progress float64         `json:"progress"`
}

// BinaryDetail carries the tracking-specific fields of a binary habit.
type BinaryDetail struct {
	Completed        bool    `json:"completed"`
	Counter          float64 `json:"counter,omitempty"`
	TimeLoggedMinute float64 `json:"timeLoggedMinutes,omitempty"`
}

// QuantityDetail carries the tracking-specific fields of a quantity habit.
type QuantityDetail struct {
	Current     float64 `json:"current"`
	LastDay     float64 `json:"lastDay,omitempty"`
	TargetValue float64 `json:"targetValue"`
	Unit        string  `json:"unit,omitempty"`
}

// TimeDetail carries the tracking-specific fields of a time habit.
// Values are minutes.
type TimeDetail struct {
	CurrentMinutes float64 `json:"currentMinutes"`
	TargetMinutes  float64 `json:"targetMinutes"`
}

// HabitBreakdown is one habit instance's contribution, tagged by tracking
// type with exactly one detail variant populated.
type HabitBreakdown struct {
	Base
	Tracking activity.TrackingType `json:"trackingType"`
	Binary   *BinaryDetail         `json:"binary,omitempty"`
	Quantity *QuantityDetail       `json:"quantity,omitempty"`
	Time     *TimeDetail           `json:"time,omitempty"`
}

// TaskBreakdown is one task's contribution.
type TaskBreakdown struct {
	Base
	DueDate string `json:"dueDate,omitempty"`
}

// CategoryBreakdown aggregates one category's habits for the day.
type CategoryBreakdown struct {
	Name       string  `json:"name"`
	Target     float64 `json:"target"`
	Earned     float64 `json:"earned"`
	Completed  int     `json:"completed"`
	TotalCount int     `json:"totalCount"`
	// Active reports whether any habit in the category showed activity
	// (completion, positive counter, or logged time) on the day.
	Active bool `json:"active"`
}

// Aggregate is the scored view of one (user, day).
type Aggregate struct {
	TargetPoints  float64                       `json:"targetPoints"`
	EarnedPoints  float64                       `json:"earnedPoints"`
	CompletionPct float64                       `json:"completionPercentage"`
	Habits        []HabitBreakdown              `json:"habits"`
	Tasks         []TaskBreakdown               `json:"tasks"`
	Categories    map[string]*CategoryBreakdown `json:"categories"`
	HabitCounts   StatusCounts                  `json:"habitCounts"`
	TaskCounts    StatusCounts                  `json:"taskCounts"`

	// NeglectedCategories lists habit categories holding more than one
	// habit where none showed any activity on the day.
	NeglectedCategories []string `json:"neglectedCategories,omitempty"`
}

// Aggregate filters the user's instances down to the target day, sums
// targets and earned points, and produces the per-activity and
// per-category breakdowns.
//
// Habit target set: instances whose window covers the day. Habit earned
// set: instances completed exactly on the day plus every non-completed
// in-window instance, so partial progress counts but a habit completed on
// a different day is not double-counted. Essential-category instances are
// excluded entirely. Tasks count when completed on the day or still
// pending with a due date on or before it.
func (e *Engine) Aggregate(day time.Time, instances []activity.Instance, categories []activity.Category) *Aggregate {
	agg := &Aggregate{
		Categories: make(map[string]*CategoryBreakdown),
	}
	catHabits := make(map[string]int)
	catActive := make(map[string]bool)

	for i := range instances {
		inst := &instances[i]
		switch inst.TemplateCategoryType {
		case activity.CategoryEssential:
			continue
		case activity.CategoryTask:
			e.addTask(agg, day, inst)
		default:
			if !e.inWindow(inst, day) {
				continue
			}
			e.addHabit(agg, day, inst, catHabits, catActive)
		}
	}

	if agg.TargetPoints > 0 {
		agg.CompletionPct = (agg.EarnedPoints / agg.TargetPoints) * 100
	}

	for _, cat := range categories {
		if cat.CategoryType != activity.CategoryHabit {
			continue
		}
		if catHabits[cat.ID] > 1 && !catActive[cat.ID] {
			agg.NeglectedCategories = append(agg.NeglectedCategories, cat.Name)
		}
	}
	sort.Strings(agg.NeglectedCategories)

	return agg
}

// inWindow reports whether the instance's window covers the target day:
// dueDate <= day <= windowEnd, or an exact-day match when no window end
// is set.
func (e *Engine) inWindow(inst *activity.Instance, day time.Time) bool {
	start := inst.DueDate
	if start == nil {
		start = inst.BelongsToDate
	}
	if start == nil {
		return false
	}
	d := e.clock.StartOfDay(day)
	s := e.clock.StartOfDay(*start)
	if inst.WindowEndDate != nil {
		end := e.clock.StartOfDay(*inst.WindowEndDate)
		return !d.Before(s) && !d.After(end)
	}
	return d.Equal(s)
}

func (e *Engine) completedOn(inst *activity.Instance, day time.Time) bool {
	return inst.Status == activity.StatusCompleted &&
		inst.CompletedAt != nil &&
		e.clock.SameDay(*inst.CompletedAt, day)
}

// showedActivity reports any sign of engagement on the instance:
// completion, a positive counter, or logged time.
func showedActivity(inst *activity.Instance, completedToday bool) bool {
	return completedToday || inst.CurrentValue.Positive() || inst.TotalTimeLogged > 0
}

func (e *Engine) addHabit(agg *Aggregate, day time.Time, inst *activity.Instance, catHabits map[string]int, catActive map[string]bool) {
	target := points.DailyTarget(inst)
	completedToday := e.completedOn(inst, day)

	var earned float64
	if completedToday || inst.Status != activity.StatusCompleted {
		earned = points.Earned(inst)
	}

	agg.TargetPoints += target
	agg.EarnedPoints += earned

	agg.HabitCounts.Total++
	if completedToday {
		agg.HabitCounts.Completed++
	}
	if inst.Status == activity.StatusSkipped {
		agg.HabitCounts.Skipped++
	}
	if inst.Status != activity.StatusCompleted && inst.CurrentValue.Positive() {
		agg.HabitCounts.Partial++
	}

	hb := HabitBreakdown{
		Base:     breakdownBase(inst.TemplateName, inst.Status, target, earned),
		Tracking: inst.TemplateTrackingType,
	}
	switch inst.TemplateTrackingType {
	case activity.TrackingQuantity:
		hb.Quantity = &QuantityDetail{
			Current:     inst.CurrentValue.Float64(),
			LastDay:     inst.LastDayValue.Float64(),
			TargetValue: inst.TemplateTarget.Float64(),
			Unit:        inst.TemplateUnit,
		}
	case activity.TrackingTime:
		hb.Time = &TimeDetail{
			CurrentMinutes: inst.CurrentValue.Float64() / 60_000,
			TargetMinutes:  inst.TemplateTarget.Float64(),
		}
	default:
		hb.Binary = &BinaryDetail{
			Completed:        inst.Status == activity.StatusCompleted,
			Counter:          inst.CurrentValue.Float64(),
			TimeLoggedMinute: inst.TotalTimeLogged / 60_000,
		}
	}
	agg.Habits = append(agg.Habits, hb)

	catID := inst.TemplateCategoryID
	if catID == "" {
		return
	}
	catHabits[catID]++
	if showedActivity(inst, completedToday) {
		catActive[catID] = true
	}
	cb := agg.Categories[catID]
	if cb == nil {
		cb = &CategoryBreakdown{Name: inst.TemplateCategoryName}
		agg.Categories[catID] = cb
	}
	cb.Target += target
	cb.Earned += earned
	cb.TotalCount++
	if inst.Status == activity.StatusCompleted {
		cb.Completed++
	}
	if showedActivity(inst, completedToday) {
		cb.Active = true
	}
}

func (e *Engine) addTask(agg *Aggregate, day time.Time, inst *activity.Instance) {
	completedToday := e.completedOn(inst, day)
	pendingDue := inst.Status == activity.StatusPending &&
		inst.DueDate != nil &&
		!e.clock.StartOfDay(*inst.DueDate).After(e.clock.StartOfDay(day))
	if !completedToday && !pendingDue {
		return
	}

	target := points.TaskTarget(inst)
	var earned float64
	if completedToday {
		earned = points.TaskEarned(inst)
	}

	agg.TargetPoints += target
	agg.EarnedPoints += earned

	agg.TaskCounts.Total++
	if completedToday {
		agg.TaskCounts.Completed++
	}
	if inst.Status == activity.StatusSkipped {
		agg.TaskCounts.Skipped++
	}
	if inst.Status != activity.StatusCompleted && inst.CurrentValue.Positive() {
		agg.TaskCounts.Partial++
	}

	tb := TaskBreakdown{
		Base: breakdownBase(inst.TemplateName, inst.Status, target, earned),
	}
	if inst.DueDate != nil {
		tb.DueDate = e.clock.DateKey(*inst.DueDate)
	}
	agg.Tasks = append(agg.Tasks, tb)
}

func breakdownBase(name string, status activity.Status, target, earned float64) Base {
	progress := 0.0
	if target > 0 {
		progress = earned / target
		if progress > 1 {
			progress = 1
		}
	}
	return Base{
		Name:     name,
		Status:   status,
		Target:   target,
		Earned:   earned,
		Progress: progress,
	}
}
