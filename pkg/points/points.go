// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package points converts one activity instance's tracking data into a
// daily target value and an earned value. Everything here is pure; the
// scoring engine decides which instances to feed in for a given day.
package points

import (
	"math"
	"strings"

	"github.com/AccelByte/extend-dayend-engine/pkg/activity"
)

const (
	// timeBlockMinutes is the granularity of time-tracked scoring: one
	// target unit (and one bonus block) per 30 minutes.
	timeBlockMinutes = 30.0
	msPerMinute      = 60_000.0
)

// PeriodDays maps a recurrence period name to its day count.
// Unrecognized periods fall back to weekly.
func PeriodDays(period string) float64 {
	switch strings.ToLower(period) {
	case "daily", "days":
		return 1
	case "weekly", "weeks":
		return 7
	case "monthly", "months":
		return 30
	default:
		return 7
	}
}

// DailyFrequency is the expected per-day occurrence rate for an instance:
// 1.0 for plain daily habits, (1/X)×periodDays for "every X periods",
// timesPerPeriod/periodDays for "N times per period".
func DailyFrequency(inst *activity.Instance) float64 {
	if inst.TemplateEveryXValue > 1 && inst.TemplateEveryXPeriod != "" {
		return (1.0 / float64(inst.TemplateEveryXValue)) * PeriodDays(inst.TemplateEveryXPeriod)
	}
	if inst.TemplateTimesPerPeriod > 0 && inst.TemplatePeriodType != "" {
		return float64(inst.TemplateTimesPerPeriod) / PeriodDays(inst.TemplatePeriodType)
	}
	return 1.0
}

// DurationMultiplier scales a time-tracked target: one unit per 30-minute
// block of the target duration, minimum 1.
func DurationMultiplier(targetMinutes float64) float64 {
	if targetMinutes <= 0 {
		return 1
	}
	return math.Max(1, math.Round(targetMinutes/timeBlockMinutes))
}

// DailyTarget is the day's target value for a habit instance:
// dailyFrequency × priority, scaled by the duration multiplier for
// time tracking. Essential-category instances never contribute.
func DailyTarget(inst *activity.Instance) float64 {
	if inst.TemplateCategoryType == activity.CategoryEssential {
		return 0
	}
	base := DailyFrequency(inst) * inst.Priority()
	if inst.TemplateTrackingType == activity.TrackingTime {
		return base * DurationMultiplier(inst.TemplateTarget.Float64())
	}
	return base
}

// LooksLikeLoggedDuration reports whether a raw counter value is most
// likely a millisecond duration that leaked into the counter field: it is
// non-zero and numerically equal to the separately tracked elapsed-time
// value. This numeric-coincidence heuristic is inherited behavior and an
// open product question; it is kept isolated here so it can be tested and
// revisited without touching the earned math.
func LooksLikeLoggedDuration(counter activity.Value, totalTimeLoggedMS float64) bool {
	return counter.Positive() && totalTimeLoggedMS > 0 && counter.Float64() == totalTimeLoggedMS
}

// Earned is the day's earned value for a habit instance.
func Earned(inst *activity.Instance) float64 {
	if inst.TemplateCategoryType == activity.CategoryEssential {
		return 0
	}
	switch inst.TemplateTrackingType {
	case activity.TrackingQuantity:
		return proportionalEarned(inst, inst.TemplateTarget.Float64())
	case activity.TrackingTime:
		return proportionalEarned(inst, inst.TemplateTarget.Float64()*msPerMinute)
	default:
		return binaryEarned(inst)
	}
}

// binaryEarned: a genuine non-zero counter scores proportionally against
// the target; otherwise completion scores full priority. Logged time adds
// one priority-sized block per full 30 minutes beyond the first 30, but
// only on top of an already-earning instance.
func binaryEarned(inst *activity.Instance) float64 {
	priority := inst.Priority()

	var earned float64
	counter := inst.CurrentValue
	switch {
	case counter.Positive() && !LooksLikeLoggedDuration(counter, inst.TotalTimeLogged):
		target := inst.TemplateTarget.Float64()
		if target <= 0 {
			target = 1
		}
		earned = (counter.Float64() / target) * priority
	case inst.Status == activity.StatusCompleted:
		earned = priority
	}

	if inst.TotalTimeLogged > 0 && earned > 0 {
		loggedMinutes := inst.TotalTimeLogged / msPerMinute
		extraBlocks := math.Floor(loggedMinutes/timeBlockMinutes) - 1
		if extraBlocks > 0 {
			earned += extraBlocks * priority
		}
	}
	return earned
}

// proportionalEarned handles quantity (raw units) and time (milliseconds
// against a minute target converted by the caller). Windowed instances
// score only today's increment over the previous day-end snapshot.
func proportionalEarned(inst *activity.Instance, target float64) float64 {
	if target <= 0 {
		return 0
	}
	current := inst.CurrentValue.Float64()
	if inst.Windowed() {
		increment := current - inst.LastDayValue.Float64()
		if increment < 0 {
			increment = 0
		}
		return (increment / target) * inst.Priority()
	}
	return (current / target) * inst.Priority()
}

// TaskTarget is the target contribution of one task: its priority.
// Tasks are never windowed or differential.
func TaskTarget(inst *activity.Instance) float64 {
	return inst.Priority()
}

// TaskEarned is priority when the task is completed, otherwise 0.
func TaskEarned(inst *activity.Instance) float64 {
	if inst.Status == activity.StatusCompleted {
		return inst.Priority()
	}
	return 0
}
