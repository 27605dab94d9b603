// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package ledger persists one scored record per (user, day), integrates
// the day's net gain into the floor-at-zero cumulative score, and keeps
// the per-user stats head up to date. Multi-day operations fold over
// dates in strictly ascending order because each day's opening score is
// the previous day's closing score.
package ledger

import (
	"github.com/AccelByte/extend-dayend-engine/pkg/docstore"
	"github.com/AccelByte/extend-dayend-engine/pkg/scoring"
)

const (
	// RecordsCollection holds one DailyProgressRecord per day, keyed by
	// the day's date key for easy tracing.
	RecordsCollection = "daily_progress"
	// StatsCollection holds the single stats head document per user.
	StatsCollection = "progress_stats"
	// StatsDocID is the fixed ID of the stats head.
	StatsDocID = "main"
)

// DailyProgressRecord is the authoritative scored record of one day.
// Created once; overwritten only through explicit recalculation.
type DailyProgressRecord struct {
	UserID        string  `json:"userId"`
	Date          string  `json:"date"`
	TargetPoints  float64 `json:"targetPoints"`
	EarnedPoints  float64 `json:"earnedPoints"`
	CompletionPct float64 `json:"completionPercentage"`

	HabitCounts scoring.StatusCounts `json:"habitCounts"`
	TaskCounts  scoring.StatusCounts `json:"taskCounts"`

	Habits     []scoring.HabitBreakdown              `json:"habitBreakdown,omitempty"`
	Tasks      []scoring.TaskBreakdown               `json:"taskBreakdown,omitempty"`
	Categories map[string]*scoring.CategoryBreakdown `json:"categoryBreakdown,omitempty"`

	Components scoring.Components `json:"scoreComponents"`

	// CumulativeScore is the closing score, PreviousScore the opening
	// one. EffectiveGain is their difference, which equals the net gain
	// except when the floor at zero clamps.
	CumulativeScore float64 `json:"cumulativeScore"`
	PreviousScore   float64 `json:"previousCumulativeScore"`
	EffectiveGain   float64 `json:"effectiveGain"`

	CreatedAt docstore.Stamp `json:"createdTime"`
}

// UserStats is the per-user ledger head: the sole carrier of cross-day
// state (cumulative score, slump counters) when the full day sequence is
// not being replayed.
type UserStats struct {
	UserID          string  `json:"userId"`
	CumulativeScore float64 `json:"cumulativeScore"`
	LastDailyGain   float64 `json:"lastDailyGain"`

	scoring.SlumpState

	LastCalculationDate string `json:"lastCalculationDate,omitempty"`
	// LastProcessedDate marks how far the scheduled run has advanced.
	LastProcessedDate string `json:"lastProcessedDate,omitempty"`

	HistoricalHighScore float64 `json:"historicalHighScore"`
	TotalDaysTracked    int     `json:"totalDaysTracked"`
	CurrentStreak       int     `json:"currentStreak"`
	LongestStreak       int     `json:"longestStreak"`

	CreatedAt     docstore.Stamp `json:"createdAt"`
	LastUpdatedAt docstore.Stamp `json:"lastUpdatedAt"`
}
