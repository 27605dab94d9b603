// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package scoring

import "math"

const (
	// BasePointsPerDay is the value of a 100%-complete day before the
	// volume term.
	BasePointsPerDay = 10.0

	// ConsistencyThresholdPct is the completion percentage a day must
	// reach to count toward the consistency bonus.
	ConsistencyThresholdPct = 80.0
	// ConsistencyWindowDays is the trailing window the bonus inspects.
	// Fewer than this many records disables the bonus entirely.
	ConsistencyWindowDays = 7
	// FullWindowBonus applies when every day in the window qualifies.
	FullWindowBonus = 5.0
	// PartialWindowBonus applies when at least PartialWindowMinDays do.
	PartialWindowBonus   = 2.0
	PartialWindowMinDays = 5

	// DecayThresholdPct is the completion percentage below which a day
	// counts as low and accrues decay.
	DecayThresholdPct = 50.0
	// PenaltyBaseMultiplier scales the shortfall below the threshold.
	PenaltyBaseMultiplier = 0.04

	// MaxRecoveryBonus caps the bonus granted when a slump ends.
	MaxRecoveryBonus = 5.0

	// CategoryNeglectPenalty is subtracted once per neglected category.
	CategoryNeglectPenalty = 0.4
)

// SlumpState is the cross-day state the decay/recovery terms fold over.
// LowDays counts consecutive below-threshold days; LossPool accumulates
// the decay charged during the current slump (used only by the loss-pool
// recovery strategy).
type SlumpState struct {
	LowDays  int     `json:"consecutiveLowDays"`
	LossPool float64 `json:"slumpLossPool,omitempty"`
}

// Components are the additive terms of one day's net gain.
type Components struct {
	Base        float64 `json:"basePoints"`
	Consistency float64 `json:"consistencyBonus"`
	Decay       float64 `json:"decayPenalty"`
	Recovery    float64 `json:"recoveryBonus"`
	Neglect     float64 `json:"neglectPenalty"`
	Net         float64 `json:"netGain"`
}

// BasePoints rewards both the completion ratio and absolute volume, with
// diminishing returns on volume through the square root.
func BasePoints(completionPct, earnedPoints float64) float64 {
	return (completionPct/100)*BasePointsPerDay + math.Sqrt(earnedPoints)/2
}

// ConsistencyBonus inspects the trailing window of completion
// percentages (most recent days, today excluded or included per the
// caller's query). A window shorter than ConsistencyWindowDays yields 0.
func ConsistencyBonus(recentPcts []float64) float64 {
	if len(recentPcts) < ConsistencyWindowDays {
		return 0
	}
	qualified := 0
	for _, pct := range recentPcts[:ConsistencyWindowDays] {
		if pct >= ConsistencyThresholdPct {
			qualified++
		}
	}
	switch {
	case qualified == ConsistencyWindowDays:
		return FullWindowBonus
	case qualified >= PartialWindowMinDays:
		return PartialWindowBonus
	default:
		return 0
	}
}

// decayPenalty computes the charge for a below-threshold day given the
// already-incremented low-day counter. The divisor grows with the slump
// length so punishment diminishes rather than escalates.
func decayPenalty(completionPct float64, lowDays int) float64 {
	return (DecayThresholdPct - completionPct) * PenaltyBaseMultiplier / math.Log(float64(lowDays)+1)
}

// NeglectPenalty is the flat per-category charge for neglected
// multi-habit categories.
func NeglectPenalty(neglectedCategories int) float64 {
	return CategoryNeglectPenalty * float64(neglectedCategories)
}

// Score applies the full formula stack for one day and advances the
// slump state. Decay and recovery are mutually exclusive by
// construction: a day is either below the threshold (decay, counter
// grows) or at/above it (possible recovery, counter resets).
func Score(completionPct, earnedPoints float64, recentPcts []float64, slump SlumpState, neglectedCategories int, strategy RecoveryStrategy) (Components, SlumpState) {
	c := Components{
		Base:        BasePoints(completionPct, earnedPoints),
		Consistency: ConsistencyBonus(recentPcts),
		Neglect:     NeglectPenalty(neglectedCategories),
	}

	var next SlumpState
	c.Decay, c.Recovery, next = strategy.Advance(completionPct, slump)

	c.Net = c.Base + c.Consistency - c.Decay + c.Recovery - c.Neglect
	return c, next
}
