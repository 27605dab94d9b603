// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package scoring

import (
	"fmt"
	"math"
)

// RecoveryStrategy decides how the decay/recovery terms evolve across a
// slump. Advance takes the day's completion percentage and the slump
// state carried over from the previous day, and returns the decay
// penalty, the recovery bonus, and the next state. At most one of decay
// and recovery is non-zero.
type RecoveryStrategy interface {
	Name() string
	Advance(completionPct float64, s SlumpState) (decay, recovery float64, next SlumpState)
}

const (
	StrategyDayCount = "day-count"
	StrategyLossPool = "loss-pool"
)

// ParseStrategy maps a policy-file name to a strategy. An empty name
// selects the day-count default.
func ParseStrategy(name string) (RecoveryStrategy, error) {
	switch name {
	case "", StrategyDayCount:
		return DayCountRecovery{}, nil
	case StrategyLossPool:
		return LossPoolRecovery{}, nil
	default:
		return nil, fmt.Errorf("unknown recovery strategy %q", name)
	}
}

// DayCountRecovery sizes the recovery bonus by how long the slump
// lasted: min(cap, sqrt(lowDays)).
type DayCountRecovery struct{}

func (DayCountRecovery) Name() string { return StrategyDayCount }

func (DayCountRecovery) Advance(completionPct float64, s SlumpState) (float64, float64, SlumpState) {
	if completionPct < DecayThresholdPct {
		next := SlumpState{LowDays: s.LowDays + 1}
		return decayPenalty(completionPct, next.LowDays), 0, next
	}
	if s.LowDays > 0 {
		recovery := math.Min(MaxRecoveryBonus, math.Sqrt(float64(s.LowDays)))
		return 0, recovery, SlumpState{}
	}
	return 0, 0, SlumpState{}
}

// LossPoolRecovery sizes the recovery bonus by how many points the slump
// actually cost: min(cap, accumulated decay). The pool grows with each
// low day and drains fully when the slump ends.
type LossPoolRecovery struct{}

func (LossPoolRecovery) Name() string { return StrategyLossPool }

func (LossPoolRecovery) Advance(completionPct float64, s SlumpState) (float64, float64, SlumpState) {
	if completionPct < DecayThresholdPct {
		next := SlumpState{LowDays: s.LowDays + 1}
		decay := decayPenalty(completionPct, next.LowDays)
		next.LossPool = s.LossPool + decay
		return decay, 0, next
	}
	if s.LowDays > 0 {
		recovery := math.Min(MaxRecoveryBonus, s.LossPool)
		return 0, recovery, SlumpState{}
	}
	return 0, 0, SlumpState{}
}
