// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package bootstrap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/AccelByte/extend-dayend-engine/pkg/scoring"
)

func writePolicy(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scoring.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write policy file: %v", err)
	}
	return path
}

func TestLoadPolicy_DayCount(t *testing.T) {
	path := writePolicy(t, "recovery_strategy: day-count\n")
	strategy, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("LoadPolicy failed: %v", err)
	}
	if strategy.Name() != scoring.StrategyDayCount {
		t.Errorf("strategy = %s, want %s", strategy.Name(), scoring.StrategyDayCount)
	}
}

func TestLoadPolicy_LossPool(t *testing.T) {
	path := writePolicy(t, "recovery_strategy: loss-pool\n")
	strategy, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("LoadPolicy failed: %v", err)
	}
	if strategy.Name() != scoring.StrategyLossPool {
		t.Errorf("strategy = %s, want %s", strategy.Name(), scoring.StrategyLossPool)
	}
}

func TestLoadPolicy_MissingFileDefaults(t *testing.T) {
	strategy, err := LoadPolicy(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadPolicy failed: %v", err)
	}
	if strategy.Name() != scoring.StrategyDayCount {
		t.Errorf("strategy = %s, want default %s", strategy.Name(), scoring.StrategyDayCount)
	}
}

func TestLoadPolicy_UnknownStrategy(t *testing.T) {
	path := writePolicy(t, "recovery_strategy: instant-refund\n")
	if _, err := LoadPolicy(path); err == nil {
		t.Fatal("expected error for unknown strategy, got nil")
	}
}

func TestLoadPolicy_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_RECOVERY_STRATEGY", "loss-pool")
	path := writePolicy(t, "recovery_strategy: ${TEST_RECOVERY_STRATEGY:day-count}\n")
	strategy, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("LoadPolicy failed: %v", err)
	}
	if strategy.Name() != scoring.StrategyLossPool {
		t.Errorf("strategy = %s, want %s from environment", strategy.Name(), scoring.StrategyLossPool)
	}
}

func TestLoadPolicy_EnvExpansionDefault(t *testing.T) {
	path := writePolicy(t, "recovery_strategy: ${UNSET_RECOVERY_STRATEGY:day-count}\n")
	strategy, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("LoadPolicy failed: %v", err)
	}
	if strategy.Name() != scoring.StrategyDayCount {
		t.Errorf("strategy = %s, want fallback %s", strategy.Name(), scoring.StrategyDayCount)
	}
}
