// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package bootstrap

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/AccelByte/extend-dayend-engine/pkg/scoring"
)

// PolicyConfig is the scoring policy file (config/scoring.yaml).
type PolicyConfig struct {
	RecoveryStrategy string `yaml:"recovery_strategy"`
}

// LoadPolicy loads the scoring policy from a YAML file and resolves the
// configured recovery strategy. A missing file falls back to the default
// day-count strategy so the engine can run with zero configuration.
// Supports environment variable expansion in the form ${VAR_NAME} or
// ${VAR_NAME:default}.
func LoadPolicy(path string) (scoring.RecoveryStrategy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logrus.Warnf("scoring policy file %s not found, using default %s strategy",
				path, scoring.StrategyDayCount)
			return scoring.ParseStrategy(scoring.StrategyDayCount)
		}
		return nil, fmt.Errorf("failed to read scoring policy file %s: %w", path, err)
	}

	expanded := expandEnvVars(string(data))

	var config PolicyConfig
	if err := yaml.Unmarshal([]byte(expanded), &config); err != nil {
		return nil, fmt.Errorf("failed to parse scoring policy YAML: %w", err)
	}

	strategy, err := scoring.ParseStrategy(config.RecoveryStrategy)
	if err != nil {
		return nil, fmt.Errorf("invalid scoring policy in %s: %w", path, err)
	}

	logrus.Infof("loaded scoring policy: recovery strategy %s", strategy.Name())

	return strategy, nil
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}.
func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		parts := strings.SplitN(key, ":", 2)
		varName := parts[0]
		defaultValue := ""
		if len(parts) == 2 {
			defaultValue = parts[1]
		}

		value := os.Getenv(varName)
		if value == "" {
			return defaultValue
		}
		return value
	})
}
