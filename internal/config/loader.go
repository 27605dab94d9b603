// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Load reads configuration from environment variables.
// It attempts to load from .env file first (for local development),
// then parses environment variables into the Config struct.
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	// In production (Docker/K8s), environment variables are injected directly
	if err := godotenv.Load(); err != nil {
		logrus.Warnf("no .env file found or error loading it: %v (this is normal in production)", err)
	} else {
		logrus.Infof("loaded environment variables from .env file")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config from environment: %w", err)
	}

	return cfg, nil
}

// Validate performs custom validation on the configuration.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP_PORT: %d (must be 1-65535)", c.HTTPPort)
	}

	if c.MetricsPort < 1 || c.MetricsPort > 65535 {
		return fmt.Errorf("invalid METRICS_PORT: %d (must be 1-65535)", c.MetricsPort)
	}

	if c.HTTPPort == c.MetricsPort {
		return fmt.Errorf("HTTP_PORT and METRICS_PORT must differ, both are %d", c.HTTPPort)
	}

	// Real-world UTC offsets span -12:00 to +14:00.
	if c.DayOffsetMinutes < -720 || c.DayOffsetMinutes > 840 {
		return fmt.Errorf("invalid DAY_OFFSET_MINUTES: %d (must be -720 to 840)", c.DayOffsetMinutes)
	}

	if c.UserBatchSize < 1 {
		return fmt.Errorf("invalid USER_BATCH_SIZE: %d (must be at least 1)", c.UserBatchSize)
	}

	if c.BatchPauseMs < 0 {
		return fmt.Errorf("invalid BATCH_PAUSE_MS: %d (must be non-negative)", c.BatchPauseMs)
	}

	if c.CronEnabled && c.CronSchedule == "" {
		return fmt.Errorf("DAYEND_CRON_SCHEDULE is required when DAYEND_CRON_ENABLED is true")
	}

	return nil
}
