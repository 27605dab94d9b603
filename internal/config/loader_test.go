// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package config

import "testing"

func validConfig() *Config {
	return &Config{
		HTTPPort:         8000,
		MetricsPort:      8080,
		DayOffsetMinutes: 330,
		UserBatchSize:    10,
		BatchPauseMs:     1000,
		CronEnabled:      true,
		CronSchedule:     "30 18 * * *",
	}
}

func TestValidate_Defaults(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("default-shaped config failed validation: %v", err)
	}
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"http port zero", func(c *Config) { c.HTTPPort = 0 }},
		{"http port too large", func(c *Config) { c.HTTPPort = 70000 }},
		{"metrics port zero", func(c *Config) { c.MetricsPort = 0 }},
		{"port collision", func(c *Config) { c.MetricsPort = c.HTTPPort }},
		{"offset below range", func(c *Config) { c.DayOffsetMinutes = -800 }},
		{"offset above range", func(c *Config) { c.DayOffsetMinutes = 900 }},
		{"zero batch size", func(c *Config) { c.UserBatchSize = 0 }},
		{"negative pause", func(c *Config) { c.BatchPauseMs = -1 }},
		{"cron enabled without schedule", func(c *Config) { c.CronSchedule = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation error, got nil")
			}
		})
	}
}

func TestValidate_OffsetBoundaries(t *testing.T) {
	for _, offset := range []int{-720, 0, 330, 840} {
		cfg := validConfig()
		cfg.DayOffsetMinutes = offset
		if err := cfg.Validate(); err != nil {
			t.Errorf("offset %d rejected: %v", offset, err)
		}
	}
}

func TestValidate_CronDisabledAllowsEmptySchedule(t *testing.T) {
	cfg := validConfig()
	cfg.CronEnabled = false
	cfg.CronSchedule = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled cron with empty schedule rejected: %v", err)
	}
}
