// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package config

// Config holds all application configuration loaded from environment
// variables via github.com/caarlos0/env.
type Config struct {
	// Server configuration
	HTTPPort    int    `env:"HTTP_PORT" envDefault:"8000"`
	MetricsPort int    `env:"METRICS_PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"dev"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"extend-dayend-engine"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Redis configuration
	RedisHost         string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort         string `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword     string `env:"REDIS_PASSWORD"`
	RedisMaxRetries   int    `env:"REDIS_MAX_RETRIES" envDefault:"5"`
	RedisRetryDelayMs int    `env:"REDIS_RETRY_DELAY_MS" envDefault:"1000"`

	// Day resolution and batch processing.
	// DayOffsetMinutes is the fixed UTC offset every day boundary is
	// computed with; 330 is UTC+5:30.
	DayOffsetMinutes int `env:"DAY_OFFSET_MINUTES" envDefault:"330"`
	UserBatchSize    int `env:"USER_BATCH_SIZE" envDefault:"10"`
	BatchPauseMs     int `env:"BATCH_PAUSE_MS" envDefault:"1000"`

	// Scoring policy file (recovery strategy selection).
	ScoringConfigPath string `env:"SCORING_CONFIG_PATH" envDefault:"config/scoring.yaml"`

	// Scheduled full run. The default fires at midnight UTC+5:30.
	CronEnabled  bool   `env:"DAYEND_CRON_ENABLED" envDefault:"true"`
	CronSchedule string `env:"DAYEND_CRON_SCHEDULE" envDefault:"30 18 * * *"`

	// Telemetry configuration
	OtelEnabled    bool   `env:"OTEL_ENABLED" envDefault:"true"`
	ZipkinEndpoint string `env:"ZIPKIN_ENDPOINT"`
}
