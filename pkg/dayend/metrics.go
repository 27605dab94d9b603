// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package dayend

import "github.com/prometheus/client_golang/prometheus"

var (
	// UsersProcessedTotal counts users whose day-end flow completed.
	UsersProcessedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dayend_users_processed_total",
		Help: "Total number of users processed by day-end runs",
	})

	// UserErrorsTotal counts per-user failures. Failures are isolated;
	// they never abort the run.
	UserErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dayend_user_errors_total",
		Help: "Total number of per-user day-end processing failures",
	})

	// UserProcessingDuration observes one user's full day-end flow.
	UserProcessingDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dayend_user_processing_duration_seconds",
		Help:    "Duration of one user's day-end processing",
		Buckets: prometheus.DefBuckets,
	})

	// RunsTotal counts whole scheduled/triggered runs by outcome.
	RunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dayend_runs_total",
		Help: "Total number of full day-end runs",
	}, []string{"outcome"})
)

// Collectors returns every metric this package exposes, for registration
// on the metrics server's registry.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		UsersProcessedTotal,
		UserErrorsTotal,
		UserProcessingDuration,
		RunsTotal,
	}
}
