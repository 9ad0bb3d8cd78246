// Package metrics provides Prometheus exporters for application metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the component directory.
var (
	// Refresh.
	RefreshRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refresh_runs_total",
			Help: "Total number of refresh runs by trigger and final status",
		},
		[]string{"trigger", "status"},
	)

	RefreshPackagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refresh_packages_total",
			Help: "Total number of package refresh attempts by outcome",
		},
		[]string{"outcome"},
	)

	RefreshRunDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "refresh_run_duration_seconds",
			Help:    "Time taken to complete a refresh run",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~68min
		},
		[]string{"trigger"},
	)

	NPMFetchFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "npm_fetch_failures_total",
			Help: "Total number of failed npm registry fetches by error kind",
		},
		[]string{"kind"},
	)

	// AI review.
	AIReviewsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_reviews_total",
			Help: "Total number of AI reviews by provider and resulting AI review status",
		},
		[]string{"provider", "status"},
	)

	AIProviderCallDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_provider_call_duration_seconds",
			Help:    "Latency of AI provider calls",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~256s
		},
		[]string{"provider", "outcome"},
	)

	PolicyTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "policy_transitions_total",
			Help: "Total number of review status changes applied by automation",
		},
		[]string{"from", "to"},
	)

	// Scheduler.
	SchedulerJobsRunTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_jobs_run_total",
			Help: "Total scheduler job executions",
		},
		[]string{"job", "status"},
	)

	SchedulerLastRunTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scheduler_last_run_timestamp",
			Help: "Unix timestamp of last scheduler run",
		},
		[]string{"job"},
	)

	SchedulerJobDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scheduler_job_duration_seconds",
			Help:    "Time taken to execute a scheduler job",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"job"},
	)

	// Catalog.
	PackagesByReviewStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "packages_by_review_status",
			Help: "Current number of packages per review status",
		},
		[]string{"status"},
	)
)

// RecordRefreshRun records a finished refresh run.
func RecordRefreshRun(trigger, status string) {
	RefreshRunsTotal.WithLabelValues(trigger, status).Inc()
}

// RecordRefreshPackage records the outcome of refreshing one package.
func RecordRefreshPackage(outcome string) {
	RefreshPackagesTotal.WithLabelValues(outcome).Inc()
}

// ObserveRefreshRunDuration observes the duration of a refresh run.
func ObserveRefreshRunDuration(trigger string, seconds float64) {
	RefreshRunDurationSeconds.WithLabelValues(trigger).Observe(seconds)
}

// RecordNPMFetchFailure records a failed npm fetch.
func RecordNPMFetchFailure(kind string) {
	NPMFetchFailuresTotal.WithLabelValues(kind).Inc()
}

// RecordAIReview records a finished AI review.
func RecordAIReview(provider, status string) {
	AIReviewsTotal.WithLabelValues(provider, status).Inc()
}

// ObserveProviderCall observes the latency of one provider call.
func ObserveProviderCall(provider, outcome string, seconds float64) {
	AIProviderCallDurationSeconds.WithLabelValues(provider, outcome).Observe(seconds)
}

// RecordPolicyTransition records an automated review status change.
func RecordPolicyTransition(from, to string) {
	PolicyTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordSchedulerJobRun records a scheduler job execution.
func RecordSchedulerJobRun(job, status string) {
	SchedulerJobsRunTotal.WithLabelValues(job, status).Inc()
}

// SetSchedulerLastRun sets the timestamp of the last run of a job.
func SetSchedulerLastRun(job string) {
	SchedulerLastRunTimestamp.WithLabelValues(job).SetToCurrentTime()
}

// ObserveSchedulerJobDuration observes the duration of a scheduler job.
func ObserveSchedulerJobDuration(job string, seconds float64) {
	SchedulerJobDurationSeconds.WithLabelValues(job).Observe(seconds)
}

// SetPackagesByReviewStatus sets the package count for a review status.
func SetPackagesByReviewStatus(status string, count int64) {
	PackagesByReviewStatus.WithLabelValues(status).Set(float64(count))
}
