package scraper

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TotalRequests tracks page navigations attempted across all runs.
	TotalRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jobscraper_requests_total",
		Help: "The total number of page requests attempted.",
	}, []string{"site"})
	// TotalRequestErrors tracks page requests that exhausted their retries.
	TotalRequestErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jobscraper_request_errors_total",
		Help: "The total number of page requests that failed after retries.",
	}, []string{"site"})
	// TotalJobsExtracted tracks normalized records appended to results.
	TotalJobsExtracted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jobscraper_jobs_extracted_total",
		Help: "The total number of valid job records extracted.",
	}, []string{"site"})
	// TotalValidationFailures tracks records rejected at normalization.
	TotalValidationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jobscraper_validation_failures_total",
		Help: "The total number of raw records missing required fields.",
	}, []string{"site"})
	// TotalBlocksDetected tracks blocking/challenge page detections.
	TotalBlocksDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jobscraper_blocks_detected_total",
		Help: "The total number of anti-automation blocks detected.",
	}, []string{"site"})
	// TotalRunsAborted tracks runs aborted by consecutive blocking.
	TotalRunsAborted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jobscraper_runs_aborted_total",
		Help: "The total number of runs aborted early.",
	}, []string{"site"})
)
