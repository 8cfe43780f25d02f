// Package metrics holds the Prometheus collectors of the ingestion pipeline.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var (
	documentsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_documents_processed_total",
			Help: "Total number of documents processed by format and outcome",
		},
		[]string{"format", "status"},
	)
	documentDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingest_document_duration_milliseconds",
			Help:    "Document processing duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 12),
		},
		[]string{"format"},
	)
	categorizations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_categorizations_total",
			Help: "Total number of categorization results by provenance",
		},
		[]string{"source"},
	)
	tierFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_categorization_tier_failures_total",
			Help: "Total number of categorization tiers skipped after an error",
		},
		[]string{"tier"},
	)
	droppedFragments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_dropped_fragments_total",
			Help: "Total number of incomplete or invalid rows dropped",
		},
		[]string{"stage"},
	)
	httpRequests = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingest_http_request_duration_seconds",
			Help:    "HTTP request duration by route and status code",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "code"},
	)
	jobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_jobs_total",
			Help: "Total number of parse jobs by final status",
		},
		[]string{"status"},
	)
)

// DocumentProcessed records the outcome of one ProcessFile call.
func DocumentProcessed(format, status string, duration time.Duration) {
	documentsProcessed.WithLabelValues(format, status).Inc()
	documentDuration.WithLabelValues(format).Observe(float64(duration.Milliseconds()))
}

// Categorized counts one categorization result.
func Categorized(source string) {
	categorizations.WithLabelValues(source).Inc()
}

// Categorizations returns the current count for one provenance.
func Categorizations(source string) float64 {
	return testutil.ToFloat64(categorizations.WithLabelValues(source))
}

// TierFailed counts a tier that was skipped after an error or panic.
func TierFailed(tier string) {
	tierFailures.WithLabelValues(tier).Inc()
}

// FragmentDropped counts rows dropped at the given stage.
func FragmentDropped(stage string, n int) {
	if n <= 0 {
		return
	}
	droppedFragments.WithLabelValues(stage).Add(float64(n))
}

// JobFinished counts a job reaching a terminal status.
func JobFinished(status string) {
	jobsTotal.WithLabelValues(status).Inc()
}

// HTTPRequest records one served request. route is the matched mux
// pattern, empty for unmatched paths.
func HTTPRequest(method, route string, code int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Observe(duration.Seconds())
}
