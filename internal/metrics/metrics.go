package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "storefront"

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being processed",
		},
	)
)

// Content API client metrics
var (
	ContentAPIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "content_api_requests_total",
			Help:      "Total number of calls to the content API",
		},
		[]string{"operation", "status"},
	)

	ContentAPIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "content_api_request_duration_seconds",
			Help:      "Content API call latency distribution",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)
)

// Business metrics
var (
	CheckoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkouts_total",
			Help:      "Total number of checkout attempts by outcome",
		},
		[]string{"outcome"},
	)

	FreeTrialsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "free_trials_total",
			Help:      "Total number of free trial attempts by outcome",
		},
		[]string{"outcome"},
	)

	EligibilityMismatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "eligibility_mismatches_total",
			Help:      "Audience mismatches detected, by stage (display or checkout)",
		},
		[]string{"stage"},
	)

	GuardRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_rejections_total",
			Help:      "Requests rejected because the same action was already in flight",
		},
		[]string{"action"},
	)

	ProductsDefaulted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "products_defaulted_total",
			Help:      "Products classified as B2C only because no rule matched",
		},
	)

	CustomPackageRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "custom_package_requests_total",
			Help:      "Custom package request submissions by outcome",
		},
		[]string{"outcome"},
	)
)

// Attempt log metrics
var (
	AttemptLogWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempt_log_writes_total",
			Help:      "Attempt log writes by result (written, failed, dropped)",
		},
		[]string{"result"},
	)

	AttemptLogQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "attempt_log_queue_depth",
			Help:      "Attempts waiting to be written",
		},
	)
)
