// ===========================================
// Package metrics - Prometheus Instrumentation
// ===========================================
// All collectors register with the default registry through promauto
// and are served by promhttp on /metrics.
// ===========================================

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Redirect outcomes, used as the "outcome" label.
const (
	OutcomeRedirect         = "redirect"
	OutcomeNotFound         = "not_found"
	OutcomeGone             = "gone"
	OutcomePasswordRequired = "password_required"
	OutcomeUnauthorized     = "unauthorized"
	OutcomeError            = "error"
)

var (
	// Redirect Metrics
	RedirectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkpulse_redirects_total",
			Help: "Total number of resolve attempts by outcome",
		},
		[]string{"outcome"},
	)

	LinkCacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkpulse_link_cache_results_total",
			Help: "Link cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)

	// Link Creation Metrics
	LinksCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkpulse_links_created_total",
			Help: "Total number of links created by code kind (custom, generated)",
		},
		[]string{"kind"},
	)

	CodeGenerationAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "linkpulse_code_generation_attempts_total",
			Help: "Random short codes drawn, including collisions",
		},
	)

	CodeGenerationExhausted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "linkpulse_code_generation_exhausted_total",
			Help: "Times code generation gave up without a free code",
		},
	)

	PlanRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkpulse_plan_rejections_total",
			Help: "Link creations rejected by the plan limiter",
		},
		[]string{"reason"}, // "quota", "feature", "inactive"
	)

	// Enrichment and Event Metrics
	EnrichmentFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkpulse_enrichment_failures_total",
			Help: "Visitor enrichment lookups that failed and left fields empty",
		},
		[]string{"source"},
	)

	EventPublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "linkpulse_event_publish_failures_total",
			Help: "Click events that could not be published",
		},
	)

	// Analytics Metrics
	ReportDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "linkpulse_report_duration_seconds",
			Help:    "Time spent building analytics reports",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"report"}, // "dashboard", "url", "rollup"
	)

	RollupLinks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "linkpulse_rollup_links",
			Help: "Links written by the most recent daily rollup",
		},
	)

	// HTTP Metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "linkpulse_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"method", "route", "status"},
	)
)

// RecordRedirect counts one resolve attempt.
func RecordRedirect(outcome string) {
	RedirectsTotal.WithLabelValues(outcome).Inc()
}

// RecordReport observes how long a report took to build.
func RecordReport(report string, start time.Time) {
	ReportDuration.WithLabelValues(report).Observe(time.Since(start).Seconds())
}

// RecordHTTPRequest observes one served HTTP request.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}
