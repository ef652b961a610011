package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hirelane"

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

// Credit metrics (aggregate totals - no account label to avoid cardinality)
var (
	CreditsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credits_consumed_total",
			Help:      "Total number of credits consumed",
		},
		[]string{"kind"}, // "unlock" or "analysis"
	)

	CreditLimitReached = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credit_limit_reached_total",
			Help:      "Total number of requests refused because the monthly limit was reached",
		},
		[]string{"kind"},
	)

	CandidatesUnlocked = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_unlocked_total",
			Help:      "Total number of candidates unlocked",
		},
	)

	UsageResets = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "usage_resets_total",
			Help:      "Total number of accounts whose usage counter was reset",
		},
	)

	UsageNotifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "usage_notifications_total",
			Help:      "Total number of usage notification emails",
		},
		[]string{"state", "status"},
	)
)

// Scoring workflow metrics
var (
	ScoringDispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scoring_dispatch_total",
			Help:      "Total number of candidates sent to the scoring workflow",
		},
		[]string{"status"},
	)

	ScoringDispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scoring_dispatch_duration_seconds",
			Help:      "Scoring webhook call latency distribution",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	ScoringCallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scoring_callbacks_total",
			Help:      "Total number of scoring results received",
		},
		[]string{"kind"}, // "analysis" or "test"
	)
)
