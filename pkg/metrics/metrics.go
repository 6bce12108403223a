// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aarogya_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aarogya_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "path"},
	)

	// PipelineRuns counts chat pipeline runs by outcome
	// (responded, short_circuit, unauthorized, not_found, internal_error, validation_error).
	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aarogya_pipeline_runs_total",
			Help: "Chat pipeline runs by outcome",
		},
		[]string{"outcome"},
	)

	PipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aarogya_pipeline_duration_seconds",
			Help:    "End-to-end chat pipeline duration",
			Buckets: []float64{.1, .25, .5, 1, 2, 5, 10, 20, 40, 60},
		},
	)

	// GateDecisions: in_scope, out_of_scope, fail_open, cached_in_scope, cached_out_of_scope.
	GateDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aarogya_topic_gate_decisions_total",
			Help: "Topic gate decisions",
		},
		[]string{"decision"},
	)

	CompletionFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aarogya_completion_fallbacks_total",
			Help: "Completions replaced by the fallback text",
		},
	)

	StoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aarogya_store_latency_seconds",
			Help:    "Conversation store operation latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"backend", "op"},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aarogya_rate_limit_hits_total",
			Help: "Requests rejected by rate, duplicate or concurrency guards",
		},
		[]string{"reason"},
	)
)
