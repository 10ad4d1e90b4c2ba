// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the TodoFlow agent server.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for LLM inference latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts HTTP requests by method, route pattern and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "todoflow_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration records HTTP request duration in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "todoflow_request_duration_seconds",
			Help:    "Request duration",
			Buckets: LLMBuckets,
		},
		[]string{"method", "route"},
	)

	// StreamingConnections tracks the number of active SSE chat streams.
	StreamingConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "todoflow_streaming_connections_active",
			Help: "Active streaming connections",
		},
	)

	// ProviderRequestsTotal counts stream opens against model backends.
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "todoflow_provider_requests_total",
			Help: "Provider requests",
		},
		[]string{"provider", "model", "status"},
	)

	// ProviderLatency records how long a backend took to start streaming.
	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "todoflow_provider_latency_seconds",
			Help:    "Provider latency",
			Buckets: LLMBuckets,
		},
		[]string{"provider", "model"},
	)

	// ModelFallbacksTotal counts switches away from a quota-exhausted model.
	ModelFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "todoflow_model_fallbacks_total",
			Help: "Model fallbacks after quota exhaustion",
		},
		[]string{"from", "to"},
	)

	// ToolExecutionsTotal counts tool executions by name and outcome.
	ToolExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "todoflow_tool_executions_total",
			Help: "Tool executions",
		},
		[]string{"tool", "status"},
	)

	// LoopIterations records how many model calls each chat turn needed.
	LoopIterations = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "todoflow_loop_iterations",
			Help:    "Agent loop iterations per turn",
			Buckets: []float64{1, 2, 3, 4, 5, 8, 10},
		},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "todoflow_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"tier"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		StreamingConnections,
		ProviderRequestsTotal,
		ProviderLatency,
		ModelFallbacksTotal,
		ToolExecutionsTotal,
		LoopIterations,
		RateLimitRejectedTotal,
	)
}
