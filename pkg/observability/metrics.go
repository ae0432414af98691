package observability

import (
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dailyagent_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dailyagent_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Tool server metrics
	toolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dailyagent_tool_calls_total",
			Help: "Total number of tool server calls",
		},
		[]string{"tool", "status"},
	)

	toolCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dailyagent_tool_call_duration_seconds",
			Help:    "Tool server call duration in seconds, retries included",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20, 45, 90},
		},
		[]string{"tool"},
	)

	toolRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dailyagent_tool_retries_total",
			Help: "Total number of retried tool server attempts",
		},
		[]string{"host", "reason"},
	)

	// Conversation metrics
	chatTurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dailyagent_chat_turns_total",
			Help: "Total number of conversation turns",
		},
		[]string{"outcome"},
	)

	llmDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dailyagent_llm_duration_seconds",
			Help:    "LLM invocation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dailyagent_active_sessions",
			Help: "Number of sessions held in memory",
		},
	)

	goroutines = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dailyagent_goroutines",
			Help: "Number of goroutines",
		},
	)

	initOnce sync.Once
)

// InitMetrics registers the collectors with the default registry.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpRequestsTotal,
			httpRequestDuration,
			toolCallsTotal,
			toolCallDuration,
			toolRetriesTotal,
			chatTurnsTotal,
			llmDuration,
			activeSessions,
			goroutines,
		)
	})
}

// MetricsHandler returns an HTTP handler for Prometheus metrics
func MetricsHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		goroutines.Set(float64(runtime.NumGoroutine()))
		promhttp.Handler().ServeHTTP(w, r)
	})
}

// RecordHTTPRequest records HTTP request metrics
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordToolCall records the outcome of one gateway tool call.
func RecordToolCall(tool, status string, duration time.Duration) {
	toolCallsTotal.WithLabelValues(tool, status).Inc()
	toolCallDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordToolRetry counts an attempt that is about to be retried.
func RecordToolRetry(host, reason string) {
	toolRetriesTotal.WithLabelValues(host, reason).Inc()
}

// RecordChatTurn counts a conversation turn by outcome.
func RecordChatTurn(outcome string) {
	chatTurnsTotal.WithLabelValues(outcome).Inc()
}

// RecordLLMCall records LLM latency
func RecordLLMCall(provider string, duration time.Duration) {
	llmDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// SetActiveSessions sets the in-memory session gauge
func SetActiveSessions(count int) {
	activeSessions.Set(float64(count))
}
