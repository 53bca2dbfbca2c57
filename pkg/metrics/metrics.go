package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Backend API request latency (seconds)
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "onetask_api_request_duration_seconds",
			Help:    "Backend API request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
		[]string{"op", "status"},
	)

	// Chat round trip latency (milliseconds)
	ChatLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "onetask_chat_latency_ms",
			Help:    "Chat request latency in milliseconds, context fetch included",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10), // 100ms to ~100s
		},
		[]string{"outcome"},
	)

	ChatResponseKinds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onetask_chat_response_kind_total",
			Help: "Chat responses by classification",
		},
		[]string{"kind"}, // kind: json, plain_text, fallback
	)

	ContextBuilds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onetask_context_builds_total",
			Help: "RAG contexts built",
		},
		[]string{"source"}, // source: provided, fetched, empty_fallback, store
	)

	SyncCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onetask_sync_total",
			Help: "Store sync attempts by result",
		},
		[]string{"result"}, // result: synced, offline, failed
	)
)

// RecordAPIRequest records one backend request. A status of 0 means the
// request never produced a response.
func RecordAPIRequest(op string, status int, duration time.Duration) {
	label := "transport_error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	APIRequestDuration.WithLabelValues(op, label).Observe(duration.Seconds())
}

func RecordChatLatency(outcome string, duration time.Duration) {
	ChatLatency.WithLabelValues(outcome).Observe(float64(duration.Milliseconds()))
}

func IncrementChatResponse(kind string) {
	ChatResponseKinds.WithLabelValues(kind).Inc()
}

func IncrementContextBuild(source string) {
	ContextBuilds.WithLabelValues(source).Inc()
}

func IncrementSync(result string) {
	SyncCount.WithLabelValues(result).Inc()
}
