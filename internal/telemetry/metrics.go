package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ThreatsCollected counts threats stored by collection runs
	ThreatsCollected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cyberscope",
			Name:      "threats_collected_total",
			Help:      "Total number of threats stored by collection runs",
		},
	)

	// CollectionRuns counts finished collection runs by outcome
	CollectionRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cyberscope",
			Name:      "collection_runs_total",
			Help:      "Total number of collection runs",
		},
		[]string{"status"},
	)

	// FeedErrors counts failed fetches per external feed
	FeedErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cyberscope",
			Name:      "feed_errors_total",
			Help:      "Total number of failed feed fetches",
		},
		[]string{"source"},
	)

	// LLMFallbacks counts analyses that fell back to the deterministic path
	LLMFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cyberscope",
			Name:      "llm_fallbacks_total",
			Help:      "Total number of fallback analyses by reason",
		},
		[]string{"reason"},
	)

	// LLMTokensUsed counts tokens charged against the daily budget
	LLMTokensUsed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cyberscope",
			Name:      "llm_tokens_used_total",
			Help:      "Total number of model tokens charged against the budget",
		},
	)

	// HTTPRequests counts dashboard API requests
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cyberscope",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests served",
		},
		[]string{"path", "method", "status"},
	)

	// Ensure metrics are only registered once
	once sync.Once
)

// InitMetrics registers all metrics with the global Prometheus registry
// This function is idempotent and can be called multiple times safely
func InitMetrics() {
	once.Do(func() {
		// Register errors are ignored so a collector that is already in
		// the registry does not panic the process.
		_ = prometheus.DefaultRegisterer.Register(ThreatsCollected)
		_ = prometheus.DefaultRegisterer.Register(CollectionRuns)
		_ = prometheus.DefaultRegisterer.Register(FeedErrors)
		_ = prometheus.DefaultRegisterer.Register(LLMFallbacks)
		_ = prometheus.DefaultRegisterer.Register(LLMTokensUsed)
		_ = prometheus.DefaultRegisterer.Register(HTTPRequests)
	})
}
