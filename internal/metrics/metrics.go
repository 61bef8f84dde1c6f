package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ttsgate_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ttsgate_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Auth Metrics
	LoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ttsgate_login_attempts_total",
			Help: "Total number of login attempts",
		},
		[]string{"kind", "result"},
	)

	// Synthesis Metrics
	SynthesisRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ttsgate_synthesis_requests_total",
			Help: "Total number of synthesis requests by outcome",
		},
		[]string{"outcome"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ttsgate_upstream_duration_seconds",
			Help:    "Latency of calls to the synthesis service",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		},
		[]string{"status"},
	)

	// Quota Metrics
	QuotaIncrementsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ttsgate_quota_increments_total",
			Help: "Total number of billable calls counted",
		},
	)

	QuotaExceededTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ttsgate_quota_exceeded_total",
			Help: "Total number of calls made at or over the limit",
		},
		[]string{"policy"},
	)

	// Usage Log Metrics
	UsageEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ttsgate_usage_events_total",
			Help: "Total number of usage events by result",
		},
		[]string{"result"},
	)

	UsageQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ttsgate_usage_queue_depth",
			Help: "Number of usage events waiting to be written",
		},
	)

	UsageAuditedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ttsgate_usage_audited_total",
			Help: "Total number of usage events consumed by the audit worker",
		},
		[]string{"endpoint", "language"},
	)

	// Cache Metrics
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ttsgate_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ttsgate_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	// Storage Metrics
	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ttsgate_storage_operations_total",
			Help: "Total number of storage operations",
		},
		[]string{"operation", "status"},
	)

	StorageBytesTransferred = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ttsgate_storage_bytes_transferred_total",
			Help: "Total bytes transferred to storage",
		},
		[]string{"operation"},
	)

	// Error Metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ttsgate_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)

// Usage event results
const (
	UsageLogged    = "logged"
	UsageSkipped   = "skipped"
	UsageDropped   = "dropped"
	UsageFailed    = "failed"
	UsagePublished = "published"
)

// RecordHTTPRequest records an HTTP request
func RecordHTTPRequest(method, endpoint, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordLoginAttempt records a user or admin login attempt
func RecordLoginAttempt(kind string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	LoginAttemptsTotal.WithLabelValues(kind, result).Inc()
}

// RecordSynthesis records the outcome of a synthesis request
func RecordSynthesis(outcome string) {
	SynthesisRequestsTotal.WithLabelValues(outcome).Inc()
}

// RecordUpstreamCall records the latency of an upstream call
func RecordUpstreamCall(status string, duration float64) {
	UpstreamDuration.WithLabelValues(status).Observe(duration)
}

// RecordUsageEvent records what happened to a usage event
func RecordUsageEvent(result string) {
	UsageEventsTotal.WithLabelValues(result).Inc()
}

// RecordUsageAudited records a usage event seen by the audit worker
func RecordUsageAudited(endpoint, language string) {
	if language == "" {
		language = "none"
	}
	UsageAuditedTotal.WithLabelValues(endpoint, language).Inc()
}

// SetUsageQueueDepth updates the usage queue gauge
func SetUsageQueueDepth(depth int) {
	UsageQueueDepth.Set(float64(depth))
}

// RecordCacheAccess records cache hit or miss
func RecordCacheAccess(cacheType string, hit bool) {
	if hit {
		CacheHitsTotal.WithLabelValues(cacheType).Inc()
	} else {
		CacheMissesTotal.WithLabelValues(cacheType).Inc()
	}
}

// RecordStorageOperation records a storage operation
func RecordStorageOperation(operation, status string, bytesTransferred int64) {
	StorageOperationsTotal.WithLabelValues(operation, status).Inc()
	StorageBytesTransferred.WithLabelValues(operation).Add(float64(bytesTransferred))
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
