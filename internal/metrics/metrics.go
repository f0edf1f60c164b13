package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidgen_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vidgen_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Quota Metrics
	QuotaChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidgen_quota_checks_total",
			Help: "Total number of quota admission decisions",
		},
		[]string{"result"},
	)

	QuotaStoreErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vidgen_quota_store_errors_total",
			Help: "Total number of quota store failures",
		},
	)

	// Generation Metrics
	GenerationsSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vidgen_generations_submitted_total",
			Help: "Total number of generation requests accepted for processing",
		},
	)

	GenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidgen_generations_total",
			Help: "Total number of processed generations",
		},
		[]string{"status", "model"},
	)

	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vidgen_generation_duration_seconds",
			Help:    "External generation call duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~17 minutes
		},
		[]string{"model"},
	)

	GenerationOutputBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vidgen_generation_output_bytes",
			Help:    "Size of generated videos in bytes",
			Buckets: prometheus.ExponentialBuckets(256*1024, 2, 12), // 256KB to 512MB
		},
	)

	JobsQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vidgen_jobs_queue_depth",
			Help: "Number of generation jobs waiting in queue",
		},
	)
)

// RecordQuotaCheck records an admission decision
func RecordQuotaCheck(allowed bool) {
	result := "allowed"
	if !allowed {
		result = "denied"
	}
	QuotaChecksTotal.WithLabelValues(result).Inc()
}

// RecordGeneration records a processed generation outcome
func RecordGeneration(status, model string) {
	GenerationsTotal.WithLabelValues(status, model).Inc()
}
