package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/alintentu/farmer-app/pkg/config"
)

var (
	// HTTP request metrics
	HttpRequestsTotal   prometheus.CounterVec
	HttpRequestDuration prometheus.HistogramVec

	// Authentication metrics
	AuthAttemptsCounter prometheus.Counter
	AuthErrorsCounter   prometheus.Counter

	// Entitlement metrics
	FeatureDeniedCounter prometheus.CounterVec
	ServiceDeniedCounter prometheus.CounterVec
	LimitExceededCounter prometheus.CounterVec

	// Document pipeline metrics
	DocumentsProcessedCounter prometheus.CounterVec
	PagesProcessedCounter     prometheus.CounterVec
	ImagesProcessedCounter    prometheus.CounterVec
	PipelineDuration          prometheus.HistogramVec

	// Embedding metrics
	EmbeddingRequestsCounter prometheus.CounterVec
	EmbeddingErrorsCounter   prometheus.CounterVec
	EmbeddingDuration        prometheus.HistogramVec

	// Service registry metrics
	HealthProbesCounter  prometheus.CounterVec
	ProxyRequestsCounter prometheus.CounterVec

	// Database operation metrics
	DbOperationDuration prometheus.HistogramVec
)

// InitMetrics initializes Prometheus metrics with configuration
func InitMetrics(config *config.Config) {
	prefix := config.Metrics.Prefix

	// HTTP request metrics
	HttpRequestsTotal = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HttpRequestDuration = *promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// Authentication metrics
	AuthAttemptsCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
	)

	AuthErrorsCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_auth_errors_total",
			Help: "Total number of authentication errors",
		},
	)

	// Entitlement metrics
	FeatureDeniedCounter = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_feature_denied_total",
			Help: "Total number of requests denied by the feature gate",
		},
		[]string{"feature"},
	)

	ServiceDeniedCounter = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_service_denied_total",
			Help: "Total number of requests denied by the service gate",
		},
		[]string{"service", "reason"},
	)

	LimitExceededCounter = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_limit_exceeded_total",
			Help: "Total number of operations rejected by usage limits",
		},
		[]string{"service", "resource"},
	)

	// Document pipeline metrics
	DocumentsProcessedCounter = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_documents_processed_total",
			Help: "Total number of documents processed by the pipeline",
		},
		[]string{"status"},
	)

	PagesProcessedCounter = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_pages_processed_total",
			Help: "Total number of document pages processed",
		},
		[]string{"status"},
	)

	ImagesProcessedCounter = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_images_processed_total",
			Help: "Total number of document images processed",
		},
		[]string{"status"},
	)

	PipelineDuration = *promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_pipeline_duration_seconds",
			Help:    "Duration of document pipeline runs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"status"},
	)

	// Embedding metrics
	EmbeddingRequestsCounter = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_embedding_requests_total",
			Help: "Total number of embedding requests",
		},
		[]string{"driver"},
	)

	EmbeddingErrorsCounter = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_embedding_errors_total",
			Help: "Total number of failed embedding requests",
		},
		[]string{"driver"},
	)

	EmbeddingDuration = *promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_embedding_duration_seconds",
			Help:    "Duration of embedding requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"driver"},
	)

	// Service registry metrics
	HealthProbesCounter = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_health_probes_total",
			Help: "Total number of downstream health probes",
		},
		[]string{"service", "result"},
	)

	ProxyRequestsCounter = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_proxy_requests_total",
			Help: "Total number of proxied service requests",
		},
		[]string{"service", "result"},
	)

	// Database operation metrics
	DbOperationDuration = *promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation_type"},
	)
}

// TrackDBOperation returns a function that records the duration of a database operation
func TrackDBOperation(operationType string) func(startTime time.Time) {
	return func(startTime time.Time) {
		duration := time.Since(startTime).Seconds()
		DbOperationDuration.WithLabelValues(operationType).Observe(duration)
	}
}

// RecordFeatureDenied increments the counter for feature gate denials
func RecordFeatureDenied(feature string) {
	FeatureDeniedCounter.WithLabelValues(feature).Inc()
}

// RecordServiceDenied increments the counter for service gate denials
func RecordServiceDenied(service, reason string) {
	ServiceDeniedCounter.WithLabelValues(service, reason).Inc()
}

// RecordLimitExceeded increments the counter for usage limit rejections
func RecordLimitExceeded(service, resource string) {
	LimitExceededCounter.WithLabelValues(service, resource).Inc()
}

// RecordDocumentProcessed increments the counter for pipeline runs
func RecordDocumentProcessed(status string) {
	DocumentsProcessedCounter.WithLabelValues(status).Inc()
}

// RecordPageProcessed increments the counter for processed pages
func RecordPageProcessed(status string) {
	PagesProcessedCounter.WithLabelValues(status).Inc()
}

// RecordImageProcessed increments the counter for processed images
func RecordImageProcessed(status string) {
	ImagesProcessedCounter.WithLabelValues(status).Inc()
}

// RecordEmbedding records a single embedding request outcome and duration
func RecordEmbedding(driver string, startTime time.Time, err error) {
	EmbeddingRequestsCounter.WithLabelValues(driver).Inc()
	EmbeddingDuration.WithLabelValues(driver).Observe(time.Since(startTime).Seconds())
	if err != nil {
		EmbeddingErrorsCounter.WithLabelValues(driver).Inc()
	}
}

// RecordHealthProbe increments the counter for downstream health probes
func RecordHealthProbe(service, result string) {
	HealthProbesCounter.WithLabelValues(service, result).Inc()
}

// RecordProxyRequest increments the counter for proxied service requests
func RecordProxyRequest(service, result string) {
	ProxyRequestsCounter.WithLabelValues(service, result).Inc()
}
