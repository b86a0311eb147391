package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docling_requests_total",
		Help: "Total HTTP requests by method, route and status",
	}, []string{"method", "endpoint", "status"})

	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "docling_request_latency_seconds",
		Help:    "HTTP request latency by method and route",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"})

	processingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "docling_document_processing_seconds",
		Help:    "Wall-clock time of one conversion attempt",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600, 900},
	})

	tasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docling_tasks_total",
		Help: "Conversion attempts by outcome",
	}, []string{"status"}) // status: completed, failed, retried

	tasksSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docling_tasks_submitted_total",
		Help: "Tasks accepted by the API",
	})

	webhookDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docling_webhook_deliveries_total",
		Help: "Webhook delivery attempts by outcome",
	}, []string{"outcome"})

	chunksEmbedded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docling_chunks_embedded_total",
		Help: "Chunks that received an embedding",
	})
)

func RecordRequest(method, endpoint string, status int, elapsed time.Duration) {
	requestsTotal.WithLabelValues(method, endpoint, statusClass(status)).Inc()
	requestLatency.WithLabelValues(method, endpoint).Observe(elapsed.Seconds())
}

func RecordProcessing(elapsed time.Duration) {
	processingDuration.Observe(elapsed.Seconds())
}

func RecordTask(status string) {
	tasksTotal.WithLabelValues(status).Inc()
}

func RecordSubmitted(n int) {
	tasksSubmitted.Add(float64(n))
}

func RecordWebhook(success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	webhookDeliveries.WithLabelValues(outcome).Inc()
}

func RecordChunks(n int) {
	chunksEmbedded.Add(float64(n))
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
