package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce        sync.Once
	apiRequestsTotal    *prometheus.CounterVec
	apiLatencySeconds   *prometheus.HistogramVec
	apiErrorsTotal      *prometheus.CounterVec
	evaluationsClaimed  prometheus.Counter
	evaluationOutcomes  *prometheus.CounterVec
	evaluationQueue     *prometheus.GaugeVec
	evaluationsReleased prometheus.Counter
	realtimeStreams     *prometheus.GaugeVec
	uploadsTotal        *prometheus.CounterVec
	notificationsTotal  *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API and its workers.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "designhub_api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "designhub_api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "designhub_api_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		evaluationsClaimed = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "designhub_evaluation_jobs_claimed_total",
			Help: "Evaluation jobs claimed by the dispatcher.",
		})

		evaluationOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "designhub_evaluation_jobs_outcome_total",
			Help: "Evaluation job outcomes by result.",
		}, []string{"outcome"})

		evaluationQueue = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "designhub_evaluation_jobs",
			Help: "Evaluation jobs by queue status.",
		}, []string{"status"})

		evaluationsReleased = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "designhub_evaluation_leases_released_total",
			Help: "Processing jobs returned to the queue after their lease expired.",
		})

		realtimeStreams = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "designhub_realtime_connections",
			Help: "Open realtime connections by transport.",
		}, []string{"transport"})

		uploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "designhub_uploads_total",
			Help: "Uploaded battle entries by result.",
		}, []string{"result"})

		notificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "designhub_notifications_published_total",
			Help: "Notifications delivered to local subscribers by type.",
		}, []string{"type"})

		prometheus.MustRegister(
			apiRequestsTotal, apiLatencySeconds, apiErrorsTotal,
			evaluationsClaimed, evaluationOutcomes, evaluationQueue, evaluationsReleased,
			realtimeStreams, uploadsTotal, notificationsTotal,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// EvaluationsClaimed counts jobs picked up by the dispatcher.
func EvaluationsClaimed() prometheus.Counter {
	RegisterMetrics()
	return evaluationsClaimed
}

// EvaluationOutcomes counts reviewed, retried, failed and discarded jobs.
func EvaluationOutcomes() *prometheus.CounterVec {
	RegisterMetrics()
	return evaluationOutcomes
}

// EvaluationQueue reports the job count per status.
func EvaluationQueue() *prometheus.GaugeVec {
	RegisterMetrics()
	return evaluationQueue
}

// EvaluationsReleased counts expired leases.
func EvaluationsReleased() prometheus.Counter {
	RegisterMetrics()
	return evaluationsReleased
}

// RealtimeConnections tracks open SSE and websocket clients.
func RealtimeConnections() *prometheus.GaugeVec {
	RegisterMetrics()
	return realtimeStreams
}

// Uploads counts battle entry uploads.
func Uploads() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadsTotal
}

// NotificationsPublished counts notifications by type.
func NotificationsPublished() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsTotal
}
