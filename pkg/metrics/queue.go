package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// QueueJobMetrics records per-queue worker execution metadata, the fulfillment-pipeline analog of
// CronJobMetrics.
type QueueJobMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
	attempts *prometheus.CounterVec
}

// NewQueueJobMetrics registers the queue worker metrics on the provided registerer.
func NewQueueJobMetrics(reg prometheus.Registerer) *QueueJobMetrics {
	if reg == nil {
		return &QueueJobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "queue_job_duration_seconds",
		Help:    "Duration of queue job executions in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"queue"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "queue_job_success_total",
		Help: "Successful queue job executions.",
	}, []string{"queue"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "queue_job_failure_total",
		Help: "Failed queue job executions (includes retried and terminal failures).",
	}, []string{"queue"})
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "queue_job_attempts_total",
		Help: "Total attempt count spent across queue job executions.",
	}, []string{"queue"})
	reg.MustRegister(duration, success, failure, attempts)
	return &QueueJobMetrics{duration: duration, success: success, failure: failure, attempts: attempts}
}

func (m *QueueJobMetrics) ObserveDuration(queue string, d time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(queue)).Observe(d.Seconds())
}

func (m *QueueJobMetrics) IncSuccess(queue string) {
	if m == nil || m.success == nil {
		return
	}
	m.success.WithLabelValues(normalizeLabel(queue)).Inc()
}

func (m *QueueJobMetrics) IncFailure(queue string) {
	if m == nil || m.failure == nil {
		return
	}
	m.failure.WithLabelValues(normalizeLabel(queue)).Inc()
}

func (m *QueueJobMetrics) IncAttempt(queue string) {
	if m == nil || m.attempts == nil {
		return
	}
	m.attempts.WithLabelValues(normalizeLabel(queue)).Inc()
}
