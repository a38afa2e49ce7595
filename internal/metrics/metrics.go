// Package metrics defines the Prometheus collectors of the pipeline.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector. Create one per registry.
type Metrics struct {
	JobsTotal           *prometheus.CounterVec
	JobDuration         *prometheus.HistogramVec
	EmbedDecisions      *prometheus.CounterVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		JobsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "preview_jobs_total",
				Help: "Total number of preview jobs by kind and outcome.",
			},
			[]string{"kind", "status"},
		),
		JobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "preview_job_duration_seconds",
				Help:    "Duration of preview jobs.",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"kind"},
		),
		EmbedDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "preview_embed_decisions_total",
				Help: "Embeddability decisions per protocol.",
			},
			[]string{"protocol", "embeddable"},
		),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
	}
}

// ObserveJob records one finished job.
func (m *Metrics) ObserveJob(kind, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.JobsTotal.WithLabelValues(kind, status).Inc()
	m.JobDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// ObserveEmbedDecision records a classifier decision.
func (m *Metrics) ObserveEmbedDecision(protocol string, embeddable bool) {
	if m == nil {
		return
	}
	m.EmbedDecisions.WithLabelValues(protocol, strconv.FormatBool(embeddable)).Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, path string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.HTTPRequestsTotal.WithLabelValues(method, path, code).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, code).Observe(elapsed.Seconds())
}
