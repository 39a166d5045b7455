// Package metrics exposes prometheus instrumentation for the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the service's collectors behind its own registry so
// tests can create isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	jobsSubmitted prometheus.Counter
	jobsActive    prometheus.Gauge
	jobsFinished  *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		jobsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "commundetect_jobs_submitted_total",
			Help: "Jobs accepted for processing.",
		}),
		jobsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "commundetect_jobs_active",
			Help: "Jobs currently being executed by a worker.",
		}),
		jobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "commundetect_jobs_finished_total",
			Help: "Jobs that reached a terminal state, by public status.",
		}, []string{"status"}),
	}

	m.registry.MustRegister(
		m.jobsSubmitted,
		m.jobsActive,
		m.jobsFinished,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the prometheus exposition endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// JobSubmitted, JobStarted, and JobFinished implement
// jobqueue.Instrumentation.

func (m *Metrics) JobSubmitted() {
	m.jobsSubmitted.Inc()
}

func (m *Metrics) JobStarted() {
	m.jobsActive.Inc()
}

func (m *Metrics) JobFinished(publicStatus string) {
	m.jobsActive.Dec()
	m.jobsFinished.WithLabelValues(publicStatus).Inc()
}
