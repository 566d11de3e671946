package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests and multiple servers never
// collide on the default one. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	submissions        *prometheus.CounterVec
	submissionDuration *prometheus.HistogramVec
	emailSends         *prometheus.CounterVec
	reviewCache        *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		submissions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "submissions_total",
				Help: "Total number of form submissions by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		submissionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "submission_duration_seconds",
				Help:    "Duration of submission handling in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		emailSends: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "email_sends_total",
				Help: "Total number of provider send attempts",
			},
			[]string{"provider", "phase", "outcome"},
		),
		reviewCache: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "review_cache_total",
				Help: "Review summary lookups by result (hit, miss, fallback)",
			},
			[]string{"result"},
		),
	}
}

// Submission records the outcome of one submission.
func (m *Metrics) Submission(kind, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(kind, outcome).Inc()
	m.submissionDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// EmailSend records one provider call.
func (m *Metrics) EmailSend(provider, phase, outcome string) {
	if m == nil {
		return
	}
	m.emailSends.WithLabelValues(provider, phase, outcome).Inc()
}

// ReviewCache records a review summary lookup.
func (m *Metrics) ReviewCache(result string) {
	if m == nil {
		return
	}
	m.reviewCache.WithLabelValues(result).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
