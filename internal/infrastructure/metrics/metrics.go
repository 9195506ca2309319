// Package metrics exposes pipeline telemetry as Prometheus series.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"ListingsAggregator/internal/domain"
	"ListingsAggregator/internal/ports"
)

const namespace = "listings"

// Recorder implements ports.Recorder on top of a Prometheus registerer.
type Recorder struct {
	fetched       *prometheus.CounterVec
	adapterErrors *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	persisted     *prometheus.CounterVec
	persistErrors *prometheus.CounterVec
	reaped        prometheus.Counter
}

var _ ports.Recorder = (*Recorder)(nil)

// NewRecorder registers all pipeline metrics on reg (the default registerer when nil).
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Recorder{
		fetched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregator",
			Name:      "listings_fetched_total",
			Help:      "Raw listings returned by each source adapter.",
		}, []string{"source"}),
		adapterErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregator",
			Name:      "adapter_failures_total",
			Help:      "Adapter invocations that contributed zero results because of a fault.",
		}, []string{"source", "reason"}),
		fetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "aggregator",
			Name:      "adapter_duration_seconds",
			Help:      "Wall time of one adapter invocation.",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"source"}),
		persisted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "persister",
			Name:      "upserts_total",
			Help:      "Persisted listings by outcome (inserted or refreshed).",
		}, []string{"source", "outcome"}),
		persistErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "persister",
			Name:      "failures_total",
			Help:      "Listings that failed to persist.",
		}, []string{"source"}),
		reaped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reaper",
			Name:      "removed_total",
			Help:      "Stale external listings removed.",
		}),
	}
}

// AdapterFetched records a successful adapter invocation.
func (r *Recorder) AdapterFetched(source domain.Source, count int, elapsed time.Duration) {
	r.fetched.WithLabelValues(string(source)).Add(float64(count))
	r.fetchDuration.WithLabelValues(string(source)).Observe(elapsed.Seconds())
}

// AdapterFailed records an adapter fault; reason is one of error, timeout or panic.
func (r *Recorder) AdapterFailed(source domain.Source, reason string, elapsed time.Duration) {
	r.adapterErrors.WithLabelValues(string(source), reason).Inc()
	r.fetchDuration.WithLabelValues(string(source)).Observe(elapsed.Seconds())
}

// Persisted records one successful upsert.
func (r *Recorder) Persisted(source domain.Source, created bool) {
	outcome := "refreshed"
	if created {
		outcome = "inserted"
	}
	r.persisted.WithLabelValues(string(source), outcome).Inc()
}

// PersistFailed records one failed upsert.
func (r *Recorder) PersistFailed(source domain.Source) {
	r.persistErrors.WithLabelValues(string(source)).Inc()
}

// Reaped records a reaper pass.
func (r *Recorder) Reaped(count int64) {
	r.reaped.Add(float64(count))
}
