// Package metrics exposes batch and per-account outcome counters.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"yt_multi_account/internal/domain"
)

const namespace = "ytmulti"

// Recorder owns the collectors for one registry
type Recorder struct {
	registry *prometheus.Registry

	actions       *prometheus.CounterVec
	attempts      *prometheus.CounterVec
	batchDuration *prometheus.HistogramVec
	batches       *prometheus.CounterVec
}

// NewRecorder registers the collectors on a fresh registry, together with
// the Go runtime and process collectors.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		actions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Per-account actions by kind and terminal outcome.",
		}, []string{"kind", "outcome"}),
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "action_attempts_total",
			Help:      "Dispatches including retries, by kind.",
		}, []string{"kind"}),
		batchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Wall time of a whole batch including pacing waits.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"kind"}),
		batches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Batches run, by kind.",
		}, []string{"kind"}),
	}
}

// ObserveResult counts one per-account outcome
func (r *Recorder) ObserveResult(res domain.ActionResult) {
	r.actions.WithLabelValues(string(res.Kind), string(res.Outcome)).Inc()
	r.attempts.WithLabelValues(string(res.Kind)).Add(float64(res.Attempts))
}

// ObserveBatch records a finished batch
func (r *Recorder) ObserveBatch(kind domain.ActionKind, d time.Duration) {
	r.batches.WithLabelValues(string(kind)).Inc()
	r.batchDuration.WithLabelValues(string(kind)).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
