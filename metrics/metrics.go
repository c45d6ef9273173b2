// Package metrics exposes Guardian's tick-level instrumentation as
// Prometheus metrics via promauto/promhttp. The teacher's engine/metrics.go
// hand-wrote the Prometheus text exposition format directly; Guardian uses
// the client_golang registry instead so counters and gauges are collected,
// typed, and exported the idiomatic way.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hostguardian/guardian/model"
)

// Recorder implements guardian.Metrics against a dedicated Prometheus
// registry, so Guardian's metrics never collide with anything else a host
// process might also register.
type Recorder struct {
	registry *prometheus.Registry

	ticksTotal         prometheus.Counter
	anomaliesTotal     *prometheus.CounterVec
	verdictsTotal      *prometheus.CounterVec
	confirmationsTotal prometheus.Counter
	postureState       prometheus.Gauge
	postureIntensity   prometheus.Gauge
	learningProgress   prometheus.Gauge
}

// New creates a Recorder with its own registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		registry: reg,
		ticksTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "guardian",
			Name:      "ticks_total",
			Help:      "Total number of analysis ticks processed.",
		}),
		anomaliesTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "guardian",
			Name:      "anomalies_total",
			Help:      "Total anomalies detected, by type.",
		}, []string{"type"}),
		verdictsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "guardian",
			Name:      "verdicts_total",
			Help:      "Total verdicts emitted, by intervention level.",
		}, []string{"level"}),
		confirmationsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "guardian",
			Name:      "confirmation_requests_total",
			Help:      "Total Request-Confirmation-level prompts raised.",
		}),
		postureState: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: "guardian",
			Name:      "posture_state",
			Help:      "Current global host posture (0=Calm .. 4=Critical).",
		}),
		postureIntensity: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: "guardian",
			Name:      "posture_intensity",
			Help:      "Current posture intensity, 0-100.",
		}),
		learningProgress: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: "guardian",
			Name:      "learning_progress_percent",
			Help:      "Baseline learning-phase progress, 0-100.",
		}),
	}
	return r
}

// ObserveTick implements guardian.Metrics.
func (r *Recorder) ObserveTick() { r.ticksTotal.Inc() }

// ObserveAnomaly implements guardian.Metrics.
func (r *Recorder) ObserveAnomaly(t model.AnomalyType) {
	r.anomaliesTotal.WithLabelValues(t.String()).Inc()
}

// ObserveVerdict implements guardian.Metrics.
func (r *Recorder) ObserveVerdict(level model.InterventionLevel) {
	r.verdictsTotal.WithLabelValues(level.String()).Inc()
}

// ObserveConfirmationRequest implements guardian.Metrics.
func (r *Recorder) ObserveConfirmationRequest() { r.confirmationsTotal.Inc() }

// SetPosture implements guardian.Metrics.
func (r *Recorder) SetPosture(state model.GlobalState) {
	r.postureState.Set(float64(state.State))
	r.postureIntensity.Set(float64(state.Intensity))
	r.learningProgress.Set(float64(state.LearningProgress))
}

// Handler returns an http.Handler serving this Recorder's registry in
// Prometheus text exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
