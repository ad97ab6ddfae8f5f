// Package metrics provides Prometheus metrics collection for the engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for costgate.
type Collector struct {
	// Store metrics
	ObservationsAppended *prometheus.CounterVec

	// Spike metrics
	SpikesDetected     *prometheus.CounterVec
	SpikeCheckDuration prometheus.Histogram

	// Estimator metrics
	EstimateFallbacks *prometheus.CounterVec

	// Executor metrics
	ExecutorAttempts *prometheus.CounterVec
	ExecutorOutcomes *prometheus.CounterVec
}

// New creates a new metrics collector with all metrics registered on the
// default registry.
func New() *Collector {
	return NewWithRegistry(nil)
}

// NewWithRegistry registers metrics on the given registry (tests pass their
// own to avoid duplicate registration). A nil registry uses the default.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	if reg == nil {
		factory = promauto.With(prometheus.DefaultRegisterer)
	}

	return &Collector{
		ObservationsAppended: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "costgate",
				Name:      "observations_appended_total",
				Help:      "Price observations appended to the store",
			},
			[]string{"service", "source"},
		),
		SpikesDetected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "costgate",
				Name:      "spikes_detected_total",
				Help:      "Price spikes detected, by severity",
			},
			[]string{"severity"},
		),
		SpikeCheckDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "costgate",
				Name:      "spike_check_duration_seconds",
				Help:      "Duration of full spike checks",
				Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
			},
		),
		EstimateFallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "costgate",
				Name:      "estimate_static_fallbacks_total",
				Help:      "Cost estimates that fell back to static tier pricing",
			},
			[]string{"tier", "side"},
		),
		ExecutorAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "costgate",
				Name:      "executor_attempts_total",
				Help:      "Fallback executor attempts, by tier and outcome",
			},
			[]string{"tier", "outcome"},
		),
		ExecutorOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "costgate",
				Name:      "executor_requests_total",
				Help:      "Fallback executor terminal outcomes",
			},
			[]string{"result"},
		),
	}
}
