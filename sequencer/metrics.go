package sequencer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the prometheus metrics of the engine and its driving loop.
type Metrics struct {
	// Iterations counts completed iterations.
	Iterations prometheus.Counter

	// RuleFirings counts firings by rule number (1-based, declaration order).
	RuleFirings *prometheus.CounterVec

	// IterationDuration measures one Iterate call.
	IterationDuration prometheus.Histogram

	// DroppedNotes counts notes rejected at the render boundary.
	DroppedNotes prometheus.Counter
}

// NewMetrics creates the metrics and registers them with reg. A nil reg
// leaves them unregistered, which tests rely on.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Iterations: f.NewCounter(prometheus.CounterOpts{
			Namespace: "celltone",
			Subsystem: "engine",
			Name:      "iterations_total",
			Help:      "Completed engine iterations",
		}),
		RuleFirings: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "celltone",
			Subsystem: "engine",
			Name:      "rule_firings_total",
			Help:      "Rule firings by rule number",
		}, []string{"rule"}),
		IterationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "celltone",
			Subsystem: "engine",
			Name:      "iteration_duration_seconds",
			Help:      "Time spent in one iteration",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		DroppedNotes: f.NewCounter(prometheus.CounterOpts{
			Namespace: "celltone",
			Subsystem: "render",
			Name:      "dropped_notes_total",
			Help:      "Notes dropped because pitch, velocity or channel was out of range",
		}),
	}
}
