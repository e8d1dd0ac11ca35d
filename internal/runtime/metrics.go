package runtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's instrumentation. A nil-safe constructor
// with a private registry is used in tests.
type Metrics struct {
	EventsTotal     *prometheus.CounterVec
	Matches         prometheus.Counter
	NoMatches       prometheus.Counter
	Dispatches      prometheus.Counter
	DispatchErrors  prometheus.Counter
	Terminations    prometheus.Counter
	ControlOps      *prometheus.CounterVec
	ActiveThreds    prometheus.Gauge
	ConsiderSeconds prometheus.Histogram
}

// NewMetrics registers the engine collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weft",
			Name:      "events_total",
			Help:      "Inbound events by kind (pattern, control).",
		}, []string{"kind"}),
		Matches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "weft",
			Name:      "matches_total",
			Help:      "Reaction conditions matched.",
		}),
		NoMatches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "weft",
			Name:      "no_matches_total",
			Help:      "Events consumed without a state change.",
		}),
		Dispatches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "weft",
			Name:      "dispatches_total",
			Help:      "Messages handed to the outbound sink.",
		}),
		DispatchErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "weft",
			Name:      "dispatch_errors_total",
			Help:      "Publish failures (best effort, state already committed).",
		}),
		Terminations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "weft",
			Name:      "terminations_total",
			Help:      "Threds terminated, by $terminate or administratively.",
		}),
		ControlOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weft",
			Name:      "control_ops_total",
			Help:      "Administrative operations by op and status.",
		}, []string{"op", "status"}),
		ActiveThreds: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "weft",
			Name:      "active_threds",
			Help:      "Threds currently active.",
		}),
		ConsiderSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "weft",
			Name:      "consider_seconds",
			Help:      "Duration of a full consider cascade.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// newTestMetrics returns metrics bound to a throwaway registry.
func newTestMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
