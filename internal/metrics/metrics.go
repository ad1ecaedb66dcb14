// Package metrics exposes process counters on the query server's /metrics
// endpoint. The aggregation table itself is served as a document; these
// counters cover the machinery around it.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	FramesTotal      prometheus.Counter
	ClassifyFailures *prometheus.CounterVec
	ObservedBytes    prometheus.Counter
	PersistTotal     prometheus.Counter
	PersistSeconds   prometheus.Histogram
	QueriesTotal     prometheus.Counter
}

// New registers the counters on the given registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		FramesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "whoisthere",
			Name:      "frames_total",
			Help:      "Frames pulled from the capture handle.",
		}),
		ClassifyFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "whoisthere",
			Name:      "classify_failures_total",
			Help:      "Frames dropped by the classifier, by reason.",
		}, []string{"reason"}),
		ObservedBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "whoisthere",
			Name:      "observed_bytes_total",
			Help:      "Sum of declared lengths folded into the table.",
		}),
		PersistTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "whoisthere",
			Name:      "persist_total",
			Help:      "Completed state file replacements.",
		}),
		PersistSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "whoisthere",
			Name:      "persist_duration_seconds",
			Help:      "Wall time of one state file replacement.",
			Buckets:   prometheus.DefBuckets,
		}),
		QueriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "whoisthere",
			Name:      "queries_total",
			Help:      "Snapshot queries answered.",
		}),
	}
}
