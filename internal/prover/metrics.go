package prover

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the prover's prometheus collectors
type Metrics struct {
	headers  prometheus.Counter
	runs     *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewMetrics registers the collectors with reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		headers: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "headerproof",
			Name:      "headers_validated_total",
			Help:      "Headers that passed every consensus check",
		}),
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "headerproof",
			Name:      "runs_total",
			Help:      "Validation runs by outcome",
		}, []string{"outcome"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "headerproof",
			Name:      "run_duration_seconds",
			Help:      "Duration of validation runs",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
}
