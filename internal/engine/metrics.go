package engine

import "github.com/prometheus/client_golang/prometheus"

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "xrayd",
			Subsystem: "engine",
			Name:      "requests_total",
			Help:      "Diagnostic requests by outcome",
		},
		[]string{"outcome"},
	)

	requestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "xrayd",
			Subsystem: "engine",
			Name:      "request_duration_seconds",
			Help:      "End-to-end duration of diagnostic requests",
			Buckets:   prometheus.DefBuckets,
		},
	)

	modelRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "xrayd",
			Subsystem: "engine",
			Name:      "model_runs_total",
			Help:      "Per-model inference runs by outcome",
		},
		[]string{"model", "outcome"},
	)

	agreementCount = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "xrayd",
			Subsystem: "engine",
			Name:      "agreement_count",
			Help:      "Models agreeing with the consensus label per request",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 7, 8},
		},
	)
)

func init() {
	prometheus.MustRegister(requestsTotal, requestDuration, modelRunsTotal, agreementCount)
}
