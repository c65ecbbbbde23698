package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for ingestion and insight processing.
type Metrics struct {
	// Processing metrics
	OutcomesTotal     *prometheus.CounterVec
	ExtractionSeconds prometheus.Histogram
	BatchRunsTotal    *prometheus.CounterVec

	// Ingestion metrics
	IngestedRowsTotal *prometheus.CounterVec
}

// New registers the collectors on reg. A nil reg uses a private registry,
// which keeps tests from colliding on the default one.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		OutcomesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insights_outcomes_total",
				Help: "Per-client processing outcomes",
			},
			[]string{"status", "kind"},
		),
		ExtractionSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "insights_extraction_seconds",
				Help:    "Latency of the generative extraction call",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 15, 30, 60},
			},
		),
		BatchRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insights_batch_runs_total",
				Help: "Batch runs by result",
			},
			[]string{"result"},
		),
		IngestedRowsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insights_ingested_rows_total",
				Help: "Dataset rows by ingestion result",
			},
			[]string{"result"},
		),
	}
}

// Nop returns metrics registered on a throwaway registry.
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}
