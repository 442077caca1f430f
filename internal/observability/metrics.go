package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters and histograms for ingestion and analysis.
type Metrics struct {
	IngestRuns       *prometheus.CounterVec // labels: outcome={success,skipped,error}
	IngestDuration   prometheus.Histogram
	ReadingsFetched  prometheus.Counter
	ReadingsInserted prometheus.Counter

	ProviderRequests *prometheus.CounterVec // labels: provider, outcome={success,error}
	AnalysisRequests *prometheus.CounterVec // labels: kind={season,viability,performance}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.IngestRuns,
		m.IngestDuration,
		m.ReadingsFetched,
		m.ReadingsInserted,
		m.ProviderRequests,
		m.AnalysisRequests,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		IngestRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wine_regions",
			Name:      "ingest_runs_total",
			Help:      "Ingestion passes by outcome.",
		}, []string{"outcome"}),
		IngestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wine_regions",
			Name:      "ingest_duration_seconds",
			Help:      "Duration of a complete ingestion pass.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		ReadingsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wine_regions",
			Name:      "readings_fetched_total",
			Help:      "Daily readings received from the climate provider.",
		}),
		ReadingsInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wine_regions",
			Name:      "readings_inserted_total",
			Help:      "Daily readings newly persisted (duplicates excluded).",
		}),
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wine_regions",
			Name:      "provider_requests_total",
			Help:      "Batched climate provider fetches by provider and outcome.",
		}, []string{"provider", "outcome"}),
		AnalysisRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wine_regions",
			Name:      "analysis_requests_total",
			Help:      "Analysis requests by kind.",
		}, []string{"kind"}),
	}
}
