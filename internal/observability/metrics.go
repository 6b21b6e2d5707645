package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// curation pipeline.
type Metrics struct {
	RunsTotal         *prometheus.CounterVec // labels: outcome={success,extract_error,curation_error,load_error}
	RowsExtracted     prometheus.Counter
	RowsCurated       prometheus.Counter
	RowsDropped       prometheus.Counter
	EventsPublished   prometheus.Counter
	UnclassifiedTypes prometheus.Counter
	ValuesImputed     *prometheus.CounterVec // labels: column

	SnapshotSize prometheus.Histogram
	RunDuration  prometheus.Histogram

	PipelineRunning prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "disaster_curation",
			Name:      "runs_total",
			Help:      "Curation runs by outcome.",
		}, []string{"outcome"}),
		RowsExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "disaster_curation",
			Name:      "rows_extracted_total",
			Help:      "Total raw rows read from the dataset snapshot.",
		}),
		RowsCurated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "disaster_curation",
			Name:      "rows_curated_total",
			Help:      "Total rows surviving all curation stages.",
		}),
		RowsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "disaster_curation",
			Name:      "rows_dropped_total",
			Help:      "Total rows dropped by year bounds or drop_row strategies.",
		}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "disaster_curation",
			Name:      "events_published_total",
			Help:      "Total curated events written to the sink topic.",
		}),
		UnclassifiedTypes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "disaster_curation",
			Name:      "unclassified_types_total",
			Help:      "Total rows whose disaster type fell outside the taxonomy.",
		}),
		ValuesImputed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "disaster_curation",
			Name:      "values_imputed_total",
			Help:      "Imputed cells by column.",
		}, []string{"column"}),
		SnapshotSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "disaster_curation",
			Name:      "snapshot_size_rows",
			Help:      "Number of raw rows per extracted snapshot.",
			Buckets:   []float64{100, 500, 1000, 5000, 10000, 20000, 50000},
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "disaster_curation",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete extract-curate-load run.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "disaster_curation",
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
	}

	prometheus.MustRegister(
		m.RunsTotal,
		m.RowsExtracted,
		m.RowsCurated,
		m.RowsDropped,
		m.EventsPublished,
		m.UnclassifiedTypes,
		m.ValuesImputed,
		m.SnapshotSize,
		m.RunDuration,
		m.PipelineRunning,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		RunsTotal:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "disaster_curation", Name: "runs_total"}, []string{"outcome"}),
		RowsExtracted:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "disaster_curation", Name: "rows_extracted_total"}),
		RowsCurated:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: "disaster_curation", Name: "rows_curated_total"}),
		RowsDropped:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: "disaster_curation", Name: "rows_dropped_total"}),
		EventsPublished:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "disaster_curation", Name: "events_published_total"}),
		UnclassifiedTypes: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "disaster_curation", Name: "unclassified_types_total"}),
		ValuesImputed:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "disaster_curation", Name: "values_imputed_total"}, []string{"column"}),
		SnapshotSize:      prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "disaster_curation", Name: "snapshot_size_rows"}),
		RunDuration:       prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "disaster_curation", Name: "run_duration_seconds"}),
		PipelineRunning:   prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "disaster_curation", Name: "pipeline_running"}),
	}
}
