package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// feature pipeline and inference runs.
type Metrics struct {
	PipelineRunning prometheus.Gauge

	// Extraction metrics.
	RowsExtracted   *prometheus.CounterVec   // labels: source={entsoe,open_meteo,csv_cache}, zone
	ExtractRetries  *prometheus.CounterVec   // labels: source
	ExtractDuration *prometheus.HistogramVec // labels: source

	// Load and validation metrics.
	RowsLoaded         *prometheus.CounterVec // labels: group={weather_open_meteo,prices_generation,physical_flow,model_data,predictions}
	ValidationFailures *prometheus.CounterVec // labels: group, column

	StageDuration        *prometheus.HistogramVec // labels: stage={extract,transform,validate,load,join}
	PredictionsPublished prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "crossflow",
			Name:      "pipeline_running",
			Help:      "1 when a pipeline run is active, 0 when idle.",
		}),
		RowsExtracted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crossflow",
			Name:      "rows_extracted_total",
			Help:      "Rows pulled from an upstream source, by source and zone.",
		}, []string{"source", "zone"}),
		ExtractRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crossflow",
			Name:      "extract_retries_total",
			Help:      "Extraction attempts that failed and were retried, by source.",
		}, []string{"source"}),
		ExtractDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "crossflow",
			Name:      "extract_duration_seconds",
			Help:      "Upstream request duration in seconds, by source.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),
		RowsLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crossflow",
			Name:      "rows_loaded_total",
			Help:      "Rows upserted into a feature group, by group.",
		}, []string{"group"}),
		ValidationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crossflow",
			Name:      "validation_failures_total",
			Help:      "Validation predicate violations, by feature group and column.",
		}, []string{"group", "column"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "crossflow",
			Name:      "stage_duration_seconds",
			Help:      "Duration of a pipeline stage in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"stage"}),
		PredictionsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crossflow",
			Name:      "predictions_published_total",
			Help:      "Prediction records published to the Kafka topic.",
		}),
	}

	prometheus.MustRegister(
		m.PipelineRunning,
		m.RowsExtracted,
		m.ExtractRetries,
		m.ExtractDuration,
		m.RowsLoaded,
		m.ValidationFailures,
		m.StageDuration,
		m.PredictionsPublished,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		PipelineRunning:      prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "crossflow", Name: "pipeline_running"}),
		RowsExtracted:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "crossflow", Name: "rows_extracted_total"}, []string{"source", "zone"}),
		ExtractRetries:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "crossflow", Name: "extract_retries_total"}, []string{"source"}),
		ExtractDuration:      prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "crossflow", Name: "extract_duration_seconds"}, []string{"source"}),
		RowsLoaded:           prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "crossflow", Name: "rows_loaded_total"}, []string{"group"}),
		ValidationFailures:   prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "crossflow", Name: "validation_failures_total"}, []string{"group", "column"}),
		StageDuration:        prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "crossflow", Name: "stage_duration_seconds"}, []string{"stage"}),
		PredictionsPublished: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "crossflow", Name: "predictions_published_total"}),
	}
}
