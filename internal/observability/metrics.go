package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "well_risk"

// Metrics holds the Prometheus counters, histograms, and gauges for the risk pipeline.
type Metrics struct {
	Locations       *prometheus.CounterVec // labels: outcome={success,fetch_failed,classify_failed}
	FetchDuration   prometheus.Histogram
	Assessments     *prometheus.CounterVec // labels: tier={Low,Medium,High}
	HistoryWrites   *prometheus.CounterVec // labels: outcome={success,error}
	PublishErrors   prometheus.Counter
	PipelineRunning prometheus.Gauge
	LastSuccess     prometheus.Gauge
	RunDuration     prometheus.Histogram

	// Rainfall cache metrics.
	CacheLookups *prometheus.CounterVec // labels: result={hit,miss}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.Locations,
		m.FetchDuration,
		m.Assessments,
		m.HistoryWrites,
		m.PublishErrors,
		m.PipelineRunning,
		m.LastSuccess,
		m.RunDuration,
		m.CacheLookups,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Locations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "locations_total",
			Help:      "Locations processed by outcome.",
		}, []string{"outcome"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of one rainfall fetch from the remote source.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		Assessments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assessments_total",
			Help:      "Risk assessments produced by tier.",
		}, []string{"tier"}),
		HistoryWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_writes_total",
			Help:      "History append attempts by outcome.",
		}, []string{"outcome"}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Failed attempts to publish assessments to downstream sinks.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a run is in progress, 0 otherwise.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that persisted at least one assessment.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete catalog run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rainfall_cache_total",
			Help:      "Rainfall cache lookups by result.",
		}, []string{"result"}),
	}
}
