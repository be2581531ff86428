package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "compost_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the sensor pipeline.
type Metrics struct {
	Polls           *prometheus.CounterVec // labels: outcome={success,error}
	PollDuration    prometheus.Histogram
	PipelineRunning prometheus.Gauge

	// Telemetry server requests.
	FetchRequests *prometheus.CounterVec // labels: outcome={success,error}
	FetchDuration prometheus.Histogram

	// Derivation.
	RowsFetched prometheus.Counter
	RowsDropped prometheus.Counter

	// Reading sink.
	ReadingsPublished prometheus.Counter
	PublishErrors     prometheus.Counter

	// Latest reading.
	MethanePPM      prometheus.Gauge
	HumidityPercent prometheus.Gauge
	SensorTempC     prometheus.Gauge
	ExternalTempC   prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.Polls,
		m.PollDuration,
		m.PipelineRunning,
		m.FetchRequests,
		m.FetchDuration,
		m.RowsFetched,
		m.RowsDropped,
		m.ReadingsPublished,
		m.PublishErrors,
		m.MethanePPM,
		m.HumidityPercent,
		m.SensorTempC,
		m.ExternalTempC,
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
		Polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Poll cycles by outcome.",
		}, []string{"outcome"}),
		PollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Duration of a complete fetch-derive-store-publish cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_requests_total",
			Help:      "Telemetry server requests by outcome.",
		}, []string{"outcome"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Telemetry server request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		RowsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_fetched_total",
			Help:      "Total telemetry rows received from the server.",
		}),
		RowsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_dropped_total",
			Help:      "Total telemetry rows dropped as malformed.",
		}),
		ReadingsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_published_total",
			Help:      "Total derived readings written to the sink topic.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Total failed sink writes.",
		}),
		MethanePPM: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "methane_ppm",
			Help:      "Methane concentration of the newest reading.",
		}),
		HumidityPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "humidity_percent",
			Help:      "Humidity of the newest reading.",
		}),
		SensorTempC: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sensor_temperature_celsius",
			Help:      "Compost temperature of the newest reading.",
		}),
		ExternalTempC: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "external_temperature_celsius",
			Help:      "External temperature of the newest reading.",
		}),
	}
}
