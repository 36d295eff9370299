// Package metrics exposes Prometheus instrumentation for the sensor
// service. All methods tolerate a nil receiver so callers can run
// without metrics in tests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	readingsGenerated prometheus.Counter
	uploadsTotal      *prometheus.CounterVec
	uploadDuration    prometheus.Histogram
	sinkErrors        *prometheus.CounterVec
	advertising       prometheus.Gauge
	connected         prometheus.Gauge
}

// New registers the service collectors on the default registry.
func New() *Metrics {
	m := &Metrics{
		readingsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sensorsim_readings_generated_total",
			Help: "Total readings produced by the simulator.",
		}),
		uploadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sensorsim_uploads_total",
			Help: "Total upload attempts by outcome (synced, network, timeout).",
		}, []string{"outcome"}),
		uploadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sensorsim_upload_duration_seconds",
			Help:    "Histogram of collector upload durations.",
			Buckets: prometheus.DefBuckets,
		}),
		sinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sensorsim_sink_errors_total",
			Help: "Total broker sink publish failures by sink.",
		}, []string{"sink"}),
		advertising: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sensorsim_advertising",
			Help: "Whether the simulated sensor is advertising (0/1).",
		}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sensorsim_connected",
			Help: "Whether the simulated sensor is connected (0/1).",
		}),
	}

	prometheus.MustRegister(
		m.readingsGenerated,
		m.uploadsTotal,
		m.uploadDuration,
		m.sinkErrors,
		m.advertising,
		m.connected,
	)
	return m
}

// Handler serves the scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}

func (m *Metrics) ReadingGenerated() {
	if m == nil {
		return
	}
	m.readingsGenerated.Inc()
}

func (m *Metrics) UploadResult(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.uploadsTotal.WithLabelValues(outcome).Inc()
	m.uploadDuration.Observe(duration.Seconds())
}

func (m *Metrics) SinkError(sink string) {
	if m == nil {
		return
	}
	m.sinkErrors.WithLabelValues(sink).Inc()
}

func (m *Metrics) SetState(advertising, connected bool) {
	if m == nil {
		return
	}
	m.advertising.Set(boolGauge(advertising))
	m.connected.Set(boolGauge(connected))
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
