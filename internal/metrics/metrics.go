package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all Prometheus metrics. A nil *Registry is valid and
// records nothing.
type Registry struct {
	*prometheus.Registry

	entriesTotal     *prometheus.CounterVec
	compressInFlight prometheus.Gauge
	compressDuration prometheus.Histogram
	archivesTotal    *prometheus.CounterVec
	archiveDuration  prometheus.Histogram
	bytesTotal       *prometheus.CounterVec
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		entriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "comicshrink_entries_total",
				Help: "Total number of archive entries processed",
			},
			[]string{"kind", "result"},
		),

		compressInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "comicshrink_compress_in_flight",
				Help: "Number of image re-encodes currently running",
			},
		),

		compressDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "comicshrink_compress_duration_seconds",
				Help:    "Time spent re-encoding one image",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),

		archivesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "comicshrink_archives_total",
				Help: "Total number of archives processed",
			},
			[]string{"status"},
		),

		archiveDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "comicshrink_archive_duration_seconds",
				Help:    "Time spent processing one archive",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
		),

		bytesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "comicshrink_bytes_total",
				Help: "Archive bytes read and written",
			},
			[]string{"direction"},
		),
	}

	reg.MustRegister(r.entriesTotal)
	reg.MustRegister(r.compressInFlight)
	reg.MustRegister(r.compressDuration)
	reg.MustRegister(r.archivesTotal)
	reg.MustRegister(r.archiveDuration)
	reg.MustRegister(r.bytesTotal)

	return r
}

// RecordEntry records one completed leaf. kind is "image" or "opaque";
// result is "recompressed", "copied" or "fallback".
func (r *Registry) RecordEntry(kind, result string) {
	if r == nil {
		return
	}
	r.entriesTotal.WithLabelValues(kind, result).Inc()
}

// CompressStarted increments the in-flight re-encode gauge.
func (r *Registry) CompressStarted() {
	if r == nil {
		return
	}
	r.compressInFlight.Inc()
}

// CompressFinished decrements the in-flight gauge and observes the duration.
func (r *Registry) CompressFinished(seconds float64) {
	if r == nil {
		return
	}
	r.compressInFlight.Dec()
	r.compressDuration.Observe(seconds)
}

// RecordArchive records one archive outcome with its byte counts.
func (r *Registry) RecordArchive(status string, seconds float64, inBytes, outBytes int64) {
	if r == nil {
		return
	}
	r.archivesTotal.WithLabelValues(status).Inc()
	r.archiveDuration.Observe(seconds)
	r.bytesTotal.WithLabelValues("in").Add(float64(inBytes))
	r.bytesTotal.WithLabelValues("out").Add(float64(outBytes))
}

// RecordSkipped counts an archive the batch left alone.
func (r *Registry) RecordSkipped() {
	if r == nil {
		return
	}
	r.archivesTotal.WithLabelValues("skipped").Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.Registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the registry to path for the node exporter textfile
// collector.
func (r *Registry) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.Registry)
}
