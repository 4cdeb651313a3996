// Package metrics counts transcode jobs for export in the Prometheus text
// format. The CLI is short-lived, so metrics are written to a file for the
// node_exporter textfile collector rather than served over HTTP.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

// Job metrics
var (
	JobsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opusify_jobs_total",
			Help: "Total number of transcode jobs by final status",
		},
		[]string{"status"},
	)

	JobDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "opusify_job_duration_seconds",
			Help:    "Wall time of transcode jobs in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	JobsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "opusify_jobs_in_flight",
			Help: "Number of transcode jobs currently running",
		},
	)
)

// Pipeline metrics
var (
	EncodedSamplesTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "opusify_encoded_samples_total",
			Help: "Total number of samples per channel handed to the encoder",
		},
	)

	PacketsWrittenTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "opusify_packets_written_total",
			Help: "Total number of encoded packets written to output containers",
		},
	)

	EncodedAudioSeconds = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "opusify_encoded_audio_seconds_total",
			Help: "Total duration of encoded audio in seconds",
		},
	)
)

// WriteTextfile writes every registered metric to path atomically.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}
