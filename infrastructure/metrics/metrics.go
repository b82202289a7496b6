// Package metrics provides Prometheus counters for compression batches.
//
// The CLI has no long-running HTTP server, so the counters live on a
// private registry and are written out in the textfile exposition format
// for node_exporter to pick up.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder collects pipeline metrics
type Recorder struct {
	registry *prometheus.Registry

	filesProcessed      *prometheus.CounterVec
	bytesSaved          prometheus.Counter
	bytesUploaded       prometheus.Counter
	compressionFailures *prometheus.CounterVec
	fallbacks           *prometheus.CounterVec
	batches             *prometheus.CounterVec
	batchDuration       *prometheus.HistogramVec
}

// NewRecorder creates a recorder with its own registry
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),

		filesProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "drive_media_files_processed_total",
				Help: "Files that reached a terminal status, by operation, status and strategy",
			},
			[]string{"operation", "status", "strategy"},
		),
		bytesSaved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "drive_media_bytes_saved_total",
				Help: "Bytes saved by compression across completed files",
			},
		),
		bytesUploaded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "drive_media_bytes_uploaded_total",
				Help: "Bytes uploaded to Drive",
			},
		),
		compressionFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "drive_media_compression_failures_total",
				Help: "Compressor failures that fell back to the original bytes",
			},
			[]string{"strategy"},
		),
		fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "drive_media_fetch_fallbacks_total",
				Help: "Media fetches served by a fallback source",
			},
			[]string{"source"},
		),
		batches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "drive_media_batches_total",
				Help: "Finished batches by operation and result",
			},
			[]string{"operation", "result"},
		),
		batchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "drive_media_batch_duration_seconds",
				Help:    "Batch wall-clock duration in seconds",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
			[]string{"operation"},
		),
	}

	r.registry.MustRegister(
		r.filesProcessed,
		r.bytesSaved,
		r.bytesUploaded,
		r.compressionFailures,
		r.fallbacks,
		r.batches,
		r.batchDuration,
	)
	return r
}

// FileProcessed records a file reaching a terminal status
func (r *Recorder) FileProcessed(operation, status, strategy string) {
	r.filesProcessed.WithLabelValues(operation, status, strategy).Inc()
}

// BytesSaved adds to the saved-bytes counter; non-positive values are ignored
func (r *Recorder) BytesSaved(n int64) {
	if n > 0 {
		r.bytesSaved.Add(float64(n))
	}
}

// BytesUploaded adds to the uploaded-bytes counter
func (r *Recorder) BytesUploaded(n int64) {
	if n > 0 {
		r.bytesUploaded.Add(float64(n))
	}
}

// CompressionFailed records a compressor failure
func (r *Recorder) CompressionFailed(strategy string) {
	r.compressionFailures.WithLabelValues(strategy).Inc()
}

// FallbackUsed records a fetch served by a fallback source
func (r *Recorder) FallbackUsed(source string) {
	r.fallbacks.WithLabelValues(source).Inc()
}

// BatchFinished records the end of a batch
func (r *Recorder) BatchFinished(operation, result string, seconds float64) {
	r.batches.WithLabelValues(operation, result).Inc()
	r.batchDuration.WithLabelValues(operation).Observe(seconds)
}

// Registry exposes the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile writes all metrics to path in the text exposition format
func (r *Recorder) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
