// Package metrics counts decode outcomes on a private prometheus registry and
// writes them in the node_exporter textfile format.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/eunmann/xlog-decoder/pkg/decode"
)

const namespace = "xlog_decode"

// Result label values for FilesTotal.
const (
	ResultOK      = "ok"
	ResultFailed  = "failed"
	ResultAborted = "aborted"
)

// Decoder holds the counters of one run. The zero value is not usable; use New.
type Decoder struct {
	registry *prometheus.Registry

	files        *prometheus.CounterVec
	records      prometheus.Counter
	resyncs      prometheus.Counter
	gaps         prometheus.Counter
	skippedBytes prometheus.Counter
	inputBytes   prometheus.Counter
	outputBytes  prometheus.Counter
	duration     prometheus.Histogram
}

// New registers a fresh set of decode metrics.
func New() *Decoder {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		})
	}

	d := &Decoder{
		registry: prometheus.NewRegistry(),
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_total",
			Help:      "Input files processed, by result.",
		}, []string{"result"}),
		records:      counter("records_total", "Records decoded."),
		resyncs:      counter("resyncs_total", "Resynchronizations after corrupt bytes."),
		gaps:         counter("sequence_gaps_total", "Sequence gaps detected."),
		skippedBytes: counter("skipped_bytes_total", "Input bytes skipped while resynchronizing."),
		inputBytes:   counter("input_bytes_total", "Input bytes read."),
		outputBytes:  counter("output_bytes_total", "Plaintext bytes written."),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "file_duration_seconds",
			Help:      "Time to decode and write one file.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}

	d.registry.MustRegister(
		d.files, d.records, d.resyncs, d.gaps,
		d.skippedBytes, d.inputBytes, d.outputBytes, d.duration,
	)
	return d
}

// ObserveFile records a finished file.
func (d *Decoder) ObserveFile(stats decode.Stats, aborted bool, took time.Duration) {
	result := ResultOK
	if aborted {
		result = ResultAborted
	}
	d.files.WithLabelValues(result).Inc()
	d.records.Add(float64(stats.Records))
	d.resyncs.Add(float64(stats.Resyncs))
	d.gaps.Add(float64(stats.SequenceGaps))
	d.skippedBytes.Add(float64(stats.SkippedBytes))
	d.inputBytes.Add(float64(stats.BytesIn))
	d.outputBytes.Add(float64(stats.BytesOut))
	d.duration.Observe(took.Seconds())
}

// ObserveFailure records a file that produced no output.
func (d *Decoder) ObserveFailure(took time.Duration) {
	d.files.WithLabelValues(ResultFailed).Inc()
	d.duration.Observe(took.Seconds())
}

// Registry exposes the underlying registry, e.g. for tests or an HTTP handler.
func (d *Decoder) Registry() *prometheus.Registry {
	return d.registry
}

// WriteTextfile atomically writes all metrics to path.
func (d *Decoder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, d.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
