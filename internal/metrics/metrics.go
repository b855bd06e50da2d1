// Package metrics exposes Prometheus collectors for enrichment runs.
package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Record outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

var (
	recordsTotal              *prometheus.CounterVec
	attachmentsTotal          *prometheus.CounterVec
	checkpointFlushesTotal    prometheus.Counter
	runsTotal                 *prometheus.CounterVec
	extractionDurationSeconds prometheus.Histogram
	navigationDelaySeconds    prometheus.Histogram
	pendingRecords            prometheus.Gauge
	lastRunTimestampSeconds   prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		recordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enricher_records_total",
				Help: "Records visited, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		attachmentsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enricher_attachments_total",
				Help: "Attachment downloads, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		checkpointFlushesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "enricher_checkpoint_flushes_total",
				Help: "Full table writes to durable storage.",
			},
		)

		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enricher_runs_total",
				Help: "Pipeline runs, labeled by final state.",
			},
			[]string{"state"},
		)

		extractionDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "enricher_extraction_duration_seconds",
				Help:    "Time spent navigating and extracting one record.",
				Buckets: []float64{0.5, 1, 2, 5, 7, 10, 20, 30},
			},
		)

		navigationDelaySeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "enricher_navigation_delay_seconds",
				Help:    "Histogram of navigation pacing waits.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
			},
		)

		pendingRecords = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "enricher_pending_records",
				Help: "Records still lacking a tracking value at the start of the run.",
			},
		)

		lastRunTimestampSeconds = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "enricher_last_run_timestamp_seconds",
				Help: "Unix time the last run finished.",
			},
		)
	})
}

// ObserveRecord increments the record counter for outcome.
func ObserveRecord(outcome string) {
	Init()
	recordsTotal.WithLabelValues(outcome).Inc()
}

// ObserveAttachment increments the attachment counter.
func ObserveAttachment(ok bool) {
	Init()
	outcome := OutcomeCompleted
	if !ok {
		outcome = OutcomeFailed
	}
	attachmentsTotal.WithLabelValues(outcome).Inc()
}

// ObserveFlush counts one checkpoint write.
func ObserveFlush() {
	Init()
	checkpointFlushesTotal.Inc()
}

// ObserveExtraction records how long one record took to extract.
func ObserveExtraction(d time.Duration) {
	Init()
	extractionDurationSeconds.Observe(d.Seconds())
}

// ObserveNavigationDelay records the duration of a pacing wait.
func ObserveNavigationDelay(d time.Duration) {
	Init()
	navigationDelaySeconds.Observe(d.Seconds())
}

// SetPending publishes the pending count seen at selection time.
func SetPending(n int) {
	Init()
	pendingRecords.Set(float64(n))
}

// ObserveRun counts a finished run and stamps its completion time.
func ObserveRun(state string, finished time.Time) {
	Init()
	runsTotal.WithLabelValues(state).Inc()
	lastRunTimestampSeconds.Set(float64(finished.Unix()))
}

// WriteTextfile dumps the default registry in the node exporter textfile format.
func WriteTextfile(path string) error {
	Init()
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
