package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds every sfincsrun collector. A dedicated registry keeps the
// textfile output free of Go runtime metrics.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	// --- Run Metrics ---

	// RunsTotal counts finished runs by backend and outcome.
	RunsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sfincsrun",
			Subsystem: "runs",
			Name:      "total",
			Help:      "Total number of simulator runs by backend and outcome",
		},
		[]string{"backend", "outcome"},
	)

	// RunDuration tracks wall-clock simulator run time.
	RunDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sfincsrun",
			Subsystem: "runs",
			Name:      "duration_seconds",
			Help:      "Duration of simulator runs in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 18), // 0.1s to ~3.6h
		},
		[]string{"backend", "outcome"},
	)

	// RunsRejected counts runs that failed before a process was spawned.
	RunsRejected = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sfincsrun",
			Subsystem: "runs",
			Name:      "rejected_total",
			Help:      "Runs that failed before spawning the simulator, by reason",
		},
		[]string{"backend", "reason"},
	)

	// LogLines counts simulator output lines by stream.
	LogLines = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sfincsrun",
			Subsystem: "runs",
			Name:      "log_lines_total",
			Help:      "Simulator output lines written to the run log",
		},
		[]string{"stream"},
	)

	// --- Backend Metrics ---

	// ProbeFailures counts failed availability probes.
	ProbeFailures = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sfincsrun",
			Subsystem: "backend",
			Name:      "probe_failures_total",
			Help:      "Container engine availability probes that failed",
		},
		[]string{"backend"},
	)

	// --- Archive Metrics ---

	// ArchiveEntries counts files written into archives.
	ArchiveEntries = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sfincsrun",
			Subsystem: "archive",
			Name:      "entries_total",
			Help:      "Files written into scenario archives",
		},
	)

	// ArchiveSkipped counts referenced files left out of archives.
	ArchiveSkipped = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sfincsrun",
			Subsystem: "archive",
			Name:      "skipped_total",
			Help:      "Referenced files left out of scenario archives, by reason",
		},
		[]string{"reason"},
	)

	// ArchiveBytes tracks the size of written archives.
	ArchiveBytes = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "sfincsrun",
			Subsystem: "archive",
			Name:      "size_bytes",
			Help:      "Size of written scenario archives",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 12), // 1KiB to ~4GiB
		},
	)

	// --- Publish Metrics ---

	// PublishTotal counts artifact uploads by kind and status.
	PublishTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sfincsrun",
			Subsystem: "publish",
			Name:      "total",
			Help:      "Artifact uploads by kind (log, archive) and status",
		},
		[]string{"kind", "status"},
	)
)

// RecordRun records metrics for a classified run.
func RecordRun(backend, outcome string, durationSeconds float64) {
	RunsTotal.WithLabelValues(backend, outcome).Inc()
	RunDuration.WithLabelValues(backend, outcome).Observe(durationSeconds)
}

// RecordPublish records one artifact upload attempt.
func RecordPublish(kind string, err error) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	PublishTotal.WithLabelValues(kind, status).Inc()
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}
