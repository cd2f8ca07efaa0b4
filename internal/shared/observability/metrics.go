package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	IndexBuildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nsresolve_index_build_seconds",
		Help:    "Time spent building or refreshing the namespace index.",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})

	IndexClasses = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nsresolve_index_classes_total",
		Help: "Number of distinct short class names in the namespace index.",
	})

	IndexFiles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nsresolve_index_files_total",
		Help: "Number of files tracked by the namespace index.",
	})

	IndexFileErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nsresolve_index_file_errors_total",
		Help: "Per-file read or stat failures swallowed while indexing.",
	}, []string{"stage"})

	IndexPersistTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nsresolve_index_persist_total",
		Help: "Persisted index writes by outcome.",
	}, []string{"outcome"})

	DiagnosticsDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nsresolve_diagnostics_seconds",
		Help:    "Time spent computing diagnostics for one document.",
		Buckets: prometheus.DefBuckets,
	})

	DiagnosticsStaleTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nsresolve_diagnostics_stale_total",
		Help: "Diagnostic computations discarded because the document or index moved on.",
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nsresolve_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	ResolveTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nsresolve_resolve_total",
		Help: "Class resolutions by where the first candidate came from.",
	}, []string{"source"})
)
