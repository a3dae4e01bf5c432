package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	TokenizeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nsref_tokenize_seconds",
		Help:    "Time spent tokenizing a source module.",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend"})

	ScanDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nsref_scan_seconds",
		Help:    "Time spent on scan operations.",
		Buckets: prometheus.DefBuckets,
	}, []string{"task"})

	ModulesScannedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nsref_modules_scanned_total",
		Help: "Total number of modules tokenized and scanned for import tables.",
	})

	ParseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nsref_parse_errors_total",
		Help: "Total number of parse errors by kind.",
	}, []string{"kind"})

	ModuleCacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nsref_module_cache_hits_total",
		Help: "Module table lookups served without tokenizing, by tier (memory, store).",
	}, []string{"tier"})

	ModuleCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nsref_module_cache_misses_total",
		Help: "Module table lookups that required a fresh scan.",
	})

	ModuleCacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nsref_module_cache_entries",
		Help: "Current number of module tables held in memory.",
	})

	InternedTypes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nsref_interned_types",
		Help: "Current number of interned type nodes.",
	})

	StoreErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nsref_store_errors_total",
		Help: "Total number of module store failures that fell back to scanning.",
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nsref_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	RescansThrottledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nsref_rescans_throttled_total",
		Help: "Total number of watch-mode rescans delayed by the rate limiter.",
	})
)
