package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// StationsChecked counts finished station checks, labeled by result.
// The "result" label is "ok" or "broken". This metric is a counter and only increases.
var StationsChecked = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "stream_check_stations_checked",
	Help: "Number of station checks performed",
}, []string{"result"})

// CheckDuration tracks how long a full station resolution takes, including
// retries. Slow remote servers dominate the upper buckets.
var CheckDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "stream_check_duration_seconds",
	Help:    "Duration of station checks",
	Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
})

// ResolveErrors counts resolution failures by error type (connect, parse,
// depth, playlist, status). This metric is a counter and only increases.
var ResolveErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "stream_check_resolve_errors",
	Help: "Number of resolution errors",
}, []string{"error_type"})

// BatchSize tracks the number of stations dispatched in the most recent batch.
// A batch of 0 means nothing was due.
var BatchSize = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "stream_check_batch_size",
	Help: "Stations dispatched in the last batch",
})

// InFlight tracks the number of station checks currently executing.
var InFlight = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "stream_check_in_flight",
	Help: "Station checks currently in flight",
})

// FaviconRepairs counts favicon validation outcomes, labeled "kept",
// "repaired" or "cleared".
var FaviconRepairs = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "stream_check_favicon_repairs",
	Help: "Favicon validation outcomes",
}, []string{"outcome"})
