// Package metrics exposes Prometheus instrumentation for the PeeringDB
// client, the sync engine and the mirror HTTP API.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Upstream API
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdbsync_api_requests_total",
			Help: "Requests sent to the PeeringDB API and cache server",
		},
		[]string{"source", "status"}, // source: "api", "cache"
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pdbsync_api_request_duration_seconds",
			Help:    "Duration of PeeringDB API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	APIRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pdbsync_api_rate_limit_retries_total",
			Help: "Requests retried after HTTP 429",
		},
	)

	CacheLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdbsync_cache_loads_total",
			Help: "Resource loads by origin",
		},
		[]string{"origin"}, // "local", "remote", "api"
	)

	// Sync engine
	ObjectsSynced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdbsync_objects_synced_total",
			Help: "Objects written to the local mirror",
		},
		[]string{"resource", "mode"}, // mode: "initial", "incremental", "single"
	)

	SyncFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdbsync_sync_failures_total",
			Help: "Rows that could not be synced",
		},
		[]string{"resource"},
	)

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pdbsync_resource_sync_duration_seconds",
			Help:    "Time spent syncing one resource",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"resource"},
	)

	LastSync = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pdbsync_last_sync_timestamp_seconds",
			Help: "Unix time of the last completed sync per resource",
		},
		[]string{"resource"},
	)

	// Mirror HTTP API
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdbsync_http_requests_total",
			Help: "Requests served by the mirror API",
		},
		[]string{"route", "status"},
	)
)

// RecordAPIRequest records one upstream request. A status of 0 means the
// request failed before a response arrived.
func RecordAPIRequest(source string, status int, duration time.Duration) {
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	APIRequests.WithLabelValues(source, code).Inc()
	APIRequestDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordResourceSync records a finished resource pass.
func RecordResourceSync(tag string, duration time.Duration) {
	SyncDuration.WithLabelValues(tag).Observe(duration.Seconds())
	LastSync.WithLabelValues(tag).SetToCurrentTime()
}

func RecordHTTPRequest(route string, status int) {
	HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}
