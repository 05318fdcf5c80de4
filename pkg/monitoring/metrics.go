package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

// Operational metric collectors.
//
// These describe the watcher itself: how often snapshots are rebuilt, how long
// a pass takes and how many certificates were left out. The per-certificate
// gauge lives in ExpirationCollector.
var (
	refreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expiration_watcher_refresh_total",
			Help: "Total number of snapshot refreshes by trigger and result.",
		},
		[]string{"trigger", "result"},
	)

	refreshDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "expiration_watcher_refresh_duration_seconds",
			Help:    "Duration of snapshot refreshes in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"trigger"},
	)

	refreshSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expiration_watcher_refresh_skipped_total",
			Help: "Refresh triggers dropped because a refresh was already in flight.",
		},
		[]string{"trigger"},
	)

	decodeFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "expiration_watcher_decode_failures_total",
			Help: "Selected secrets whose certificate could not be decoded.",
		},
	)

	certificates = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "expiration_watcher_certificates",
			Help: "Number of certificates in the current snapshot.",
		},
	)

	lastRefreshSuccess = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "expiration_watcher_last_refresh_success_timestamp_seconds",
			Help: "Unix time of the last successful snapshot refresh.",
		},
	)
)

func init() {
	metrics.Registry.MustRegister(Collectors()...)
}

// Collectors returns the operational metric collectors. This is useful for
// testing that metrics are properly registered.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		refreshTotal,
		refreshDuration,
		refreshSkippedTotal,
		decodeFailuresTotal,
		certificates,
		lastRefreshSuccess,
	}
}
