package monitoring

import "time"

// RecordRefresh records a finished refresh's result and duration.
func RecordRefresh(trigger string, err error, duration time.Duration) {
	result := "success"
	if err != nil {
		result = "error"
	}
	refreshTotal.WithLabelValues(trigger, result).Inc()
	refreshDuration.WithLabelValues(trigger).Observe(duration.Seconds())
}

// RecordSkippedRefresh counts a trigger that arrived while a refresh was running.
func RecordSkippedRefresh(trigger string) {
	refreshSkippedTotal.WithLabelValues(trigger).Inc()
}

// RecordDecodeFailure counts a selected secret left out of a snapshot.
func RecordDecodeFailure() {
	decodeFailuresTotal.Inc()
}

// SetSnapshotPublished updates the gauges describing the current snapshot.
func SetSnapshotPublished(count int, builtAt time.Time) {
	certificates.Set(float64(count))
	lastRefreshSuccess.Set(float64(builtAt.Unix()) + float64(builtAt.Nanosecond())/float64(time.Second))
}
