// Package monitoring provides the Prometheus metrics and OTel tracing helpers
// of the expiration watcher.
//
// The expiration_days gauge is produced by ExpirationCollector at scrape time
// from the current certificate snapshot, so its value is always measured
// against the scrape instant rather than the build instant. The operational
// metrics follow the naming convention expiration_watcher_<metric>_<unit>.
// Everything is registered against controller-runtime's Prometheus registry,
// which also carries the framework's own client and process metrics.
//
// Usage in the scheduler:
//
//	ctx, span := monitoring.StartRefreshSpan(ctx, trigger)
//	defer span.End()
//	monitoring.RecordRefresh(trigger, err, elapsed)
//
// Usage at startup:
//
//	if err := monitoring.RegisterExpirationCollector(store); err != nil { ... }
package monitoring
