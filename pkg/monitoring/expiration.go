package monitoring

import (
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"

	"github.com/numtide/expiration-watcher/pkg/certinfo"
	"github.com/numtide/expiration-watcher/pkg/snapshot"
)

// ExpirationMetricName is the name and help text of the per-certificate gauge.
const ExpirationMetricName = "expiration_days"

var expirationDaysDesc = prometheus.NewDesc(
	ExpirationMetricName,
	ExpirationMetricName,
	[]string{"name", "namespace", "commonName", "expirationDate"},
	nil,
)

// SnapshotSource yields the current snapshot. *snapshot.Store implements it.
type SnapshotSource interface {
	Load() (*snapshot.Snapshot, error)
}

// Observation is one projected gauge sample.
type Observation struct {
	Name           string
	Namespace      string
	CommonName     string
	ExpirationDate string
	Days           float64
}

// DaysUntil returns the number of days from now to notAfter, rounded to the
// nearest integer with halves rounded up. Expired certificates are negative.
// The difference is taken on Unix seconds so that notAfter values past the
// time.Duration range (99991231235959Z) are not clamped.
func DaysUntil(notAfter, now time.Time) float64 {
	secs := float64(notAfter.Unix() - now.Unix())
	secs += float64(notAfter.Nanosecond()-now.Nanosecond()) / float64(time.Second)
	return math.Floor(secs/secondsPerDay + 0.5)
}

const secondsPerDay = 24 * 60 * 60

// Project maps every record of snap to an observation measured at now, in
// snapshot order.
func Project(snap *snapshot.Snapshot, now time.Time) []Observation {
	if snap == nil {
		return nil
	}
	out := make([]Observation, 0, snap.Len())
	snap.Each(func(r certinfo.Record) {
		out = append(out, Observation{
			Name:           r.Name,
			Namespace:      r.Namespace,
			CommonName:     r.CommonName,
			ExpirationDate: r.Validity.NotAfter.UTC().Format(time.RFC3339),
			Days:           DaysUntil(r.Validity.NotAfter, now),
		})
	})
	return out
}

// ExpirationCollector exports expiration_days for the current snapshot on
// every scrape. Label sets of certificates that left the snapshot disappear
// with it. Nothing is exported before the first snapshot.
type ExpirationCollector struct {
	source SnapshotSource
	now    func() time.Time
}

// NewExpirationCollector returns a collector reading from source.
func NewExpirationCollector(source SnapshotSource) *ExpirationCollector {
	return &ExpirationCollector{source: source, now: time.Now}
}

// Describe implements prometheus.Collector.
func (c *ExpirationCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- expirationDaysDesc
}

// Collect implements prometheus.Collector.
func (c *ExpirationCollector) Collect(ch chan<- prometheus.Metric) {
	snap, err := c.source.Load()
	if err != nil {
		return
	}
	for _, o := range Project(snap, c.now()) {
		ch <- prometheus.MustNewConstMetric(
			expirationDaysDesc,
			prometheus.GaugeValue,
			o.Days,
			o.Name, o.Namespace, o.CommonName, o.ExpirationDate,
		)
	}
}

// RegisterExpirationCollector registers a collector for source with
// controller-runtime's registry. It must be called once per process.
func RegisterExpirationCollector(source SnapshotSource) error {
	return metrics.Registry.Register(NewExpirationCollector(source))
}
