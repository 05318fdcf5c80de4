package monitoring

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/numtide/expiration-watcher/pkg/certinfo"
	"github.com/numtide/expiration-watcher/pkg/snapshot"
)

var projectionNow = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func record(namespace, name, cn string, notAfter time.Time) certinfo.Record {
	return certinfo.NewRecord(namespace, name, certinfo.Certificate{
		Validity:   certinfo.Validity{NotBefore: notAfter.Add(-90 * 24 * time.Hour), NotAfter: notAfter},
		CommonName: cn,
	})
}

func TestDaysUntil(t *testing.T) {
	t.Parallel()

	day := 24 * time.Hour
	tests := map[string]struct {
		notAfter time.Time
		want     float64
	}{
		"exactly ten days":         {notAfter: projectionNow.Add(10 * day), want: 10},
		"half day rounds up":       {notAfter: projectionNow.Add(9*day + 12*time.Hour), want: 10},
		"just under half":          {notAfter: projectionNow.Add(9*day + 11*time.Hour), want: 9},
		"expiring right now":       {notAfter: projectionNow, want: 0},
		"half a second rounds":     {notAfter: projectionNow.Add(day/2 - 500*time.Millisecond), want: 0},
		"expired half a day":       {notAfter: projectionNow.Add(-12 * time.Hour), want: 0},
		"expired a day and a half": {notAfter: projectionNow.Add(-(day + 12*time.Hour)), want: -1},
		"expired two days":         {notAfter: projectionNow.Add(-2 * day), want: -2},
		"far future (9999-12-31)": {
			notAfter: time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC),
			want:     2912443,
		},
		"far future half day rounds up": {
			notAfter: time.Date(9999, 12, 31, 12, 0, 0, 0, time.UTC),
			want:     2912443,
		},
		"far past (0001-01-01)": {
			notAfter: time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC),
			want:     -739616,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if got := DaysUntil(tc.notAfter, projectionNow); got != tc.want {
				t.Errorf("DaysUntil(%s) = %v, want %v", tc.notAfter.Format(time.RFC3339), got, tc.want)
			}
		})
	}
}

func TestProject(t *testing.T) {
	t.Parallel()

	snap := snapshot.New([]certinfo.Record{
		record("app", "tls-cert", "example.com", projectionNow.Add(10*24*time.Hour)),
		record("ops", "expired", "", projectionNow.Add(-3*24*time.Hour)),
	}, projectionNow)

	want := []Observation{
		{Name: "tls-cert", Namespace: "app", CommonName: "example.com", ExpirationDate: "2026-01-11T00:00:00Z", Days: 10},
		{Name: "expired", Namespace: "ops", CommonName: "", ExpirationDate: "2025-12-29T00:00:00Z", Days: -3},
	}
	if diff := cmp.Diff(want, Project(snap, projectionNow)); diff != "" {
		t.Errorf("Project() mismatch (-want +got):\n%s", diff)
	}

	if got := Project(nil, projectionNow); got != nil {
		t.Errorf("Project(nil) = %v, want nil", got)
	}
}

func TestExpirationCollector(t *testing.T) {
	t.Parallel()

	store := snapshot.NewStore()
	collector := NewExpirationCollector(store)
	collector.now = func() time.Time { return projectionNow }

	registry := prometheus.NewPedanticRegistry()
	registry.MustRegister(collector)

	if got := gatherExpiration(t, registry); len(got) != 0 {
		t.Fatalf("expected no samples before the first snapshot, got %v", got)
	}

	store.Publish(snapshot.New([]certinfo.Record{
		record("app", "tls-cert", "example.com", projectionNow.Add(10*24*time.Hour)),
		record("app", "old", "old.example.com", projectionNow.Add(40*24*time.Hour)),
	}, projectionNow))

	want := map[string]float64{
		"app/tls-cert/example.com/2026-01-11T00:00:00Z": 10,
		"app/old/old.example.com/2026-02-10T00:00:00Z":  40,
	}
	if diff := cmp.Diff(want, gatherExpiration(t, registry)); diff != "" {
		t.Errorf("samples mismatch (-want +got):\n%s", diff)
	}

	// A newer snapshot fully replaces the exported label sets.
	store.Publish(snapshot.New([]certinfo.Record{
		record("app", "tls-cert", "example.com", projectionNow.Add(10*24*time.Hour)),
	}, projectionNow))

	want = map[string]float64{
		"app/tls-cert/example.com/2026-01-11T00:00:00Z": 10,
	}
	if diff := cmp.Diff(want, gatherExpiration(t, registry)); diff != "" {
		t.Errorf("samples after replacement mismatch (-want +got):\n%s", diff)
	}
}

// gatherExpiration returns expiration_days samples keyed by
// namespace/name/commonName/expirationDate.
func gatherExpiration(t *testing.T, g prometheus.Gatherer) map[string]float64 {
	t.Helper()
	families, err := g.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	out := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != ExpirationMetricName {
			continue
		}
		if mf.GetType() != dto.MetricType_GAUGE {
			t.Errorf("expected gauge, got %v", mf.GetType())
		}
		if mf.GetHelp() != ExpirationMetricName {
			t.Errorf("help = %q, want %q", mf.GetHelp(), ExpirationMetricName)
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			key := labels["namespace"] + "/" + labels["name"] + "/" + labels["commonName"] + "/" + labels["expirationDate"]
			out[key] = m.GetGauge().GetValue()
		}
	}
	return out
}
