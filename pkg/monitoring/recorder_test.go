package monitoring

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestRecordRefresh(t *testing.T) {
	t.Cleanup(func() {
		refreshTotal.Reset()
		refreshDuration.Reset()
	})

	RecordRefresh("schedule", nil, 50*time.Millisecond)
	RecordRefresh("schedule", nil, 70*time.Millisecond)
	RecordRefresh("manual", errors.New("secret store unavailable"), 100*time.Millisecond)

	if v := counterValue(t, refreshTotal, "schedule", "success"); v != 2 {
		t.Errorf("expected schedule success counter=2, got %f", v)
	}
	if v := counterValue(t, refreshTotal, "manual", "error"); v != 1 {
		t.Errorf("expected manual error counter=1, got %f", v)
	}
	if v := counterValue(t, refreshTotal, "manual", "success"); v != 0 {
		t.Errorf("expected manual success counter=0, got %f", v)
	}

	h, err := refreshDuration.GetMetricWithLabelValues("schedule")
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues: %v", err)
	}
	m := &dto.Metric{}
	if err := h.(prometheus.Metric).Write(m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := m.GetHistogram().GetSampleCount(); got != 2 {
		t.Errorf("expected 2 duration samples, got %d", got)
	}
}

func TestRecordSkippedRefresh(t *testing.T) {
	t.Cleanup(func() { refreshSkippedTotal.Reset() })

	RecordSkippedRefresh("schedule")

	if v := counterValue(t, refreshSkippedTotal, "schedule"); v != 1 {
		t.Errorf("expected skipped counter=1, got %f", v)
	}
}

func TestRecordDecodeFailure(t *testing.T) {
	before := testutil.ToFloat64(decodeFailuresTotal)
	RecordDecodeFailure()
	RecordDecodeFailure()
	if got := testutil.ToFloat64(decodeFailuresTotal) - before; got != 2 {
		t.Errorf("expected decode failures to grow by 2, grew by %f", got)
	}
}

func TestSetSnapshotPublished(t *testing.T) {
	builtAt := time.Date(2026, 3, 1, 12, 0, 0, 500_000_000, time.UTC)
	SetSnapshotPublished(7, builtAt)

	if got := testutil.ToFloat64(certificates); got != 7 {
		t.Errorf("expected certificates=7, got %f", got)
	}
	want := float64(builtAt.Unix()) + 0.5
	if got := testutil.ToFloat64(lastRefreshSuccess); got != want {
		t.Errorf("expected last success=%f, got %f", want, got)
	}
}

// --- helpers ---

func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	c, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues(%v): %v", labels, err)
	}
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return m.GetCounter().GetValue()
}
