// Package refresh owns the single writer of the certificate snapshot. A
// Scheduler rebuilds the snapshot at startup and on a fixed interval, and
// serves on-demand refreshes, never running two builds at once.
package refresh

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/atomic"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/numtide/expiration-watcher/pkg/monitoring"
	"github.com/numtide/expiration-watcher/pkg/snapshot"
)

// DefaultInterval is the refresh period used when Options.Interval is unset.
const DefaultInterval = time.Hour

// Trigger names what started a refresh.
type Trigger string

const (
	TriggerStartup  Trigger = "startup"
	TriggerSchedule Trigger = "schedule"
	TriggerManual   Trigger = "manual"
)

// errNoSnapshotBuilt is returned when a Builder reports success without a snapshot.
var errNoSnapshotBuilt = errors.New("builder returned no snapshot")

// Builder produces a complete snapshot from the secret store.
type Builder interface {
	Build(ctx context.Context) (*snapshot.Snapshot, error)
}

// Options configures a Scheduler.
type Options struct {
	// Interval between scheduled refreshes. Defaults to DefaultInterval.
	Interval time.Duration
}

// Scheduler periodically rebuilds the snapshot and publishes it to a Store.
// It implements manager.Runnable.
type Scheduler struct {
	builder  Builder
	store    *snapshot.Store
	interval time.Duration
	inFlight atomic.Bool
}

// NewScheduler creates a Scheduler publishing builder's snapshots to store.
func NewScheduler(builder Builder, store *snapshot.Store, opts Options) *Scheduler {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		builder:  builder,
		store:    store,
		interval: interval,
	}
}

// Interval returns the refresh period.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Start refreshes once immediately, then on every interval until ctx is
// done. A tick that arrives while a build is running is dropped. Failed
// refreshes are logged and never stop the loop.
func (s *Scheduler) Start(ctx context.Context) error {
	logger := log.FromContext(ctx).WithName("refresh")
	logger.Info("starting refresh scheduler", "interval", s.interval)

	var wg sync.WaitGroup
	defer wg.Wait()

	_, _ = s.TryRefresh(ctx, TriggerStartup)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("stopping refresh scheduler")
			return nil
		case <-ticker.C:
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = s.TryRefresh(ctx, TriggerSchedule)
			}()
		}
	}
}

// NeedLeaderElection implements manager.LeaderElectionRunnable. Every replica
// keeps its own snapshot so that each one can serve scrapes.
func (s *Scheduler) NeedLeaderElection() bool {
	return false
}

// TryRefresh runs one refresh unless another is already in flight, in which
// case it returns immediately with ran set to false. On failure the current
// snapshot is left untouched and the build error is returned.
func (s *Scheduler) TryRefresh(ctx context.Context, trigger Trigger) (ran bool, err error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		monitoring.RecordSkippedRefresh(string(trigger))
		log.FromContext(ctx).WithName("refresh").V(1).Info("refresh already in flight, skipping",
			"trigger", trigger)
		return false, nil
	}
	defer s.inFlight.Store(false)

	return true, s.refresh(ctx, trigger)
}

// InFlight reports whether a refresh is currently running.
func (s *Scheduler) InFlight() bool {
	return s.inFlight.Load()
}

func (s *Scheduler) refresh(ctx context.Context, trigger Trigger) error {
	ctx, span := monitoring.StartRefreshSpan(ctx, string(trigger))
	defer span.End()
	ctx = monitoring.EnrichLoggerWithTrace(ctx)
	logger := log.FromContext(ctx).WithName("refresh").WithValues("trigger", trigger)

	start := time.Now()
	snap, err := s.builder.Build(ctx)
	if err == nil && snap == nil {
		err = errNoSnapshotBuilt
	}
	monitoring.RecordRefresh(string(trigger), err, time.Since(start))

	if err != nil {
		monitoring.RecordSpanError(span, err)
		logger.Error(err, "failed to refresh certificate snapshot, keeping the previous one")
		return err
	}

	s.store.Publish(snap)
	span.SetAttributes(attribute.Int("snapshot.records", snap.Len()))
	monitoring.SetSnapshotPublished(snap.Len(), snap.BuiltAt())
	logger.Info("published certificate snapshot", "certificates", snap.Len())
	return nil
}
