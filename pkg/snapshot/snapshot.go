// Package snapshot holds the immutable result of one discovery pass and the
// single process-wide cell through which the current result is published.
package snapshot

import (
	"errors"
	"time"

	"go.uber.org/atomic"

	"github.com/numtide/expiration-watcher/pkg/certinfo"
)

// ErrNoSnapshot is returned by Store.Load before the first successful build.
var ErrNoSnapshot = errors.New("no certificate snapshot has been built yet")

// Snapshot is an immutable, ordered set of certificate records tagged with
// the time it was built. It is never modified after New returns.
type Snapshot struct {
	records []certinfo.Record
	builtAt time.Time
}

// New returns a Snapshot holding deep copies of records.
func New(records []certinfo.Record, builtAt time.Time) *Snapshot {
	owned := make([]certinfo.Record, len(records))
	for i, r := range records {
		owned[i] = r.Clone()
	}
	return &Snapshot{records: owned, builtAt: builtAt}
}

// Records returns a copy of the records, safe for the caller to modify.
func (s *Snapshot) Records() []certinfo.Record {
	out := make([]certinfo.Record, len(s.records))
	for i, r := range s.records {
		out[i] = r.Clone()
	}
	return out
}

// Each calls fn for every record in order without copying. fn must not
// retain or modify the record's slices.
func (s *Snapshot) Each(fn func(certinfo.Record)) {
	for _, r := range s.records {
		fn(r)
	}
}

// Len returns the number of records.
func (s *Snapshot) Len() int {
	return len(s.records)
}

// BuiltAt returns the wall-clock time the snapshot was completed.
func (s *Snapshot) BuiltAt() time.Time {
	return s.builtAt
}

// Store is the single cell holding the current Snapshot. Readers never block
// and always see either the previous or the next snapshot in full.
type Store struct {
	current atomic.Pointer[Snapshot]
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Load returns the current snapshot or ErrNoSnapshot.
func (s *Store) Load() (*Snapshot, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, ErrNoSnapshot
	}
	return snap, nil
}

// Publish makes snap the current snapshot. A nil snap is ignored.
func (s *Store) Publish(snap *Snapshot) {
	if snap == nil {
		return
	}
	s.current.Store(snap)
}
