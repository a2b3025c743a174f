package rate

import (
	"fmt"
	"sync"
	"sync/atomic"

	"fxcalc/internal/domain"

	"github.com/sirupsen/logrus"
)

// Repository holds the current snapshot. Readers load the pointer without locking;
// the single writer path serializes publishes so the version check and swap are atomic.
type Repository struct {
	current atomic.Pointer[domain.Snapshot]
	writeMu sync.Mutex
}

// Current returns the latest published snapshot or domain.ErrNotReady before the first publish.
func (r *Repository) Current() (*domain.Snapshot, error) {
	snap := r.current.Load()
	if snap == nil {
		return nil, domain.ErrNotReady
	}
	return snap, nil
}

// Version returns the current version, 0 when nothing was published.
func (r *Repository) Version() uint64 {
	if snap := r.current.Load(); snap != nil {
		return snap.Version()
	}
	return 0
}

// Publish swaps in next if its version is strictly greater than the current one.
// Older or equal versions are rejected with domain.ErrStaleSnapshot and leave state untouched.
func (r *Repository) Publish(next *domain.Snapshot) (*domain.Snapshot, error) {
	if next == nil {
		return nil, fmt.Errorf("publish nil snapshot: %w", domain.ErrStaleSnapshot)
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	prev := r.current.Load()
	if prev != nil && next.Version() <= prev.Version() {
		if next.Version() == prev.Version() && !next.SameContent(prev) {
			logrus.WithFields(logrus.Fields{
				"version": next.Version(),
				"source":  next.Source(),
			}).Error("Two snapshots share a version but differ in content, keeping the published one")
			return prev, fmt.Errorf("version %d: %w", next.Version(), domain.ErrSnapshotConflict)
		}
		return prev, fmt.Errorf("version %d is not newer than %d: %w", next.Version(), prev.Version(), domain.ErrStaleSnapshot)
	}
	r.current.Store(next)
	return prev, nil
}

func NewRepository() *Repository {
	return &Repository{}
}
