package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fxcalc/internal/adapters"
	"fxcalc/internal/domain"

	"github.com/sirupsen/logrus"
)

const notifyTimeout = 5 * time.Second

// Service is the entry point for everything rate related: imports from feeds and
// on-demand batches, warm start from the archive and snapshot reads.
type Service struct {
	repo     *Repository
	importer *Importer
	feed     adapters.RateFeed
	archive  adapters.SnapshotArchive
	changes  adapters.RateChangePublisher
}

// ImportBatch imports batch and archives the published snapshot. Archive failures are
// logged only: the snapshot is already serving conversions at that point.
func (s *Service) ImportBatch(ctx context.Context, batch domain.ImportBatch) (*domain.Snapshot, error) {
	snap, err := s.importer.Import(batch)
	if err != nil {
		return nil, err
	}
	if s.archive != nil {
		if saveErr := s.archive.Save(ctx, snap, batch); saveErr != nil {
			logrus.WithError(saveErr).WithField("version", snap.Version()).Warn("Snapshot wasn't archived")
		}
	}
	return snap, nil
}

// Refresh pulls a batch from the configured feed and imports it.
func (s *Service) Refresh(ctx context.Context, execID string) error {
	if s.feed == nil {
		return errors.New("no rate feed configured")
	}
	batch, err := s.feed.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch rates: %w", err)
	}
	snap, err := s.ImportBatch(ctx, batch)
	if err != nil {
		return fmt.Errorf("failed to import %d records from %s: %w", len(batch.Records), batch.Source, err)
	}
	logrus.WithFields(logrus.Fields{
		"exec_id": execID,
		"version": snap.Version(),
		"pairs":   snap.Len(),
		"source":  snap.Source(),
	}).Info("Rates snapshot published")
	return nil
}

// WarmStart republishes the latest archived snapshot so conversions are servable
// before the first feed pull completes.
func (s *Service) WarmStart(ctx context.Context) error {
	if s.archive == nil {
		return nil
	}
	archived, err := s.archive.Latest(ctx)
	if errors.Is(err, domain.ErrSnapshotNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load latest snapshot: %w", err)
	}
	if archived.Pivot != s.importer.pivot {
		logrus.WithFields(logrus.Fields{"archived": archived.Pivot, "configured": s.importer.pivot}).
			Warn("Archived snapshot uses another pivot, skipping warm start")
		return nil
	}
	snap, err := s.importer.Restore(archived.Version, archived.Batch())
	if err != nil {
		return fmt.Errorf("failed to restore snapshot %d: %w", archived.Version, err)
	}
	logrus.WithField("version", snap.Version()).Info("Rates snapshot restored from archive")
	return nil
}

func (s *Service) Current() (*domain.Snapshot, error) {
	return s.repo.Current()
}

func (s *Service) GetRate(base, quote domain.CurrencyCode) (domain.Rate, error) {
	snap, err := s.repo.Current()
	if err != nil {
		return domain.Rate{}, err
	}
	v, ok := snap.Rate(base, quote)
	if !ok {
		return domain.Rate{}, domain.ErrRateNotFound
	}
	return domain.Rate{Base: base, Quote: quote, Value: v, Version: snap.Version(), UpdatedAt: snap.CapturedAt()}, nil
}

func (s *Service) SupportedCodes() ([]domain.CurrencyCode, error) {
	snap, err := s.repo.Current()
	if err != nil {
		return nil, err
	}
	return snap.Currencies(), nil
}

// ArchivedSnapshot returns the records behind a past version, for auditing a conversion.
func (s *Service) ArchivedSnapshot(ctx context.Context, version uint64) (domain.ArchivedSnapshot, error) {
	if s.archive == nil {
		return domain.ArchivedSnapshot{}, domain.ErrSnapshotNotFound
	}
	return s.archive.ByVersion(ctx, version)
}

func (s *Service) notifyChanges(prev, next *domain.Snapshot) {
	if s.changes == nil || prev == nil {
		return
	}
	changes := DiffSnapshots(prev, next)
	if len(changes) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := s.changes.PublishRateChanges(ctx, changes); err != nil {
			logrus.WithError(err).WithField("version", next.Version()).Warn("Rate changes weren't published")
		}
	}()
}

// NewService wires the service. feed, archive and changes are optional.
func NewService(repo *Repository, importer *Importer, feed adapters.RateFeed, archive adapters.SnapshotArchive, changes adapters.RateChangePublisher) *Service {
	s := &Service{repo: repo, importer: importer, feed: feed, archive: archive, changes: changes}
	importer.OnPublish(s.notifyChanges)
	return s
}
