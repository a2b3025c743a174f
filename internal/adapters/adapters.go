package adapters

import (
	"context"

	"fxcalc/internal/domain"
)

// RateFeed pulls one full batch of rates from an upstream source.
type RateFeed interface {
	Fetch(ctx context.Context) (domain.ImportBatch, error)
}

type SnapshotArchive interface {
	Save(ctx context.Context, snap *domain.Snapshot, batch domain.ImportBatch) error
	Latest(ctx context.Context) (domain.ArchivedSnapshot, error)
	ByVersion(ctx context.Context, version uint64) (domain.ArchivedSnapshot, error)
}

type RateChangePublisher interface {
	PublishRateChanges(ctx context.Context, changes []domain.RateChange) error
}

// ResultCache keeps recent outcomes by request id (the dedup window).
type ResultCache interface {
	Get(requestID string) (domain.Outcome, bool)
	Set(outcome domain.Outcome)
}

// Egress delivers outcomes back to the originating conversation.
type Egress interface {
	Deliver(ctx context.Context, outcome domain.Outcome) error
}
