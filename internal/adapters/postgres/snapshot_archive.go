package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"fxcalc/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SnapshotArchive keeps every published snapshot with the direct records it was built from.
type SnapshotArchive struct {
	pool *pgxpool.Pool
}

type archivedRecord struct {
	Base  string `json:"base"`
	Quote string `json:"quote"`
	Rate  string `json:"rate"`
}

// Save is idempotent per version: archiving the same version twice keeps the first copy.
func (a *SnapshotArchive) Save(ctx context.Context, snap *domain.Snapshot, batch domain.ImportBatch) error {
	records := make([]archivedRecord, 0, len(batch.Records))
	for _, r := range batch.Records {
		records = append(records, archivedRecord{
			Base:  domain.NormalizeCode(r.Base).String(),
			Quote: domain.NormalizeCode(r.Quote).String(),
			Rate:  strings.TrimSpace(r.Rate),
		})
	}
	payloadJSON, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot records: %w", err)
	}

	const insertSnapshot = `
		insert into fx_snapshots(version, captured_at, pivot, source, pairs)
		values ($1, $2, $3, $4, $5)
		on conflict (version) do nothing;
	`
	const insertRates = `
		insert into fx_snapshot_rates(version, base, quote, rate)
		select $1, r.base, r.quote, r.rate::numeric
		from json_to_recordset($2::json) as r(base text, quote text, rate text);
	`

	tx, err := a.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, insertSnapshot, int64(snap.Version()), snap.CapturedAt(), snap.Pivot().String(), snap.Source(), len(records))
	if err != nil {
		return fmt.Errorf("failed to insert snapshot %d: %w", snap.Version(), err)
	}
	if tag.RowsAffected() == 0 {
		return nil
	}
	if _, err = tx.Exec(ctx, insertRates, int64(snap.Version()), json.RawMessage(payloadJSON)); err != nil {
		return fmt.Errorf("failed to insert rates of snapshot %d: %w", snap.Version(), err)
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (a *SnapshotArchive) Latest(ctx context.Context) (domain.ArchivedSnapshot, error) {
	const q = `select version from fx_snapshots order by version desc limit 1;`

	var version int64
	if err := a.pool.QueryRow(ctx, q).Scan(&version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ArchivedSnapshot{}, domain.ErrSnapshotNotFound
		}
		return domain.ArchivedSnapshot{}, fmt.Errorf("failed to select latest snapshot: %w", err)
	}
	return a.ByVersion(ctx, uint64(version))
}

func (a *SnapshotArchive) ByVersion(ctx context.Context, version uint64) (domain.ArchivedSnapshot, error) {
	const headerQ = `
		select captured_at, pivot, source
		from fx_snapshots
		where version = $1;
	`
	const ratesQ = `
		select base, quote, rate::text
		from fx_snapshot_rates
		where version = $1
		order by base, quote;
	`

	var (
		capturedAt time.Time
		pivot      string
		source     string
	)
	if err := a.pool.QueryRow(ctx, headerQ, int64(version)).Scan(&capturedAt, &pivot, &source); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ArchivedSnapshot{}, domain.ErrSnapshotNotFound
		}
		return domain.ArchivedSnapshot{}, fmt.Errorf("failed to select snapshot %d: %w", version, err)
	}

	rows, err := a.pool.Query(ctx, ratesQ, int64(version))
	if err != nil {
		return domain.ArchivedSnapshot{}, fmt.Errorf("failed to query rates of snapshot %d: %w", version, err)
	}
	defer rows.Close()

	records := make([]domain.ImportRecord, 0, 64)
	for rows.Next() {
		var r domain.ImportRecord
		if err = rows.Scan(&r.Base, &r.Quote, &r.Rate); err != nil {
			return domain.ArchivedSnapshot{}, fmt.Errorf("failed to scan archived rate: %w", err)
		}
		records = append(records, r)
	}
	if err = rows.Err(); err != nil {
		return domain.ArchivedSnapshot{}, fmt.Errorf("error iterating archived rates: %w", err)
	}

	return domain.ArchivedSnapshot{
		Version:    version,
		CapturedAt: capturedAt.UTC(),
		Pivot:      domain.CurrencyCode(pivot),
		Source:     source,
		Records:    records,
	}, nil
}

func NewSnapshotArchive(pool *pgxpool.Pool) *SnapshotArchive {
	return &SnapshotArchive{pool: pool}
}
