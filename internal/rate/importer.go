package rate

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"fxcalc/internal/domain"

	"github.com/shopspring/decimal"
)

// PublishFunc is notified after a snapshot replaced prev. prev is nil for the first publish.
type PublishFunc func(prev, next *domain.Snapshot)

// Importer validates raw batches, completes inverse and pivot cross rates and publishes
// the resulting snapshot. Imports are all-or-nothing.
type Importer struct {
	repo      *Repository
	pivot     domain.CurrencyCode
	mu        sync.Mutex
	listeners []PublishFunc
	now       func() time.Time
}

// OnPublish registers fn to run after every successful publish, under the import lock.
func (im *Importer) OnPublish(fn PublishFunc) {
	im.mu.Lock()
	defer im.mu.Unlock()
	im.listeners = append(im.listeners, fn)
}

// Import builds the next version from batch and publishes it.
func (im *Importer) Import(batch domain.ImportBatch) (*domain.Snapshot, error) {
	im.mu.Lock()
	defer im.mu.Unlock()
	return im.publishLocked(im.repo.Version()+1, batch)
}

// Restore publishes batch under an explicit version, used to warm up from the archive.
func (im *Importer) Restore(version uint64, batch domain.ImportBatch) (*domain.Snapshot, error) {
	im.mu.Lock()
	defer im.mu.Unlock()
	return im.publishLocked(version, batch)
}

func (im *Importer) publishLocked(version uint64, batch domain.ImportBatch) (*domain.Snapshot, error) {
	table, err := BuildRateTable(batch, im.pivot)
	if err != nil {
		return nil, err
	}

	capturedAt := batch.FetchedAt
	if capturedAt.IsZero() {
		capturedAt = im.now()
	}
	snap := domain.NewSnapshot(version, capturedAt.UTC(), im.pivot, batch.Source, table)

	prev, err := im.repo.Publish(snap)
	if err != nil {
		return nil, err
	}
	for _, fn := range im.listeners {
		fn(prev, snap)
	}
	return snap, nil
}

// BuildRateTable validates batch and returns the complete rate table: direct records,
// missing inverses and every cross rate reachable through pivot.
func BuildRateTable(batch domain.ImportBatch, pivot domain.CurrencyCode) (map[domain.RatePair]decimal.Decimal, error) {
	if len(batch.Records) == 0 {
		return nil, domain.ErrEmptyBatch
	}

	// pass 1: codes
	pairs := make([]domain.RatePair, len(batch.Records))
	for i, rec := range batch.Records {
		base := domain.NormalizeCode(rec.Base)
		quote := domain.NormalizeCode(rec.Quote)
		if !base.IsValid() || !quote.IsValid() {
			return nil, fmt.Errorf("record %d (%q/%q): %w: currency codes must be 3 letters", i, rec.Base, rec.Quote, domain.ErrMalformedRecord)
		}
		if base == quote {
			return nil, fmt.Errorf("record %d (%s): %w: base and quote must be different", i, base, domain.ErrMalformedRecord)
		}
		pairs[i] = domain.RatePair{Base: base, Quote: quote}
	}

	// pass 2: rates
	values := make([]decimal.Decimal, len(batch.Records))
	for i, rec := range batch.Records {
		v, err := decimal.NewFromString(strings.TrimSpace(rec.Rate))
		if err != nil {
			return nil, fmt.Errorf("record %d (%s): %w: %q is not a number", i, pairs[i], domain.ErrMalformedRecord, rec.Rate)
		}
		if !v.IsPositive() {
			return nil, fmt.Errorf("record %d (%s): %w: %s must be positive", i, pairs[i], domain.ErrInvalidRate, v)
		}
		values[i] = v
	}

	// pass 3: duplicates
	direct := make(map[domain.RatePair]decimal.Decimal, len(pairs))
	for i, p := range pairs {
		if _, dup := direct[p]; dup {
			return nil, fmt.Errorf("record %d (%s): %w", i, p, domain.ErrDuplicatePair)
		}
		direct[p] = values[i]
	}

	return completeTable(direct, pivot), nil
}

// pivotLeg keeps the directly quoted rates of a currency against the pivot.
type pivotLeg struct {
	from, to       decimal.Decimal // pivot→c, c→pivot
	hasFrom, hasTo bool
}

func completeTable(direct map[domain.RatePair]decimal.Decimal, pivot domain.CurrencyCode) map[domain.RatePair]decimal.Decimal {
	one := decimal.NewFromInt(1)
	table := make(map[domain.RatePair]decimal.Decimal, len(direct)*2)
	legs := map[domain.CurrencyCode]*pivotLeg{pivot: {from: one, to: one, hasFrom: true, hasTo: true}}

	leg := func(c domain.CurrencyCode) *pivotLeg {
		l, ok := legs[c]
		if !ok {
			l = &pivotLeg{}
			legs[c] = l
		}
		return l
	}

	for pair, v := range direct {
		table[pair] = v
		if _, ok := direct[pair.Reversed()]; !ok {
			table[pair.Reversed()] = one.DivRound(v, domain.RateScale)
		}
		switch pivot {
		case pair.Base:
			l := leg(pair.Quote)
			l.from, l.hasFrom = v, true
		case pair.Quote:
			l := leg(pair.Base)
			l.to, l.hasTo = v, true
		}
	}

	for x, lx := range legs {
		for y, ly := range legs {
			if x == y {
				continue
			}
			p := domain.RatePair{Base: x, Quote: y}
			if _, ok := table[p]; ok {
				continue
			}
			if v := crossRate(lx, ly); v.IsPositive() {
				table[p] = v
			}
		}
	}
	return table
}

// crossRate returns rate(x→y) = rate(x→pivot) / rate(y→pivot), choosing the form that uses
// the directly quoted legs so that exact quotients stay exact.
func crossRate(x, y *pivotLeg) decimal.Decimal {
	switch {
	case x.hasFrom && y.hasFrom:
		return y.from.DivRound(x.from, domain.RateScale)
	case x.hasTo && y.hasTo:
		return x.to.DivRound(y.to, domain.RateScale)
	case x.hasTo && y.hasFrom:
		return x.to.Mul(y.from).Round(domain.RateScale)
	default:
		return decimal.NewFromInt(1).DivRound(x.from.Mul(y.to), domain.RateScale)
	}
}

func NewImporter(repo *Repository, pivot domain.CurrencyCode) *Importer {
	return &Importer{repo: repo, pivot: pivot, now: time.Now}
}
