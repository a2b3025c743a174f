package domain

import (
	"maps"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is an immutable, versioned table of currency-pair rates.
// It is never mutated after construction; a refresh builds a new one.
type Snapshot struct {
	version    uint64
	capturedAt time.Time
	pivot      CurrencyCode
	source     string
	rates      map[RatePair]decimal.Decimal
	currencies []CurrencyCode
}

// NewSnapshot copies rates into a new snapshot. Identity pairs are dropped: they are implicit.
func NewSnapshot(version uint64, capturedAt time.Time, pivot CurrencyCode, source string, rates map[RatePair]decimal.Decimal) *Snapshot {
	table := make(map[RatePair]decimal.Decimal, len(rates))
	seen := make(map[CurrencyCode]struct{})
	for pair, value := range rates {
		seen[pair.Base] = struct{}{}
		seen[pair.Quote] = struct{}{}
		if pair.Base == pair.Quote {
			continue
		}
		table[pair] = value
	}
	currencies := slices.Collect(maps.Keys(seen))
	slices.Sort(currencies)

	return &Snapshot{
		version:    version,
		capturedAt: capturedAt,
		pivot:      pivot,
		source:     source,
		rates:      table,
		currencies: currencies,
	}
}

func (s *Snapshot) Version() uint64       { return s.version }
func (s *Snapshot) CapturedAt() time.Time { return s.capturedAt }
func (s *Snapshot) Pivot() CurrencyCode   { return s.pivot }
func (s *Snapshot) Source() string        { return s.source }
func (s *Snapshot) Len() int              { return len(s.rates) }

// Rate returns the stored rate for base→quote. Identity conversions are 1 for
// currencies the snapshot knows and missing otherwise.
func (s *Snapshot) Rate(base, quote CurrencyCode) (decimal.Decimal, bool) {
	if base == quote {
		if !s.Knows(base) {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromInt(1), true
	}
	v, ok := s.rates[RatePair{Base: base, Quote: quote}]
	return v, ok
}

func (s *Snapshot) HasCurrency(code CurrencyCode) bool {
	_, found := slices.BinarySearch(s.currencies, code)
	return found
}

// Knows reports whether code is quoted in the snapshot or is its pivot.
func (s *Snapshot) Knows(code CurrencyCode) bool {
	return code == s.pivot || s.HasCurrency(code)
}

// Currencies returns the sorted list of codes present in the snapshot.
func (s *Snapshot) Currencies() []CurrencyCode {
	return slices.Clone(s.currencies)
}

// PivotRates returns rate(pivot, c) for every currency quoted against the pivot.
func (s *Snapshot) PivotRates() map[CurrencyCode]decimal.Decimal {
	out := make(map[CurrencyCode]decimal.Decimal, len(s.currencies))
	for _, c := range s.currencies {
		if c == s.pivot {
			continue
		}
		if v, ok := s.rates[RatePair{Base: s.pivot, Quote: c}]; ok {
			out[c] = v
		}
	}
	return out
}

// SameContent compares the rate tables of two snapshots, ignoring version and timestamps.
func (s *Snapshot) SameContent(other *Snapshot) bool {
	if other == nil || s.pivot != other.pivot || len(s.rates) != len(other.rates) {
		return false
	}
	for pair, v := range s.rates {
		ov, ok := other.rates[pair]
		if !ok || !ov.Equal(v) {
			return false
		}
	}
	return true
}
