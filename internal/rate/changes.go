package rate

import (
	"slices"

	"fxcalc/internal/domain"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// DiffSnapshots lists pivot-quoted rates of next that are new or differ from prev.
func DiffSnapshots(prev, next *domain.Snapshot) []domain.RateChange {
	newRates := next.PivotRates()
	var oldRates map[domain.CurrencyCode]decimal.Decimal
	if prev != nil && prev.Pivot() == next.Pivot() {
		oldRates = prev.PivotRates()
	}

	codes := make([]domain.CurrencyCode, 0, len(newRates))
	for c := range newRates {
		codes = append(codes, c)
	}
	slices.Sort(codes)

	changes := make([]domain.RateChange, 0)
	for _, c := range codes {
		newRate := newRates[c]
		change := domain.RateChange{
			Base:    next.Pivot(),
			Quote:   c,
			NewRate: newRate,
			Version: next.Version(),
			Updated: next.CapturedAt(),
		}
		if oldRate, ok := oldRates[c]; ok {
			if oldRate.Equal(newRate) {
				continue
			}
			pct := newRate.Sub(oldRate).DivRound(oldRate, 6).Mul(hundred).Round(2)
			change.OldRate = &oldRate
			change.ChangePercent = &pct
		}
		changes = append(changes, change)
	}
	return changes
}
