package expr

import (
	"fmt"

	"fxcalc/internal/domain"

	"github.com/shopspring/decimal"
)

// Resolve converts every currency-tagged amount of e into target using snap only.
// Every code must be known to snap, identity conversions included. Any missing rate
// fails the whole request.
func Resolve(e *Expression, snap *domain.Snapshot, target domain.CurrencyCode) ([]domain.ResolvedToken, error) {
	if len(e.amounts) == 0 {
		if target != "" && !snap.Knows(target) {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownCurrency, target)
		}
		return []domain.ResolvedToken{}, nil
	}

	resolved := make([]domain.ResolvedToken, 0, len(e.amounts))
	for _, a := range e.amounts {
		if !snap.Knows(a.Currency) {
			return nil, fmt.Errorf("%w: %s (not in snapshot %d)", domain.ErrUnknownCurrency, a.Currency, snap.Version())
		}
		rate, ok := snap.Rate(a.Currency, target)
		if !ok {
			return nil, fmt.Errorf("%w: %s (no %s/%s rate in snapshot %d)", domain.ErrUnknownCurrency, target, a.Currency, target, snap.Version())
		}
		resolved = append(resolved, domain.ResolvedToken{
			Position:  a.Pos,
			Amount:    a.Value,
			Source:    a.Currency,
			Rate:      rate,
			Converted: a.Value.Mul(rate),
		})
	}
	return resolved, nil
}

// ConvertedValues extracts the values Evaluate expects from resolved tokens.
func ConvertedValues(tokens []domain.ResolvedToken) []decimal.Decimal {
	values := make([]decimal.Decimal, len(tokens))
	for i, t := range tokens {
		values[i] = t.Converted
	}
	return values
}
