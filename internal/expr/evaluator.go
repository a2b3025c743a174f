package expr

import (
	"fmt"

	"fxcalc/internal/domain"

	"github.com/shopspring/decimal"
)

// divisionScale bounds the fractional digits of a quotient that doesn't terminate.
// It is well above any result precision so the final rounding dominates.
const divisionScale = 2 * domain.RateScale

// Evaluate computes e with values standing in for its currency-tagged amounts (in the
// order of Amounts) and rounds the result half away from zero to precision fractional
// digits. It doesn't depend on any package-level decimal settings.
func Evaluate(e *Expression, values []decimal.Decimal, precision int32) (decimal.Decimal, error) {
	if e == nil || e.root == nil {
		return decimal.Zero, fmt.Errorf("%w: empty expression", domain.ErrSyntax)
	}
	if len(values) != len(e.amounts) {
		return decimal.Zero, fmt.Errorf("expected %d resolved values, got %d", len(e.amounts), len(values))
	}
	v, err := e.root.eval(values)
	if err != nil {
		return decimal.Zero, err
	}
	return v.Round(precision), nil
}

func (n numberNode) eval([]decimal.Decimal) (decimal.Decimal, error) { return n.value, nil }

func (n amountNode) eval(values []decimal.Decimal) (decimal.Decimal, error) {
	return values[n.index], nil
}

func (n negNode) eval(values []decimal.Decimal) (decimal.Decimal, error) {
	v, err := n.operand.eval(values)
	if err != nil {
		return decimal.Zero, err
	}
	return v.Neg(), nil
}

func (n binaryNode) eval(values []decimal.Decimal) (decimal.Decimal, error) {
	l, err := n.left.eval(values)
	if err != nil {
		return decimal.Zero, err
	}
	r, err := n.right.eval(values)
	if err != nil {
		return decimal.Zero, err
	}

	switch n.op {
	case '+':
		return l.Add(r), nil
	case '-':
		return l.Sub(r), nil
	case '*':
		return l.Mul(r), nil
	case '/':
		if r.IsZero() {
			return decimal.Zero, fmt.Errorf("%w at position %d", domain.ErrDivisionByZero, n.pos+1)
		}
		return l.DivRound(r, divisionScale), nil
	default:
		return decimal.Zero, fmt.Errorf("unknown operator %q", n.op)
	}
}
