// Package expr turns free-form conversion requests such as "100 USD + 50 EUR to GBP"
// into an arithmetic tree whose currency-tagged amounts are resolved against a rate
// snapshot and then evaluated with decimal arithmetic.
package expr

import (
	"fmt"

	"fxcalc/internal/domain"

	"github.com/shopspring/decimal"
)

type TokenKind int

const (
	TokenNumber   TokenKind = iota // bare numeric literal
	TokenAmount                    // numeric literal tagged with a currency
	TokenOperator                  // + - * /
	TokenLParen
	TokenRParen
	TokenTarget // "to XXX"
)

func (k TokenKind) String() string {
	switch k {
	case TokenNumber:
		return "number"
	case TokenAmount:
		return "amount"
	case TokenOperator:
		return "operator"
	case TokenLParen:
		return "'('"
	case TokenRParen:
		return "')'"
	case TokenTarget:
		return "target"
	default:
		return "unknown"
	}
}

type Token struct {
	Kind     TokenKind
	Pos      int // byte offset in the raw expression
	Value    decimal.Decimal
	Currency domain.CurrencyCode
	Op       byte
}

func (t Token) String() string {
	switch t.Kind {
	case TokenNumber:
		return t.Value.String()
	case TokenAmount:
		return t.Value.String() + " " + string(t.Currency)
	case TokenOperator:
		return string(t.Op)
	case TokenLParen:
		return "("
	case TokenRParen:
		return ")"
	case TokenTarget:
		return "to " + string(t.Currency)
	default:
		return "?"
	}
}

func syntaxErr(pos int, format string, args ...any) error {
	return fmt.Errorf("%w at position %d: %s", domain.ErrSyntax, pos+1, fmt.Sprintf(format, args...))
}
