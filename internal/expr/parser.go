package expr

import (
	"fmt"

	"fxcalc/internal/domain"

	"github.com/shopspring/decimal"
)

// Expression is a parsed request: the arithmetic skeleton, its currency-tagged leaves in
// order of appearance and the target currency ("" when none was given or implied).
type Expression struct {
	root    node
	amounts []Token
	Target  domain.CurrencyCode
}

// Amounts returns the currency-tagged leaves in order of appearance.
func (e *Expression) Amounts() []Token {
	out := make([]Token, len(e.amounts))
	copy(out, e.amounts)
	return out
}

// NeedsRates reports whether evaluating e requires a rate snapshot.
func (e *Expression) NeedsRates() bool {
	return len(e.amounts) > 0 || e.Target != ""
}

// Compile tokenizes and parses raw and settles its target currency. requested is the
// target carried by the request record and counts as one more explicit target marker.
// Without any marker, a single source currency becomes the target; mixed sources
// without a target are ambiguous.
func Compile(raw string, requested domain.CurrencyCode) (*Expression, error) {
	tokens, err := Tokenize(raw)
	if err != nil {
		return nil, err
	}
	e, err := Parse(tokens)
	if err != nil {
		return nil, err
	}

	if requested != "" {
		requested = domain.NormalizeCode(string(requested))
		if !requested.IsValid() {
			return nil, fmt.Errorf("%w: target %q is not a currency code", domain.ErrSyntax, requested)
		}
		if e.Target != "" && e.Target != requested {
			return nil, fmt.Errorf("%w: both %s and %s requested", domain.ErrAmbiguousTarget, e.Target, requested)
		}
		e.Target = requested
	}

	if e.Target == "" && len(e.amounts) > 0 {
		src := e.amounts[0].Currency
		for _, a := range e.amounts[1:] {
			if a.Currency != src {
				return nil, fmt.Errorf("%w: amounts in %s and %s need a target", domain.ErrAmbiguousTarget, src, a.Currency)
			}
		}
		e.Target = src
	}
	return e, nil
}

// Parse builds the expression tree with the usual precedence: * and / bind tighter
// than + and -, both levels are left-associative and a single unary minus may prefix
// any operand. Target markers are only allowed after the arithmetic part.
func Parse(tokens []Token) (*Expression, error) {
	p := &parser{tokens: tokens}
	e := &Expression{}

	if p.atEnd() || p.peek().Kind == TokenTarget {
		return nil, fmt.Errorf("%w: empty expression", domain.ErrSyntax)
	}

	root, err := p.parseSum(e)
	if err != nil {
		return nil, err
	}
	e.root = root

	for !p.atEnd() {
		tok := p.next()
		if tok.Kind != TokenTarget {
			return nil, syntaxErr(tok.Pos, "unexpected %s", tok.Kind)
		}
		if e.Target != "" && e.Target != tok.Currency {
			return nil, fmt.Errorf("%w: both %s and %s requested", domain.ErrAmbiguousTarget, e.Target, tok.Currency)
		}
		e.Target = tok.Currency
	}
	return e, nil
}

type parser struct {
	tokens []Token
	pos    int
}

func (p *parser) atEnd() bool { return p.pos >= len(p.tokens) }
func (p *parser) peek() Token { return p.tokens[p.pos] }

func (p *parser) next() Token {
	t := p.tokens[p.pos]
	p.pos++
	return t
}

func (p *parser) isOp(ops ...byte) bool {
	if p.atEnd() || p.peek().Kind != TokenOperator {
		return false
	}
	for _, op := range ops {
		if p.peek().Op == op {
			return true
		}
	}
	return false
}

func (p *parser) endPos() int {
	if len(p.tokens) == 0 {
		return 0
	}
	return p.tokens[len(p.tokens)-1].Pos + 1
}

func (p *parser) parseSum(e *Expression) (node, error) {
	left, err := p.parseProduct(e)
	if err != nil {
		return nil, err
	}
	for p.isOp('+', '-') {
		op := p.next()
		right, err := p.parseProduct(e)
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op.Op, pos: op.Pos, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseProduct(e *Expression) (node, error) {
	left, err := p.parseUnary(e)
	if err != nil {
		return nil, err
	}
	for p.isOp('*', '/') {
		op := p.next()
		right, err := p.parseUnary(e)
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op.Op, pos: op.Pos, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseUnary(e *Expression) (node, error) {
	if p.isOp('-') {
		p.next()
		operand, err := p.parsePrimary(e)
		if err != nil {
			return nil, err
		}
		return negNode{operand: operand}, nil
	}
	return p.parsePrimary(e)
}

func (p *parser) parsePrimary(e *Expression) (node, error) {
	if p.atEnd() {
		return nil, syntaxErr(p.endPos(), "unexpected end of expression")
	}
	tok := p.next()
	switch tok.Kind {
	case TokenNumber:
		return numberNode{value: tok.Value}, nil
	case TokenAmount:
		e.amounts = append(e.amounts, tok)
		return amountNode{index: len(e.amounts) - 1}, nil
	case TokenLParen:
		inner, err := p.parseSum(e)
		if err != nil {
			return nil, err
		}
		if p.atEnd() || p.peek().Kind != TokenRParen {
			return nil, syntaxErr(tok.Pos, "unbalanced parenthesis")
		}
		p.next()
		return inner, nil
	default:
		return nil, syntaxErr(tok.Pos, "unexpected %s", tok.Kind)
	}
}

// node is an element of the arithmetic skeleton. Amount leaves read their value from
// the resolved values slice so the same tree evaluates against any resolution.
type node interface {
	eval(values []decimal.Decimal) (decimal.Decimal, error)
}

type numberNode struct{ value decimal.Decimal }

type amountNode struct{ index int }

type negNode struct{ operand node }

type binaryNode struct {
	op          byte
	pos         int
	left, right node
}
