package expr

import (
	"fmt"
	"strings"

	"fxcalc/internal/domain"

	"github.com/shopspring/decimal"
)

// Tokenize scans raw into tokens. Whitespace is insignificant and currency codes are
// case-insensitive. Codes are only checked for shape here; whether a currency exists is
// decided at resolution time.
func Tokenize(raw string) ([]Token, error) {
	var (
		tokens []Token
		target domain.CurrencyCode
	)

	i := 0
	for i < len(raw) {
		c := raw[i]
		switch {
		case isSpace(c):
			i++
		case isDigit(c) || (c == '.' && i+1 < len(raw) && isDigit(raw[i+1])):
			tok, next, err := scanAmount(raw, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
			i = next
		case isLetter(c):
			start := i
			word, next := scanWord(raw, i)
			if !strings.EqualFold(word, "to") {
				return nil, syntaxErr(start, "unexpected word %q", word)
			}
			j := skipSpaces(raw, next)
			code, after := scanWord(raw, j)
			cur := domain.NormalizeCode(code)
			if !cur.IsValid() {
				return nil, syntaxErr(j, "expected a 3-letter currency code after %q", word)
			}
			if target != "" && target != cur {
				return nil, fmt.Errorf("%w: both %s and %s requested", domain.ErrAmbiguousTarget, target, cur)
			}
			target = cur
			tokens = append(tokens, Token{Kind: TokenTarget, Pos: start, Currency: cur})
			i = after
		case c == '+' || c == '-' || c == '*' || c == '/':
			tokens = append(tokens, Token{Kind: TokenOperator, Pos: i, Op: c})
			i++
		case c == '(':
			tokens = append(tokens, Token{Kind: TokenLParen, Pos: i})
			i++
		case c == ')':
			tokens = append(tokens, Token{Kind: TokenRParen, Pos: i})
			i++
		default:
			return nil, syntaxErr(i, "unexpected character %q", rune(c))
		}
	}
	return tokens, nil
}

// scanAmount reads a decimal literal and an optional currency code right after it.
func scanAmount(raw string, start int) (Token, int, error) {
	i := start
	for i < len(raw) && isDigit(raw[i]) {
		i++
	}
	if i < len(raw) && raw[i] == '.' {
		i++
		if i >= len(raw) || !isDigit(raw[i]) {
			return Token{}, 0, syntaxErr(i, "expected digits after decimal point")
		}
		for i < len(raw) && isDigit(raw[i]) {
			i++
		}
	}
	literal := raw[start:i]
	if literal[0] == '.' {
		literal = "0" + literal
	}
	value, err := decimal.NewFromString(literal)
	if err != nil {
		return Token{}, 0, syntaxErr(start, "invalid number %q", raw[start:i])
	}

	j := skipSpaces(raw, i)
	word, after := scanWord(raw, j)
	switch {
	case word == "" || strings.EqualFold(word, "to"):
		return Token{Kind: TokenNumber, Pos: start, Value: value}, i, nil
	case domain.NormalizeCode(word).IsValid():
		return Token{Kind: TokenAmount, Pos: start, Value: value, Currency: domain.NormalizeCode(word)}, after, nil
	default:
		return Token{}, 0, syntaxErr(j, "%q is not a currency code", word)
	}
}

func scanWord(raw string, i int) (string, int) {
	start := i
	for i < len(raw) && isLetter(raw[i]) {
		i++
	}
	return raw[start:i], i
}

func skipSpaces(raw string, i int) int {
	for i < len(raw) && isSpace(raw[i]) {
		i++
	}
	return i
}

func isSpace(c byte) bool  { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }
func isDigit(c byte) bool  { return c >= '0' && c <= '9' }
func isLetter(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
