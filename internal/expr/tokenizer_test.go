package expr

import (
	"testing"

	"fxcalc/internal/domain"

	"github.com/stretchr/testify/require"
)

func kinds(tokens []Token) []TokenKind {
	out := make([]TokenKind, len(tokens))
	for i, t := range tokens {
		out[i] = t.Kind
	}
	return out
}

func TestTokenize_CurrencyExpression(t *testing.T) {
	tokens, err := Tokenize("100 usd + 50.5EUR to gbp")
	require.NoError(t, err)
	require.Equal(t, []TokenKind{TokenAmount, TokenOperator, TokenAmount, TokenTarget}, kinds(tokens))

	require.Equal(t, "100", tokens[0].Value.String())
	require.Equal(t, domain.CurrencyCode("USD"), tokens[0].Currency)
	require.Equal(t, 0, tokens[0].Pos)
	require.Equal(t, byte('+'), tokens[1].Op)
	require.Equal(t, "50.5", tokens[2].Value.String())
	require.Equal(t, domain.CurrencyCode("EUR"), tokens[2].Currency)
	require.Equal(t, domain.CurrencyCode("GBP"), tokens[3].Currency)
}

func TestTokenize_PlainArithmetic(t *testing.T) {
	tokens, err := Tokenize("-(1.5+.5)*\t2 / 4")
	require.NoError(t, err)
	require.Equal(t, []TokenKind{
		TokenOperator, TokenLParen, TokenNumber, TokenOperator, TokenNumber, TokenRParen,
		TokenOperator, TokenNumber, TokenOperator, TokenNumber,
	}, kinds(tokens))
	require.Equal(t, "0.5", tokens[4].Value.String())
}

func TestTokenize_NumberFollowedByTarget(t *testing.T) {
	tokens, err := Tokenize("10 TO eur")
	require.NoError(t, err)
	require.Equal(t, []TokenKind{TokenNumber, TokenTarget}, kinds(tokens))
	require.Equal(t, domain.CurrencyCode("EUR"), tokens[1].Currency)
}

func TestTokenize_RepeatedSameTargetIsAllowed(t *testing.T) {
	tokens, err := Tokenize("1 USD to EUR to eur")
	require.NoError(t, err)
	require.Len(t, tokens, 3)
}

func TestTokenize_DifferentTargetsAreAmbiguous(t *testing.T) {
	_, err := Tokenize("1 USD to EUR to GBP")
	require.ErrorIs(t, err, domain.ErrAmbiguousTarget)
}

func TestTokenize_SyntaxErrors(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{name: "unknown character", raw: "10 % 3"},
		{name: "trailing dot", raw: "10. USD"},
		{name: "long word after number", raw: "10 dollars"},
		{name: "lone word", raw: "USD 10"},
		{name: "target without code", raw: "10 USD to"},
		{name: "target with long code", raw: "10 USD to EURO"},
		{name: "two letter code", raw: "10 US"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Tokenize(tc.raw)
			require.ErrorIs(t, err, domain.ErrSyntax)
		})
	}
}
