package expr

import (
	"testing"
	"time"

	"fxcalc/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// usdPivotSnapshot is {USD→EUR: 0.90, USD→GBP: 0.80} with its inverse and cross rates.
func usdPivotSnapshot() *domain.Snapshot {
	return domain.NewSnapshot(3, time.Now(), "USD", "test", map[domain.RatePair]decimal.Decimal{
		{Base: "USD", Quote: "EUR"}: dec("0.90"),
		{Base: "USD", Quote: "GBP"}: dec("0.80"),
		{Base: "EUR", Quote: "USD"}: dec("1.1111111111111111"),
		{Base: "GBP", Quote: "USD"}: dec("1.25"),
		{Base: "GBP", Quote: "EUR"}: dec("1.125"),
		{Base: "EUR", Quote: "GBP"}: dec("0.8888888888888889"),
	})
}

func TestResolve_ConvertsThroughSnapshot(t *testing.T) {
	e, err := Compile("50 USD + 10 GBP to EUR", "")
	require.NoError(t, err)

	tokens, err := Resolve(e, usdPivotSnapshot(), e.Target)
	require.NoError(t, err)
	require.Len(t, tokens, 2)

	require.Equal(t, domain.CurrencyCode("USD"), tokens[0].Source)
	require.True(t, tokens[0].Rate.Equal(dec("0.9")))
	require.True(t, tokens[0].Converted.Equal(dec("45")))
	require.Equal(t, 0, tokens[0].Position)

	require.Equal(t, domain.CurrencyCode("GBP"), tokens[1].Source)
	require.True(t, tokens[1].Rate.Equal(dec("1.125")))
	require.True(t, tokens[1].Converted.Equal(dec("11.25")))

	v, err := Evaluate(e, ConvertedValues(tokens), 2)
	require.NoError(t, err)
	require.Equal(t, "56.25", v.String())
}

func TestResolve_IdentityConversion(t *testing.T) {
	e, err := Compile("100 USD to USD", "")
	require.NoError(t, err)

	tokens, err := Resolve(e, usdPivotSnapshot(), e.Target)
	require.NoError(t, err)
	require.True(t, tokens[0].Rate.Equal(decimal.NewFromInt(1)))

	v, err := Evaluate(e, ConvertedValues(tokens), 2)
	require.NoError(t, err)
	require.Equal(t, "100", v.String())
}

func TestResolve_UnknownSourceCurrency(t *testing.T) {
	e, err := Compile("5 ZZZ + 1 USD to EUR", "")
	require.NoError(t, err)

	_, err = Resolve(e, usdPivotSnapshot(), e.Target)
	require.ErrorIs(t, err, domain.ErrUnknownCurrency)
	require.Contains(t, err.Error(), "ZZZ")
}

func TestResolve_UnknownTargetCurrency(t *testing.T) {
	e, err := Compile("5 USD to ZZZ", "")
	require.NoError(t, err)

	_, err = Resolve(e, usdPivotSnapshot(), e.Target)
	require.ErrorIs(t, err, domain.ErrUnknownCurrency)
	require.Contains(t, err.Error(), "ZZZ")
}

func TestResolve_TargetOnlyMustBeKnown(t *testing.T) {
	e, err := Compile("2 + 3 to EUR", "")
	require.NoError(t, err)
	tokens, err := Resolve(e, usdPivotSnapshot(), e.Target)
	require.NoError(t, err)
	require.Empty(t, tokens)

	e, err = Compile("2 + 3 to ZZZ", "")
	require.NoError(t, err)
	_, err = Resolve(e, usdPivotSnapshot(), e.Target)
	require.ErrorIs(t, err, domain.ErrUnknownCurrency)
}

func TestResolve_UnknownCodeWithoutConversion(t *testing.T) {
	for _, input := range []string{"5 ZZZ", "5 ZZZ to ZZZ", "5 ZZZ + 2 ZZZ"} {
		t.Run(input, func(t *testing.T) {
			e, err := Compile(input, "")
			require.NoError(t, err)
			require.Equal(t, domain.CurrencyCode("ZZZ"), e.Target)

			_, err = Resolve(e, usdPivotSnapshot(), e.Target)
			require.ErrorIs(t, err, domain.ErrUnknownCurrency)
			require.Contains(t, err.Error(), "ZZZ")
		})
	}
}
