package filefeed

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fxcalc/internal/domain"

	"github.com/stretchr/testify/require"
)

func TestReadRecords_WithHeader(t *testing.T) {
	in := "base,quote,rate\nUSD,EUR,0.90\n# comment\nusd, gbp, 0.80\n"

	records, err := ReadRecords(strings.NewReader(in))
	require.NoError(t, err)
	require.Equal(t, []domain.ImportRecord{
		{Base: "USD", Quote: "EUR", Rate: "0.90"},
		{Base: "usd", Quote: "gbp", Rate: "0.80"},
	}, records)
}

func TestReadRecords_ShortRowIsKeptForValidation(t *testing.T) {
	records, err := ReadRecords(strings.NewReader("USD,EUR,0.9\nUSD,GBP\n"))
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, domain.ImportRecord{Base: "USD", Quote: "GBP"}, records[1])
}

func TestReadRecords_TooManyColumns(t *testing.T) {
	_, err := ReadRecords(strings.NewReader("USD,EUR,0.9,extra\n"))
	require.ErrorIs(t, err, domain.ErrMalformedRecord)
}

func TestCSVFeed_Fetch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.csv")
	require.NoError(t, os.WriteFile(path, []byte("USD,EUR,0.90\nUSD,GBP,0.80\n"), 0o600))

	batch, err := NewCSVFeed(path).Fetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, "file:"+path, batch.Source)
	require.Len(t, batch.Records, 2)
	require.False(t, batch.FetchedAt.IsZero())
}

func TestCSVFeed_MissingFile(t *testing.T) {
	_, err := NewCSVFeed(filepath.Join(t.TempDir(), "nope.csv")).Fetch(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to open rates file")
}
