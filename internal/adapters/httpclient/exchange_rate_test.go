package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fxcalc/internal/domain"

	"github.com/stretchr/testify/require"
)

func TestExchangeRateFeed_Success(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{
            "result": "success",
            "base_code": "USD",
            "time_last_update_unix": 1767225600,
            "conversion_rates": {"USD": 1, "JPY": 150.0, "EUR": 0.9210000000000001}
        }`))
	}))
	t.Cleanup(srv.Close)

	c := NewExchangeRateFeed(srv.Client(), srv.URL+"/api/latest/", "USD")

	batch, err := c.Fetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, "/api/latest/USD", gotPath)
	require.Equal(t, "exchangerate-api", batch.Source)
	require.Equal(t, time.Unix(1767225600, 0).UTC(), batch.FetchedAt)
	require.Equal(t, []domain.ImportRecord{
		{Base: "USD", Quote: "EUR", Rate: "0.9210000000000001"},
		{Base: "USD", Quote: "JPY", Rate: "150"},
	}, batch.Records)
}

func TestExchangeRateFeed_FetchedAtFallsBackToNow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result": "success", "conversion_rates": {"EUR": 0.9}}`))
	}))
	t.Cleanup(srv.Close)

	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewExchangeRateFeed(srv.Client(), srv.URL, "USD")
	c.now = func() time.Time { return fixed }

	batch, err := c.Fetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, fixed, batch.FetchedAt)
	require.Equal(t, []domain.ImportRecord{{Base: "USD", Quote: "EUR", Rate: "0.9"}}, batch.Records)
}

func TestExchangeRateFeed_StatusCodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	c := NewExchangeRateFeed(srv.Client(), srv.URL+"/latest", "USD")

	_, err := c.Fetch(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "unexpected status code 503")
	require.Contains(t, err.Error(), "USD")
}

func TestExchangeRateFeed_JSONDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("{")) // invalid JSON
	}))
	t.Cleanup(srv.Close)

	c := NewExchangeRateFeed(srv.Client(), srv.URL+"/latest", "USD")

	_, err := c.Fetch(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to decode response for currency \"USD\"")
}

func TestExchangeRateFeed_NonSuccessResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"result": "error", "base_code": "USD", "conversion_rates": {}}`))
	}))
	t.Cleanup(srv.Close)

	c := NewExchangeRateFeed(srv.Client(), srv.URL+"/latest", "USD")

	_, err := c.Fetch(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "api returned non-success result for currency \"USD\": error")
}

func TestExchangeRateFeed_BaseURLParseError(t *testing.T) {
	c := NewExchangeRateFeed(&http.Client{}, "http://::1]", "USD")
	_, err := c.Fetch(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to parse base URL")
}
