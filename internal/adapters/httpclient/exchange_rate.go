package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"fxcalc/internal/domain"

	"github.com/shopspring/decimal"
)

const feedSource = "exchangerate-api"

// ExchangeRateFeed pulls the pivot's rate table from an exchangerate-api compatible
// endpoint: GET {baseURL}/{pivot}.
type ExchangeRateFeed struct {
	http    *http.Client
	baseURL string
	pivot   domain.CurrencyCode
	now     func() time.Time
}

type apiResponse struct {
	Result             string                     `json:"result"`
	BaseCode           string                     `json:"base_code"`
	TimeLastUpdateUnix int64                      `json:"time_last_update_unix"`
	ConversionRates    map[string]decimal.Decimal `json:"conversion_rates"`
}

func (c *ExchangeRateFeed) Fetch(ctx context.Context) (domain.ImportBatch, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return domain.ImportBatch{}, fmt.Errorf("failed to parse base URL: %w", err)
	}

	base := c.pivot.String()
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + base

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return domain.ImportBatch{}, fmt.Errorf("failed to create request for currency %q: %w", base, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.ImportBatch{}, fmt.Errorf("failed to execute request for currency %q: %w", base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.ImportBatch{}, fmt.Errorf("unexpected status code %d for currency %q: %s", resp.StatusCode, base, resp.Status)
	}

	var body apiResponse
	if err = json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.ImportBatch{}, fmt.Errorf("failed to decode response for currency %q: %w", base, err)
	}

	if body.Result != "success" {
		return domain.ImportBatch{}, fmt.Errorf("api returned non-success result for currency %q: %s", base, body.Result)
	}

	return c.toBatch(body), nil
}

// toBatch turns the response into pivot→quote records sorted by quote. The pivot's own
// entry (always 1) is skipped.
func (c *ExchangeRateFeed) toBatch(body apiResponse) domain.ImportBatch {
	fetchedAt := c.now().UTC()
	if body.TimeLastUpdateUnix > 0 {
		fetchedAt = time.Unix(body.TimeLastUpdateUnix, 0).UTC()
	}

	base := body.BaseCode
	if base == "" {
		base = c.pivot.String()
	}

	quotes := make([]string, 0, len(body.ConversionRates))
	for code := range body.ConversionRates {
		if strings.EqualFold(code, base) {
			continue
		}
		quotes = append(quotes, code)
	}
	slices.Sort(quotes)

	records := make([]domain.ImportRecord, 0, len(quotes))
	for _, code := range quotes {
		records = append(records, domain.ImportRecord{
			Base:  base,
			Quote: code,
			Rate:  body.ConversionRates[code].String(),
		})
	}
	return domain.ImportBatch{Source: feedSource, FetchedAt: fetchedAt, Records: records}
}

func NewExchangeRateFeed(httpClient *http.Client, baseURL string, pivot domain.CurrencyCode) *ExchangeRateFeed {
	return &ExchangeRateFeed{http: httpClient, baseURL: baseURL, pivot: pivot, now: time.Now}
}
