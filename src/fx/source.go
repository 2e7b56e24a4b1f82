package fx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotPublished means the rate source has no rate for the requested day,
// typically a weekend or holiday. The cache's lookback rule handles it.
var ErrNotPublished = errors.New("no rate published")

// Source is the external rate-publishing boundary. Implementations perform
// single-shot lookups; all memoization and fallback policy belongs to Cache.
type Source interface {
	Fetch(ctx context.Context, currency string, day time.Time) (decimal.Decimal, error)
}

// NBPSource fetches mid rates from the NBP Web API table A.
type NBPSource struct {
	baseURL string
	client  *http.Client
}

func NewNBPSource(baseURL string, timeout time.Duration) *NBPSource {
	return &NBPSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type nbpRateResponse struct {
	Rates []struct {
		Mid json.Number `json:"mid"`
	} `json:"rates"`
}

// Fetch returns the published mid rate for one currency and day. A 404 from
// the API maps to ErrNotPublished.
func (s *NBPSource) Fetch(ctx context.Context, currency string, day time.Time) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s/api/exchangerates/rates/A/%s/%s/?format=json",
		s.baseURL, currency, day.Format("2006-01-02"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("building NBP request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetching NBP rate for %s on %s: %w", currency, day.Format("2006-01-02"), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return decimal.Zero, fmt.Errorf("%w: %s on %s", ErrNotPublished, currency, day.Format("2006-01-02"))
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("NBP API returned status %d for %s on %s", resp.StatusCode, currency, day.Format("2006-01-02"))
	}

	var payload nbpRateResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return decimal.Zero, fmt.Errorf("decoding NBP response: %w", err)
	}
	if len(payload.Rates) == 0 {
		return decimal.Zero, fmt.Errorf("%w: %s on %s", ErrNotPublished, currency, day.Format("2006-01-02"))
	}

	rate, err := decimal.NewFromString(payload.Rates[0].Mid.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing NBP mid rate %q: %w", payload.Rates[0].Mid.String(), err)
	}
	return rate, nil
}
