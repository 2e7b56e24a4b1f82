package reporters

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/username/pitfolio/src/fifo"
	"github.com/username/pitfolio/src/fx"
)

// fixedRates resolves every currency to a fixed rate, defaulting to 1.
type fixedRates struct {
	rates map[string]decimal.Decimal
}

func (f fixedRates) Rate(_ context.Context, currency string, _ time.Time) (decimal.Decimal, error) {
	if rate, ok := f.rates[currency]; ok {
		return rate, nil
	}
	return decimal.NewFromInt(1), nil
}

// failingRates simulates an exhausted rate lookback.
type failingRates struct{}

func (failingRates) Rate(_ context.Context, currency string, day time.Time) (decimal.Decimal, error) {
	return decimal.Zero, fx.ErrRateUnavailable
}

func usdAt4() fixedRates {
	return fixedRates{rates: map[string]decimal.Decimal{"USD": d("4")}}
}

func testDeps(rates fifo.RateResolver) Deps {
	return Deps{Rates: rates, Matcher: fifo.NewMatcher(rates, fifo.DefaultConfig())}
}

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func day(y, m, dd int) time.Time {
	return time.Date(y, time.Month(m), dd, 0, 0, 0, 0, time.UTC)
}

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}
