package fifo

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/pitfolio/src/models"
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

func entry(t *testing.T, symbol string, date time.Time, quantity, unitPrice, fees string, kind models.EntryKind) models.Entry {
	t.Helper()
	e, err := models.NewEntry(symbol, date, d(quantity), d(unitPrice), "PLN", d(fees), kind)
	require.NoError(t, err)
	return e
}

func TestMatchConsumesLotsInOrder(t *testing.T) {
	m := NewMatcher(fixedRates{}, DefaultConfig())
	entries := []models.Entry{
		entry(t, "ACME", day(2024, 1, 10), "10", "10", "0", models.KindTrade),
		entry(t, "ACME", day(2024, 2, 10), "10", "13", "0", models.KindTrade),
		entry(t, "ACME", day(2024, 3, 10), "-15", "20", "0", models.KindTrade),
	}

	gains, err := m.Match(context.Background(), entries)
	require.NoError(t, err)
	require.Len(t, gains, 1)

	gain := gains[0]
	assert.True(t, gain.Proceeds.Equal(d("300")), "proceeds %s", gain.Proceeds)
	// 10 units at 10 plus 5 units at 13.
	assert.True(t, gain.CostBasis.Equal(d("165")), "cost basis %s", gain.CostBasis)
	assert.True(t, gain.GainLoss.Equal(d("135")))
	assert.Equal(t, 2024, gain.Year)

	require.Len(t, gain.Matched, 2)
	assert.True(t, gain.Matched[0].Quantity.Equal(d("10")))
	assert.True(t, gain.Matched[0].UnitCost.Equal(d("10")))
	assert.Equal(t, day(2024, 1, 10), gain.Matched[0].AcquisitionDate)
	assert.True(t, gain.Matched[1].Quantity.Equal(d("5")))
	assert.True(t, gain.Matched[1].UnitCost.Equal(d("13")))
}

func TestMatchPartialLotSurvives(t *testing.T) {
	m := NewMatcher(fixedRates{}, DefaultConfig())
	entries := []models.Entry{
		entry(t, "ACME", day(2024, 1, 10), "10", "10", "0", models.KindTrade),
		entry(t, "ACME", day(2024, 2, 10), "-4", "12", "0", models.KindTrade),
		entry(t, "ACME", day(2024, 3, 10), "-6", "14", "0", models.KindTrade),
	}

	gains, err := m.Match(context.Background(), entries)
	require.NoError(t, err)
	require.Len(t, gains, 2)

	assert.True(t, gains[0].CostBasis.Equal(d("40")))
	assert.True(t, gains[1].CostBasis.Equal(d("60")))
}

func TestMatchSortsByDateNotInputOrder(t *testing.T) {
	m := NewMatcher(fixedRates{}, DefaultConfig())
	// Disposal appears first in the slice but dates after the acquisition.
	entries := []models.Entry{
		entry(t, "ACME", day(2024, 6, 1), "-5", "20", "0", models.KindTrade),
		entry(t, "ACME", day(2024, 1, 1), "5", "10", "0", models.KindTrade),
	}

	gains, err := m.Match(context.Background(), entries)
	require.NoError(t, err)
	require.Len(t, gains, 1)
	assert.True(t, gains[0].CostBasis.Equal(d("50")))
}

func TestMatchFeesAdjustCostAndProceeds(t *testing.T) {
	m := NewMatcher(fixedRates{}, DefaultConfig())
	entries := []models.Entry{
		entry(t, "ACME", day(2024, 1, 10), "10", "10", "5", models.KindTrade),
		entry(t, "ACME", day(2024, 2, 10), "-10", "20", "3", models.KindTrade),
	}

	gains, err := m.Match(context.Background(), entries)
	require.NoError(t, err)
	require.Len(t, gains, 1)

	// Acquisition fee raises the basis, disposal fee lowers the proceeds.
	assert.True(t, gains[0].CostBasis.Equal(d("105")))
	assert.True(t, gains[0].Proceeds.Equal(d("197")))
}

func TestMatchConvertsAtEventDates(t *testing.T) {
	rates := fixedRates{rates: map[string]decimal.Decimal{"USD": d("4")}}
	m := NewMatcher(rates, DefaultConfig())

	buy, err := models.NewEntry("ACME", day(2024, 1, 10), d("10"), d("10"), "USD", decimal.Zero, models.KindTrade)
	require.NoError(t, err)
	sell, err := models.NewEntry("ACME", day(2024, 2, 10), d("-10"), d("12"), "USD", decimal.Zero, models.KindTrade)
	require.NoError(t, err)

	gains, err := m.Match(context.Background(), []models.Entry{buy, sell})
	require.NoError(t, err)
	require.Len(t, gains, 1)
	assert.True(t, gains[0].CostBasis.Equal(d("400")))
	assert.True(t, gains[0].Proceeds.Equal(d("480")))
}

func TestMatchInsufficientLots(t *testing.T) {
	m := NewMatcher(fixedRates{}, DefaultConfig())
	entries := []models.Entry{
		entry(t, "ACME", day(2024, 1, 10), "5", "10", "0", models.KindTrade),
		entry(t, "ACME", day(2024, 2, 10), "-8", "12", "0", models.KindTrade),
	}

	_, err := m.Match(context.Background(), entries)
	assert.ErrorIs(t, err, ErrInsufficientLots)
}

func TestMatchSyntheticLotForCrypto(t *testing.T) {
	m := NewMatcher(fixedRates{}, DefaultConfig())
	entries := []models.Entry{
		entry(t, "BTC", day(2024, 1, 10), "1", "100", "0", models.KindCrypto),
		entry(t, "BTC", day(2024, 2, 10), "-3", "200", "0", models.KindCrypto),
	}

	gains, err := m.Match(context.Background(), entries)
	require.NoError(t, err)
	require.Len(t, gains, 1)

	gain := gains[0]
	assert.True(t, gain.Proceeds.Equal(d("600")))
	// Only the real lot contributes cost; the excess is zero-basis.
	assert.True(t, gain.CostBasis.Equal(d("100")))

	require.Len(t, gain.Matched, 2)
	synthetic := gain.Matched[1]
	assert.True(t, synthetic.Quantity.Equal(d("2")))
	assert.True(t, synthetic.UnitCost.IsZero())
	assert.Equal(t, day(2024, 2, 10), synthetic.AcquisitionDate)
}

func TestMatchPairsAreIndependent(t *testing.T) {
	m := NewMatcher(fixedRates{}, DefaultConfig())

	acme := entry(t, "ACME", day(2024, 1, 10), "10", "10", "0", models.KindTrade)
	acmeUSD, err := models.NewEntry("ACME", day(2024, 2, 10), d("-10"), d("12"), "USD", decimal.Zero, models.KindTrade)
	require.NoError(t, err)

	// Same symbol, different currency: no lots to consume.
	_, err = m.Match(context.Background(), []models.Entry{acme, acmeUSD})
	assert.ErrorIs(t, err, ErrInsufficientLots)
}
