package fx

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingSource serves canned rates keyed by "CCY|2006-01-02" and counts
// every fetch. Days without an entry report ErrNotPublished.
type countingSource struct {
	rates   map[string]decimal.Decimal
	fetches int
}

func (s *countingSource) Fetch(_ context.Context, currency string, day time.Time) (decimal.Decimal, error) {
	s.fetches++
	if rate, ok := s.rates[currency+"|"+day.Format("2006-01-02")]; ok {
		return rate, nil
	}
	return decimal.Zero, ErrNotPublished
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

func newTestCache(t *testing.T, source Source, lookbackDays int) *Cache {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "rates.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cache := NewCache("PLN", source, store, lookbackDays, time.Hour)
	cache.now = func() time.Time { return day(2025, 6, 15) }
	return cache
}

func TestRateReportingCurrencyIsOne(t *testing.T) {
	source := &countingSource{}
	cache := newTestCache(t, source, 7)

	rate, err := cache.Rate(context.Background(), "PLN", day(2024, 3, 1))
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, 0, source.fetches)
}

func TestRateClosedYearFetchedOnce(t *testing.T) {
	source := &countingSource{rates: map[string]decimal.Decimal{
		"USD|2024-03-01": d("3.95"),
	}}
	cache := newTestCache(t, source, 7)

	for i := 0; i < 3; i++ {
		rate, err := cache.Rate(context.Background(), "USD", day(2024, 3, 1))
		require.NoError(t, err)
		assert.True(t, rate.Equal(d("3.95")))
	}
	assert.Equal(t, 1, source.fetches)
}

func TestRateClosedYearSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.db")
	source := &countingSource{rates: map[string]decimal.Decimal{
		"USD|2024-03-01": d("3.95"),
	}}

	store, err := OpenStore(path)
	require.NoError(t, err)
	cache := NewCache("PLN", source, store, 7, time.Hour)
	cache.now = func() time.Time { return day(2025, 6, 15) }

	_, err = cache.Rate(context.Background(), "USD", day(2024, 3, 1))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// A new process sees the persisted rate without refetching.
	store, err = OpenStore(path)
	require.NoError(t, err)
	defer store.Close()
	cache = NewCache("PLN", source, store, 7, time.Hour)
	cache.now = func() time.Time { return day(2025, 6, 15) }

	rate, err := cache.Rate(context.Background(), "USD", day(2024, 3, 1))
	require.NoError(t, err)
	assert.True(t, rate.Equal(d("3.95")))
	assert.Equal(t, 1, source.fetches)
}

func TestRateCurrentYearMemoizedInProcessOnly(t *testing.T) {
	source := &countingSource{rates: map[string]decimal.Decimal{
		"USD|2025-02-03": d("4.02"),
	}}
	cache := newTestCache(t, source, 7)

	for i := 0; i < 3; i++ {
		rate, err := cache.Rate(context.Background(), "USD", day(2025, 2, 3))
		require.NoError(t, err)
		assert.True(t, rate.Equal(d("4.02")))
	}
	assert.Equal(t, 1, source.fetches)

	// Nothing was written to the durable store for the open year.
	_, ok, err := cache.store.Get("USD", day(2025, 2, 3))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRateLookbackFindsPriorPublishedDate(t *testing.T) {
	// 2024-03-02/03 is a weekend; the Friday rate applies.
	source := &countingSource{rates: map[string]decimal.Decimal{
		"USD|2024-03-01": d("3.90"),
	}}
	cache := newTestCache(t, source, 7)

	rate, err := cache.Rate(context.Background(), "USD", day(2024, 3, 3))
	require.NoError(t, err)
	assert.True(t, rate.Equal(d("3.90")))
	assert.Equal(t, 3, source.fetches)
}

func TestRateLookbackExhausted(t *testing.T) {
	source := &countingSource{}
	cache := newTestCache(t, source, 3)

	_, err := cache.Rate(context.Background(), "USD", day(2024, 3, 10))
	assert.ErrorIs(t, err, ErrRateUnavailable)
	// Requested day plus three days back.
	assert.Equal(t, 4, source.fetches)
}

func TestStorePutNeverOverwrites(t *testing.T) {
	store, err := OpenStore(filepath.Join(t.TempDir(), "rates.db"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Put("USD", day(2024, 3, 1), d("3.95")))
	require.NoError(t, store.Put("USD", day(2024, 3, 1), d("9.99")))

	rate, ok, err := store.Get("USD", day(2024, 3, 1))
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, rate.Equal(d("3.95")))
}
