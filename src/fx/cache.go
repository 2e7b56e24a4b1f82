package fx

import (
	"context"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"

	"github.com/username/pitfolio/src/logger"
)

// ErrRateUnavailable means no rate could be resolved within the lookback
// window. It is fatal to the affected conversion and aborts the report run.
var ErrRateUnavailable = errors.New("exchange rate unavailable")

// Cache resolves (currency, date) pairs to reporting-currency rates.
//
// Rates for closed years are immutable once published and are persisted in
// the durable store. Rates for the current year are provisional: published
// values can be revised before year-close, so they are memoized only for the
// lifetime of the process and never persisted.
type Cache struct {
	reportingCurrency string
	source            Source
	store             *Store
	provisional       *gocache.Cache
	lookbackDays      int
	now               func() time.Time
}

func NewCache(reportingCurrency string, source Source, store *Store, lookbackDays int, provisionalTTL time.Duration) *Cache {
	return &Cache{
		reportingCurrency: reportingCurrency,
		source:            source,
		store:             store,
		provisional:       gocache.New(provisionalTTL, 2*provisionalTTL),
		lookbackDays:      lookbackDays,
		now:               time.Now,
	}
}

// Rate returns the conversion rate from currency to the reporting currency
// on the given date. When no rate is published for the exact date the most
// recent prior published date within the lookback window is used, the same
// rule for every adapter.
func (c *Cache) Rate(ctx context.Context, currency string, day time.Time) (decimal.Decimal, error) {
	if currency == c.reportingCurrency {
		return decimal.NewFromInt(1), nil
	}
	day = truncateToDay(day)
	key := currency + "|" + day.Format("2006-01-02")

	closedYear := day.Year() < c.now().Year()
	if closedYear {
		rate, ok, err := c.store.Get(currency, day)
		if err != nil {
			return decimal.Zero, err
		}
		if ok {
			return rate, nil
		}
	} else if cached, ok := c.provisional.Get(key); ok {
		return cached.(decimal.Decimal), nil
	}

	rate, err := c.resolve(ctx, currency, day)
	if err != nil {
		return decimal.Zero, err
	}

	if closedYear {
		if err := c.store.Put(currency, day, rate); err != nil {
			return decimal.Zero, err
		}
	} else {
		c.provisional.Set(key, rate, gocache.DefaultExpiration)
	}
	return rate, nil
}

// resolve walks back from the requested date to the most recent published
// rate, bounded by the configured lookback window.
func (c *Cache) resolve(ctx context.Context, currency string, day time.Time) (decimal.Decimal, error) {
	for back := 0; back <= c.lookbackDays; back++ {
		candidate := day.AddDate(0, 0, -back)
		rate, err := c.source.Fetch(ctx, currency, candidate)
		if errors.Is(err, ErrNotPublished) {
			continue
		}
		if err != nil {
			return decimal.Zero, err
		}
		if back > 0 && logger.L != nil {
			logger.L.Debug("Resolved rate from prior published date",
				"currency", currency,
				"requested", day.Format("2006-01-02"),
				"published", candidate.Format("2006-01-02"))
		}
		return rate, nil
	}
	return decimal.Zero, fmt.Errorf("%w: %s on %s (lookback %d days)",
		ErrRateUnavailable, currency, day.Format("2006-01-02"), c.lookbackDays)
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
