package fifo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/username/pitfolio/src/models"
)

// ErrInsufficientLots means a disposal exceeds the open quantity for a
// symbol whose kind does not allow synthetic lots. There is no short-selling
// support; the whole matching run for that symbol fails.
var ErrInsufficientLots = errors.New("insufficient open lots")

// RateResolver is the slice of the exchange-rate cache the matcher needs.
type RateResolver interface {
	Rate(ctx context.Context, currency string, day time.Time) (decimal.Decimal, error)
}

// Config holds the explicit per-kind oversell policy. For kinds listed here
// a disposal exceeding the open quantity consumes a synthetic zero-cost lot
// for the excess instead of failing; this matches crypto flows where units
// can arrive outside the statement (airdrops, transfers in).
type Config struct {
	AllowSyntheticLots map[models.EntryKind]bool
}

func DefaultConfig() Config {
	return Config{
		AllowSyntheticLots: map[models.EntryKind]bool{
			models.KindCrypto: true,
		},
	}
}

// Matcher converts entry sequences into realized gains by first-in-first-out
// lot consumption per (symbol, currency) pair.
type Matcher struct {
	rates RateResolver
	cfg   Config
}

func NewMatcher(rates RateResolver, cfg Config) *Matcher {
	return &Matcher{rates: rates, cfg: cfg}
}

// lot is an open acquisition awaiting disposal. Owned exclusively by one
// matching run.
type lot struct {
	remaining decimal.Decimal
	unitCost  decimal.Decimal // reporting currency
	acquired  time.Time
}

type pairKey struct {
	symbol   string
	currency string
}

// Match processes all entries, grouped by (symbol, currency), and returns
// one realized gain per disposal entry. Entries within a pair are processed
// in transaction-date order; entries sharing a date keep their input order,
// which reflects source-reported execution order.
func (m *Matcher) Match(ctx context.Context, entries []models.Entry) ([]models.RealizedGain, error) {
	grouped := make(map[pairKey][]models.Entry)
	var order []pairKey
	for _, e := range entries {
		key := pairKey{symbol: e.Symbol, currency: e.Currency}
		if _, ok := grouped[key]; !ok {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], e)
	}

	var gains []models.RealizedGain
	for _, key := range order {
		pairGains, err := m.matchPair(ctx, grouped[key])
		if err != nil {
			return nil, err
		}
		gains = append(gains, pairGains...)
	}
	return gains, nil
}

func (m *Matcher) matchPair(ctx context.Context, entries []models.Entry) ([]models.RealizedGain, error) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Date.Before(entries[j].Date)
	})

	var queue []lot
	var gains []models.RealizedGain
	for _, e := range entries {
		rate, err := m.rates.Rate(ctx, e.Currency, e.Date)
		if err != nil {
			return nil, fmt.Errorf("converting %s entry on %s: %w", e.Symbol, e.Date.Format("2006-01-02"), err)
		}
		if e.IsAcquisition() {
			queue = append(queue, acquireLot(e, rate))
			continue
		}
		gain, rest, err := m.dispose(e, rate, queue)
		if err != nil {
			return nil, err
		}
		queue = rest
		gains = append(gains, gain)
	}
	return gains, nil
}

// acquireLot converts an acquisition to a reporting-currency lot with fees
// folded into the unit cost.
func acquireLot(e models.Entry, rate decimal.Decimal) lot {
	gross := e.UnitPrice.Mul(e.Quantity).Add(e.Fees).Mul(rate)
	return lot{
		remaining: e.Quantity,
		unitCost:  gross.Div(e.Quantity),
		acquired:  e.Date,
	}
}

// dispose consumes lots from the front of the queue until the disposal
// quantity is satisfied, partially consuming the last lot as needed.
func (m *Matcher) dispose(e models.Entry, rate decimal.Decimal, queue []lot) (models.RealizedGain, []lot, error) {
	needed := e.Quantity.Neg()
	proceeds := e.UnitPrice.Mul(needed).Sub(e.Fees).Mul(rate)

	costBasis := decimal.Zero
	var matched []models.LotMatch
	for needed.IsPositive() && len(queue) > 0 {
		front := &queue[0]
		take := decimal.Min(front.remaining, needed)
		costBasis = costBasis.Add(take.Mul(front.unitCost))
		matched = append(matched, models.LotMatch{
			AcquisitionDate: front.acquired,
			Quantity:        take,
			UnitCost:        front.unitCost,
		})
		front.remaining = front.remaining.Sub(take)
		needed = needed.Sub(take)
		if front.remaining.IsZero() {
			queue = queue[1:]
		}
	}

	if needed.IsPositive() {
		if !m.cfg.AllowSyntheticLots[e.Kind] {
			return models.RealizedGain{}, nil, fmt.Errorf(
				"%w: disposal of %s %s on %s exceeds open quantity by %s",
				ErrInsufficientLots, e.Symbol, e.Currency, e.Date.Format("2006-01-02"), needed.String())
		}
		// Synthetic zero-cost lot for the excess, dated at the disposal.
		matched = append(matched, models.LotMatch{
			AcquisitionDate: e.Date,
			Quantity:        needed,
			UnitCost:        decimal.Zero,
		})
	}

	return models.RealizedGain{
		Symbol:    e.Symbol,
		Currency:  e.Currency,
		Date:      e.Date,
		Year:      e.Date.Year(),
		Proceeds:  proceeds,
		CostBasis: costBasis,
		GainLoss:  proceeds.Sub(costBasis),
		Matched:   matched,
	}, queue, nil
}
