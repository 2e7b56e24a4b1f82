package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrMalformedEntry marks a source row that failed normalization. Rows are
// rejected, never silently coerced into zero values.
var ErrMalformedEntry = errors.New("malformed entry")

// EntryKind classifies a normalized financial event and selects the tax
// category its amounts land in.
type EntryKind string

const (
	KindTrade      EntryKind = "TRADE"
	KindDividend   EntryKind = "DIVIDEND"
	KindCrypto     EntryKind = "CRYPTO"
	KindEmployment EntryKind = "EMPLOYMENT"
	KindInterest   EntryKind = "INTEREST"
)

// Entry is the canonical representation of one normalized financial event.
// Adapters construct entries from raw source rows; the engine consumes them
// and never mutates them.
type Entry struct {
	Symbol      string
	Date        time.Time
	Quantity    decimal.Decimal // signed: positive = acquisition, negative = disposal
	UnitPrice   decimal.Decimal // source currency
	Currency    string
	Fees        decimal.Decimal // source currency
	Kind        EntryKind
	Withholding decimal.Decimal // source currency
}

// NewEntry validates and builds a canonical entry.
func NewEntry(symbol string, date time.Time, quantity, unitPrice decimal.Decimal, currency string, fees decimal.Decimal, kind EntryKind) (Entry, error) {
	if quantity.IsZero() {
		return Entry{}, fmt.Errorf("%w: zero quantity for %q on %s", ErrMalformedEntry, symbol, date.Format("2006-01-02"))
	}
	if unitPrice.IsNegative() {
		return Entry{}, fmt.Errorf("%w: negative unit price for %q on %s", ErrMalformedEntry, symbol, date.Format("2006-01-02"))
	}
	if fees.IsNegative() {
		return Entry{}, fmt.Errorf("%w: negative fees for %q on %s", ErrMalformedEntry, symbol, date.Format("2006-01-02"))
	}
	if currency == "" {
		return Entry{}, fmt.Errorf("%w: missing currency for %q on %s", ErrMalformedEntry, symbol, date.Format("2006-01-02"))
	}
	return Entry{
		Symbol:    symbol,
		Date:      date,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		Currency:  currency,
		Fees:      fees,
		Kind:      kind,
	}, nil
}

// IsAcquisition reports whether the entry opens a position.
func (e Entry) IsAcquisition() bool {
	return e.Quantity.IsPositive()
}

// Year returns the calendar year the entry is taxed in.
func (e Entry) Year() int {
	return e.Date.Year()
}
