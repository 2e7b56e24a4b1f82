package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LotMatch records one lot consumed (fully or partially) by a disposal.
// Kept for audit display only; totals live on the RealizedGain.
type LotMatch struct {
	AcquisitionDate time.Time
	Quantity        decimal.Decimal
	UnitCost        decimal.Decimal // reporting currency
}

// RealizedGain is the outcome of matching one disposal against open lots.
// All amounts are in the reporting currency; the year is the disposal year
// regardless of when the matched lots were acquired.
type RealizedGain struct {
	Symbol    string
	Currency  string
	Date      time.Time
	Year      int
	Proceeds  decimal.Decimal
	CostBasis decimal.Decimal
	GainLoss  decimal.Decimal
	Matched   []LotMatch
}
