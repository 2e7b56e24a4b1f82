package models

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrYearMismatch marks an attempt to add tax records for different years.
// Aggregation is always keyed by year first, so this is a programming error.
var ErrYearMismatch = errors.New("tax record year mismatch")

var (
	flatTaxRate         = decimal.NewFromFloat(0.19)
	solidarityTaxRate   = decimal.NewFromFloat(0.04)
	solidarityThreshold = decimal.NewFromInt(1_000_000)
	donationCapRate     = decimal.NewFromFloat(0.06)
)

// TaxRecord is the additive yearly aggregate of all reporting-currency
// amounts feeding the PIT-38, PIT/O and DSF-1 forms. The zero value is the
// additive identity for any year.
type TaxRecord struct {
	Year int

	TradeRevenue              decimal.Decimal
	TradeCost                 decimal.Decimal
	TradeLossPrevYears        decimal.Decimal
	CryptoRevenue             decimal.Decimal
	CryptoCost                decimal.Decimal
	CryptoCostExcessPrevYears decimal.Decimal
	DomesticInterest          decimal.Decimal
	ForeignInterest           decimal.Decimal
	ForeignInterestWithholding decimal.Decimal
	EmploymentRevenue         decimal.Decimal
	EmploymentCost            decimal.Decimal
	SocialSecurity            decimal.Decimal
	Donations                 decimal.Decimal
}

// Add sums two records field by field. Adding records for different years is
// rejected; a zero-year record acts as the identity for either operand.
func (r TaxRecord) Add(other TaxRecord) (TaxRecord, error) {
	if r.Year != 0 && other.Year != 0 && r.Year != other.Year {
		return TaxRecord{}, fmt.Errorf("%w: %d vs %d", ErrYearMismatch, r.Year, other.Year)
	}
	year := r.Year
	if year == 0 {
		year = other.Year
	}
	return TaxRecord{
		Year:                       year,
		TradeRevenue:               r.TradeRevenue.Add(other.TradeRevenue),
		TradeCost:                  r.TradeCost.Add(other.TradeCost),
		TradeLossPrevYears:         r.TradeLossPrevYears.Add(other.TradeLossPrevYears),
		CryptoRevenue:              r.CryptoRevenue.Add(other.CryptoRevenue),
		CryptoCost:                 r.CryptoCost.Add(other.CryptoCost),
		CryptoCostExcessPrevYears:  r.CryptoCostExcessPrevYears.Add(other.CryptoCostExcessPrevYears),
		DomesticInterest:           r.DomesticInterest.Add(other.DomesticInterest),
		ForeignInterest:            r.ForeignInterest.Add(other.ForeignInterest),
		ForeignInterestWithholding: r.ForeignInterestWithholding.Add(other.ForeignInterestWithholding),
		EmploymentRevenue:          r.EmploymentRevenue.Add(other.EmploymentRevenue),
		EmploymentCost:             r.EmploymentCost.Add(other.EmploymentCost),
		SocialSecurity:             r.SocialSecurity.Add(other.SocialSecurity),
		Donations:                  r.Donations.Add(other.Donations),
	}, nil
}

// Equal compares two records field by field.
func (r TaxRecord) Equal(other TaxRecord) bool {
	return r.Year == other.Year &&
		r.TradeRevenue.Equal(other.TradeRevenue) &&
		r.TradeCost.Equal(other.TradeCost) &&
		r.TradeLossPrevYears.Equal(other.TradeLossPrevYears) &&
		r.CryptoRevenue.Equal(other.CryptoRevenue) &&
		r.CryptoCost.Equal(other.CryptoCost) &&
		r.CryptoCostExcessPrevYears.Equal(other.CryptoCostExcessPrevYears) &&
		r.DomesticInterest.Equal(other.DomesticInterest) &&
		r.ForeignInterest.Equal(other.ForeignInterest) &&
		r.ForeignInterestWithholding.Equal(other.ForeignInterestWithholding) &&
		r.EmploymentRevenue.Equal(other.EmploymentRevenue) &&
		r.EmploymentCost.Equal(other.EmploymentCost) &&
		r.SocialSecurity.Equal(other.SocialSecurity) &&
		r.Donations.Equal(other.Donations)
}

// Income returns total revenue across categories.
func (r TaxRecord) Income() decimal.Decimal {
	return r.TradeRevenue.
		Add(r.CryptoRevenue).
		Add(r.DomesticInterest).
		Add(r.ForeignInterest).
		Add(r.EmploymentRevenue)
}

// Cost returns total deductible cost across categories.
func (r TaxRecord) Cost() decimal.Decimal {
	return r.TradeCost.Add(r.CryptoCost).Add(r.EmploymentCost)
}

// RealizedGain returns the signed trade result before carry-over losses.
func (r TaxRecord) RealizedGain() decimal.Decimal {
	return r.TradeRevenue.Sub(r.TradeCost)
}

// Withholding returns tax already withheld at source.
func (r TaxRecord) Withholding() decimal.Decimal {
	return r.ForeignInterestWithholding
}

// TradeProfit returns the positive trade result after carry-over losses.
func (r TaxRecord) TradeProfit() decimal.Decimal {
	amount := r.TradeRevenue.Sub(r.TradeCost).Sub(r.TradeLossPrevYears)
	if amount.IsPositive() {
		return amount
	}
	return decimal.Zero
}

// TradeLoss returns the trade loss amount to carry to the next year.
func (r TaxRecord) TradeLoss() decimal.Decimal {
	amount := r.TradeRevenue.Sub(r.TradeCost).Sub(r.TradeLossPrevYears)
	if amount.IsNegative() {
		return amount.Neg()
	}
	return decimal.Zero
}

// TradeTax returns the 19 percent tax due on taxable trade profit.
func (r TaxRecord) TradeTax() decimal.Decimal {
	return r.TradeProfit().Mul(flatTaxRate)
}

// CryptoProfit returns the positive crypto result after previous cost excess.
func (r TaxRecord) CryptoProfit() decimal.Decimal {
	amount := r.CryptoRevenue.Sub(r.CryptoCost).Sub(r.CryptoCostExcessPrevYears)
	if amount.IsPositive() {
		return amount
	}
	return decimal.Zero
}

// CryptoCostExcess returns the crypto cost excess to carry to the next year.
func (r TaxRecord) CryptoCostExcess() decimal.Decimal {
	amount := r.CryptoRevenue.Sub(r.CryptoCost).Sub(r.CryptoCostExcessPrevYears)
	if amount.IsNegative() {
		return amount.Neg()
	}
	return decimal.Zero
}

// CryptoTax returns the 19 percent tax due on taxable crypto profit.
func (r TaxRecord) CryptoTax() decimal.Decimal {
	return r.CryptoProfit().Mul(flatTaxRate)
}

// DomesticInterestTax returns the tax due on domestic interest income.
func (r TaxRecord) DomesticInterestTax() decimal.Decimal {
	return r.DomesticInterest.Mul(flatTaxRate)
}

// ForeignInterestTax returns the tax due on foreign interest income.
func (r TaxRecord) ForeignInterestTax() decimal.Decimal {
	return r.ForeignInterest.Mul(flatTaxRate)
}

// ForeignInterestRemainingTax returns payable foreign interest tax after
// withholding already paid at source.
func (r TaxRecord) ForeignInterestRemainingTax() decimal.Decimal {
	amount := r.ForeignInterestTax().Sub(r.ForeignInterestWithholding)
	if amount.IsPositive() {
		return amount
	}
	return decimal.Zero
}

// EmploymentProfit returns employment profit before tax deductions.
func (r TaxRecord) EmploymentProfit() decimal.Decimal {
	return r.EmploymentRevenue.Sub(r.EmploymentCost)
}

// EmploymentProfitDeduction returns the deductible donations amount, capped
// at 6 percent of employment profit.
func (r TaxRecord) EmploymentProfitDeduction() decimal.Decimal {
	cap := r.EmploymentProfit().Mul(donationCapRate)
	if cap.LessThan(r.Donations) {
		return cap
	}
	return r.Donations
}

// TotalProfit returns total taxable profit across categories.
func (r TaxRecord) TotalProfit() decimal.Decimal {
	return r.EmploymentProfit().Add(r.TradeProfit()).Add(r.CryptoProfit())
}

// TotalProfitDeductions returns total deductions reducing the solidarity-tax
// base.
func (r TaxRecord) TotalProfitDeductions() decimal.Decimal {
	return r.EmploymentProfitDeduction().Add(r.SocialSecurity)
}

// SolidarityTax returns the 4 percent tax due above the statutory threshold.
func (r TaxRecord) SolidarityTax() decimal.Decimal {
	base := r.TotalProfit().Sub(r.TotalProfitDeductions()).Sub(solidarityThreshold)
	if base.IsPositive() {
		return base.Mul(solidarityTaxRate)
	}
	return decimal.Zero
}

// TotalTax returns total payable tax from all supported categories.
func (r TaxRecord) TotalTax() decimal.Decimal {
	return r.TradeTax().
		Add(r.CryptoTax()).
		Add(r.DomesticInterestTax()).
		Add(r.ForeignInterestRemainingTax()).
		Add(r.SolidarityTax())
}
