package models

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// TaxReport maps years to tax records. The zero value is a valid empty
// report and the identity element of Merge.
type TaxReport struct {
	records map[int]TaxRecord
}

// NewTaxReport returns an empty report.
func NewTaxReport() TaxReport {
	return TaxReport{records: make(map[int]TaxRecord)}
}

// Get returns the record for a year, defaulting to a zero-valued record
// carrying that year.
func (t TaxReport) Get(year int) TaxRecord {
	if rec, ok := t.records[year]; ok {
		return rec
	}
	return TaxRecord{Year: year}
}

// Set registers a record for a year exactly once.
func (t *TaxReport) Set(year int, rec TaxRecord) error {
	if rec.Year != 0 && rec.Year != year {
		return fmt.Errorf("%w: record year %d stored under %d", ErrYearMismatch, rec.Year, year)
	}
	if t.records == nil {
		t.records = make(map[int]TaxRecord)
	}
	if _, ok := t.records[year]; ok {
		return fmt.Errorf("tax record for year %d already registered", year)
	}
	rec.Year = year
	t.records[year] = rec
	return nil
}

// Accumulate adds a delta into a year's record, creating it when absent.
// Unlike Set it may be called repeatedly for the same year.
func (t *TaxReport) Accumulate(year int, delta TaxRecord) error {
	if t.records == nil {
		t.records = make(map[int]TaxRecord)
	}
	summed, err := t.Get(year).Add(delta)
	if err != nil {
		return err
	}
	t.records[year] = summed
	return nil
}

// Years returns registered years in ascending order.
func (t TaxReport) Years() []int {
	years := make([]int, 0, len(t.records))
	for year := range t.records {
		years = append(years, year)
	}
	sort.Ints(years)
	return years
}

// Len returns the number of registered years.
func (t TaxReport) Len() int {
	return len(t.records)
}

// Add merges two reports by summing records for matching years. The
// operation is commutative and associative, and the empty report is its
// identity, so reports from independently processed sources can be folded
// in any completion order.
func (t TaxReport) Add(other TaxReport) TaxReport {
	merged := NewTaxReport()
	for year, rec := range t.records {
		merged.records[year] = rec
	}
	for year, rec := range other.records {
		existing, ok := merged.records[year]
		if !ok {
			merged.records[year] = rec
			continue
		}
		// Same key, same year: Add cannot fail.
		summed, _ := existing.Add(rec)
		merged.records[year] = summed
	}
	return merged
}

// Merge folds any number of reports, starting from the empty identity.
func Merge(reports ...TaxReport) TaxReport {
	merged := NewTaxReport()
	for _, report := range reports {
		merged = merged.Add(report)
	}
	return merged
}

// ReportRow is one display line of the yearly summary table.
type ReportRow struct {
	Name     string
	PITLabel string
	Value    decimal.Decimal
}

// Rows returns the summary rows for one year, with PIT form coordinates.
func (r TaxRecord) Rows() []ReportRow {
	return []ReportRow{
		{"Trade Revenue", "PIT-38/C20", r.TradeRevenue},
		{"Trade Cost", "PIT-38/C21", r.TradeCost},
		{"Trade Loss from Previous Years", "PIT-38/D28", r.TradeLossPrevYears},
		{"Trade Loss", "PIT-38/D28 - Next Year", r.TradeLoss()},
		{"Crypto Revenue", "PIT-38/E34", r.CryptoRevenue},
		{"Crypto Cost", "PIT-38/E35", r.CryptoCost},
		{"Crypto Cost Excess from Previous Years", "PIT-38/E36", r.CryptoCostExcessPrevYears},
		{"Crypto Cost Excess", "PIT-38/E36 - Next Year", r.CryptoCostExcess()},
		{"Domestic Interest Tax", "PIT-38/G44", r.DomesticInterestTax()},
		{"Foreign Interest Tax", "PIT-38/G45", r.ForeignInterestTax()},
		{"Foreign Interest Withholding Tax", "PIT-38/G46", r.ForeignInterestWithholding},
		{"Employment Profit Deduction", "PIT/O/B11 -> PIT-37/F124", r.EmploymentProfitDeduction()},
		{"Total Profit", "DSF-1/C18 - If Solidarity Tax > 0.00", r.TotalProfit()},
		{"Total Profit Deductions", "DSF-1/C19 - If Solidarity Tax > 0.00", r.TotalProfitDeductions()},
		{"Solidarity Tax", "", r.SolidarityTax()},
		{"Total Tax", "", r.TotalTax()},
	}
}
