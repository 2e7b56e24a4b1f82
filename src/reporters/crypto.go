package reporters

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/username/pitfolio/src/models"
)

// CryptoReporter builds a one-year report from user-entered crypto totals.
type CryptoReporter struct {
	year                int
	revenue             decimal.Decimal
	cost                decimal.Decimal
	costExcessPrevYears decimal.Decimal
}

func NewCryptoReporter(params map[string]string) (*CryptoReporter, error) {
	year, err := paramYear(params, "year")
	if err != nil {
		return nil, err
	}
	revenue, err := paramAmount(params, "crypto_revenue")
	if err != nil {
		return nil, err
	}
	cost, err := paramAmount(params, "crypto_cost")
	if err != nil {
		return nil, err
	}
	excess, err := paramAmount(params, "crypto_cost_excess_from_previous_years")
	if err != nil {
		return nil, err
	}
	return &CryptoReporter{year: year, revenue: revenue, cost: cost, costExcessPrevYears: excess}, nil
}

func (r *CryptoReporter) Name() string { return "Crypto" }

func (r *CryptoReporter) Validators() map[string]ValidatorFunc {
	return map[string]ValidatorFunc{
		"year":                                   ValidateYear,
		"crypto_revenue":                         ValidateAmount,
		"crypto_cost":                            ValidateAmount,
		"crypto_cost_excess_from_previous_years": ValidateAmount,
	}
}

func (r *CryptoReporter) Details() string { return fmt.Sprintf("Year: %d", r.year) }

func (r *CryptoReporter) Params() map[string]string {
	return map[string]string{
		"year":                                   fmt.Sprintf("%d", r.year),
		"crypto_revenue":                         r.revenue.String(),
		"crypto_cost":                            r.cost.String(),
		"crypto_cost_excess_from_previous_years": r.costExcessPrevYears.String(),
	}
}

func (r *CryptoReporter) Generate(ctx context.Context, logs *models.TaxReportLogs) (models.TaxReport, error) {
	record := models.TaxRecord{
		Year:                      r.year,
		CryptoRevenue:             r.revenue,
		CryptoCost:                r.cost,
		CryptoCostExcessPrevYears: r.costExcessPrevYears,
	}
	report := models.NewTaxReport()
	if err := report.Set(r.year, record); err != nil {
		return models.TaxReport{}, err
	}
	logChange(logs, r.Name(), models.LogChange{
		Date:   time.Date(r.year, 12, 31, 0, 0, 0, 0, time.UTC),
		Detail: "yearly crypto totals",
		Delta:  record,
	})
	return report, nil
}
