package reporters

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/username/pitfolio/src/models"
)

// TradeReporter builds a one-year report from user-entered trade totals,
// for brokers with no supported export format.
type TradeReporter struct {
	year          int
	revenue       decimal.Decimal
	cost          decimal.Decimal
	lossPrevYears decimal.Decimal
}

func NewTradeReporter(params map[string]string) (*TradeReporter, error) {
	year, err := paramYear(params, "year")
	if err != nil {
		return nil, err
	}
	revenue, err := paramAmount(params, "trade_revenue")
	if err != nil {
		return nil, err
	}
	cost, err := paramAmount(params, "trade_cost")
	if err != nil {
		return nil, err
	}
	loss, err := paramAmount(params, "trade_loss_from_previous_years")
	if err != nil {
		return nil, err
	}
	return &TradeReporter{year: year, revenue: revenue, cost: cost, lossPrevYears: loss}, nil
}

func (r *TradeReporter) Name() string { return "Trade" }

func (r *TradeReporter) Validators() map[string]ValidatorFunc {
	return map[string]ValidatorFunc{
		"year":                           ValidateYear,
		"trade_revenue":                  ValidateAmount,
		"trade_cost":                     ValidateAmount,
		"trade_loss_from_previous_years": ValidateAmount,
	}
}

func (r *TradeReporter) Details() string { return fmt.Sprintf("Year: %d", r.year) }

func (r *TradeReporter) Params() map[string]string {
	return map[string]string{
		"year":                           fmt.Sprintf("%d", r.year),
		"trade_revenue":                  r.revenue.String(),
		"trade_cost":                     r.cost.String(),
		"trade_loss_from_previous_years": r.lossPrevYears.String(),
	}
}

func (r *TradeReporter) Generate(ctx context.Context, logs *models.TaxReportLogs) (models.TaxReport, error) {
	record := models.TaxRecord{
		Year:               r.year,
		TradeRevenue:       r.revenue,
		TradeCost:          r.cost,
		TradeLossPrevYears: r.lossPrevYears,
	}
	report := models.NewTaxReport()
	if err := report.Set(r.year, record); err != nil {
		return models.TaxReport{}, err
	}
	logChange(logs, r.Name(), models.LogChange{
		Date:   time.Date(r.year, 12, 31, 0, 0, 0, 0, time.UTC),
		Detail: "yearly trade totals",
		Delta:  record,
	})
	return report, nil
}
