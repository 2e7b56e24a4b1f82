package reporters

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/username/pitfolio/src/models"
)

// EmploymentReporter builds a one-year report from user-entered employment
// values (PIT-11 totals, social security, donations).
type EmploymentReporter struct {
	year           int
	revenue        decimal.Decimal
	cost           decimal.Decimal
	socialSecurity decimal.Decimal
	donations      decimal.Decimal
}

func NewEmploymentReporter(params map[string]string) (*EmploymentReporter, error) {
	year, err := paramYear(params, "year")
	if err != nil {
		return nil, err
	}
	revenue, err := paramAmount(params, "employment_revenue")
	if err != nil {
		return nil, err
	}
	cost, err := paramAmount(params, "employment_cost")
	if err != nil {
		return nil, err
	}
	social, err := paramAmount(params, "social_security_contributions")
	if err != nil {
		return nil, err
	}
	donations, err := paramAmount(params, "donations")
	if err != nil {
		return nil, err
	}
	return &EmploymentReporter{
		year:           year,
		revenue:        revenue,
		cost:           cost,
		socialSecurity: social,
		donations:      donations,
	}, nil
}

func (r *EmploymentReporter) Name() string { return "Employment" }

func (r *EmploymentReporter) Validators() map[string]ValidatorFunc {
	return map[string]ValidatorFunc{
		"year":                          ValidateYear,
		"employment_revenue":            ValidateAmount,
		"employment_cost":               ValidateAmount,
		"social_security_contributions": ValidateAmount,
		"donations":                     ValidateAmount,
	}
}

func (r *EmploymentReporter) Details() string { return fmt.Sprintf("Year: %d", r.year) }

func (r *EmploymentReporter) Params() map[string]string {
	return map[string]string{
		"year":                          fmt.Sprintf("%d", r.year),
		"employment_revenue":            r.revenue.String(),
		"employment_cost":               r.cost.String(),
		"social_security_contributions": r.socialSecurity.String(),
		"donations":                     r.donations.String(),
	}
}

func (r *EmploymentReporter) Generate(ctx context.Context, logs *models.TaxReportLogs) (models.TaxReport, error) {
	record := models.TaxRecord{
		Year:              r.year,
		EmploymentRevenue: r.revenue,
		EmploymentCost:    r.cost,
		SocialSecurity:    r.socialSecurity,
		Donations:         r.donations,
	}
	report := models.NewTaxReport()
	if err := report.Set(r.year, record); err != nil {
		return models.TaxReport{}, err
	}
	logChange(logs, r.Name(), models.LogChange{
		Date:   time.Date(r.year, 12, 31, 0, 0, 0, 0, time.UTC),
		Detail: "yearly employment totals",
		Delta:  record,
	})
	return report, nil
}
