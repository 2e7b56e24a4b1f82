package reporters

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/username/pitfolio/src/fifo"
	"github.com/username/pitfolio/src/models"
)

// SchwabReporter reads a Charles Schwab employee-sponsored account export:
// award deposits open lots, sales are FIFO-matched against them, dividends
// and their withholding land as foreign interest.
type SchwabReporter struct {
	path    string
	rates   fifo.RateResolver
	matcher *fifo.Matcher
}

func NewSchwabReporter(params map[string]string, deps Deps) (*SchwabReporter, error) {
	path := strings.TrimSpace(params["path"])
	if path == "" {
		return nil, fmt.Errorf("%w: missing path", models.ErrMalformedEntry)
	}
	return &SchwabReporter{path: path, rates: deps.Rates, matcher: deps.Matcher}, nil
}

func (r *SchwabReporter) Name() string { return "Schwab Employee Sponsored" }

func (r *SchwabReporter) Validators() map[string]ValidatorFunc {
	return map[string]ValidatorFunc{"path": ValidateFilePath(".csv")}
}

func (r *SchwabReporter) Details() string { return "File: " + filepath.Base(r.path) }

func (r *SchwabReporter) Params() map[string]string {
	return map[string]string{"path": r.path}
}

var schwabDateLayouts = []string{
	"01/02/2006",
	"2006-01-02",
}

// ToEntryData normalizes Schwab action rows. Lapse rows are dropped by
// design (expired awards have no tax effect); an unknown action is an error
// because silently skipping it could understate liability.
func (r *SchwabReporter) ToEntryData(src io.Reader) ([]models.Entry, error) {
	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: reading Schwab header: %v", models.ErrMalformedEntry, err)
	}
	cols := headerIndex(header)
	for _, required := range []string{"Date", "Action", "Symbol"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("%w: Schwab export missing column %q", models.ErrMalformedEntry, required)
		}
	}

	var entries []models.Entry
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: Schwab row %d: %v", models.ErrMalformedEntry, line, err)
		}
		entry, keep, err := r.normalizeRow(row, cols)
		if err != nil {
			return nil, fmt.Errorf("%w: Schwab row %d: %v", models.ErrMalformedEntry, line, err)
		}
		if keep {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (r *SchwabReporter) normalizeRow(row []string, cols map[string]int) (models.Entry, bool, error) {
	date, err := parseAnyDate(field(row, cols, "Date"), schwabDateLayouts)
	if err != nil {
		return models.Entry{}, false, err
	}
	symbol := field(row, cols, "Symbol")

	switch action := field(row, cols, "Action"); action {
	case "Deposit":
		quantity, err := decimal.NewFromString(field(row, cols, "Quantity"))
		if err != nil || !quantity.IsPositive() {
			return models.Entry{}, false, fmt.Errorf("unparsable deposit quantity %q", field(row, cols, "Quantity"))
		}
		price, currency, err := parseMoneyWithCurrency(field(row, cols, "PurchasePrice"))
		if err != nil {
			return models.Entry{}, false, err
		}
		entry, err := models.NewEntry(symbol, date, quantity, price, currency, decimal.Zero, models.KindEmployment)
		return entry, err == nil, err

	case "Sale":
		shares, err := decimal.NewFromString(field(row, cols, "Shares"))
		if err != nil || !shares.IsPositive() {
			return models.Entry{}, false, fmt.Errorf("unparsable sale shares %q", field(row, cols, "Shares"))
		}
		price, currency, err := parseMoneyWithCurrency(field(row, cols, "SalePrice"))
		if err != nil {
			return models.Entry{}, false, err
		}
		fees := decimal.Zero
		if raw := field(row, cols, "FeesAndCommissions"); raw != "" {
			fees, _, err = parseMoneyWithCurrency(raw)
			if err != nil {
				return models.Entry{}, false, err
			}
			fees = fees.Abs()
		}
		entry, err := models.NewEntry(symbol, date, shares.Neg(), price, currency, fees, models.KindEmployment)
		return entry, err == nil, err

	case "Dividend":
		amount, currency, err := parseMoneyWithCurrency(field(row, cols, "Amount"))
		if err != nil {
			return models.Entry{}, false, err
		}
		entry, err := models.NewEntry(symbol, date, decimal.NewFromInt(1), amount, currency, decimal.Zero, models.KindDividend)
		return entry, err == nil, err

	case "Tax Withholding":
		amount, currency, err := parseMoneyWithCurrency(field(row, cols, "Amount"))
		if err != nil {
			return models.Entry{}, false, err
		}
		entry, err := models.NewEntry(symbol, date, decimal.NewFromInt(1), decimal.Zero, currency, decimal.Zero, models.KindDividend)
		if err != nil {
			return models.Entry{}, false, err
		}
		entry.Withholding = amount.Abs()
		return entry, true, nil

	case "Wire Transfer":
		fees, currency, err := parseMoneyWithCurrency(field(row, cols, "FeesAndCommissions"))
		if err != nil {
			return models.Entry{}, false, err
		}
		entry, err := models.NewEntry(symbol, date, decimal.NewFromInt(1), decimal.Zero, currency, fees.Abs(), models.KindTrade)
		return entry, err == nil, err

	case "Lapse":
		return models.Entry{}, false, nil

	default:
		return models.Entry{}, false, fmt.Errorf("unknown action %q", action)
	}
}

func (r *SchwabReporter) Generate(ctx context.Context, logs *models.TaxReportLogs) (models.TaxReport, error) {
	file, err := os.Open(r.path)
	if err != nil {
		return models.TaxReport{}, fmt.Errorf("opening Schwab export: %w", err)
	}
	defer file.Close()

	entries, err := r.ToEntryData(file)
	if err != nil {
		return models.TaxReport{}, err
	}

	var equity []models.Entry
	report := models.NewTaxReport()
	for _, entry := range entries {
		switch entry.Kind {
		case models.KindEmployment:
			equity = append(equity, entry)

		case models.KindDividend:
			rate, err := r.rates.Rate(ctx, entry.Currency, entry.Date)
			if err != nil {
				return models.TaxReport{}, fmt.Errorf("converting Schwab dividend on %s: %w", entry.Date.Format("2006-01-02"), err)
			}
			delta := models.TaxRecord{
				Year:                       entry.Year(),
				ForeignInterest:            entry.UnitPrice.Mul(rate),
				ForeignInterestWithholding: entry.Withholding.Mul(rate),
			}
			if err := report.Accumulate(entry.Year(), delta); err != nil {
				return models.TaxReport{}, err
			}
			logChange(logs, r.Name(), models.LogChange{
				Date:   entry.Date,
				Detail: "dividend " + entry.Symbol,
				Delta:  delta,
			})

		case models.KindTrade:
			rate, err := r.rates.Rate(ctx, entry.Currency, entry.Date)
			if err != nil {
				return models.TaxReport{}, fmt.Errorf("converting Schwab fee on %s: %w", entry.Date.Format("2006-01-02"), err)
			}
			delta := models.TaxRecord{
				Year:      entry.Year(),
				TradeCost: entry.Fees.Mul(rate),
			}
			if err := report.Accumulate(entry.Year(), delta); err != nil {
				return models.TaxReport{}, err
			}
			logChange(logs, r.Name(), models.LogChange{
				Date:   entry.Date,
				Detail: "wire transfer fee",
				Delta:  delta,
			})
		}
	}

	gains, err := r.matcher.Match(ctx, equity)
	if err != nil {
		return models.TaxReport{}, err
	}
	for _, gain := range gains {
		delta := models.TaxRecord{
			Year:         gain.Year,
			TradeRevenue: gain.Proceeds,
			TradeCost:    gain.CostBasis,
		}
		if err := report.Accumulate(gain.Year, delta); err != nil {
			return models.TaxReport{}, err
		}
		logChange(logs, r.Name(), models.LogChange{
			Date:   gain.Date,
			Detail: fmt.Sprintf("sale %s (%d lots)", gain.Symbol, len(gain.Matched)),
			Delta:  delta,
		})
	}
	return report, nil
}

var moneyWithCurrencyPattern = regexp.MustCompile(`(-?)([$\x{20AC}£]?)([\d,]+\.?\d*)`)

// parseMoneyWithCurrency parses amounts like "$1,234.56" or "-€10.00",
// inferring the row currency from the symbol. Unmarked amounts default to
// USD, the account currency of these exports.
func parseMoneyWithCurrency(raw string) (decimal.Decimal, string, error) {
	match := moneyWithCurrencyPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if match == nil {
		return decimal.Zero, "", fmt.Errorf("unparsable amount %q", raw)
	}
	amount, err := decimal.NewFromString(strings.ReplaceAll(match[3], ",", ""))
	if err != nil {
		return decimal.Zero, "", fmt.Errorf("unparsable amount %q: %w", raw, err)
	}
	if match[1] == "-" {
		amount = amount.Neg()
	}
	currency := "USD"
	switch match[2] {
	case "€":
		currency = "EUR"
	case "£":
		currency = "GBP"
	}
	return amount, currency, nil
}
