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

// IBKRReporter reads an Interactive Brokers activity statement (Trade Cash
// CSV). The statement is a multi-section file where every line is prefixed
// with its section name; trades are FIFO-matched, dividend and interest rows
// are merged with their withholding rows and reported as foreign interest.
type IBKRReporter struct {
	path    string
	rates   fifo.RateResolver
	matcher *fifo.Matcher
}

func NewIBKRReporter(params map[string]string, deps Deps) (*IBKRReporter, error) {
	path := strings.TrimSpace(params["path"])
	if path == "" {
		return nil, fmt.Errorf("%w: missing path", models.ErrMalformedEntry)
	}
	return &IBKRReporter{path: path, rates: deps.Rates, matcher: deps.Matcher}, nil
}

func (r *IBKRReporter) Name() string { return "IB Trade Cash" }

func (r *IBKRReporter) Validators() map[string]ValidatorFunc {
	return map[string]ValidatorFunc{"path": ValidateFilePath(".csv")}
}

func (r *IBKRReporter) Details() string { return "File: " + filepath.Base(r.path) }

func (r *IBKRReporter) Params() map[string]string {
	return map[string]string{"path": r.path}
}

var (
	// Dividend descriptions carry a per-share suffix in parentheses;
	// withholding descriptions repeat it after a dash.
	dividendDescPattern     = regexp.MustCompile(`\s*\([^()]*\)\s*$`)
	dividendWtaxDescPattern = regexp.MustCompile(`\s-\s?.*$`)
	interestDescPattern     = regexp.MustCompile(`^[A-Z]{3}\s+`)
	interestWtaxDescPattern = regexp.MustCompile(`(?i)^.*?\bon\b\s*`)
)

var ibkrDateLayouts = []string{
	"2006-01-02, 15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ToEntryData normalizes the Trades, Dividends, Interest and Withholding Tax
// sections into entries. Summary and subtotal rows are dropped; data rows
// with unparsable amounts are rejected.
func (r *IBKRReporter) ToEntryData(src io.Reader) ([]models.Entry, error) {
	sections, err := splitIBSections(src)
	if err != nil {
		return nil, err
	}

	entries, err := parseIBTrades(sections["Trades"])
	if err != nil {
		return nil, err
	}

	withholding, err := parseIBWithholding(sections["Withholding Tax"])
	if err != nil {
		return nil, err
	}
	dividends, err := parseIBIncome(sections["Dividends"], withholding, dividendDescPattern, dividendWtaxDescPattern, models.KindDividend)
	if err != nil {
		return nil, err
	}
	interest, err := parseIBIncome(sections["Interest"], withholding, interestDescPattern, interestWtaxDescPattern, models.KindInterest)
	if err != nil {
		return nil, err
	}

	entries = append(entries, dividends...)
	entries = append(entries, interest...)
	return entries, nil
}

func (r *IBKRReporter) Generate(ctx context.Context, logs *models.TaxReportLogs) (models.TaxReport, error) {
	file, err := os.Open(r.path)
	if err != nil {
		return models.TaxReport{}, fmt.Errorf("opening IB statement: %w", err)
	}
	defer file.Close()

	entries, err := r.ToEntryData(file)
	if err != nil {
		return models.TaxReport{}, err
	}
	return aggregateIBEntries(ctx, r.Name(), entries, r.rates, r.matcher, logs)
}

// aggregateIBEntries folds IB-style entries into a report: trade entries go
// through the FIFO matcher, income entries land as foreign interest with
// their withholding. Shared by the statement and Flex Query reporters.
func aggregateIBEntries(
	ctx context.Context,
	name string,
	entries []models.Entry,
	rates fifo.RateResolver,
	matcher *fifo.Matcher,
	logs *models.TaxReportLogs,
) (models.TaxReport, error) {
	var trades []models.Entry
	report := models.NewTaxReport()
	for _, entry := range entries {
		if entry.Kind == models.KindTrade {
			trades = append(trades, entry)
			continue
		}
		rate, err := rates.Rate(ctx, entry.Currency, entry.Date)
		if err != nil {
			return models.TaxReport{}, fmt.Errorf("converting IB income row on %s: %w", entry.Date.Format("2006-01-02"), err)
		}
		delta := models.TaxRecord{
			Year:                       entry.Year(),
			ForeignInterest:            entry.UnitPrice.Mul(entry.Quantity).Mul(rate),
			ForeignInterestWithholding: entry.Withholding.Mul(rate),
		}
		if err := report.Accumulate(entry.Year(), delta); err != nil {
			return models.TaxReport{}, err
		}
		logChange(logs, name, models.LogChange{
			Date:   entry.Date,
			Detail: strings.ToLower(string(entry.Kind)) + " " + entry.Symbol,
			Delta:  delta,
		})
	}

	gains, err := matcher.Match(ctx, trades)
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
		logChange(logs, name, models.LogChange{
			Date:   gain.Date,
			Detail: fmt.Sprintf("trade %s (%d lots)", gain.Symbol, len(gain.Matched)),
			Delta:  delta,
		})
	}
	return report, nil
}

// splitIBSections groups statement rows by their leading section name.
// The first row of each section is its header.
func splitIBSections(src io.Reader) (map[string][][]string, error) {
	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	sections := make(map[string][][]string)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: reading IB statement: %v", models.ErrMalformedEntry, err)
		}
		if len(row) < 2 {
			continue
		}
		sections[row[0]] = append(sections[row[0]], row)
	}
	return sections, nil
}

// ibSectionColumns returns the column index map from a section's header row
// and the data rows that follow it.
func ibSectionColumns(rows [][]string) (map[string]int, [][]string) {
	if len(rows) == 0 {
		return nil, nil
	}
	cols := make(map[string]int)
	for i, name := range rows[0] {
		cols[strings.TrimSpace(name)] = i
	}
	var data [][]string
	for _, row := range rows[1:] {
		if len(row) > 1 && row[1] == "Data" {
			data = append(data, row)
		}
	}
	return cols, data
}

func parseIBTrades(rows [][]string) ([]models.Entry, error) {
	cols, data := ibSectionColumns(rows)
	var entries []models.Entry
	for _, row := range data {
		// Subtotal and summary rows carry no date.
		date, err := parseAnyDate(field(row, cols, "Date/Time"), ibkrDateLayouts)
		if err != nil {
			continue
		}
		quantity, err := decimal.NewFromString(strings.ReplaceAll(field(row, cols, "Quantity"), ",", ""))
		if err != nil || quantity.IsZero() {
			return nil, fmt.Errorf("%w: IB trade with unparsable quantity %q", models.ErrMalformedEntry, field(row, cols, "Quantity"))
		}
		proceeds, err := parseMoney(field(row, cols, "Proceeds"))
		if err != nil {
			return nil, fmt.Errorf("%w: IB trade on %s: %v", models.ErrMalformedEntry, field(row, cols, "Date/Time"), err)
		}
		commission := decimal.Zero
		if raw := field(row, cols, "Comm/Fee"); raw != "" {
			commission, err = parseMoney(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: IB trade on %s: %v", models.ErrMalformedEntry, field(row, cols, "Date/Time"), err)
			}
		}
		entry, err := models.NewEntry(
			field(row, cols, "Symbol"),
			date,
			quantity,
			proceeds.Abs().Div(quantity.Abs()),
			field(row, cols, "Currency"),
			commission.Abs(),
			models.KindTrade,
		)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

type ibWithholdingKey struct {
	currency    string
	description string
}

// parseIBWithholding indexes withholding amounts by currency and raw
// description; income parsing consumes them after normalizing descriptions.
func parseIBWithholding(rows [][]string) (map[ibWithholdingKey][]decimal.Decimal, error) {
	cols, data := ibSectionColumns(rows)
	withholding := make(map[ibWithholdingKey][]decimal.Decimal)
	for _, row := range data {
		if _, err := parseAnyDate(field(row, cols, "Date"), ibkrDateLayouts); err != nil {
			continue
		}
		amount, err := parseMoney(field(row, cols, "Amount"))
		if err != nil {
			return nil, fmt.Errorf("%w: IB withholding row: %v", models.ErrMalformedEntry, err)
		}
		key := ibWithholdingKey{
			currency:    field(row, cols, "Currency"),
			description: field(row, cols, "Description"),
		}
		withholding[key] = append(withholding[key], amount.Abs())
	}
	return withholding, nil
}

func parseIBIncome(
	rows [][]string,
	withholding map[ibWithholdingKey][]decimal.Decimal,
	descPattern, wtaxDescPattern *regexp.Regexp,
	kind models.EntryKind,
) ([]models.Entry, error) {
	cols, data := ibSectionColumns(rows)

	// Normalize withholding descriptions with this income type's pattern so
	// rows pair up the way the statements print them.
	normalized := make(map[ibWithholdingKey][]decimal.Decimal)
	for key, amounts := range withholding {
		key.description = wtaxDescPattern.ReplaceAllString(key.description, "")
		normalized[key] = append(normalized[key], amounts...)
	}

	var entries []models.Entry
	for _, row := range data {
		date, err := parseAnyDate(field(row, cols, "Date"), ibkrDateLayouts)
		if err != nil {
			continue
		}
		amount, err := parseMoney(field(row, cols, "Amount"))
		if err != nil {
			return nil, fmt.Errorf("%w: IB income row on %s: %v", models.ErrMalformedEntry, field(row, cols, "Date"), err)
		}
		description := descPattern.ReplaceAllString(field(row, cols, "Description"), "")
		key := ibWithholdingKey{currency: field(row, cols, "Currency"), description: description}

		// Debit rows (margin interest, reversals) keep their sign through the
		// quantity so they net against credit income.
		quantity := decimal.NewFromInt(1)
		if amount.IsNegative() {
			quantity = quantity.Neg()
		}
		entry, err := models.NewEntry(description, date, quantity, amount.Abs(), key.currency, decimal.Zero, kind)
		if err != nil {
			return nil, err
		}
		if amounts := normalized[key]; len(amounts) > 0 {
			entry.Withholding = amounts[0]
			normalized[key] = amounts[1:]
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
