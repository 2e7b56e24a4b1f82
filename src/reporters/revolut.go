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
	"time"

	"github.com/shopspring/decimal"

	"github.com/username/pitfolio/src/models"
)

// RevolutReporter reads a Revolut savings statement export and reports the
// gross interest rows as domestic interest income. Statements are already in
// the reporting currency.
type RevolutReporter struct {
	path string
}

func NewRevolutReporter(params map[string]string) (*RevolutReporter, error) {
	path := strings.TrimSpace(params["path"])
	if path == "" {
		return nil, fmt.Errorf("%w: missing path", models.ErrMalformedEntry)
	}
	return &RevolutReporter{path: path}, nil
}

func (r *RevolutReporter) Name() string { return "Revolut Interest" }

func (r *RevolutReporter) Validators() map[string]ValidatorFunc {
	return map[string]ValidatorFunc{"path": ValidateFilePath(".csv")}
}

func (r *RevolutReporter) Details() string { return "File: " + filepath.Base(r.path) }

func (r *RevolutReporter) Params() map[string]string {
	return map[string]string{"path": r.path}
}

var moneyInPattern = regexp.MustCompile(`[+-]?\d+(?:\.\d*)?`)

var revolutDateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006 15:04",
	"02/01/2006",
}

// ToEntryData normalizes gross-interest statement rows into entries. Rows
// that are not gross interest are dropped; interest rows with unparsable
// dates or amounts are rejected.
func (r *RevolutReporter) ToEntryData(src io.Reader) ([]models.Entry, error) {
	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: reading Revolut header: %v", models.ErrMalformedEntry, err)
	}
	cols := headerIndex(header)
	for _, required := range []string{"Completed Date", "Description", "Money in"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("%w: Revolut statement missing column %q", models.ErrMalformedEntry, required)
		}
	}

	var entries []models.Entry
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: Revolut row %d: %v", models.ErrMalformedEntry, line, err)
		}
		if !strings.HasPrefix(field(row, cols, "Description"), "Gross interest") {
			continue
		}
		date, err := parseAnyDate(field(row, cols, "Completed Date"), revolutDateLayouts)
		if err != nil {
			return nil, fmt.Errorf("%w: Revolut row %d: %v", models.ErrMalformedEntry, line, err)
		}
		rawAmount := strings.ReplaceAll(field(row, cols, "Money in"), ",", "")
		match := moneyInPattern.FindString(rawAmount)
		if match == "" {
			return nil, fmt.Errorf("%w: Revolut row %d: unparsable amount %q", models.ErrMalformedEntry, line, rawAmount)
		}
		amount, err := decimal.NewFromString(match)
		if err != nil {
			return nil, fmt.Errorf("%w: Revolut row %d: %v", models.ErrMalformedEntry, line, err)
		}
		entry, err := models.NewEntry("", date, decimal.NewFromInt(1), amount, "PLN", decimal.Zero, models.KindInterest)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (r *RevolutReporter) Generate(ctx context.Context, logs *models.TaxReportLogs) (models.TaxReport, error) {
	file, err := os.Open(r.path)
	if err != nil {
		return models.TaxReport{}, fmt.Errorf("opening Revolut statement: %w", err)
	}
	defer file.Close()

	entries, err := r.ToEntryData(file)
	if err != nil {
		return models.TaxReport{}, err
	}

	report := models.NewTaxReport()
	for _, entry := range entries {
		delta := models.TaxRecord{
			Year:             entry.Year(),
			DomesticInterest: entry.UnitPrice,
		}
		if err := report.Accumulate(entry.Year(), delta); err != nil {
			return models.TaxReport{}, err
		}
		logChange(logs, r.Name(), models.LogChange{
			Date:   entry.Date,
			Detail: "gross interest",
			Delta:  delta,
		})
	}
	return report, nil
}

func headerIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	return cols
}

func field(row []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseAnyDate(raw string, layouts []string) (time.Time, error) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable date %q", raw)
}
