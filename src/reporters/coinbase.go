package reporters

import (
	"bufio"
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

// CoinbaseReporter reads a Coinbase transaction export and reports crypto
// revenue and cost per year. Crypto disposals are taxed on a revenue/cost
// basis, so no lot matching is involved: buys contribute subtotal plus fees
// as cost, sells contribute subtotal as revenue and fees as cost.
type CoinbaseReporter struct {
	path  string
	rates fifo.RateResolver
}

// coinbasePreambleLines is the number of banner lines Coinbase prepends
// before the CSV header.
const coinbasePreambleLines = 3

func NewCoinbaseReporter(params map[string]string, deps Deps) (*CoinbaseReporter, error) {
	path := strings.TrimSpace(params["path"])
	if path == "" {
		return nil, fmt.Errorf("%w: missing path", models.ErrMalformedEntry)
	}
	return &CoinbaseReporter{path: path, rates: deps.Rates}, nil
}

func (r *CoinbaseReporter) Name() string { return "Coinbase" }

func (r *CoinbaseReporter) Validators() map[string]ValidatorFunc {
	return map[string]ValidatorFunc{"path": ValidateFilePath(".csv")}
}

func (r *CoinbaseReporter) Details() string { return "File: " + filepath.Base(r.path) }

func (r *CoinbaseReporter) Params() map[string]string {
	return map[string]string{"path": r.path}
}

var moneyPattern = regexp.MustCompile(`-?[\d,]+\.?\d*`)

var coinbaseDateLayouts = []string{
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05 UTC",
	"2006-01-02",
}

// ToEntryData normalizes advanced-trade rows into crypto entries. Other
// transaction types (staking, transfers, conversions) are dropped; trade
// rows with unparsable fields are rejected.
func (r *CoinbaseReporter) ToEntryData(src io.Reader) ([]models.Entry, error) {
	buffered := bufio.NewReader(src)
	for i := 0; i < coinbasePreambleLines; i++ {
		if _, err := buffered.ReadString('\n'); err != nil {
			return nil, fmt.Errorf("%w: reading Coinbase preamble: %v", models.ErrMalformedEntry, err)
		}
	}

	reader := csv.NewReader(buffered)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: reading Coinbase header: %v", models.ErrMalformedEntry, err)
	}
	cols := headerIndex(header)
	for _, required := range []string{"Timestamp", "Transaction Type", "Asset", "Quantity Transacted", "Price Currency", "Subtotal", "Fees and/or Spread"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("%w: Coinbase export missing column %q", models.ErrMalformedEntry, required)
		}
	}

	var entries []models.Entry
	for line := coinbasePreambleLines + 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: Coinbase row %d: %v", models.ErrMalformedEntry, line, err)
		}
		txType := field(row, cols, "Transaction Type")
		if txType != "Advanced Trade Buy" && txType != "Advanced Trade Sell" {
			continue
		}
		date, err := parseAnyDate(field(row, cols, "Timestamp"), coinbaseDateLayouts)
		if err != nil {
			return nil, fmt.Errorf("%w: Coinbase row %d: %v", models.ErrMalformedEntry, line, err)
		}
		quantity, err := decimal.NewFromString(field(row, cols, "Quantity Transacted"))
		if err != nil || quantity.IsZero() {
			return nil, fmt.Errorf("%w: Coinbase row %d: unparsable quantity %q", models.ErrMalformedEntry, line, field(row, cols, "Quantity Transacted"))
		}
		subtotal, err := parseMoney(field(row, cols, "Subtotal"))
		if err != nil {
			return nil, fmt.Errorf("%w: Coinbase row %d: %v", models.ErrMalformedEntry, line, err)
		}
		fees, err := parseMoney(field(row, cols, "Fees and/or Spread"))
		if err != nil {
			return nil, fmt.Errorf("%w: Coinbase row %d: %v", models.ErrMalformedEntry, line, err)
		}
		if txType == "Advanced Trade Sell" {
			quantity = quantity.Neg()
		}
		entry, err := models.NewEntry(
			field(row, cols, "Asset"),
			date,
			quantity,
			subtotal.Div(quantity.Abs()),
			field(row, cols, "Price Currency"),
			fees,
			models.KindCrypto,
		)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (r *CoinbaseReporter) Generate(ctx context.Context, logs *models.TaxReportLogs) (models.TaxReport, error) {
	file, err := os.Open(r.path)
	if err != nil {
		return models.TaxReport{}, fmt.Errorf("opening Coinbase export: %w", err)
	}
	defer file.Close()

	entries, err := r.ToEntryData(file)
	if err != nil {
		return models.TaxReport{}, err
	}

	report := models.NewTaxReport()
	for _, entry := range entries {
		rate, err := r.rates.Rate(ctx, entry.Currency, entry.Date)
		if err != nil {
			return models.TaxReport{}, fmt.Errorf("converting Coinbase %s trade on %s: %w",
				entry.Symbol, entry.Date.Format("2006-01-02"), err)
		}
		subtotal := entry.UnitPrice.Mul(entry.Quantity.Abs()).Mul(rate)
		fees := entry.Fees.Mul(rate)
		delta := models.TaxRecord{Year: entry.Year()}
		if entry.IsAcquisition() {
			delta.CryptoCost = subtotal.Add(fees)
		} else {
			delta.CryptoRevenue = subtotal
			delta.CryptoCost = fees
		}
		if err := report.Accumulate(entry.Year(), delta); err != nil {
			return models.TaxReport{}, err
		}
		logChange(logs, r.Name(), models.LogChange{
			Date:   entry.Date,
			Detail: fmt.Sprintf("advanced trade %s", entry.Symbol),
			Delta:  delta,
		})
	}
	return report, nil
}

func parseMoney(raw string) (decimal.Decimal, error) {
	match := moneyPattern.FindString(raw)
	if match == "" {
		return decimal.Zero, fmt.Errorf("unparsable amount %q", raw)
	}
	return decimal.NewFromString(strings.ReplaceAll(match, ",", ""))
}
