package reporters

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/username/pitfolio/src/fifo"
	"github.com/username/pitfolio/src/models"
)

// FlexQueryReporter pulls statements straight from the IB Flex Web Service
// instead of a downloaded CSV. It walks calendar years backwards from the
// current one and stops after the first empty year following a non-empty
// one. Transient IB error codes are retried here, at the adapter boundary;
// the engine itself never retries.
type FlexQueryReporter struct {
	queryID string
	token   string

	rates   fifo.RateResolver
	matcher *fifo.Matcher

	client  *http.Client
	baseURL string
	limiter *rate.Limiter
	now     func() time.Time
}

const (
	flexSendRequestPath  = "/AccountManagement/FlexWebService/SendRequest"
	flexGetStatementPath = "/AccountManagement/FlexWebService/GetStatement"
	flexDefaultBaseURL   = "https://ndcdyn.interactivebrokers.com"

	// IB error codes: 1003 = no data for period, 1018/1019 = statement not
	// ready yet.
	flexCodeEmpty    = "1003"
	flexCodeNotReady = "1018"
	flexCodeTooFast  = "1019"

	flexMaxAttempts = 20

	// flexMaxLeadingEmptyYears bounds how many consecutive empty years are
	// skipped before any activity is found. Accounts go dormant; the walk
	// must reach past the quiet years to the last active ones.
	flexMaxLeadingEmptyYears = 10
)

func NewFlexQueryReporter(params map[string]string, deps Deps) (*FlexQueryReporter, error) {
	queryID := strings.TrimSpace(params["query_id"])
	token := strings.TrimSpace(params["token"])
	if queryID == "" || token == "" {
		return nil, fmt.Errorf("%w: missing query_id or token", models.ErrMalformedEntry)
	}
	return &FlexQueryReporter{
		queryID: queryID,
		token:   token,
		rates:   deps.Rates,
		matcher: deps.Matcher,
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: flexDefaultBaseURL,
		// IB throttles the Flex service hard; one request every few seconds
		// keeps retries from tripping 1019 immediately again.
		limiter: rate.NewLimiter(rate.Every(3*time.Second), 1),
		now:     time.Now,
	}, nil
}

func (r *FlexQueryReporter) Name() string { return "IB Flex Query" }

func (r *FlexQueryReporter) Validators() map[string]ValidatorFunc {
	return map[string]ValidatorFunc{
		"query_id": ValidateQueryID,
		"token":    ValidateToken,
	}
}

func (r *FlexQueryReporter) Details() string { return "Query ID: " + r.queryID }

func (r *FlexQueryReporter) Params() map[string]string {
	return map[string]string{"query_id": r.queryID, "token": r.token}
}

func (r *FlexQueryReporter) Generate(ctx context.Context, logs *models.TaxReportLogs) (models.TaxReport, error) {
	var entries []models.Entry
	seenNonEmpty := false
	leadingEmpty := 0
	today := r.now()
	for year := today.Year(); ; year-- {
		from := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
		to := time.Date(year, 12, 31, 0, 0, 0, 0, time.UTC)
		if year == today.Year() {
			to = today
		}
		statement, err := r.fetchStatement(ctx, from, to)
		if err != nil {
			return models.TaxReport{}, err
		}
		yearEntries, err := flexStatementEntries(statement)
		if err != nil {
			return models.TaxReport{}, err
		}
		if len(yearEntries) == 0 {
			if seenNonEmpty {
				// First empty year after activity ends the walk.
				break
			}
			leadingEmpty++
			if leadingEmpty > flexMaxLeadingEmptyYears {
				return models.TaxReport{}, fmt.Errorf("Flex query %s returned no activity in the last %d years", r.queryID, flexMaxLeadingEmptyYears)
			}
			continue
		}
		seenNonEmpty = true
		entries = append(entries, yearEntries...)
	}

	return aggregateIBEntries(ctx, r.Name(), entries, r.rates, r.matcher, logs)
}

type flexResponse struct {
	XMLName       xml.Name `xml:"FlexStatementResponse"`
	Status        string   `xml:"Status"`
	ErrorCode     string   `xml:"ErrorCode"`
	ReferenceCode string   `xml:"ReferenceCode"`
	URL           string   `xml:"Url"`
}

type flexStatement struct {
	Trades []flexTrade `xml:"FlexStatements>FlexStatement>Trades>Trade"`
	Cash   []flexCash  `xml:"FlexStatements>FlexStatement>CashTransactions>CashTransaction"`
}

type flexTrade struct {
	Symbol     string `xml:"symbol,attr"`
	Currency   string `xml:"currency,attr"`
	Quantity   string `xml:"quantity,attr"`
	Proceeds   string `xml:"proceeds,attr"`
	Commission string `xml:"ibCommission,attr"`
	DateTime   string `xml:"dateTime,attr"`
}

type flexCash struct {
	Type        string `xml:"type,attr"`
	Currency    string `xml:"currency,attr"`
	Description string `xml:"description,attr"`
	Amount      string `xml:"amount,attr"`
	DateTime    string `xml:"dateTime,attr"`
}

// fetchStatement runs the two-step Flex flow: SendRequest hands back a
// reference code, GetStatement is polled until the statement is generated.
func (r *FlexQueryReporter) fetchStatement(ctx context.Context, from, to time.Time) (*flexStatement, error) {
	params := url.Values{
		"t":  {r.token},
		"q":  {r.queryID},
		"v":  {"3"},
		"fd": {from.Format("20060102")},
		"td": {to.Format("20060102")},
	}
	reference, statementURL, empty, err := r.sendRequest(ctx, params)
	if err != nil {
		return nil, err
	}
	if empty {
		return &flexStatement{}, nil
	}
	if statementURL == "" {
		statementURL = r.baseURL + flexGetStatementPath
	}
	return r.getStatement(ctx, statementURL, reference)
}

func (r *FlexQueryReporter) sendRequest(ctx context.Context, params url.Values) (reference, statementURL string, empty bool, err error) {
	requestURL := r.baseURL + flexSendRequestPath + "?" + params.Encode()
	for attempt := 0; attempt < flexMaxAttempts; attempt++ {
		body, err := r.fetch(ctx, requestURL)
		if err != nil {
			return "", "", false, err
		}
		var resp flexResponse
		if err := xml.Unmarshal(body, &resp); err != nil {
			return "", "", false, fmt.Errorf("decoding Flex SendRequest response: %w", err)
		}
		switch {
		case resp.ReferenceCode != "" && (resp.Status == "Success" || resp.Status == "Warn"):
			return resp.ReferenceCode, resp.URL, false, nil
		case resp.ErrorCode == flexCodeEmpty:
			return "", "", true, nil
		case resp.ErrorCode == flexCodeNotReady || resp.ErrorCode == flexCodeTooFast:
			continue
		default:
			return "", "", false, fmt.Errorf("Flex SendRequest failed: status %q, code %q", resp.Status, resp.ErrorCode)
		}
	}
	return "", "", false, fmt.Errorf("Flex SendRequest rate-limited after %d attempts", flexMaxAttempts)
}

func (r *FlexQueryReporter) getStatement(ctx context.Context, statementURL, reference string) (*flexStatement, error) {
	params := url.Values{
		"t": {r.token},
		"q": {reference},
		"v": {"3"},
	}
	requestURL := statementURL + "?" + params.Encode()
	for attempt := 0; attempt < flexMaxAttempts; attempt++ {
		body, err := r.fetch(ctx, requestURL)
		if err != nil {
			return nil, err
		}

		// While the statement is still generating the service answers with a
		// FlexStatementResponse instead of the statement document.
		var pending flexResponse
		if err := xml.Unmarshal(body, &pending); err == nil && pending.XMLName.Local == "FlexStatementResponse" {
			if pending.Status == "Warn" || pending.ErrorCode == flexCodeNotReady || pending.ErrorCode == flexCodeTooFast {
				continue
			}
			return nil, fmt.Errorf("Flex GetStatement failed: status %q, code %q", pending.Status, pending.ErrorCode)
		}

		var statement flexStatement
		if err := xml.Unmarshal(body, &statement); err != nil {
			return nil, fmt.Errorf("decoding Flex statement: %w", err)
		}
		return &statement, nil
	}
	return nil, fmt.Errorf("Flex statement did not complete after %d attempts", flexMaxAttempts)
}

func (r *FlexQueryReporter) fetch(ctx context.Context, requestURL string) ([]byte, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building Flex request: %w", err)
	}
	req.Header.Set("User-Agent", "pitfolio/1.0")
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching Flex statement: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Flex service returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

var flexDateLayouts = []string{
	"20060102;150405",
	"20060102",
}

// flexStatementEntries normalizes statement trades and cash transactions
// into entries, pairing withholding rows with their income rows the same
// way the CSV statement reporter does.
func flexStatementEntries(statement *flexStatement) ([]models.Entry, error) {
	var entries []models.Entry
	for _, trade := range statement.Trades {
		date, err := parseAnyDate(trade.DateTime, flexDateLayouts)
		if err != nil {
			return nil, fmt.Errorf("%w: Flex trade with unparsable date %q", models.ErrMalformedEntry, trade.DateTime)
		}
		quantity, err := decimal.NewFromString(trade.Quantity)
		if err != nil || quantity.IsZero() {
			return nil, fmt.Errorf("%w: Flex trade with unparsable quantity %q", models.ErrMalformedEntry, trade.Quantity)
		}
		proceeds, err := decimal.NewFromString(trade.Proceeds)
		if err != nil {
			return nil, fmt.Errorf("%w: Flex trade with unparsable proceeds %q", models.ErrMalformedEntry, trade.Proceeds)
		}
		commission := decimal.Zero
		if trade.Commission != "" {
			commission, err = decimal.NewFromString(trade.Commission)
			if err != nil {
				return nil, fmt.Errorf("%w: Flex trade with unparsable commission %q", models.ErrMalformedEntry, trade.Commission)
			}
		}
		entry, err := models.NewEntry(trade.Symbol, date, quantity, proceeds.Abs().Div(quantity.Abs()), trade.Currency, commission.Abs(), models.KindTrade)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	withholding := make(map[ibWithholdingKey][]decimal.Decimal)
	var income []flexCash
	for _, cash := range statement.Cash {
		kind := strings.ToLower(cash.Type)
		switch {
		case strings.Contains(kind, "withholding"):
			amount, err := decimal.NewFromString(cash.Amount)
			if err != nil {
				return nil, fmt.Errorf("%w: Flex withholding with unparsable amount %q", models.ErrMalformedEntry, cash.Amount)
			}
			key := ibWithholdingKey{currency: cash.Currency, description: cash.Description}
			withholding[key] = append(withholding[key], amount.Abs())
		case strings.Contains(kind, "dividend"), strings.Contains(kind, "interest"):
			income = append(income, cash)
		}
	}

	for _, cash := range income {
		date, err := parseAnyDate(cash.DateTime, flexDateLayouts)
		if err != nil {
			return nil, fmt.Errorf("%w: Flex cash row with unparsable date %q", models.ErrMalformedEntry, cash.DateTime)
		}
		amount, err := decimal.NewFromString(cash.Amount)
		if err != nil {
			return nil, fmt.Errorf("%w: Flex cash row with unparsable amount %q", models.ErrMalformedEntry, cash.Amount)
		}

		kind := models.KindInterest
		descPattern, wtaxPattern := interestDescPattern, interestWtaxDescPattern
		if strings.Contains(strings.ToLower(cash.Type), "dividend") {
			kind = models.KindDividend
			descPattern, wtaxPattern = dividendDescPattern, dividendWtaxDescPattern
		}
		description := descPattern.ReplaceAllString(cash.Description, "")

		// Debit rows keep their sign through the quantity, same as the
		// statement reporter.
		quantity := decimal.NewFromInt(1)
		if amount.IsNegative() {
			quantity = quantity.Neg()
		}
		entry, err := models.NewEntry(description, date, quantity, amount.Abs(), cash.Currency, decimal.Zero, kind)
		if err != nil {
			return nil, err
		}
		for key, amounts := range withholding {
			if key.currency == cash.Currency && wtaxPattern.ReplaceAllString(key.description, "") == description && len(amounts) > 0 {
				entry.Withholding = amounts[0]
				withholding[key] = amounts[1:]
				break
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
