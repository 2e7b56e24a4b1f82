package reporters

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/pitfolio/src/models"
)

const coinbaseFixture = `Transactions
User,someone,1111111111
Exported,2025-01-02
Timestamp,Transaction Type,Asset,Quantity Transacted,Price Currency,Subtotal,Fees and/or Spread,Total
2024-03-01T10:00:00Z,Advanced Trade Buy,BTC,0.5,USD,$10000.00,$10.00,$10010.00
2024-03-06T11:00:00Z,Advanced Trade Sell,BTC,0.25,USD,$6000.00,$5.00,$5995.00
2024-03-07T12:00:00Z,Staking Income,ETH,1,USD,$100.00,$0.00,$100.00
`

func TestCoinbaseToEntryData(t *testing.T) {
	r, err := NewCoinbaseReporter(map[string]string{"path": "export.csv"}, testDeps(usdAt4()))
	require.NoError(t, err)

	entries, err := r.ToEntryData(strings.NewReader(coinbaseFixture))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	buy := entries[0]
	assert.Equal(t, "BTC", buy.Symbol)
	assert.Equal(t, models.KindCrypto, buy.Kind)
	assert.True(t, buy.Quantity.Equal(d("0.5")))
	assert.True(t, buy.UnitPrice.Equal(d("20000")), "unit price %s", buy.UnitPrice)

	sell := entries[1]
	assert.True(t, sell.Quantity.Equal(d("-0.25")))
	assert.True(t, sell.UnitPrice.Equal(d("24000")))
}

func TestCoinbaseGenerate(t *testing.T) {
	path := writeFixture(t, "export.csv", coinbaseFixture)
	r, err := NewCoinbaseReporter(map[string]string{"path": path}, testDeps(usdAt4()))
	require.NoError(t, err)

	var logs models.TaxReportLogs
	report, err := r.Generate(context.Background(), &logs)
	require.NoError(t, err)

	record := report.Get(2024)
	// Sell subtotal converted at 4.
	assert.True(t, record.CryptoRevenue.Equal(d("24000")), "revenue %s", record.CryptoRevenue)
	// Buy subtotal plus both fee legs.
	assert.True(t, record.CryptoCost.Equal(d("40060")), "cost %s", record.CryptoCost)
	assert.Equal(t, 2, logs.Len())
}

func TestCoinbaseGenerateRateFailureAborts(t *testing.T) {
	path := writeFixture(t, "export.csv", coinbaseFixture)
	r, err := NewCoinbaseReporter(map[string]string{"path": path}, testDeps(failingRates{}))
	require.NoError(t, err)

	_, err = r.Generate(context.Background(), nil)
	assert.Error(t, err)
}
