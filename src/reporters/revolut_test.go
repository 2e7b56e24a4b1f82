package reporters

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/pitfolio/src/models"
)

const revolutFixture = `Completed Date,Description,Money in,Money out
2024-01-15 10:00:00,Gross interest,+1.50 PLN,
2024-01-16 09:30:00,Top-Up,+100.00 PLN,
2024-02-15 10:00:00,Gross interest,+2.25 PLN,
2025-01-15 10:00:00,Gross interest,+3.00 PLN,
`

func TestRevolutToEntryData(t *testing.T) {
	r, err := NewRevolutReporter(map[string]string{"path": "statement.csv"})
	require.NoError(t, err)

	entries, err := r.ToEntryData(strings.NewReader(revolutFixture))
	require.NoError(t, err)
	require.Len(t, entries, 3)

	first := entries[0]
	assert.Equal(t, models.KindInterest, first.Kind)
	assert.Equal(t, day(2024, 1, 15), first.Date)
	assert.True(t, first.UnitPrice.Equal(d("1.50")))
	assert.Equal(t, "PLN", first.Currency)
}

func TestRevolutToEntryDataMissingColumn(t *testing.T) {
	r, err := NewRevolutReporter(map[string]string{"path": "statement.csv"})
	require.NoError(t, err)

	_, err = r.ToEntryData(strings.NewReader("Completed Date,Description\n"))
	assert.ErrorIs(t, err, models.ErrMalformedEntry)
}

func TestRevolutGenerate(t *testing.T) {
	path := writeFixture(t, "statement.csv", revolutFixture)
	r, err := NewRevolutReporter(map[string]string{"path": path})
	require.NoError(t, err)

	var logs models.TaxReportLogs
	report, err := r.Generate(context.Background(), &logs)
	require.NoError(t, err)

	assert.True(t, report.Get(2024).DomesticInterest.Equal(d("3.75")))
	assert.True(t, report.Get(2025).DomesticInterest.Equal(d("3.00")))
	// No trading activity: interest never contributes a realized gain.
	assert.True(t, report.Get(2024).RealizedGain().IsZero())

	assert.Equal(t, 3, logs.Len())
	ordered := logs.Ordered()
	assert.Equal(t, "Revolut Interest", ordered[0].Reporter)
	assert.Equal(t, day(2024, 1, 15), ordered[0].Date)
}
