package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestTaxRecordAdd(t *testing.T) {
	a := TaxRecord{Year: 2024, TradeRevenue: d("100"), TradeCost: d("40")}
	b := TaxRecord{Year: 2024, TradeRevenue: d("50"), DomesticInterest: d("7.25")}

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, 2024, sum.Year)
	assert.True(t, sum.TradeRevenue.Equal(d("150")))
	assert.True(t, sum.TradeCost.Equal(d("40")))
	assert.True(t, sum.DomesticInterest.Equal(d("7.25")))

	// Commutative.
	flipped, err := b.Add(a)
	require.NoError(t, err)
	assert.True(t, sum.Equal(flipped))
}

func TestTaxRecordAddYearMismatch(t *testing.T) {
	a := TaxRecord{Year: 2023, TradeRevenue: d("1")}
	b := TaxRecord{Year: 2024, TradeRevenue: d("1")}

	_, err := a.Add(b)
	assert.ErrorIs(t, err, ErrYearMismatch)
}

func TestTaxRecordAddZeroIdentity(t *testing.T) {
	a := TaxRecord{Year: 2024, CryptoRevenue: d("300"), CryptoCost: d("120")}

	sum, err := a.Add(TaxRecord{})
	require.NoError(t, err)
	assert.True(t, sum.Equal(a))

	sum, err = TaxRecord{}.Add(a)
	require.NoError(t, err)
	assert.True(t, sum.Equal(a))
}

func TestTaxRecordTradeTax(t *testing.T) {
	tests := []struct {
		name       string
		record     TaxRecord
		wantProfit string
		wantLoss   string
		wantTax    string
	}{
		{
			name:       "profit taxed at 19 percent",
			record:     TaxRecord{Year: 2024, TradeRevenue: d("1000"), TradeCost: d("400")},
			wantProfit: "600",
			wantLoss:   "0",
			wantTax:    "114",
		},
		{
			name:       "loss carries forward, no tax",
			record:     TaxRecord{Year: 2024, TradeRevenue: d("300"), TradeCost: d("500")},
			wantProfit: "0",
			wantLoss:   "200",
			wantTax:    "0",
		},
		{
			name:       "previous-year loss reduces profit",
			record:     TaxRecord{Year: 2024, TradeRevenue: d("1000"), TradeCost: d("400"), TradeLossPrevYears: d("100")},
			wantProfit: "500",
			wantLoss:   "0",
			wantTax:    "95",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.record.TradeProfit().Equal(d(tt.wantProfit)), "profit %s", tt.record.TradeProfit())
			assert.True(t, tt.record.TradeLoss().Equal(d(tt.wantLoss)), "loss %s", tt.record.TradeLoss())
			assert.True(t, tt.record.TradeTax().Equal(d(tt.wantTax)), "tax %s", tt.record.TradeTax())
		})
	}
}

func TestTaxRecordCryptoCostExcess(t *testing.T) {
	record := TaxRecord{Year: 2024, CryptoRevenue: d("100"), CryptoCost: d("250"), CryptoCostExcessPrevYears: d("50")}

	assert.True(t, record.CryptoProfit().IsZero())
	assert.True(t, record.CryptoCostExcess().Equal(d("200")))
	assert.True(t, record.CryptoTax().IsZero())
}

func TestTaxRecordForeignInterestWithholding(t *testing.T) {
	// 19% of 100 is 19; 15 was already withheld at source.
	record := TaxRecord{Year: 2024, ForeignInterest: d("100"), ForeignInterestWithholding: d("15")}
	assert.True(t, record.ForeignInterestRemainingTax().Equal(d("4")))

	// Withholding above the domestic rate is not refunded.
	over := TaxRecord{Year: 2024, ForeignInterest: d("100"), ForeignInterestWithholding: d("30")}
	assert.True(t, over.ForeignInterestRemainingTax().IsZero())
}

func TestTaxRecordDonationCap(t *testing.T) {
	record := TaxRecord{
		Year:              2024,
		EmploymentRevenue: d("10000"),
		EmploymentCost:    d("2000"),
		Donations:         d("1000"),
	}
	// Cap is 6% of 8000 = 480.
	assert.True(t, record.EmploymentProfitDeduction().Equal(d("480")))

	record.Donations = d("300")
	assert.True(t, record.EmploymentProfitDeduction().Equal(d("300")))
}

func TestTaxRecordSolidarityTax(t *testing.T) {
	tests := []struct {
		name   string
		record TaxRecord
		want   string
	}{
		{
			name:   "below threshold",
			record: TaxRecord{Year: 2024, TradeRevenue: d("900000")},
			want:   "0",
		},
		{
			name:   "above threshold",
			record: TaxRecord{Year: 2024, TradeRevenue: d("1200000")},
			want:   "8000",
		},
		{
			name: "deductions lower the base",
			record: TaxRecord{
				Year:           2024,
				TradeRevenue:   d("1200000"),
				SocialSecurity: d("100000"),
			},
			want: "4000",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.record.SolidarityTax().Equal(d(tt.want)), "got %s", tt.record.SolidarityTax())
		})
	}
}

func TestTaxRecordTotals(t *testing.T) {
	record := TaxRecord{
		Year:                       2024,
		TradeRevenue:               d("1000"),
		TradeCost:                  d("400"),
		CryptoRevenue:              d("200"),
		CryptoCost:                 d("50"),
		DomesticInterest:           d("10"),
		ForeignInterest:            d("20"),
		ForeignInterestWithholding: d("3"),
		EmploymentRevenue:          d("500"),
		EmploymentCost:             d("100"),
	}

	assert.True(t, record.Income().Equal(d("1730")))
	assert.True(t, record.Cost().Equal(d("550")))
	assert.True(t, record.RealizedGain().Equal(d("600")))
	assert.True(t, record.Withholding().Equal(d("3")))
}
