package fees

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCalculate_TierBoundaries(t *testing.T) {
	calc := NewCalculator()

	tests := []struct {
		name   string
		amount string
		fee    string
	}{
		{"free tier small amount", "500.00", "0.00"},
		{"free tier upper boundary", "2000.00", "0.00"},
		{"one cent above free tier", "2000.01", "5.00"},
		{"second tier mid range", "3333.33", "8.33"},
		{"second tier capped", "10000.00", "20.00"},
		{"third tier lower boundary", "10000.01", "20.00"},
		{"third tier capped", "20000.00", "25.00"},
		{"fourth tier lower boundary", "20000.01", "25.00"},
		{"fourth tier capped", "50000.00", "40.00"},
		{"fifth tier lower boundary", "50000.01", "40.00"},
		{"fifth tier capped", "100000.00", "50.00"},
		{"top tier lower boundary", "100000.01", "50.00"},
		{"top tier capped", "250000.00", "100.00"},
		{"top tier very large", "9999999.99", "100.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fee := calc.Calculate(decimal.RequireFromString(tt.amount))
			assert.Equal(t, tt.fee, fee.StringFixed(2))
		})
	}
}

func TestCalculate_RoundsHalfUpToCents(t *testing.T) {
	calc := NewCalculator()

	// 2500.00 * 0.0025 = 6.25 exactly, no rounding
	assert.Equal(t, "6.25", calc.Calculate(decimal.RequireFromString("2500.00")).StringFixed(2))

	// 3333.33 * 0.0025 = 8.333325, rounds down to 8.33
	assert.Equal(t, "8.33", calc.Calculate(decimal.RequireFromString("3333.33")).StringFixed(2))

	// 2222.00 * 0.0025 = 5.555, half up to 5.56
	assert.Equal(t, "5.56", calc.Calculate(decimal.RequireFromString("2222.00")).StringFixed(2))
}

func TestCalculate_FeeNeverExceedsCap(t *testing.T) {
	calc := NewCalculator()
	cap := decimal.RequireFromString("100.00")

	for _, amount := range []string{"0.01", "1999.99", "5000.00", "15000.00", "35000.00", "75000.00", "500000.00"} {
		fee := calc.Calculate(decimal.RequireFromString(amount))
		assert.True(t, fee.LessThanOrEqual(cap), "fee %s for amount %s exceeds global cap", fee, amount)
		assert.True(t, fee.GreaterThanOrEqual(decimal.Zero))
	}
}

func TestTotalDeducted(t *testing.T) {
	calc := NewCalculator()

	total := calc.TotalDeducted(decimal.RequireFromString("3333.33"))
	assert.Equal(t, "3341.66", total.StringFixed(2))

	// Free tier: total equals amount
	total = calc.TotalDeducted(decimal.RequireFromString("1500.00"))
	assert.Equal(t, "1500.00", total.StringFixed(2))

	total = calc.TotalDeducted(decimal.RequireFromString("5000.00"))
	assert.Equal(t, "5012.50", total.StringFixed(2))
}
