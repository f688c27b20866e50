// Package fees computes the tiered, capped transfer fee schedule.
package fees

import (
	"github.com/shopspring/decimal"
)

// Tier is one contiguous amount range with its fee rate and cap. The range is
// (Lower, Upper] except the first tier, which includes zero. A nil-like
// unbounded top tier is modeled with Unbounded=true.
type Tier struct {
	Lower     decimal.Decimal
	Upper     decimal.Decimal
	Rate      decimal.Decimal
	Cap       decimal.Decimal
	Unbounded bool
}

// Calculator computes transfer fees from the fixed six-tier schedule. It is
// pure: no state, no side effects, safe for concurrent use.
type Calculator struct {
	tiers []Tier
}

// NewCalculator returns a calculator with the standard schedule:
//
//	0.00      - 2000.00    0%      cap 0.00
//	2000.01   - 10000.00   0.25%   cap 20.00
//	10000.01  - 20000.00   0.20%   cap 25.00
//	20000.01  - 50000.00   0.125%  cap 40.00
//	50000.01  - 100000.00  0.08%   cap 50.00
//	100000.01 +            0.05%   cap 100.00
func NewCalculator() *Calculator {
	return &Calculator{
		tiers: []Tier{
			{Lower: dec("0"), Upper: dec("2000.00"), Rate: dec("0"), Cap: dec("0.00")},
			{Lower: dec("2000.00"), Upper: dec("10000.00"), Rate: dec("0.0025"), Cap: dec("20.00")},
			{Lower: dec("10000.00"), Upper: dec("20000.00"), Rate: dec("0.0020"), Cap: dec("25.00")},
			{Lower: dec("20000.00"), Upper: dec("50000.00"), Rate: dec("0.00125"), Cap: dec("40.00")},
			{Lower: dec("50000.00"), Upper: dec("100000.00"), Rate: dec("0.0008"), Cap: dec("50.00")},
			{Lower: dec("100000.00"), Rate: dec("0.0005"), Cap: dec("100.00"), Unbounded: true},
		},
	}
}

// Calculate returns the fee for a positive amount with at most two fractional
// digits (the validator rejects anything else before this point). The fee is
// min(amount*rate, cap) rounded to cents, half up.
func (c *Calculator) Calculate(amount decimal.Decimal) decimal.Decimal {
	tier := c.tierFor(amount)

	raw := amount.Mul(tier.Rate)
	if raw.GreaterThan(tier.Cap) {
		raw = tier.Cap
	}

	return raw.Round(2)
}

// TotalDeducted returns amount plus its fee, the sender-side deduction.
func (c *Calculator) TotalDeducted(amount decimal.Decimal) decimal.Decimal {
	return amount.Add(c.Calculate(amount))
}

// tierFor finds the tier whose (lower, upper] range contains amount. The first
// tier is inclusive at zero; the last tier has no upper bound.
func (c *Calculator) tierFor(amount decimal.Decimal) Tier {
	for i, tier := range c.tiers {
		if tier.Unbounded {
			return tier
		}
		if i == 0 && amount.LessThanOrEqual(tier.Upper) {
			return tier
		}
		if amount.GreaterThan(tier.Lower) && amount.LessThanOrEqual(tier.Upper) {
			return tier
		}
	}
	return c.tiers[len(c.tiers)-1]
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
