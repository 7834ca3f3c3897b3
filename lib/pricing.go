package lib

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// ComputeDiscount derives the sale flag and discount percentage from a base
// and current price. The percentage is rounded half-to-even to two places. A
// non-positive base price never counts as a sale.
func ComputeDiscount(base, current decimal.Decimal) (bool, decimal.Decimal) {
	zero := decimal.Zero.Round(2)
	if !base.IsPositive() || !current.LessThan(base) {
		return false, zero
	}

	pct := base.Sub(current).Div(base).Mul(hundred).RoundBank(2)
	return true, pct
}
