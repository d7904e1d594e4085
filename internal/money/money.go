// Package money centralizes rounding for the whole engine. Every amount
// that reaches a payload or a schedule goes through Round2; nothing else
// in the module is allowed to round.
package money

import "github.com/shopspring/decimal"

// Tolerance is one minor currency unit. Two amounts that differ by at most
// this much are considered equal for completion checks.
var Tolerance = decimal.New(1, -2)

func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().Cmp(Tolerance) <= 0
}

// FloorZero clamps negative amounts to zero.
func FloorZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
