package core

import "github.com/shopspring/decimal"

// Quantile returns the q-th quantile (0 <= q <= 1) of prices sorted ascending,
// using linear interpolation between the two nearest ranks. The result is in
// currency units rounded to 4 decimal places. An empty input yields zero.
func Quantile(sorted []Money, q float64) decimal.Decimal {
	n := len(sorted)
	if n == 0 {
		return decimal.Zero
	}
	if n == 1 {
		return sorted[0].Decimal()
	}
	if q <= 0 {
		return sorted[0].Decimal()
	}
	if q >= 1 {
		return sorted[n-1].Decimal()
	}

	h := q * float64(n-1)
	lo := int(h)
	frac := decimal.NewFromFloat(h - float64(lo))

	lower := sorted[lo].Decimal()
	upper := sorted[lo+1].Decimal()
	return lower.Add(upper.Sub(lower).Mul(frac)).Round(4)
}
