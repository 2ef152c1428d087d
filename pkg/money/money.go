// Package money rounds currency amounts stored as NUMERIC(12,2).
package money

import "github.com/shopspring/decimal"

// Round rounds v to two decimal places, halves away from zero. It rounds the
// shortest decimal form of v, so 1.005 becomes 1.01 even though the nearest
// float64 sits just below it.
func Round(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// Sum adds amounts exactly and rounds the result.
func Sum(amounts ...float64) float64 {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(decimal.NewFromFloat(a))
	}
	f, _ := total.Round(2).Float64()
	return f
}
