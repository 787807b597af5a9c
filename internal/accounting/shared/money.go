package shared

import "github.com/shopspring/decimal"

// Tolerance is the largest debit/credit gap still considered balanced.
var Tolerance = decimal.New(1, -2)

// Balanced reports whether two totals agree to within Tolerance.
func Balanced(debit, credit decimal.Decimal) bool {
	return debit.Sub(credit).Abs().LessThan(Tolerance)
}

// Sum adds all values.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
