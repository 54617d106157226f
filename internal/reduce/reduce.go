// Package reduce turns a cycle's quotes into one representative value.
package reduce

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Places is the number of fractional digits kept for representative and
// stored values.
const Places = 3

// ErrEmpty is returned when there is nothing to reduce.
var ErrEmpty = errors.New("reduce: no quotes")

// Mean returns the arithmetic mean of prices rounded to Places digits,
// ties rounded half up (away from zero; prices are positive).
func Mean(prices []decimal.Decimal) (decimal.Decimal, error) {
	if len(prices) == 0 {
		return decimal.Zero, ErrEmpty
	}
	sum := decimal.Sum(prices[0], prices[1:]...)
	return sum.Div(decimal.NewFromInt(int64(len(prices)))).Round(Places), nil
}

// Format renders v with exactly Places fractional digits.
func Format(v decimal.Decimal) string {
	return v.StringFixed(Places)
}
