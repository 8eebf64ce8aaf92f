package reviews

import "github.com/shopspring/decimal"

const (
	MinRating = 1
	MaxRating = 5
)

// NextRating folds rating into a running mean of count reviews and rounds the
// result to one decimal place, half away from zero.
func NextRating(current float64, count, rating int) float64 {
	if count < 0 {
		count = 0
	}
	total := decimal.NewFromFloat(current).
		Mul(decimal.NewFromInt(int64(count))).
		Add(decimal.NewFromInt(int64(rating)))
	return total.Div(decimal.NewFromInt(int64(count + 1))).Round(1).InexactFloat64()
}
