package charges

import (
	"math"

	"github.com/shopspring/decimal"
)

// roundingNudge pushes values sitting a hair under a .5 boundary, as binary
// floats routinely do, onto the side the bill printer rounds to.
const roundingNudge = 1e-9

// RoundTo rounds half away from zero to the given number of decimal places.
func RoundTo(value float64, places int32) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return value
	}
	return decimal.NewFromFloat(value + roundingNudge).Round(places).InexactFloat64()
}

// Round2 rounds to paise.
func Round2(value float64) float64 {
	return RoundTo(value, 2)
}

func round6(value float64) float64 {
	return RoundTo(value, 6)
}

// debit stores an amount as a non-positive value.
func debit(value float64) float64 {
	if value == 0 {
		return 0
	}
	return -math.Abs(value)
}
