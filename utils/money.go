package utils

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Money amounts are major currency units rounded half away from zero to 2 places.

func RoundMoney(amount float64) float64 {
	return decimal.NewFromFloat(amount).Round(2).InexactFloat64()
}

// Percent returns pct percent of amount.
func Percent(amount, pct float64) float64 {
	return decimal.NewFromFloat(amount).
		Mul(decimal.NewFromFloat(pct)).
		Div(hundred).
		Round(2).
		InexactFloat64()
}

func AddMoney(values ...float64) float64 {
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(decimal.NewFromFloat(v))
	}
	return sum.Round(2).InexactFloat64()
}

func SubMoney(a, b float64) float64 {
	return decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).Round(2).InexactFloat64()
}

// ToMinorUnits converts a major-unit amount to the gateway's minor units (paise, cents).
func ToMinorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(hundred).Round(0).IntPart()
}

func FromMinorUnits(minor int64) float64 {
	return decimal.NewFromInt(minor).Div(hundred).Round(2).InexactFloat64()
}
