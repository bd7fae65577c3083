package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatMinor renders an amount in minor units as a display string, e.g. 29700 USD -> "$297.00".
func FormatMinor(amount int64, currency string) string {
	v := decimal.New(amount, -2).StringFixed(2)
	switch strings.ToUpper(currency) {
	case "", "USD":
		return "$" + v
	default:
		return v + " " + strings.ToUpper(currency)
	}
}

// MajorUnits converts minor units to whole currency units, rounding half up.
func MajorUnits(amount int64) int64 {
	return decimal.New(amount, -2).Round(0).IntPart()
}
