package model

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

var maxAmount = decimal.NewFromInt(math.MaxInt64)

// ParseAmount converts a human amount such as "1.5" into smallest units,
// given the currency's number of decimal places.
func ParseAmount(s string, decimals int32) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}

	units := d.Shift(decimals)
	if !units.Equal(units.Truncate(0)) {
		return 0, fmt.Errorf("amount %q has more than %d decimal places", s, decimals)
	}
	if units.GreaterThan(maxAmount) || units.LessThan(maxAmount.Neg()) {
		return 0, fmt.Errorf("amount %q out of range", s)
	}

	return units.IntPart(), nil
}

// FormatAmount renders smallest units as a human amount without trailing zeros.
func FormatAmount(units int64, decimals int32) string {
	return decimal.New(units, -decimals).String()
}
