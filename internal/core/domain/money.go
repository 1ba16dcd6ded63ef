package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// CentsFromDecimal converts a major-unit amount such as 95.00 into minor units.
// Fractions of a cent and non-positive amounts are rejected.
func CentsFromDecimal(d decimal.Decimal) (int64, error) {
	cents := d.Mul(hundred)
	if !cents.IsInteger() {
		return 0, fmt.Errorf("%w: %s has more than two decimal places", ErrInvalidFee, d.String())
	}
	if !cents.IsPositive() {
		return 0, ErrInvalidFee
	}
	return cents.IntPart(), nil
}

// FormatCents renders minor units as a fixed two-decimal string.
func FormatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
