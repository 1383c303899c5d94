/*
Package money is the single conversion point between major display units
and the integer minor units used everywhere else in the module.
*/
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MinorDigits is the number of minor-unit digits of the configured currency.
const MinorDigits = 2

// ToMinor converts a major-unit amount to minor units. Amounts carrying more
// precision than the minor unit are rejected rather than rounded.
func ToMinor(major decimal.Decimal) (int64, error) {
	shifted := major.Shift(MinorDigits)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has more than %d decimal places", major.String(), MinorDigits)
	}
	return shifted.IntPart(), nil
}

// ParseMinor parses a major-unit string such as "70.00" into minor units.
// An empty string is zero.
func ParseMinor(major string) (int64, error) {
	major = strings.TrimSpace(major)
	if major == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(major)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", major, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("invalid amount %q: negative", major)
	}
	return ToMinor(d)
}

// ToMajor converts minor units to a major-unit decimal.
func ToMajor(minor int64) decimal.Decimal {
	return decimal.New(minor, -MinorDigits)
}

// Format renders minor units for display, e.g. 41000 -> "410.00".
func Format(minor int64) string {
	return ToMajor(minor).StringFixed(MinorDigits)
}
