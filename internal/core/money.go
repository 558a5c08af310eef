// Package core provides money parsing and display helpers.
//
// Amounts are always stored as integer minor units (cents). Conversion to a
// human readable major-unit string happens in exactly one place, FormatAmount,
// so every surface (JSON API, sheet export) renders money the same way.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmountToMinor converts a decimal string to minor units with half-up
// rounding on the third fractional digit.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Signs,
// exponents and zero amounts are rejected.
//
// Examples:
//
//	ParseAmountToMinor("12.34")  -> 1234, nil
//	ParseAmountToMinor("12,34")  -> 1234, nil
//	ParseAmountToMinor("12.344") -> 1234, nil
//	ParseAmountToMinor("12.345") -> 1235, nil
func ParseAmountToMinor(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return 0, ErrInvalidAmount
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			return 0, ErrInvalidAmount
		}
	}
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	if strings.HasSuffix(s, ".") {
		s += "0"
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	minor := d.Shift(2).Round(0)
	if !minor.IsPositive() {
		return 0, ErrInvalidAmount
	}
	bi := minor.BigInt()
	if !bi.IsInt64() {
		return 0, ErrInvalidAmount
	}
	return bi.Int64(), nil
}

// FormatAmount renders minor units as major units with exactly two fraction
// digits: 12345 -> "123.45". The sign is preserved as stored.
func FormatAmount(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}

// FormatCurrency prefixes FormatAmount with the group's currency label.
func FormatCurrency(currency string, minor int64) string {
	currency = strings.TrimSpace(currency)
	if currency == "" {
		return FormatAmount(minor)
	}
	return currency + " " + FormatAmount(minor)
}
