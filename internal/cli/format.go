// Package cli provides formatting and rendering utilities for terminal output.
package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatAmount formats a currency amount with two decimals and thousands separators.
// e.g., (1234.5, "₹") -> "₹ 1,234.50", (-50, "₹") -> "₹ -50.00"
func FormatAmount(amount float64, currency string) string {
	s := decimal.NewFromFloat(amount).StringFixed(2)

	sign := ""
	if strings.HasPrefix(s, "-") {
		sign = "-"
		s = s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")
	n, err := strconv.ParseInt(whole, 10, 64)
	if err == nil {
		whole = FormatNumber(n)
	}
	// "-0.00" reads oddly in a budget table.
	if sign == "-" && whole == "0" && frac == "00" {
		sign = ""
	}

	body := sign + whole + "." + frac
	if currency == "" {
		return body
	}
	return currency + " " + body
}

// FormatNumber adds comma separators to an integer.
// e.g., 1234567 -> "1,234,567"
func FormatNumber(n int64) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}

	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
	}
	for i := remainder; i < len(s); i += 3 {
		if result.Len() > 0 {
			result.WriteByte(',')
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}

// FormatPercent formats a 0-1 float as a percentage string.
func FormatPercent(f float64) string {
	return fmt.Sprintf("%.1f%%", f*100)
}

// ParseAmount reads a user-typed amount, accepting thousands separators and
// an optional leading currency symbol. e.g., "₹ 12,500.75" -> 12500.75
// Blank input is zero; anything else that is not a number is an error.
func ParseAmount(s, currency string) (float64, error) {
	s = strings.TrimSpace(s)
	if currency = strings.TrimSpace(currency); currency != "" {
		s = strings.TrimSpace(strings.TrimPrefix(s, currency))
	}
	if s == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return d.InexactFloat64(), nil
}
