package parser

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var numberRun = regexp.MustCompile(`\d[\d,.]*`)

// ParsePrice extracts a monetary amount from display text such as
// "₹1,234.56", "Rs. 1,29,999", "$19.99" or "12,99 €". The amount is rounded
// to two decimal places. Text without digits ("N/A", "Currently
// unavailable") reports absent.
func ParsePrice(text string) (float64, bool) {
	run := numberRun.FindString(text)
	if run == "" {
		return 0, false
	}
	run = strings.TrimRight(run, ".,")
	if run == "" {
		return 0, false
	}

	d, err := decimal.NewFromString(normalizeSeparators(run))
	if err != nil {
		return 0, false
	}
	f, _ := d.Round(2).Float64()
	return f, true
}

// normalizeSeparators resolves grouping and decimal separators into a plain
// "1234.56" form. When both separators appear, the later one is the
// decimal point. A lone comma followed by exactly two digits is a decimal
// comma; any other comma is grouping (this covers Indian lakh grouping).
// Several dots with no comma are grouping as well.
func normalizeSeparators(s string) string {
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		if strings.Count(s, ",") == 1 && len(s)-lastComma-1 == 2 {
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case strings.Count(s, ".") > 1:
		return strings.ReplaceAll(s, ".", "")
	default:
		return s
	}
}

// currencyFromText guesses an ISO currency code from a price string.
func currencyFromText(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(text, "₹"), strings.Contains(lower, "rs."), strings.Contains(lower, "inr"):
		return "INR"
	case strings.Contains(text, "$"), strings.Contains(lower, "usd"):
		return "USD"
	case strings.Contains(text, "€"), strings.Contains(lower, "eur"):
		return "EUR"
	case strings.Contains(text, "£"), strings.Contains(lower, "gbp"):
		return "GBP"
	default:
		return ""
	}
}
