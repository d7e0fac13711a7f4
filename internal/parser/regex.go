package parser

import (
	"regexp"
)

// pricePattern is a raw-markup price pattern and the currency it implies.
type pricePattern struct {
	re       *regexp.Regexp
	currency string
}

// rawPricePatterns are tried in order against the raw page markup when no
// element or structured-data price is available.
var rawPricePatterns = []pricePattern{
	{regexp.MustCompile(`"priceAmount"\s*:\s*"?(\d[\d,]*(?:\.\d+)?)`), ""},
	{regexp.MustCompile(`"price"\s*:\s*"\s*[₹$€£]?\s*(\d[\d,]*(?:\.\d{1,2})?)\s*"`), ""},
	{regexp.MustCompile(`₹\s*(\d[\d,]*(?:\.\d{1,2})?)`), "INR"},
	{regexp.MustCompile(`(?i)\bRs\.?\s*(\d[\d,]*(?:\.\d{1,2})?)`), "INR"},
	{regexp.MustCompile(`\$\s*(\d[\d,]*\.\d{2})`), "USD"},
	{regexp.MustCompile(`(\d[\d,]*\.\d{2})\s*(USD|INR)\b`), ""},
}

var (
	ratingPattern     = regexp.MustCompile(`(\d\.\d)`)
	ratingWholeStars  = regexp.MustCompile(`(?i)\b([0-5])\s+out of\s+5`)
	reviewCountRun    = regexp.MustCompile(`\d[\d,.]*`)
	discountPercentRe = regexp.MustCompile(`(\d{1,3}(?:\.\d+)?)\s*%`)
)

// regexPrice scans raw markup for the first currency-looking amount.
func regexPrice(raw string) (float64, string, bool) {
	for _, p := range rawPricePatterns {
		m := p.re.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		price, ok := ParsePrice(m[1])
		if !ok || price <= 0 {
			continue
		}
		currency := p.currency
		if currency == "" && len(m) > 2 {
			currency = m[2]
		}
		return price, currency, true
	}
	return 0, "", false
}
