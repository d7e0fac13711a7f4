package validate

import (
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/types"
)

// TitleRule requires a title whose trimmed length lies in [min, max] and
// that contains at least one letter or digit.
func TitleRule(min, max int) Rule {
	return RuleFunc{
		RuleName: "title",
		Fn: func(rec *types.ProductRecord) []string {
			if rec.Title == nil {
				return []string{"title is missing"}
			}
			title := strings.TrimSpace(*rec.Title)
			n := utf8.RuneCountInString(title)
			var out []string
			if n < min {
				out = append(out, fmt.Sprintf("title length %d is below minimum %d", n, min))
			}
			if n > max {
				out = append(out, fmt.Sprintf("title length %d exceeds maximum %d", n, max))
			}
			if n > 0 && !strings.ContainsFunc(title, func(r rune) bool {
				return unicode.IsLetter(r) || unicode.IsDigit(r)
			}) {
				out = append(out, "title contains only special characters")
			}
			return out
		},
	}
}

// PriceRule bounds current and original prices: finite, > 0, at most the
// ceiling and not a known placeholder value.
func PriceRule(ceiling float64, suspicious []float64) Rule {
	check := func(field string, p *float64) []string {
		if p == nil {
			return nil
		}
		v := *p
		switch {
		case math.IsNaN(v) || math.IsInf(v, 0):
			return []string{fmt.Sprintf("%s must be a finite number", field)}
		case v <= 0:
			return []string{fmt.Sprintf("%s must be > 0, got %.2f", field, v)}
		case v > ceiling:
			return []string{fmt.Sprintf("%s %.2f exceeds ceiling %.2f", field, v, ceiling)}
		}
		for _, s := range suspicious {
			if math.Abs(v-s) < 0.005 {
				return []string{fmt.Sprintf("%s %.2f looks like a placeholder price", field, v)}
			}
		}
		return nil
	}
	return RuleFunc{
		RuleName: "price",
		Fn: func(rec *types.ProductRecord) []string {
			return append(check("current_price", rec.CurrentPrice), check("original_price", rec.OriginalPrice)...)
		},
	}
}

// RatingRule bounds the rating to [min, max].
func RatingRule(min, max float64) Rule {
	return RuleFunc{
		RuleName: "rating",
		Fn: func(rec *types.ProductRecord) []string {
			if rec.Rating == nil {
				return nil
			}
			r := *rec.Rating
			if math.IsNaN(r) || r < min || r > max {
				return []string{fmt.Sprintf("rating %.1f out of bounds [%.1f, %.1f]", r, min, max)}
			}
			return nil
		},
	}
}

// ReviewCountRule rejects negative review counts.
func ReviewCountRule() Rule {
	return RuleFunc{
		RuleName: "review_count",
		Fn: func(rec *types.ProductRecord) []string {
			if rec.ReviewCount != nil && *rec.ReviewCount < 0 {
				return []string{fmt.Sprintf("review_count %d out of bounds (must be >= 0)", *rec.ReviewCount)}
			}
			return nil
		},
	}
}
