package validate

import (
	"fmt"
	"math"
	"time"

	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/types"
)

// MissingPriceReason is reported for purchasable records without a price.
const MissingPriceReason = "in-stock item missing price"

// SanityEpoch is the earliest acceptable capture time.
var SanityEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// PriceOrderRule requires current_price <= original_price when both exist.
func PriceOrderRule() Rule {
	return RuleFunc{
		RuleName: "price_order",
		Fn: func(rec *types.ProductRecord) []string {
			if rec.CurrentPrice == nil || rec.OriginalPrice == nil {
				return nil
			}
			if *rec.CurrentPrice > *rec.OriginalPrice {
				return []string{fmt.Sprintf("current_price %.2f exceeds original_price %.2f", *rec.CurrentPrice, *rec.OriginalPrice)}
			}
			return nil
		},
	}
}

// StockPriceRule requires a price for in-stock or available records.
func StockPriceRule() Rule {
	return RuleFunc{
		RuleName: "stock_price",
		Fn: func(rec *types.ProductRecord) []string {
			if rec.Availability.Canonical().Purchasable() && rec.CurrentPrice == nil {
				return []string{MissingPriceReason}
			}
			return nil
		},
	}
}

// DiscountRule checks a supplied discount against the one implied by the
// prices. Mismatches are reported, never corrected.
func DiscountRule(tolerance float64) Rule {
	return RuleFunc{
		RuleName: "discount",
		Fn: func(rec *types.ProductRecord) []string {
			if rec.DiscountPercent == nil || rec.CurrentPrice == nil || rec.OriginalPrice == nil || *rec.OriginalPrice <= 0 {
				return nil
			}
			computed := (*rec.OriginalPrice - *rec.CurrentPrice) / *rec.OriginalPrice * 100
			if math.Abs(computed-*rec.DiscountPercent) > tolerance {
				return []string{fmt.Sprintf("discount_percent %.2f does not match computed %.2f (tolerance %.2f)",
					*rec.DiscountPercent, computed, tolerance)}
			}
			return nil
		},
	}
}

// TimestampRule requires a capture time that is not beyond now+skew, not
// before SanityEpoch and, when freshness > 0, not older than freshness.
func TimestampRule(now func() time.Time, skew, freshness time.Duration) Rule {
	return RuleFunc{
		RuleName: "timestamp",
		Fn: func(rec *types.ProductRecord) []string {
			if rec.CapturedAt.IsZero() {
				return []string{"captured_at is missing"}
			}
			t := rec.CapturedAt
			current := now()
			switch {
			case t.After(current.Add(skew)):
				return []string{fmt.Sprintf("captured_at %s is in the future", t.UTC().Format(time.RFC3339))}
			case t.Before(SanityEpoch):
				return []string{fmt.Sprintf("captured_at %s predates %s", t.UTC().Format(time.RFC3339), SanityEpoch.Format("2006-01-02"))}
			case freshness > 0 && current.Sub(t) > freshness:
				return []string{fmt.Sprintf("captured_at %s is older than %s", t.UTC().Format(time.RFC3339), freshness)}
			}
			return nil
		},
	}
}
