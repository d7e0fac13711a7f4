package validate

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/config"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/types"
)

const ellipsis = "..."

// Sanitizer normalizes records before storage. Sanitize(Sanitize(r)) equals
// Sanitize(r) for every record.
type Sanitizer struct {
	cfg config.ValidationConfig
}

// NewSanitizer creates a Sanitizer using the bounds in cfg.
func NewSanitizer(cfg config.ValidationConfig) *Sanitizer {
	return &Sanitizer{cfg: cfg}
}

// Sanitize returns a normalized copy of rec. The input is not modified.
func (s *Sanitizer) Sanitize(rec *types.ProductRecord) *types.SanitizedRecord {
	if rec == nil {
		return nil
	}
	out := rec.Clone()

	out.Identifier = NormalizeIdentifier(out.Identifier)
	out.Title = cleanText(out.Title, s.cfg.TitleMax)
	out.Seller = cleanText(out.Seller, s.cfg.SellerMax)
	out.SourceURL = strings.TrimSpace(out.SourceURL)

	out.CurrentPrice = round2(out.CurrentPrice)
	out.OriginalPrice = round2(out.OriginalPrice)
	out.DiscountPercent = round2(out.DiscountPercent)

	if out.Rating != nil {
		r := *out.Rating
		if math.IsNaN(r) {
			out.Rating = nil
		} else {
			r = math.Min(math.Max(r, s.cfg.RatingMin), s.cfg.RatingMax)
			r, _ = decimal.NewFromFloat(r).Round(1).Float64()
			out.Rating = &r
		}
	}
	if out.ReviewCount != nil && *out.ReviewCount < 0 {
		out.ReviewCount = types.Ptr(0)
	}

	out.Currency = strings.ToUpper(strings.TrimSpace(out.Currency))
	if out.Currency == "" {
		out.Currency = strings.ToUpper(s.cfg.DefaultCurrency)
	}
	out.Availability = out.Availability.Canonical()
	out.CapturedAt = out.CapturedAt.UTC().Truncate(time.Microsecond)

	return &types.SanitizedRecord{ProductRecord: *out}
}

// cleanText collapses whitespace and truncates to max runes. An empty
// result becomes absent.
func cleanText(p *string, max int) *string {
	if p == nil {
		return nil
	}
	v := strings.Join(strings.Fields(*p), " ")
	if max > len(ellipsis) && utf8.RuneCountInString(v) > max {
		runes := []rune(v)
		v = string(runes[:max-len(ellipsis)]) + ellipsis
	}
	if v == "" {
		return nil
	}
	return &v
}

func round2(p *float64) *float64 {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
		return p
	}
	v, _ := decimal.NewFromFloat(*p).Round(2).Float64()
	return &v
}
