package validate

import (
	"errors"
	"log/slog"
	"math"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/config"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/observability"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/parser"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func testConfig() config.ValidationConfig {
	return config.DefaultConfig().Validation
}

func newTestValidator() *Validator {
	return New(testConfig(), testLogger, WithClock(func() time.Time { return fixedNow }))
}

func goodRecord() *types.ProductRecord {
	return &types.ProductRecord{
		Identifier:   "B08N5WRWNW",
		Title:        types.Ptr("Acme Electric Kettle"),
		CurrentPrice: types.Ptr(100.0),
		Currency:     "INR",
		Availability: types.InStock,
		CapturedAt:   fixedNow.Add(-time.Minute),
	}
}

func TestIdentifierPolicy(t *testing.T) {
	policy := config.IdentifierPolicy{Length: 10, RequireMixed: true}
	tests := []struct {
		id    string
		valid bool
		want  string
	}{
		{"B08N5WRWNW", true, ""},
		{"b08n5wrwnw", true, ""},
		{"B08N5WRWN", false, "identifier length must be 10, got 9"},
		{"B08N5WRWNWX", false, "identifier length must be 10, got 11"},
		{"1234567890", false, "must not be all digits"},
		{"ABCDEFGHIJ", false, "must not be all letters"},
		{"B08N5-RWNW", false, "only letters and digits"},
		{"", false, "identifier length must be 10, got 0"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			err := CheckIdentifier(tt.id, policy)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, types.ErrInvalidIdentifier))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestIdentifierPolicyWithoutMixed(t *testing.T) {
	policy := config.IdentifierPolicy{Length: 10}
	assert.Empty(t, IdentifierViolations("1234567890", policy))
	assert.Empty(t, IdentifierViolations("ABCDEFGHIJ", policy))
}

func TestValidRecord(t *testing.T) {
	res := newTestValidator().Validate(goodRecord())
	assert.True(t, res.Valid, "violations: %v", res.Violations)
	assert.NoError(t, res.Err())
	assert.Equal(t, "B08N5WRWNW", res.Identifier)
}

func TestNilRecord(t *testing.T) {
	res := newTestValidator().Validate(nil)
	assert.False(t, res.Valid)
	assert.Equal(t, []string{"record is missing"}, res.Violations)
}

func TestPriceOrderAndStock(t *testing.T) {
	v := newTestValidator()

	rec := goodRecord()
	rec.OriginalPrice = types.Ptr(100.0)
	assert.True(t, v.Validate(rec).Valid)

	rec = goodRecord()
	rec.OriginalPrice = types.Ptr(90.0)
	res := v.Validate(rec)
	assert.False(t, res.Valid)
	assert.Contains(t, strings.Join(res.Violations, "\n"), "exceeds original_price")

	rec = goodRecord()
	rec.CurrentPrice = nil
	res = v.Validate(rec)
	assert.False(t, res.Valid)
	assert.Contains(t, res.Violations, MissingPriceReason)

	rec = goodRecord()
	rec.CurrentPrice = nil
	rec.Availability = types.OutOfStock
	assert.True(t, v.Validate(rec).Valid)
}

func TestUnknownAvailabilityAccepted(t *testing.T) {
	rec := goodRecord()
	rec.CurrentPrice = nil
	rec.Availability = types.Unknown
	assert.True(t, newTestValidator().Validate(rec).Valid)
}

func TestPriceBounds(t *testing.T) {
	v := newTestValidator()
	tests := []struct {
		name  string
		price float64
		want  string
	}{
		{"zero", 0, "must be > 0"},
		{"negative", -5, "must be > 0"},
		{"ceiling", 2e7, "exceeds ceiling"},
		{"placeholder", 999999.99, "placeholder"},
		{"nan", math.NaN(), "finite"},
		{"inf", math.Inf(1), "finite"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := goodRecord()
			rec.CurrentPrice = types.Ptr(tt.price)
			res := v.Validate(rec)
			assert.False(t, res.Valid)
			assert.Contains(t, strings.Join(res.Violations, "\n"), tt.want)
		})
	}
}

func TestTitleRule(t *testing.T) {
	v := newTestValidator()

	rec := goodRecord()
	rec.Title = nil
	assert.Contains(t, v.Validate(rec).Violations, "title is missing")

	rec = goodRecord()
	rec.Title = types.Ptr("ab")
	assert.False(t, v.Validate(rec).Valid)

	rec = goodRecord()
	rec.Title = types.Ptr(strings.Repeat("x", 501))
	assert.False(t, v.Validate(rec).Valid)

	rec = goodRecord()
	rec.Title = types.Ptr("!!!???")
	assert.Contains(t, v.Validate(rec).Violations, "title contains only special characters")
}

func TestRatingAndReviews(t *testing.T) {
	v := newTestValidator()

	rec := goodRecord()
	rec.Rating = types.Ptr(5.7)
	res := v.Validate(rec)
	assert.False(t, res.Valid)
	assert.Contains(t, res.Violations, "rating 5.7 out of bounds [0.0, 5.0]")

	rec = goodRecord()
	rec.ReviewCount = types.Ptr(-5)
	res = v.Validate(rec)
	assert.False(t, res.Valid)
	assert.Contains(t, res.Violations, "review_count -5 out of bounds (must be >= 0)")
}

func TestCollectsAllViolations(t *testing.T) {
	rec := &types.ProductRecord{
		Identifier:   "12",
		Rating:       types.Ptr(9.0),
		ReviewCount:  types.Ptr(-1),
		Availability: types.InStock,
		CapturedAt:   fixedNow,
	}
	res := newTestValidator().Validate(rec)
	assert.False(t, res.Valid)
	assert.GreaterOrEqual(t, len(res.Violations), 5)

	var verr *types.ValidationError
	require.ErrorAs(t, res.Err(), &verr)
	assert.Equal(t, "12", verr.Identifier)
}

func TestDiscountRule(t *testing.T) {
	v := newTestValidator()

	rec := goodRecord()
	rec.OriginalPrice = types.Ptr(200.0)
	rec.DiscountPercent = types.Ptr(50.0)
	assert.True(t, v.Validate(rec).Valid)

	rec.DiscountPercent = types.Ptr(53.0)
	assert.True(t, v.Validate(rec).Valid, "within tolerance")

	rec.DiscountPercent = types.Ptr(20.0)
	res := v.Validate(rec)
	assert.False(t, res.Valid)
	assert.Contains(t, strings.Join(res.Violations, "\n"), "does not match computed 50.00")
}

func TestTimestampRule(t *testing.T) {
	v := newTestValidator()
	tests := []struct {
		name string
		at   time.Time
		want string
	}{
		{"zero", time.Time{}, "captured_at is missing"},
		{"future", fixedNow.Add(2 * time.Hour), "in the future"},
		{"ancient", time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC), "predates"},
		{"stale", fixedNow.Add(-48 * time.Hour), "older than"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := goodRecord()
			rec.CapturedAt = tt.at
			res := v.Validate(rec)
			assert.False(t, res.Valid)
			assert.Contains(t, strings.Join(res.Violations, "\n"), tt.want)
		})
	}

	rec := goodRecord()
	rec.CapturedAt = fixedNow.Add(30 * time.Minute)
	assert.True(t, v.Validate(rec).Valid, "within clock skew")
}

func TestViolationMetrics(t *testing.T) {
	m := observability.NewMetrics()
	v := New(testConfig(), testLogger, WithClock(func() time.Time { return fixedNow }), WithMetrics(m))

	rec := goodRecord()
	rec.CurrentPrice = nil
	v.Validate(rec)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Violations.WithLabelValues("stock_price")))
}

func TestRuleOrder(t *testing.T) {
	assert.Equal(t, []string{
		"identifier", "title", "price", "rating", "review_count",
		"price_order", "stock_price", "discount", "timestamp",
	}, newTestValidator().Rules())
}

func TestCustomRule(t *testing.T) {
	v := NewEmpty(testLogger).Use(RuleFunc{
		RuleName: "seller_required",
		Fn: func(rec *types.ProductRecord) []string {
			if rec.Seller == nil {
				return []string{"seller is missing"}
			}
			return nil
		},
	})
	res := v.Validate(goodRecord())
	assert.Equal(t, []string{"seller is missing"}, res.Violations)
}

func TestSanitize(t *testing.T) {
	s := NewSanitizer(testConfig())
	in := &types.ProductRecord{
		Identifier:      "  b08n5wrwnw ",
		Title:           types.Ptr("  Acme \n\t Kettle  "),
		CurrentPrice:    types.Ptr(1299.004),
		OriginalPrice:   types.Ptr(1500.0),
		DiscountPercent: types.Ptr(13.3999),
		Currency:        " inr ",
		Availability:    "Only 2 left in stock",
		Rating:          types.Ptr(5.7),
		ReviewCount:     types.Ptr(-3),
		Seller:          types.Ptr("   "),
		CapturedAt:      time.Date(2024, 5, 1, 17, 30, 0, 123456789, time.FixedZone("IST", 19800)),
	}
	snapshot := in.Clone()

	out := s.Sanitize(in)
	require.NotNil(t, out)
	assert.Equal(t, "B08N5WRWNW", out.Identifier)
	assert.Equal(t, "Acme Kettle", *out.Title)
	assert.Equal(t, 1299.0, *out.CurrentPrice)
	assert.Equal(t, 13.4, *out.DiscountPercent)
	assert.Equal(t, "INR", out.Currency)
	assert.Equal(t, types.InStock, out.Availability)
	assert.Equal(t, 5.0, *out.Rating)
	assert.Equal(t, 0, *out.ReviewCount)
	assert.Nil(t, out.Seller)
	assert.Equal(t, time.UTC, out.CapturedAt.Location())
	assert.Equal(t, 123456000, out.CapturedAt.Nanosecond())

	assert.Equal(t, snapshot, in, "input must not be modified")
}

func TestSanitizeDefaultsAndTruncation(t *testing.T) {
	cfg := testConfig()
	s := NewSanitizer(cfg)
	out := s.Sanitize(&types.ProductRecord{
		Identifier: "B08N5WRWNW",
		Title:      types.Ptr(strings.Repeat("é", 600)),
		Seller:     types.Ptr(strings.Repeat("s", 150)),
	})
	assert.Equal(t, "INR", out.Currency)
	assert.Equal(t, types.Unknown, out.Availability)
	assert.Equal(t, cfg.TitleMax, len([]rune(*out.Title)))
	assert.True(t, strings.HasSuffix(*out.Title, "..."))
	assert.Equal(t, cfg.SellerMax, len(*out.Seller))
	assert.Nil(t, s.Sanitize(nil))
}

func TestSanitizeIdempotent(t *testing.T) {
	s := NewSanitizer(testConfig())
	inputs := []*types.ProductRecord{
		goodRecord(),
		{Identifier: " x ", Availability: "Currently unavailable."},
		{
			Identifier:   "b0abc12345",
			Title:        types.Ptr(strings.Repeat("word ", 200)),
			CurrentPrice: types.Ptr(0.005),
			Rating:       types.Ptr(-1.0),
			ReviewCount:  types.Ptr(-10),
			Currency:     "usd",
			CapturedAt:   time.Date(2024, 1, 1, 0, 0, 0, 999, time.Local),
		},
	}
	for _, in := range inputs {
		once := s.Sanitize(in)
		twice := s.Sanitize(&once.ProductRecord)
		assert.Equal(t, once, twice)
	}
}

func TestSanitizedRecordStaysValid(t *testing.T) {
	v := newTestValidator()
	s := NewSanitizer(testConfig())

	rec := goodRecord()
	rec.Identifier = "b08n5wrwnw"
	rec.Title = types.Ptr("  Acme   Kettle ")
	rec.Rating = types.Ptr(4.46)
	require.True(t, v.Validate(rec).Valid)

	out := s.Sanitize(rec)
	res := v.Validate(&out.ProductRecord)
	assert.True(t, res.Valid, "violations: %v", res.Violations)
}

func TestEndToEndWidget(t *testing.T) {
	const html = `<html><body>
<span id="productTitle">Widget</span>
<span class="a-price"><span class="a-offscreen">1,299.00</span></span>
<div id="availability"><span>In stock</span></div>
</body></html>`

	p := parser.New(testLogger).WithClock(func() time.Time { return fixedNow })
	rec := p.Parse(html, "b08n5wrwnw")
	require.NotNil(t, rec)

	res := newTestValidator().Validate(rec)
	require.True(t, res.Valid, "violations: %v", res.Violations)

	out := NewSanitizer(testConfig()).Sanitize(rec)
	assert.Equal(t, "B08N5WRWNW", out.Identifier)
	assert.Equal(t, "Widget", *out.Title)
	assert.Equal(t, 1299.00, *out.CurrentPrice)
	assert.Equal(t, types.InStock, out.Availability)
	assert.Equal(t, "INR", out.Currency)
}
