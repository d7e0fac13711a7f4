package validate

import (
	"log/slog"
	"time"

	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/config"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/observability"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/types"
)

// Rule checks one aspect of a record and returns a reason per violation.
// Rules must not modify the record.
type Rule interface {
	// Name returns the rule's identifier.
	Name() string

	// Check returns the violations found, or nil.
	Check(rec *types.ProductRecord) []string
}

// RuleFunc adapts a function to the Rule interface.
type RuleFunc struct {
	RuleName string
	Fn       func(rec *types.ProductRecord) []string
}

func (r RuleFunc) Name() string { return r.RuleName }

func (r RuleFunc) Check(rec *types.ProductRecord) []string { return r.Fn(rec) }

// Validator runs a chain of rules and collects every violation.
type Validator struct {
	rules   []Rule
	logger  *slog.Logger
	metrics *observability.Metrics
}

// Option configures a Validator built by New.
type Option func(*options)

type options struct {
	now     func() time.Time
	metrics *observability.Metrics
}

// WithClock sets the clock used by the timestamp rule.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithMetrics counts violations per rule.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// New creates a Validator with the full default rule chain.
func New(cfg config.ValidationConfig, logger *slog.Logger, opts ...Option) *Validator {
	o := &options{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}

	v := NewEmpty(logger)
	v.metrics = o.metrics
	v.Use(
		IdentifierRule(cfg.Identifier),
		TitleRule(cfg.TitleMin, cfg.TitleMax),
		PriceRule(cfg.PriceCeiling, cfg.SuspiciousPrices),
		RatingRule(cfg.RatingMin, cfg.RatingMax),
		ReviewCountRule(),
		PriceOrderRule(),
		StockPriceRule(),
		DiscountRule(cfg.DiscountTolerance),
		TimestampRule(o.now, cfg.ClockSkew, cfg.Freshness),
	)
	return v
}

// NewEmpty creates a Validator with no rules.
func NewEmpty(logger *slog.Logger) *Validator {
	return &Validator{
		logger: logger.With("component", "validator"),
	}
}

// Use appends rules to the chain.
func (v *Validator) Use(rules ...Rule) *Validator {
	for _, r := range rules {
		v.rules = append(v.rules, r)
		v.logger.Debug("rule added", "name", r.Name(), "position", len(v.rules))
	}
	return v
}

// Rules returns the rule names in chain order.
func (v *Validator) Rules() []string {
	names := make([]string, len(v.rules))
	for i, r := range v.rules {
		names[i] = r.Name()
	}
	return names
}

// Validate runs every rule against rec. A nil record is invalid.
func (v *Validator) Validate(rec *types.ProductRecord) types.ValidationResult {
	if rec == nil {
		return types.ValidationResult{Valid: false, Violations: []string{"record is missing"}}
	}

	res := types.ValidationResult{Identifier: rec.Identifier}
	for _, r := range v.rules {
		found := r.Check(rec)
		for range found {
			v.metrics.IncViolation(r.Name())
		}
		res.Violations = append(res.Violations, found...)
	}
	res.Valid = len(res.Violations) == 0

	if rec.Availability.Canonical() == types.Unknown {
		v.logger.Info("availability unknown", "identifier", rec.Identifier)
	}
	if !res.Valid {
		v.logger.Debug("record rejected", "identifier", rec.Identifier, "violations", res.Violations)
	}
	return res
}
