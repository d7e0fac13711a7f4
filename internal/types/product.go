package types

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Availability is the stock status of a product.
type Availability string

const (
	InStock     Availability = "in_stock"
	OutOfStock  Availability = "out_of_stock"
	Available   Availability = "available"
	Unavailable Availability = "unavailable"
	Unknown     Availability = "unknown"
)

// Canonical maps free text or a raw status onto the canonical set
// in_stock, out_of_stock, available, unknown. Canonical values map to themselves.
func (a Availability) Canonical() Availability {
	s := strings.ToLower(strings.TrimSpace(string(a)))
	s = strings.ReplaceAll(s, "_", " ")
	switch {
	case s == "":
		return Unknown
	case strings.Contains(s, "out of stock"), strings.Contains(s, "unavailable"):
		return OutOfStock
	case strings.Contains(s, "in stock"):
		return InStock
	case strings.Contains(s, "available"):
		return Available
	default:
		return Unknown
	}
}

// Purchasable reports whether the status implies the item can be bought.
func (a Availability) Purchasable() bool {
	return a == InStock || a == Available
}

// RawPage is the HTML fetched for one product identifier.
type RawPage struct {
	ID         uuid.UUID     `json:"id"`
	Identifier string        `json:"identifier"`
	URL        string        `json:"url"`
	FinalURL   string        `json:"final_url"`
	StatusCode int           `json:"status_code"`
	HTML       string        `json:"-"`
	FetchedAt  time.Time     `json:"fetched_at"`
	Duration   time.Duration `json:"duration"`
}

// NewRawPage builds a RawPage from a successful fetch response.
func NewRawPage(identifier string, resp *Response) *RawPage {
	return &RawPage{
		ID:         uuid.New(),
		Identifier: identifier,
		URL:        resp.URL,
		FinalURL:   resp.FinalURL,
		StatusCode: resp.StatusCode,
		HTML:       string(resp.Body),
		FetchedAt:  resp.FetchedAt,
		Duration:   resp.Duration,
	}
}

// ProductRecord is the structured output of the parser. Nil pointer fields are absent.
type ProductRecord struct {
	Identifier      string       `json:"identifier"`
	Title           *string      `json:"title,omitempty"`
	CurrentPrice    *float64     `json:"current_price,omitempty"`
	OriginalPrice   *float64     `json:"original_price,omitempty"`
	DiscountPercent *float64     `json:"discount_percent,omitempty"`
	Currency        string       `json:"currency,omitempty"`
	Availability    Availability `json:"availability"`
	Rating          *float64     `json:"rating,omitempty"`
	ReviewCount     *int         `json:"review_count,omitempty"`
	Seller          *string      `json:"seller,omitempty"`
	SourceURL       string       `json:"source_url,omitempty"`
	RawPageID       string       `json:"raw_page_id,omitempty"`
	CapturedAt      time.Time    `json:"captured_at"`
}

// Clone returns a deep copy so callers can mutate it freely.
func (r *ProductRecord) Clone() *ProductRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.Title = clonePtr(r.Title)
	c.CurrentPrice = clonePtr(r.CurrentPrice)
	c.OriginalPrice = clonePtr(r.OriginalPrice)
	c.DiscountPercent = clonePtr(r.DiscountPercent)
	c.Rating = clonePtr(r.Rating)
	c.ReviewCount = clonePtr(r.ReviewCount)
	c.Seller = clonePtr(r.Seller)
	return &c
}

// SanitizedRecord is a ProductRecord that has passed through the sanitizer.
// Storage only accepts this type.
type SanitizedRecord struct {
	ProductRecord
}

// ValidationResult is the verdict for one record.
type ValidationResult struct {
	Identifier string   `json:"identifier"`
	Valid      bool     `json:"valid"`
	Violations []string `json:"violations,omitempty"`
}

// Err returns a *ValidationError when the result is invalid, nil otherwise.
func (v ValidationResult) Err() error {
	if v.Valid {
		return nil
	}
	return &ValidationError{Identifier: v.Identifier, Violations: v.Violations}
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
