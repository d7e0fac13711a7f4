package types

import "time"

// Snapshot is the current stored state of a product.
type Snapshot struct {
	Identifier      string       `json:"identifier" bson:"_id"`
	Title           *string      `json:"title,omitempty" bson:"title,omitempty"`
	CurrentPrice    *float64     `json:"current_price,omitempty" bson:"current_price,omitempty"`
	OriginalPrice   *float64     `json:"original_price,omitempty" bson:"original_price,omitempty"`
	DiscountPercent *float64     `json:"discount_percent,omitempty" bson:"discount_percent,omitempty"`
	Currency        string       `json:"currency" bson:"currency"`
	Availability    Availability `json:"availability" bson:"availability"`
	Rating          *float64     `json:"rating,omitempty" bson:"rating,omitempty"`
	ReviewCount     *int         `json:"review_count,omitempty" bson:"review_count,omitempty"`
	Seller          *string      `json:"seller,omitempty" bson:"seller,omitempty"`
	SourceURL       string       `json:"source_url" bson:"source_url"`
	CapturedAt      time.Time    `json:"captured_at" bson:"captured_at"`
	UpdatedAt       time.Time    `json:"updated_at" bson:"updated_at"`
}

// SnapshotFromRecord builds the stored snapshot for a sanitized record.
func SnapshotFromRecord(rec *SanitizedRecord, updatedAt time.Time) *Snapshot {
	c := rec.ProductRecord.Clone()
	return &Snapshot{
		Identifier:      c.Identifier,
		Title:           c.Title,
		CurrentPrice:    c.CurrentPrice,
		OriginalPrice:   c.OriginalPrice,
		DiscountPercent: c.DiscountPercent,
		Currency:        c.Currency,
		Availability:    c.Availability,
		Rating:          c.Rating,
		ReviewCount:     c.ReviewCount,
		Seller:          c.Seller,
		SourceURL:       c.SourceURL,
		CapturedAt:      c.CapturedAt,
		UpdatedAt:       updatedAt,
	}
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	c := *s
	c.Title = clonePtr(s.Title)
	c.CurrentPrice = clonePtr(s.CurrentPrice)
	c.OriginalPrice = clonePtr(s.OriginalPrice)
	c.DiscountPercent = clonePtr(s.DiscountPercent)
	c.Rating = clonePtr(s.Rating)
	c.ReviewCount = clonePtr(s.ReviewCount)
	c.Seller = clonePtr(s.Seller)
	return &c
}

// HistoryPoint is one price observation.
type HistoryPoint struct {
	Identifier   string       `json:"identifier" bson:"identifier"`
	CapturedAt   time.Time    `json:"captured_at" bson:"captured_at"`
	Price        float64      `json:"price" bson:"price"`
	Availability Availability `json:"availability" bson:"availability"`
}

// Orderings accepted by SnapshotFilter.SortBy.
const (
	SortByIdentifier = "identifier"
	SortByPrice      = "price"
)

// SnapshotFilter narrows ListSnapshots. SortBy price keeps only priced
// snapshots, cheapest first; anything else orders by identifier.
type SnapshotFilter struct {
	Availability Availability
	Query        string
	SortBy       string
	Limit        int
	Offset       int
}

// Stats summarizes the stored catalogue.
type Stats struct {
	TotalProducts     int                  `json:"total_products"`
	ByAvailability    map[Availability]int `json:"by_availability"`
	PricedProducts    int                  `json:"priced_products"`
	AveragePrice      *float64             `json:"average_price,omitempty"`
	MinPrice          *float64             `json:"min_price,omitempty"`
	MaxPrice          *float64             `json:"max_price,omitempty"`
	HistoryRows       int                  `json:"history_rows"`
	ObservationsToday int                  `json:"observations_today"`
}

// DailySummary aggregates one UTC day of price history. AveragePrice is the
// mean of each product's average price that day.
type DailySummary struct {
	Date         string  `json:"date" bson:"_id"`
	Products     int     `json:"products" bson:"products"`
	AveragePrice float64 `json:"avg_price" bson:"avg_price"`
}

// PriceAlert flags a product whose price moved against its recent average.
type PriceAlert struct {
	Identifier      string  `json:"identifier"`
	Title           string  `json:"title,omitempty"`
	CurrentPrice    float64 `json:"current_price"`
	PreviousAverage float64 `json:"previous_average"`
	ChangePct       float64 `json:"change_pct"`
}
