package pipeline

import (
	"fmt"
	"sort"

	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/types"
)

// PriceStats summarizes the prices in a batch.
type PriceStats struct {
	Count int     `json:"count"`
	Avg   float64 `json:"avg"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// QualityReport is the result of batch-level checks on stored records.
type QualityReport struct {
	TotalRecords int         `json:"total_records"`
	Passed       bool        `json:"passed"`
	FailedChecks []string    `json:"failed_checks,omitempty"`
	PriceStats   *PriceStats `json:"price_stats,omitempty"`
}

// minOutlierSample is the number of prices above which outliers are flagged.
const minOutlierSample = 5

// CheckQuality runs batch checks: missing identifiers, duplicate
// identifiers and prices more than 10x above or below the batch mean.
func CheckQuality(records []*types.SanitizedRecord) QualityReport {
	report := QualityReport{TotalRecords: len(records)}
	if len(records) == 0 {
		report.FailedChecks = []string{"no data to check"}
		return report
	}

	missing := 0
	seen := make(map[string]int, len(records))
	var prices []float64
	for _, r := range records {
		if r.Identifier == "" {
			missing++
		} else {
			seen[r.Identifier]++
		}
		if r.CurrentPrice != nil {
			prices = append(prices, *r.CurrentPrice)
		}
	}
	if missing > 0 {
		report.FailedChecks = append(report.FailedChecks, fmt.Sprintf("%d records missing identifier", missing))
	}

	if len(prices) > 0 {
		st := &PriceStats{Count: len(prices), Min: prices[0], Max: prices[0]}
		var sum float64
		for _, p := range prices {
			sum += p
			st.Min = min(st.Min, p)
			st.Max = max(st.Max, p)
		}
		st.Avg = sum / float64(len(prices))
		report.PriceStats = st

		if len(prices) > minOutlierSample {
			suspicious := 0
			for _, p := range prices {
				if p > st.Avg*10 || p < st.Avg*0.1 {
					suspicious++
				}
			}
			if suspicious > 0 {
				report.FailedChecks = append(report.FailedChecks, fmt.Sprintf("%d suspicious prices detected", suspicious))
			}
		}
	}

	var dups []string
	for id, n := range seen {
		if n > 1 {
			dups = append(dups, id)
		}
	}
	if len(dups) > 0 {
		sort.Strings(dups)
		report.FailedChecks = append(report.FailedChecks, fmt.Sprintf("duplicate identifiers: %v", dups))
	}

	report.Passed = len(report.FailedChecks) == 0
	return report
}
