package monitor

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/storage"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/types"
)

// Anomaly describes a price compared with its historical mean.
type Anomaly struct {
	Anomalous bool
	Mean      float64
	Spike     bool
}

// CheckPriceAnomaly reports whether current lies more than ratio above or
// below the mean of history. An empty history is never anomalous.
func CheckPriceAnomaly(current float64, history []types.HistoryPoint, ratio float64) Anomaly {
	if len(history) == 0 {
		return Anomaly{}
	}
	var sum float64
	for _, p := range history {
		sum += p.Price
	}
	mean := sum / float64(len(history))
	switch {
	case current > mean*(1+ratio):
		return Anomaly{Anomalous: true, Mean: mean, Spike: true}
	case current < mean*(1-ratio):
		return Anomaly{Anomalous: true, Mean: mean}
	default:
		return Anomaly{Mean: mean}
	}
}

// PriceAlerts returns products whose current price differs from the average
// of their earlier observations inside window by at least thresholdPct
// percent, largest moves first.
func PriceAlerts(ctx context.Context, store storage.Store, thresholdPct float64, window time.Duration, now time.Time) ([]types.PriceAlert, error) {
	snaps, err := store.ListSnapshots(ctx, types.SnapshotFilter{})
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}

	var ids []string
	bySnap := make(map[string]*types.Snapshot, len(snaps))
	for _, s := range snaps {
		if s.CurrentPrice != nil {
			ids = append(ids, s.Identifier)
			bySnap[s.Identifier] = s
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	series, err := store.HistorySeries(ctx, ids, now.Add(-window))
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	var alerts []types.PriceAlert
	for _, id := range ids {
		points := series[id]
		if len(points) < 2 {
			continue
		}
		earlier := points[:len(points)-1]
		var sum float64
		for _, p := range earlier {
			sum += p.Price
		}
		avg := sum / float64(len(earlier))
		if avg == 0 {
			continue
		}

		snap := bySnap[id]
		current := *snap.CurrentPrice
		pct := (current - avg) / avg * 100
		if math.Abs(pct) < thresholdPct {
			continue
		}
		alert := types.PriceAlert{
			Identifier:      id,
			CurrentPrice:    current,
			PreviousAverage: math.Round(avg*100) / 100,
			ChangePct:       math.Round(pct*10) / 10,
		}
		if snap.Title != nil {
			alert.Title = *snap.Title
		}
		alerts = append(alerts, alert)
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		return math.Abs(alerts[i].ChangePct) > math.Abs(alerts[j].ChangePct)
	})
	return alerts, nil
}
