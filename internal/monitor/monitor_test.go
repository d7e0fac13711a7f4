package monitor

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/storage"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func sanitized(id string, price *float64, avail types.Availability) *types.SanitizedRecord {
	return &types.SanitizedRecord{ProductRecord: types.ProductRecord{
		Identifier:   id,
		Title:        types.Ptr("Kettle"),
		CurrentPrice: price,
		Availability: avail,
		Currency:     "INR",
		CapturedAt:   fixedNow,
	}}
}

func newDetector() *ChangeDetector {
	return NewChangeDetector(testLogger).WithClock(func() time.Time { return fixedNow })
}

func TestDetectFirstSighting(t *testing.T) {
	changes := newDetector().Detect(nil, sanitized("B00000000A", types.Ptr(10.0), types.InStock))
	require.Len(t, changes, 1)
	assert.Equal(t, ChangeAdded, changes[0].Type)
	assert.Empty(t, changes[0].Field)
}

func TestDetectNoChange(t *testing.T) {
	rec := sanitized("B00000000A", types.Ptr(10.0), types.InStock)
	prev := types.SnapshotFromRecord(rec, fixedNow)
	assert.Empty(t, newDetector().Detect(prev, rec))
}

func TestDetectPriceAndStockChanges(t *testing.T) {
	prev := types.SnapshotFromRecord(sanitized("B00000000A", types.Ptr(200.0), types.InStock), fixedNow)
	next := sanitized("B00000000A", types.Ptr(150.0), types.OutOfStock)
	next.Seller = types.Ptr("Acme")

	changes := newDetector().Detect(prev, next)
	require.Len(t, changes, 3)

	byField := map[string]Change{}
	for _, c := range changes {
		byField[c.Field] = c
	}
	price := byField["price"]
	assert.Equal(t, ChangeModified, price.Type)
	assert.Equal(t, "200.00", price.OldValue)
	assert.Equal(t, "150.00", price.NewValue)
	require.NotNil(t, price.DeltaPct)
	assert.InDelta(t, -25.0, *price.DeltaPct, 1e-9)

	assert.Equal(t, "out_of_stock", byField["availability"].NewValue)
	assert.Equal(t, ChangeAdded, byField["seller"].Type)
}

func TestDetectPriceRemoved(t *testing.T) {
	prev := types.SnapshotFromRecord(sanitized("B00000000A", types.Ptr(99.0), types.InStock), fixedNow)
	changes := newDetector().Detect(prev, sanitized("B00000000A", nil, types.InStock))
	require.Len(t, changes, 1)
	assert.Equal(t, ChangeRemoved, changes[0].Type)
	assert.Nil(t, changes[0].DeltaPct)
}

func points(prices ...float64) []types.HistoryPoint {
	out := make([]types.HistoryPoint, len(prices))
	for i, p := range prices {
		out[i] = types.HistoryPoint{Price: p}
	}
	return out
}

func TestCheckPriceAnomaly(t *testing.T) {
	tests := []struct {
		name    string
		current float64
		history []types.HistoryPoint
		want    bool
		spike   bool
	}{
		{"no history", 100, nil, false, false},
		{"stable", 110, points(100, 100), false, false},
		{"spike", 151, points(100, 100), true, true},
		{"drop", 49, points(100, 100), true, false},
		{"edge", 150, points(100), false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CheckPriceAnomaly(tt.current, tt.history, 0.5)
			assert.Equal(t, tt.want, got.Anomalous)
			assert.Equal(t, tt.spike, got.Spike)
		})
	}
}

func TestPriceAlerts(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore(testLogger)

	upsert := func(id string, price float64, ago time.Duration) {
		rec := sanitized(id, types.Ptr(price), types.InStock)
		rec.CapturedAt = fixedNow.Add(-ago)
		require.NoError(t, store.UpsertProduct(ctx, rec))
	}
	upsert("B00000000A", 100, 72*time.Hour)
	upsert("B00000000A", 100, 48*time.Hour)
	upsert("B00000000A", 80, time.Hour)

	upsert("B00000000B", 100, 48*time.Hour)
	upsert("B00000000B", 105, time.Hour)

	upsert("B00000000C", 50, 24*time.Hour)
	upsert("B00000000C", 75, time.Hour)

	upsert("B00000000D", 10, 30*24*time.Hour)
	upsert("B00000000D", 20, time.Hour)

	alerts, err := PriceAlerts(ctx, store, 10, 7*24*time.Hour, fixedNow)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, "B00000000C", alerts[0].Identifier)
	assert.Equal(t, 50.0, alerts[0].ChangePct)
	assert.Equal(t, "B00000000A", alerts[1].Identifier)
	assert.Equal(t, -20.0, alerts[1].ChangePct)
	assert.Equal(t, 100.0, alerts[1].PreviousAverage)
	assert.Equal(t, "Kettle", alerts[1].Title)
}

func TestNotifierWebhook(t *testing.T) {
	var got atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Count int `json:"count"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		got.Store(int32(body.Count))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewNotifier(testLogger)
	n.AddChannel(&LogChannel{Logger: testLogger})
	n.AddChannel(&WebhookChannel{URL: srv.URL, Client: srv.Client()})
	n.Notify(context.Background(), []Change{{Identifier: "B00000000A", Type: ChangeAdded}})
	assert.Equal(t, int32(1), got.Load())
}

func TestWebhookErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := (&WebhookChannel{URL: srv.URL}).Send(context.Background(), []Change{{Identifier: "X"}})
	assert.ErrorContains(t, err, "HTTP 502")
}

func TestSchedulerRunsImmediately(t *testing.T) {
	var runs atomic.Int32
	done := make(chan struct{}, 1)
	s := NewScheduler(testLogger)
	s.Add(&Schedule{Name: "scrape", Interval: time.Hour, Run: func(ctx context.Context) error {
		runs.Add(1)
		done <- struct{}{}
		return nil
	}})
	s.Start(context.Background())

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("schedule did not run")
	}
	s.Stop()
	assert.Equal(t, int32(1), runs.Load())
}
