package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/config"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/observability"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/storage"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T, s storage.Store, id, title string, avail types.Availability, prices map[time.Duration]float64) {
	t.Helper()
	// oldest first so the snapshot ends on the most recent observation
	var offsets []time.Duration
	for off := range prices {
		offsets = append(offsets, off)
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] > offsets[j] })
	for _, off := range offsets {
		rec := &types.SanitizedRecord{ProductRecord: types.ProductRecord{
			Identifier:   id,
			Title:        types.Ptr(title),
			CurrentPrice: types.Ptr(prices[off]),
			Currency:     "INR",
			Availability: avail,
			CapturedAt:   fixedNow.Add(-off),
		}}
		require.NoError(t, s.UpsertProduct(context.Background(), rec))
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *observability.Metrics) {
	t.Helper()
	store := storage.NewMemoryStore(testLogger).WithClock(func() time.Time { return fixedNow })

	seed(t, store, "B000000001", "Steel Bottle", types.InStock, map[time.Duration]float64{
		72 * time.Hour: 100,
		48 * time.Hour: 100,
		time.Hour:      80,
	})
	seed(t, store, "B000000002", "Desk Lamp", types.OutOfStock, map[time.Duration]float64{
		time.Hour: 450,
	})
	seed(t, store, "B000000003", "Cotton Towel", types.InStock, map[time.Duration]float64{
		40 * 24 * time.Hour: 300,
		2 * time.Hour:       310,
	})

	cfg := config.DefaultConfig()
	metrics := observability.NewMetrics()
	srv := NewServer(cfg, store, metrics, testLogger).WithClock(func() time.Time { return fixedNow })

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, metrics
}

func getJSON(t *testing.T, ts *httptest.Server, path string, out any) int {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)

	var body map[string]string
	status := getJSON(t, ts, "/api/health", &body)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "memory", body["backend"])
}

func TestListProducts(t *testing.T) {
	ts, _ := newTestServer(t)

	var body struct {
		Products []types.Snapshot `json:"products"`
		Count    int              `json:"count"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, ts, "/api/products", &body))
	assert.Equal(t, 3, body.Count)
	assert.Len(t, body.Products, 3)
}

func TestListProductsFilters(t *testing.T) {
	ts, _ := newTestServer(t)

	var byAvail struct {
		Products []types.Snapshot `json:"products"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, ts, "/api/products?availability=out_of_stock", &byAvail))
	require.Len(t, byAvail.Products, 1)
	assert.Equal(t, "B000000002", byAvail.Products[0].Identifier)

	var byQuery struct {
		Products []types.Snapshot `json:"products"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, ts, "/api/products?q=towel", &byQuery))
	require.Len(t, byQuery.Products, 1)
	assert.Equal(t, "B000000003", byQuery.Products[0].Identifier)

	var paged struct {
		Products []types.Snapshot `json:"products"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, ts, "/api/products?limit=2&offset=2", &paged))
	assert.Len(t, paged.Products, 1)
}

func TestListProductsSortedByPrice(t *testing.T) {
	ts, _ := newTestServer(t)

	var body struct {
		Products []types.Snapshot `json:"products"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, ts, "/api/products?sort=price&limit=2", &body))
	require.Len(t, body.Products, 2)
	assert.Equal(t, "B000000001", body.Products[0].Identifier)
	assert.Equal(t, 80.0, *body.Products[0].CurrentPrice)
	assert.Equal(t, "B000000003", body.Products[1].Identifier)

	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts, "/api/products?sort=rating", nil))
}

func TestListProductsRejectsBadLimit(t *testing.T) {
	ts, _ := newTestServer(t)

	for _, q := range []string{"limit=0", "limit=abc", "limit=10000", "offset=-1"} {
		var body map[string]string
		status := getJSON(t, ts, "/api/products?"+q, &body)
		assert.Equal(t, http.StatusBadRequest, status, q)
		assert.NotEmpty(t, body["error"], q)
	}
}

func TestGetProduct(t *testing.T) {
	ts, _ := newTestServer(t)

	var body struct {
		Product types.Snapshot       `json:"product"`
		History []types.HistoryPoint `json:"history"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, ts, "/api/products/b000000001", &body))
	assert.Equal(t, "B000000001", body.Product.Identifier)
	require.NotNil(t, body.Product.CurrentPrice)
	assert.Equal(t, 80.0, *body.Product.CurrentPrice)
	assert.Len(t, body.History, 3)
}

func TestGetProductHistoryWindow(t *testing.T) {
	ts, _ := newTestServer(t)

	var all struct {
		History []types.HistoryPoint `json:"history"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, ts, "/api/products/B000000003/history?days=60", &all))
	assert.Len(t, all.History, 2)

	var recent struct {
		Days    int                  `json:"days"`
		History []types.HistoryPoint `json:"history"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, ts, "/api/products/B000000003/history", &recent))
	assert.Equal(t, 30, recent.Days)
	require.Len(t, recent.History, 1)
	assert.Equal(t, 310.0, recent.History[0].Price)
}

func TestGetProductNotFound(t *testing.T) {
	ts, _ := newTestServer(t)

	var body map[string]string
	assert.Equal(t, http.StatusNotFound, getJSON(t, ts, "/api/products/B0UNKNOWN1", &body))
	assert.Equal(t, "product not found", body["error"])
}

func TestGetProductRejectsBadDays(t *testing.T) {
	ts, _ := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts, "/api/products/B000000001?days=0", nil))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts, "/api/products/B000000001/history?days=400", nil))
}

func TestHistorySeries(t *testing.T) {
	ts, _ := newTestServer(t)

	var body struct {
		Series map[string][]types.HistoryPoint `json:"series"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, ts, "/api/history?ids=B000000001,b000000002&days=7", &body))
	assert.Len(t, body.Series["B000000001"], 3)
	assert.Len(t, body.Series["B000000002"], 1)
}

func TestHistorySeriesLimits(t *testing.T) {
	ts, _ := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts, "/api/history", nil))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts, "/api/history?ids=A1,A2,A3,A4,A5,A6", nil))
}

func TestStats(t *testing.T) {
	ts, _ := newTestServer(t)

	var st types.Stats
	require.Equal(t, http.StatusOK, getJSON(t, ts, "/api/stats", &st))
	assert.Equal(t, 3, st.TotalProducts)
	assert.Equal(t, 2, st.ByAvailability[types.InStock])
	assert.Equal(t, 1, st.ByAvailability[types.OutOfStock])
	assert.Equal(t, 6, st.HistoryRows)
}

func TestDailySummary(t *testing.T) {
	ts, _ := newTestServer(t)

	var body struct {
		Days    int                  `json:"days"`
		Summary []types.DailySummary `json:"summary"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, ts, "/api/daily", &body))
	assert.Equal(t, 7, body.Days)
	require.Len(t, body.Summary, 3)
	assert.Equal(t, types.DailySummary{Date: "2024-04-28", Products: 1, AveragePrice: 100}, body.Summary[0])
	assert.Equal(t, "2024-04-29", body.Summary[1].Date)
	assert.Equal(t, "2024-05-01", body.Summary[2].Date)
	assert.Equal(t, 3, body.Summary[2].Products)
	assert.InDelta(t, 280.0, body.Summary[2].AveragePrice, 0.001)

	var recent struct {
		Summary []types.DailySummary `json:"summary"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, ts, "/api/daily?days=1", &recent))
	require.Len(t, recent.Summary, 1)
	assert.Equal(t, "2024-05-01", recent.Summary[0].Date)

	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts, "/api/daily?days=0", nil))
}

func TestAlerts(t *testing.T) {
	ts, _ := newTestServer(t)

	var body struct {
		ThresholdPct float64            `json:"threshold_pct"`
		Alerts       []types.PriceAlert `json:"alerts"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, ts, "/api/alerts", &body))
	assert.Equal(t, 10.0, body.ThresholdPct)
	require.Len(t, body.Alerts, 1)
	assert.Equal(t, "B000000001", body.Alerts[0].Identifier)
	assert.Equal(t, -20.0, body.Alerts[0].ChangePct)
	assert.Equal(t, 100.0, body.Alerts[0].PreviousAverage)

	var none struct {
		Alerts []types.PriceAlert `json:"alerts"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, ts, "/api/alerts?threshold=25", &none))
	assert.Empty(t, none.Alerts)
	assert.NotNil(t, none.Alerts)

	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts, "/api/alerts?threshold=-1", nil))
}

func TestMetricsEndpoint(t *testing.T) {
	ts, metrics := newTestServer(t)
	metrics.IncRetries()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "pricetracker_fetch_retries_total 1")
}

func TestDashboardServed(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html"))
	assert.Contains(t, string(raw), "/api/stats")
	assert.Contains(t, string(raw), "<title>Price Tracker</title>")
}

func TestCORSPreflight(t *testing.T) {
	ts, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/products", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
