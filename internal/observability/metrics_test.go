package observability

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.IncAttempt("ok")
	m.ObserveFetch(time.Second)
	m.IncRetries()
	m.IncProxyFailure()
	m.IncRecord("succeeded")
	m.IncViolation("price")
	m.IncChange("price")
	m.MarkRun(time.Now())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Errorf("nil metrics handler status = %d, want 404", rec.Code)
	}
}

func TestMetricsCountAndExpose(t *testing.T) {
	m := NewMetrics()
	m.IncAttempt("ok")
	m.IncAttempt("ok")
	m.IncAttempt("blocked")
	m.IncRecord("invalid")
	m.IncRetries()

	if got := testutil.ToFloat64(m.FetchAttempts.WithLabelValues("ok")); got != 2 {
		t.Errorf("ok attempts = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.FetchAttempts.WithLabelValues("blocked")); got != 1 {
		t.Errorf("blocked attempts = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.FetchRetries); got != 1 {
		t.Errorf("retries = %v, want 1", got)
	}

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `pricetracker_records_total{result="invalid"} 1`) {
		t.Errorf("exposition missing records counter:\n%s", body)
	}
}
