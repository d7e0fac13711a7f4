package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles Prometheus collectors for the tracker.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry         *prometheus.Registry
	FetchAttempts    *prometheus.CounterVec
	FetchDuration    prometheus.Histogram
	FetchRetries     prometheus.Counter
	ProxyFailures    prometheus.Counter
	Records          *prometheus.CounterVec
	Violations       *prometheus.CounterVec
	PriceChanges     *prometheus.CounterVec
	LastRunTimestamp prometheus.Gauge
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	attempts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricetracker_fetch_attempts_total",
			Help: "Product page fetch attempts by outcome.",
		},
		[]string{"outcome"},
	)
	duration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pricetracker_fetch_duration_seconds",
			Help:    "Latency of individual product page requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pricetracker_fetch_retries_total",
			Help: "Total number of fetch retries scheduled.",
		},
	)
	proxyFailures := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pricetracker_proxy_failures_total",
			Help: "Proxies marked unhealthy after transport errors.",
		},
	)
	records := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricetracker_records_total",
			Help: "Processed product identifiers by result.",
		},
		[]string{"result"},
	)
	violations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricetracker_validation_violations_total",
			Help: "Validation rule violations by rule.",
		},
		[]string{"rule"},
	)
	changes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricetracker_changes_total",
			Help: "Detected product changes by field.",
		},
		[]string{"field"},
	)
	lastRun := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pricetracker_last_run_timestamp_seconds",
			Help: "Unix time the last scrape run finished.",
		},
	)

	registry.MustRegister(attempts, duration, retries, proxyFailures, records, violations, changes, lastRun)

	return &Metrics{
		Registry:         registry,
		FetchAttempts:    attempts,
		FetchDuration:    duration,
		FetchRetries:     retries,
		ProxyFailures:    proxyFailures,
		Records:          records,
		Violations:       violations,
		PriceChanges:     changes,
		LastRunTimestamp: lastRun,
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// IncAttempt counts one fetch attempt with its outcome.
func (m *Metrics) IncAttempt(outcome string) {
	if m == nil {
		return
	}
	m.FetchAttempts.WithLabelValues(outcome).Inc()
}

// ObserveFetch records a request duration.
func (m *Metrics) ObserveFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.Observe(d.Seconds())
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.FetchRetries.Inc()
}

// IncProxyFailure increments the proxy failure counter.
func (m *Metrics) IncProxyFailure() {
	if m == nil {
		return
	}
	m.ProxyFailures.Inc()
}

// IncRecord counts a processed identifier by result (succeeded, failed, invalid).
func (m *Metrics) IncRecord(result string) {
	if m == nil {
		return
	}
	m.Records.WithLabelValues(result).Inc()
}

// IncViolation counts a validation violation for a rule.
func (m *Metrics) IncViolation(rule string) {
	if m == nil {
		return
	}
	m.Violations.WithLabelValues(rule).Inc()
}

// IncChange counts a detected change for a field.
func (m *Metrics) IncChange(field string) {
	if m == nil {
		return
	}
	m.PriceChanges.WithLabelValues(field).Inc()
}

// MarkRun records the finish time of a scrape run.
func (m *Metrics) MarkRun(t time.Time) {
	if m == nil {
		return
	}
	m.LastRunTimestamp.Set(float64(t.Unix()))
}
