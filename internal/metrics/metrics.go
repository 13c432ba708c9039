package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/asset-market/internal/model"
)

const namespace = "market"

// Metrics holds every collector on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	events      *prometheus.CounterVec
	ops         *prometheus.CounterVec
	opDuration  *prometheus.HistogramVec
	listings    *prometheus.GaugeVec
	indexIssues *prometheus.GaugeVec
	fundIssues  prometheus.Gauge
	auditRuns   prometheus.Counter
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Committed events by type.",
		}, []string{"type"}),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Mutating operations by outcome code (ok on success).",
		}, []string{"op", "code"}),
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Time spent applying mutating operations.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"op"}),
		listings: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "listings",
			Help:      "Listings by state as of the last audit (active, stale).",
		}, []string{"state"}),
		indexIssues: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "owner_index_problems",
			Help:      "Owner index inconsistencies found by the last audit.",
		}, []string{"collection"}),
		fundIssues: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ledger_supply_problems",
			Help:      "Ledger conservation problems found by the last audit.",
		}),
		auditRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_runs_total",
			Help:      "Completed audit passes.",
		}),
	}

	m.registry.MustRegister(
		m.events,
		m.ops,
		m.opDuration,
		m.listings,
		m.indexIssues,
		m.fundIssues,
		m.auditRuns,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Publish counts a committed event.
func (m *Metrics) Publish(ev model.Event) {
	m.events.WithLabelValues(string(ev.Type)).Inc()
}

// ObserveOp records the outcome of a mutating operation.
func (m *Metrics) ObserveOp(op string, err error, d time.Duration) {
	code := "ok"
	if err != nil {
		code = string(model.CodeOf(err))
		if code == "" {
			code = "internal"
		}
	}
	m.ops.WithLabelValues(op, code).Inc()
	m.opDuration.WithLabelValues(op).Observe(d.Seconds())
}

// SetListings records the active and stale listing counts.
func (m *Metrics) SetListings(active, stale int) {
	m.listings.WithLabelValues("active").Set(float64(active))
	m.listings.WithLabelValues("stale").Set(float64(stale))
}

// SetIndexProblems records the owner index problem count for a collection.
func (m *Metrics) SetIndexProblems(collection string, n int) {
	m.indexIssues.WithLabelValues(collection).Set(float64(n))
}

// SetSupplyProblems records the ledger conservation problem count.
func (m *Metrics) SetSupplyProblems(n int) {
	m.fundIssues.Set(float64(n))
}

// AuditCompleted counts a finished audit pass.
func (m *Metrics) AuditCompleted() {
	m.auditRuns.Inc()
}

// RegisterGaugeFunc exports a value sampled at scrape time.
func (m *Metrics) RegisterGaugeFunc(name, help string, fn func() float64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
