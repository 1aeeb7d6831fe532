// Package metrics collects Prometheus counters for the sync pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline counters on a private registry so the endpoint
// exposes only our own series.
type Metrics struct {
	registry *prometheus.Registry

	syncCycles        *prometheus.CounterVec
	ordersDiscovered  prometheus.Counter
	ordersDeactivated prometheus.Counter
	adapterFailures   *prometheus.CounterVec
	detailFetches     *prometheus.CounterVec
}

// New creates the registry and registers all counters
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		syncCycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ordersync",
				Name:      "sync_cycles_total",
				Help:      "Completed reconciliation cycles by outcome.",
			},
			[]string{"outcome"},
		),
		ordersDiscovered: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "ordersync",
				Name:      "orders_discovered_total",
				Help:      "Orders seen for the first time during reconciliation.",
			},
		),
		ordersDeactivated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "ordersync",
				Name:      "orders_deactivated_total",
				Help:      "Orders marked inactive after disappearing from their source.",
			},
		),
		adapterFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ordersync",
				Name:      "adapter_failures_total",
				Help:      "Listing fetch failures by upstream source.",
			},
			[]string{"source"},
		),
		detailFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ordersync",
				Name:      "detail_fetches_total",
				Help:      "Quantity detail fetch attempts by result.",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		m.syncCycles,
		m.ordersDiscovered,
		m.ordersDeactivated,
		m.adapterFailures,
		m.detailFetches,
	)

	return m
}

// Handler returns the scrape endpoint for the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordCycle folds one reconciliation cycle result into the counters
func (m *Metrics) RecordCycle(discovered, deactivated int, cin7Failed, printavoFailed bool) {
	outcome := "ok"
	if cin7Failed || printavoFailed {
		outcome = "partial"
	}
	if cin7Failed && printavoFailed {
		outcome = "failed"
	}
	m.syncCycles.WithLabelValues(outcome).Inc()
	m.ordersDiscovered.Add(float64(discovered))
	m.ordersDeactivated.Add(float64(deactivated))

	if cin7Failed {
		m.adapterFailures.WithLabelValues("cin7").Inc()
	}
	if printavoFailed {
		m.adapterFailures.WithLabelValues("printavo").Inc()
	}
}

// RecordDetailFetch records one enrichment attempt
func (m *Metrics) RecordDetailFetch(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.detailFetches.WithLabelValues(result).Inc()
}
