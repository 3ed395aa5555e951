// Package metrics exposes Prometheus counters for loyalty operations.
//
// All methods are safe on a nil *Metrics so callers that don't care about
// metrics (tests, tools) can pass nil.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Metrics holds the engine's collectors.
type Metrics struct {
	Reconciliations *prometheus.CounterVec
	Redemptions     *prometheus.CounterVec
	Renames         *prometheus.CounterVec
	OrdersRenamed   prometheus.Counter
	DirectorySize   prometheus.Gauge
	OrdersRecorded  *prometheus.CounterVec
	CatalogWrites   *prometheus.CounterVec
}

// New creates the collectors and registers them on registerer.
// A nil registerer uses prometheus.DefaultRegisterer.
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		Reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_reconciliations_total",
			Help: "Directory reconciliations by outcome.",
		}, []string{"outcome"}),
		Redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_reward_redemptions_total",
			Help: "Reward redemptions by outcome.",
		}, []string{"outcome"}),
		Renames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_customer_renames_total",
			Help: "Customer identity changes by outcome.",
		}, []string{"outcome"}),
		OrdersRenamed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pos_orders_renamed_total",
			Help: "Ledger orders rewritten by customer renames.",
		}),
		DirectorySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pos_directory_customers",
			Help: "Customers in the directory after the last reconciliation.",
		}),
		OrdersRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_orders_total",
			Help: "Order ledger writes by action.",
		}, []string{"action"}),
		CatalogWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_catalog_writes_total",
			Help: "Menu, purchase and stock writes by resource and action.",
		}, []string{"resource", "action"}),
	}

	registerer.MustRegister(
		m.Reconciliations,
		m.Redemptions,
		m.Renames,
		m.OrdersRenamed,
		m.DirectorySize,
		m.OrdersRecorded,
		m.CatalogWrites,
	)
	return m
}

func (m *Metrics) ObserveReconcile(outcome string, customers int) {
	if m == nil {
		return
	}
	m.Reconciliations.WithLabelValues(outcome).Inc()
	if outcome == OutcomeOK {
		m.DirectorySize.Set(float64(customers))
	}
}

func (m *Metrics) ObserveRedeem(outcome string) {
	if m == nil {
		return
	}
	m.Redemptions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveRename(outcome string, orders int) {
	if m == nil {
		return
	}
	m.Renames.WithLabelValues(outcome).Inc()
	if orders > 0 {
		m.OrdersRenamed.Add(float64(orders))
	}
}

// ObserveOrder counts a ledger write; action is create, edit or delete.
func (m *Metrics) ObserveOrder(action string) {
	if m == nil {
		return
	}
	m.OrdersRecorded.WithLabelValues(action).Inc()
}

// ObserveCatalog counts a menu, purchase or product write.
func (m *Metrics) ObserveCatalog(resource, action string) {
	if m == nil {
		return
	}
	m.CatalogWrites.WithLabelValues(resource, action).Inc()
}
