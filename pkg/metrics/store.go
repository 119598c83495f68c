package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// StoreMetrics counts storefront business events.
type StoreMetrics struct {
	ordersPlaced    *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	stockDecrements *prometheus.CounterVec
	slotClaims      *prometheus.CounterVec
}

// NewStoreMetrics registers the storefront counters. A nil registerer yields a no-op recorder.
func NewStoreMetrics(reg prometheus.Registerer) *StoreMetrics {
	if reg == nil {
		return &StoreMetrics{}
	}
	m := &StoreMetrics{
		ordersPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "placed_total",
			Help:      "Orders placed by payment and delivery method.",
		}, []string{"payment_method", "delivery_method"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "transitions_total",
			Help:      "Order status transitions.",
		}, []string{"from", "to"}),
		stockDecrements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "stock_decrements_total",
			Help:      "Stock decrements applied on payment confirmation.",
		}, []string{"outcome"}),
		slotClaims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "availability",
			Name:      "slot_claims_total",
			Help:      "Pickup slot claims by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.ordersPlaced, m.transitions, m.stockDecrements, m.slotClaims)
	return m
}

func (m *StoreMetrics) OrderPlaced(paymentMethod, deliveryMethod string) {
	if m == nil || m.ordersPlaced == nil {
		return
	}
	m.ordersPlaced.WithLabelValues(normalizeLabel(paymentMethod), normalizeLabel(deliveryMethod)).Inc()
}

func (m *StoreMetrics) OrderTransition(from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// StockDecrement records whether a line's decrement hit a product ("applied")
// or was absorbed because the product or variant is gone ("missing").
func (m *StoreMetrics) StockDecrement(applied bool) {
	if m == nil || m.stockDecrements == nil {
		return
	}
	outcome := "missing"
	if applied {
		outcome = "applied"
	}
	m.stockDecrements.WithLabelValues(outcome).Inc()
}

func (m *StoreMetrics) SlotClaim(ok bool) {
	if m == nil || m.slotClaims == nil {
		return
	}
	outcome := "rejected"
	if ok {
		outcome = "claimed"
	}
	m.slotClaims.WithLabelValues(outcome).Inc()
}
