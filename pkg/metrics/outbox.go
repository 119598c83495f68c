package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outbox row results reported by the publisher.
const (
	OutboxPublished    = "published"
	OutboxRetried      = "retried"
	OutboxDeadLettered = "dead_lettered"
	OutboxHeld         = "held"
)

// OutboxMetrics tracks how order events leave the outbox.
type OutboxMetrics struct {
	rows    *prometheus.CounterVec
	publish prometheus.Histogram
	lag     prometheus.Histogram
}

// NewOutboxMetrics registers the publisher metrics. A nil registerer yields a no-op recorder.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	m := &OutboxMetrics{
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "rows_total",
			Help:      "Outbox rows handled by the publisher, by event type and result.",
		}, []string{"event_type", "result"}),
		publish: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "publish_seconds",
			Help:      "Time from Publish to server acknowledgement.",
			Buckets:   prometheus.DefBuckets,
		}),
		lag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "delivery_lag_seconds",
			Help:      "Time from event creation to successful publish.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 15, 60, 300, 900},
		}),
	}
	reg.MustRegister(m.rows, m.publish, m.lag)
	return m
}

// Row counts one handled row. result is one of the Outbox* constants.
func (m *OutboxMetrics) Row(eventType, result string) {
	if m == nil || m.rows == nil {
		return
	}
	m.rows.WithLabelValues(normalizeLabel(eventType), normalizeLabel(result)).Inc()
}

// Published records the ack latency and end-to-end lag of one message.
func (m *OutboxMetrics) Published(ack, lag time.Duration) {
	if m == nil || m.publish == nil {
		return
	}
	m.publish.Observe(ack.Seconds())
	if lag > 0 {
		m.lag.Observe(lag.Seconds())
	}
}
