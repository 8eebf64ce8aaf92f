package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	OutboxPublished = "published"
	OutboxFailed    = "failed"
	OutboxParked    = "parked"
)

// OutboxMetrics counts relay outcomes per event type.
type OutboxMetrics struct {
	relayed *prometheus.CounterVec
	batches prometheus.Counter
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	relayed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timecredit_outbox_events_total",
		Help: "Outbox rows handled by the publisher, by event type and result.",
	}, []string{"event_type", "result"})
	batches := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timecredit_outbox_batches_total",
		Help: "Non-empty outbox batches processed.",
	})
	reg.MustRegister(relayed, batches)
	return &OutboxMetrics{relayed: relayed, batches: batches}
}

// Record counts one row with result OutboxPublished, OutboxFailed or OutboxParked.
func (m *OutboxMetrics) Record(eventType, result string) {
	if m == nil || m.relayed == nil {
		return
	}
	m.relayed.WithLabelValues(normalizeLabel(eventType), result).Inc()
}

func (m *OutboxMetrics) IncBatch() {
	if m == nil || m.batches == nil {
		return
	}
	m.batches.Inc()
}
