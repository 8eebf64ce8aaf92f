package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	OutcomeCommitted = "committed"
	OutcomeDeclined  = "declined"
	OutcomeRejected  = "rejected"

	DirectionTransferred = "transferred"
	DirectionReversed    = "reversed"
)

// LedgerMetrics counts booking transitions, credit movement and retry pressure
// on the atomic runner.
type LedgerMetrics struct {
	transitions  *prometheus.CounterVec
	retries      *prometheus.CounterVec
	contention   *prometheus.CounterVec
	creditsMoved *prometheus.CounterVec
	hubDrops     *prometheus.CounterVec
}

// NewLedgerMetrics registers the ledger metrics on reg. A nil registerer yields a no-op recorder.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	m := &LedgerMetrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "timecredit_booking_transitions_total",
			Help: "Booking transition requests by source status, target status and outcome.",
		}, []string{"from", "to", "outcome"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "timecredit_atomic_retries_total",
			Help: "Units of work replayed after an optimistic conflict.",
		}, []string{"op"}),
		contention: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "timecredit_atomic_contention_total",
			Help: "Units of work that exhausted their retry budget.",
		}, []string{"op"}),
		creditsMoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "timecredit_credits_moved_total",
			Help: "Credits moved between balances.",
		}, []string{"direction"}),
		hubDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "timecredit_observer_dropped_total",
			Help: "Change notifications dropped because a subscriber was full.",
		}, []string{"subscriber"}),
	}
	reg.MustRegister(m.transitions, m.retries, m.contention, m.creditsMoved, m.hubDrops)
	return m
}

func (m *LedgerMetrics) IncTransition(from, to, outcome string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to), outcome).Inc()
}

// ObserveRetry satisfies db.RetryObserver.
func (m *LedgerMetrics) ObserveRetry(op string) {
	if m == nil || m.retries == nil {
		return
	}
	m.retries.WithLabelValues(normalizeLabel(op)).Inc()
}

// ObserveContention satisfies db.RetryObserver.
func (m *LedgerMetrics) ObserveContention(op string) {
	if m == nil || m.contention == nil {
		return
	}
	m.contention.WithLabelValues(normalizeLabel(op)).Inc()
}

func (m *LedgerMetrics) AddCreditsMoved(direction string, credits int) {
	if m == nil || m.creditsMoved == nil || credits <= 0 {
		return
	}
	m.creditsMoved.WithLabelValues(direction).Add(float64(credits))
}

// IncHubDrop is wired as the observer hub's drop callback.
func (m *LedgerMetrics) IncHubDrop(subscriber string) {
	if m == nil || m.hubDrops == nil {
		return
	}
	m.hubDrops.WithLabelValues(normalizeLabel(subscriber)).Inc()
}
