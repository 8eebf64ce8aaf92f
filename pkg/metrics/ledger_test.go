package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestLedgerMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLedgerMetrics(reg)

	m.IncTransition("pending", "confirmed", OutcomeCommitted)
	m.IncTransition("pending", "confirmed", OutcomeCommitted)
	m.ObserveRetry("confirm")
	m.ObserveContention("confirm")
	m.AddCreditsMoved(DirectionTransferred, 3)
	m.AddCreditsMoved(DirectionTransferred, 0)
	m.IncHubDrop("confirmation-hook")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	transitions := findMetricFamily(mfs, "timecredit_booking_transitions_total")
	if transitions == nil || len(transitions.GetMetric()) != 1 {
		t.Fatalf("expected one transition series")
	}
	if got := transitions.GetMetric()[0].GetCounter().GetValue(); got != 2 {
		t.Fatalf("expected 2 transitions, got %f", got)
	}
	if !hasLabels(transitions.GetMetric()[0], map[string]string{"from": "pending", "to": "confirmed", "outcome": "committed"}) {
		t.Fatalf("unexpected transition labels")
	}

	for name, want := range map[string]float64{
		"timecredit_atomic_retries_total":    1,
		"timecredit_atomic_contention_total": 1,
	} {
		if got, err := fetchCounterValue(mfs, name, "op", "confirm"); err != nil || got != want {
			t.Fatalf("%s: expected %f got %f (%v)", name, want, got, err)
		}
	}
	if got, err := fetchCounterValue(mfs, "timecredit_credits_moved_total", "direction", DirectionTransferred); err != nil || got != 3 {
		t.Fatalf("credits moved: expected 3 got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "timecredit_observer_dropped_total", "subscriber", "confirmation-hook"); err != nil || got != 1 {
		t.Fatalf("hub drops: expected 1 got %f (%v)", got, err)
	}
}

func TestLedgerMetricsNilSafe(t *testing.T) {
	var m *LedgerMetrics
	m.IncTransition("a", "b", OutcomeRejected)
	m.ObserveRetry("x")
	NewLedgerMetrics(nil).AddCreditsMoved(DirectionReversed, 5)
}

func hasLabels(metric *dto.Metric, want map[string]string) bool {
	for name, value := range want {
		if !matchesLabel(metric.GetLabel(), name, value) {
			return false
		}
	}
	return true
}
