package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestOutboxMetricsRecordsResults(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)

	m.IncBatch()
	m.Record("credits_transferred", OutboxPublished)
	m.Record("credits_transferred", OutboxPublished)
	m.Record("review_submitted", OutboxParked)

	require.Equal(t, 2.0, testutil.ToFloat64(m.relayed.WithLabelValues("credits_transferred", OutboxPublished)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.relayed.WithLabelValues("review_submitted", OutboxParked)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.batches))

	var missing *OutboxMetrics
	missing.Record("x", OutboxFailed)
	missing.IncBatch()
}
