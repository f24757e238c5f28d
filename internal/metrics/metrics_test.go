package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.BatchDone("customer", 90, 10)
	m.BatchDone("customer", 100, 0)
	m.KeyCollisions("id", 3)
	m.KeyCollisions("id", 0)

	require.Equal(t, 190.0, testutil.ToFloat64(m.generated.WithLabelValues("customer")))
	require.Equal(t, 10.0, testutil.ToFloat64(m.discarded.WithLabelValues("customer")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.batches.WithLabelValues("customer")))
	require.Equal(t, 3.0, testutil.ToFloat64(m.keyRetry.WithLabelValues("id")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.BatchDone("x", 1, 1)
	m.KeyCollisions("id", 1)
	m.DomainDone("x", 0)
	require.Nil(t, m.Registry())
}
