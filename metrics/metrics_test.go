package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	m := New()

	m.ObserveTransition("publish", "findable")
	m.ObserveTransition("publish", "findable")
	m.ObserveRejection("register", "url_missing")
	m.IncrementValidationFailures()
	m.ObserveCache(true)
	m.ObserveCache(false)
	m.ObserveCache(false)
	m.AddEventsIngested(3)
	m.ObserveOperation("create", time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Transitions.WithLabelValues("publish", "findable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rejections.WithLabelValues("register", "url_missing")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ValidationFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AggregateCache.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AggregateCache.WithLabelValues("miss")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.EventsIngested))

	families, err := m.Registry.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "doiregistry_operation_duration_seconds")
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveTransition("publish", "findable")
		m.ObserveRejection("publish", "test_prefix")
		m.ObserveOperation("update", time.Now())
		m.IncrementValidationFailures()
		m.ObserveCache(true)
		m.AddEventsIngested(1)
	})
}

func TestInstancesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.IncrementValidationFailures()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.ValidationFailures))
}
