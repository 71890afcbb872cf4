// Package metrics holds the Prometheus collectors of the registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for DOI operations. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Transitions        *prometheus.CounterVec
	Rejections         *prometheus.CounterVec
	Operations         *prometheus.HistogramVec
	ValidationFailures prometheus.Counter
	AggregateCache     *prometheus.CounterVec
	EventsIngested     prometheus.Counter
	Registry           *prometheus.Registry
}

// New creates a Metrics instance registered on its own registry, so
// several instances can coexist in tests.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "doiregistry_transitions_total",
			Help: "State transitions applied, by event and target state",
		}, []string{"event", "state"}),
		Rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "doiregistry_transition_rejections_total",
			Help: "Transitions refused, by event and rejection code",
		}, []string{"event", "code"}),
		Operations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "doiregistry_operation_duration_seconds",
			Help:    "Duration of service operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
		ValidationFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "doiregistry_validation_failures_total",
			Help: "Writes rejected because metadata failed validation",
		}),
		AggregateCache: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "doiregistry_aggregate_cache_total",
			Help: "Aggregate cache lookups by result",
		}, []string{"result"}),
		EventsIngested: factory.NewCounter(prometheus.CounterOpts{
			Name: "doiregistry_events_ingested_total",
			Help: "Events appended to the event log",
		}),
		Registry: reg,
	}
}

// ObserveTransition records an applied transition.
func (m *Metrics) ObserveTransition(event, state string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(event, state).Inc()
}

// ObserveRejection records a refused transition.
func (m *Metrics) ObserveRejection(event, code string) {
	if m == nil {
		return
	}
	m.Rejections.WithLabelValues(event, code).Inc()
}

// ObserveOperation records the duration of an operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveOperation(operation string, start time.Time) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// IncrementValidationFailures records a write refused by validation.
func (m *Metrics) IncrementValidationFailures() {
	if m == nil {
		return
	}
	m.ValidationFailures.Inc()
}

// ObserveCache records an aggregate cache hit or miss.
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.AggregateCache.WithLabelValues(result).Inc()
}

// AddEventsIngested records appended events.
func (m *Metrics) AddEventsIngested(n int) {
	if m == nil {
		return
	}
	m.EventsIngested.Add(float64(n))
}
