package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// InventoryMetrics records adjustment outcomes and latencies.
type InventoryMetrics struct {
	duration *prometheus.HistogramVec
	outcomes *prometheus.CounterVec
	retries  prometheus.Counter
}

// NewInventoryMetrics registers the inventory metrics on the provided registerer.
func NewInventoryMetrics(reg prometheus.Registerer) *InventoryMetrics {
	if reg == nil {
		return &InventoryMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inventory_adjustment_duration_seconds",
		Help:    "Duration of inventory adjustment transactions in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"change_type"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_adjustment_outcomes_total",
		Help: "Inventory adjustment attempts by outcome.",
	}, []string{"outcome"})
	retries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "inventory_adjustment_lock_retries_total",
		Help: "Adjustment transactions re-attempted after lock contention.",
	})
	reg.MustRegister(duration, outcomes, retries)
	return &InventoryMetrics{
		duration: duration,
		outcomes: outcomes,
		retries:  retries,
	}
}

// ObserveDuration records the duration for an adjustment of the given change type.
func (m *InventoryMetrics) ObserveDuration(changeType string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(changeType)).Observe(duration.Seconds())
}

// IncOutcome increments the outcome counter (applied, rejected, contention, error).
func (m *InventoryMetrics) IncOutcome(outcome string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncRetry counts one contention-driven re-attempt.
func (m *InventoryMetrics) IncRetry() {
	if m == nil || m.retries == nil {
		return
	}
	m.retries.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
