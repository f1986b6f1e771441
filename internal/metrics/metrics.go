package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SaleMetrics tracks sale lifecycle operations. A nil *SaleMetrics is valid
// and records nothing.
type SaleMetrics struct {
	duration  *prometheus.HistogramVec
	outcomes  *prometheus.CounterVec
	edits     *prometheus.CounterVec
	unitsSold prometheus.Counter
}

func NewSaleMetrics(reg prometheus.Registerer) *SaleMetrics {
	if reg == nil {
		return &SaleMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sale_operation_duration_seconds",
		Help:    "Duration of sale create, edit and delete operations.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sale_operations_total",
		Help: "Sale operations by outcome code.",
	}, []string{"operation", "outcome"})
	edits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sale_edit_reconciliations_total",
		Help: "Shop ledger reconciliations applied by sale edits, by kind.",
	}, []string{"kind"})
	unitsSold := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sale_units_sold_total",
		Help: "Units sold through created sales.",
	})
	reg.MustRegister(duration, outcomes, edits, unitsSold)
	return &SaleMetrics{duration: duration, outcomes: outcomes, edits: edits, unitsSold: unitsSold}
}

func (m *SaleMetrics) Observe(operation string, outcome string, elapsed time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
	m.outcomes.WithLabelValues(operation, normalize(outcome)).Inc()
}

func (m *SaleMetrics) IncEdit(kind string) {
	if m == nil || m.edits == nil {
		return
	}
	m.edits.WithLabelValues(normalize(kind)).Inc()
}

func (m *SaleMetrics) AddUnits(units int) {
	if m == nil || m.unitsSold == nil || units <= 0 {
		return
	}
	m.unitsSold.Add(float64(units))
}

func normalize(label string) string {
	if label == "" {
		return "unknown"
	}
	return label
}
