package oplog

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes the operation log as Prometheus series
type Metrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers the operation metrics
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inventory_operations_total",
				Help: "Total number of ledger operations by type and result",
			},
			[]string{"operation", "result"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "inventory_operation_duration_seconds",
				Help:    "Duration of ledger operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
	reg.MustRegister(m.operationsTotal)
	reg.MustRegister(m.operationDuration)
	return m
}

// Observe records one operation entry
func (m *Metrics) Observe(entry Entry) {
	result := "success"
	if !entry.Success {
		result = "failure"
	}
	m.operationsTotal.WithLabelValues(entry.OperationType, result).Inc()
	m.operationDuration.WithLabelValues(entry.OperationType).Observe(entry.Duration.Seconds())
}
