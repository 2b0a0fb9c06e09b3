package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "stockguard"

// Metrics holds the collectors for ledger operations and alert scans.
type Metrics struct {
	ops        *prometheus.CounterVec
	opDuration *prometheus.HistogramVec
	scans      *prometheus.CounterVec
	scanItems  *prometheus.GaugeVec
	deliveries *prometheus.CounterVec
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer to
// expose them through promhttp.Handler.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_operations_total",
			Help:      "Ledger operations by operation and outcome.",
		}, []string{"op", "outcome"}),
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ledger_operation_duration_seconds",
			Help:      "Ledger operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_scans_total",
			Help:      "Alert scans by result.",
		}, []string{"result"}),
		scanItems: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alert_scan_items",
			Help:      "Materials found by the last completed scan.",
		}, []string{"kind"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_deliveries_total",
			Help:      "Alert notifications by kind and result.",
		}, []string{"kind", "result"}),
	}
	reg.MustRegister(m.ops, m.opDuration, m.scans, m.scanItems, m.deliveries)
	return m
}

func (m *Metrics) ObserveOperation(op, outcome string, took time.Duration) {
	m.ops.WithLabelValues(op, outcome).Inc()
	m.opDuration.WithLabelValues(op).Observe(took.Seconds())
}

// ObserveScan records one finished scan. A failed scan leaves the item gauges untouched.
func (m *Metrics) ObserveScan(lowStock, expiring int, err error) {
	if err != nil {
		m.scans.WithLabelValues("error").Inc()
		return
	}
	m.scans.WithLabelValues("ok").Inc()
	m.scanItems.WithLabelValues("low_stock").Set(float64(lowStock))
	m.scanItems.WithLabelValues("expiring").Set(float64(expiring))
}

func (m *Metrics) ObserveDelivery(kind string, err error) {
	result := "sent"
	if err != nil {
		result = "failed"
	}
	m.deliveries.WithLabelValues(kind, result).Inc()
}
