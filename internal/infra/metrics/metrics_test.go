package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveOperation(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveOperation("withdraw", "ok", time.Millisecond)
	m.ObserveOperation("withdraw", "ok", time.Millisecond)
	m.ObserveOperation("withdraw", "insufficient_stock", time.Millisecond)

	if got := testutil.ToFloat64(m.ops.WithLabelValues("withdraw", "ok")); got != 2 {
		t.Errorf("expected 2 ok withdrawals, got %v", got)
	}
	if got := testutil.ToFloat64(m.ops.WithLabelValues("withdraw", "insufficient_stock")); got != 1 {
		t.Errorf("expected 1 rejected withdrawal, got %v", got)
	}
}

func TestObserveScan(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveScan(3, 1, nil)
	m.ObserveScan(0, 0, errors.New("boom"))

	if got := testutil.ToFloat64(m.scans.WithLabelValues("ok")); got != 1 {
		t.Errorf("expected 1 ok scan, got %v", got)
	}
	if got := testutil.ToFloat64(m.scans.WithLabelValues("error")); got != 1 {
		t.Errorf("expected 1 failed scan, got %v", got)
	}
	if got := testutil.ToFloat64(m.scanItems.WithLabelValues("low_stock")); got != 3 {
		t.Errorf("failed scan must not reset gauges, low_stock=%v", got)
	}
}

func TestObserveDelivery(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveDelivery("low_stock", nil)
	m.ObserveDelivery("low_stock", errors.New("telegram down"))

	if got := testutil.ToFloat64(m.deliveries.WithLabelValues("low_stock", "failed")); got != 1 {
		t.Errorf("expected 1 failed delivery, got %v", got)
	}
}
