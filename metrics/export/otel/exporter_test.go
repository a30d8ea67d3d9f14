package otel

import (
	"context"
	"sync"
	"testing"

	"github.com/gatehouse-auth/gatehouse"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot gatehouse.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() gatehouse.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := gatehouse.MetricsSnapshot{
		Counters: make(map[gatehouse.MetricID]uint64, len(f.snapshot.Counters)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("gatehouse-test")

	src := &fakeSource{
		snapshot: gatehouse.MetricsSnapshot{
			Counters: map[gatehouse.MetricID]uint64{
				gatehouse.MetricLoginSuccess: 3,
			},
		},
		dropped: 1,
	}

	exp, err := NewFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(rm.ScopeMetrics) == 0 {
		t.Fatal("expected collected metrics, got none")
	}

	var loginValue int64
	found := false
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "gatehouse_login_success_total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok || len(sum.DataPoints) == 0 {
				t.Fatalf("unexpected data shape for %s: %#v", m.Name, m.Data)
			}
			loginValue = sum.DataPoints[0].Value
			found = true
		}
	}
	if !found {
		t.Fatal("login success counter not collected")
	}
	if loginValue != 3 {
		t.Fatalf("expected login success value 3, got %d", loginValue)
	}
}

func TestExporterRejectsNilSource(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("gatehouse-test")

	if _, err := NewFromSource(meter, nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
}

func TestExporterRejectsNilMeter(t *testing.T) {
	if _, err := NewFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestCloseIsNilSafe(t *testing.T) {
	var exp *Exporter
	if err := exp.Close(); err != nil {
		t.Fatalf("expected nil error from nil exporter Close, got %v", err)
	}
}
