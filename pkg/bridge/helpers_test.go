package bridge_test

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/aibridge/pkg/bridge"
	"github.com/MrWong99/aibridge/pkg/observe"
	"github.com/MrWong99/aibridge/pkg/provider"
	providermock "github.com/MrWong99/aibridge/pkg/provider/mock"
	"github.com/MrWong99/aibridge/pkg/vectorstore"
)

// ─── helpers ─────────────────────────────────────────────────────────────────

const testProvider = "Test"

// allCaps enables every optional capability.
var allCaps = provider.Capabilities{
	SupportsFunctions: true,
	SupportsVision:    true,
	SupportsStreaming: true,
}

// newService builds a Service over adapters with testProvider as default and
// metrics recorded on a private reader.
func newService(t *testing.T, store vectorstore.Store, adapters []provider.Adapter, opts ...bridge.Option) (*bridge.Service, *sdkmetric.ManualReader) {
	t.Helper()
	reg, err := provider.NewRegistry(adapters...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	all := append([]bridge.Option{
		bridge.WithDefaultProvider(testProvider),
		bridge.WithMetrics(m),
	}, opts...)
	return bridge.NewService(reg, store, all...), reader
}

// singleAdapter is a shorthand for a service over one mock adapter.
func singleAdapter(t *testing.T, a *providermock.Adapter, opts ...bridge.Option) *bridge.Service {
	t.Helper()
	if a.NameValue == "" {
		a.NameValue = testProvider
	}
	svc, _ := newService(t, nil, []provider.Adapter{a}, opts...)
	return svc
}

// counterTotal sums every data point of the named int64 counter.
func counterTotal(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	return total
}
