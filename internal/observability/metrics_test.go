package observability_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Sumatoshi-tech/slabtree/internal/observability"
)

// testArenaSnapshot is the fixed arena state reported by the test observer.
var testArenaSnapshot = observability.ArenaSnapshot{
	Size:      42,
	Capacity:  64,
	Evictions: 3,
	Grows:     1,
}

func setupTestMeter(t *testing.T) (*observability.BenchMetrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := mp.Meter("test")

	bm, err := observability.NewBenchMetrics(meter, func() observability.ArenaSnapshot {
		return testArenaSnapshot
	})
	require.NoError(t, err)

	return bm, reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics

	err := reader.Collect(context.Background(), &rm)
	require.NoError(t, err)

	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for idx := range rm.ScopeMetrics {
		for midx := range rm.ScopeMetrics[idx].Metrics {
			if rm.ScopeMetrics[idx].Metrics[midx].Name == name {
				return &rm.ScopeMetrics[idx].Metrics[midx]
			}
		}
	}

	return nil
}

func TestBenchMetrics_RecordWindow(t *testing.T) {
	t.Parallel()

	bm, reader := setupTestMeter(t)
	ctx := context.Background()

	bm.RecordWindow(ctx, "insert", 1000, time.Millisecond)

	rm := collectMetrics(t, reader)

	opsTotal := findMetric(rm, "slabbench.ops.total")
	require.NotNil(t, opsTotal, "slabbench.ops.total metric not found")

	sum, ok := opsTotal.Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected Sum data type")
	require.NotEmpty(t, sum.DataPoints)
	assert.Equal(t, int64(1000), sum.DataPoints[0].Value)

	opDuration := findMetric(rm, "slabbench.op.duration.seconds")
	require.NotNil(t, opDuration, "slabbench.op.duration.seconds metric not found")
}

func TestBenchMetrics_RecordWindow_ZeroOps(t *testing.T) {
	t.Parallel()

	bm, reader := setupTestMeter(t)

	// A window with no completed ops must not record a latency sample.
	bm.RecordWindow(context.Background(), "find", 0, time.Millisecond)

	rm := collectMetrics(t, reader)

	opDuration := findMetric(rm, "slabbench.op.duration.seconds")
	if opDuration == nil {
		return
	}

	hist, ok := opDuration.Data.(metricdata.Histogram[float64])
	require.True(t, ok)

	for _, dp := range hist.DataPoints {
		assert.Zero(t, dp.Count)
	}
}

func TestBenchMetrics_RecordPhase(t *testing.T) {
	t.Parallel()

	bm, reader := setupTestMeter(t)

	bm.RecordPhase(context.Background(), "insert", "ok", time.Second)

	rm := collectMetrics(t, reader)

	phaseDuration := findMetric(rm, "slabbench.phase.duration.seconds")
	require.NotNil(t, phaseDuration, "slabbench.phase.duration.seconds metric not found")

	hist, ok := phaseDuration.Data.(metricdata.Histogram[float64])
	require.True(t, ok, "expected Histogram data type")
	require.NotEmpty(t, hist.DataPoints)

	bounds := hist.DataPoints[0].Bounds

	// Verify explicit boundaries match the expected set for workload phases.
	expectedBounds := []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}
	assert.Equal(t, expectedBounds, bounds, "histogram should use custom bucket boundaries")
}

func TestBenchMetrics_ObservesArenaState(t *testing.T) {
	t.Parallel()

	_, reader := setupTestMeter(t)

	rm := collectMetrics(t, reader)

	size := findMetric(rm, "slabbench.tree.size")
	require.NotNil(t, size, "slabbench.tree.size metric not found")

	gauge, ok := size.Data.(metricdata.Gauge[int64])
	require.True(t, ok, "expected Gauge data type")
	require.NotEmpty(t, gauge.DataPoints)
	assert.Equal(t, testArenaSnapshot.Size, gauge.DataPoints[0].Value)

	capacity := findMetric(rm, "slabbench.tree.capacity")
	require.NotNil(t, capacity, "slabbench.tree.capacity metric not found")

	evictions := findMetric(rm, "slabbench.tree.evictions.total")
	require.NotNil(t, evictions, "slabbench.tree.evictions.total metric not found")

	grows := findMetric(rm, "slabbench.tree.grows.total")
	require.NotNil(t, grows, "slabbench.tree.grows.total metric not found")
}

func TestBenchMetrics_AddHibernated(t *testing.T) {
	t.Parallel()

	bm, reader := setupTestMeter(t)
	ctx := context.Background()

	bm.AddHibernated(ctx, 2)
	bm.AddHibernated(ctx, -1)

	rm := collectMetrics(t, reader)

	hibernated := findMetric(rm, "slabbench.trees.hibernated")
	require.NotNil(t, hibernated, "slabbench.trees.hibernated metric not found")

	sum, ok := hibernated.Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected Sum data type")
	require.NotEmpty(t, sum.DataPoints)
	assert.Equal(t, int64(1), sum.DataPoints[0].Value)
}

func TestBenchMetrics_Unregister(t *testing.T) {
	t.Parallel()

	bm, reader := setupTestMeter(t)

	require.NoError(t, bm.Unregister())

	rm := collectMetrics(t, reader)

	// Without the callback, observable instruments produce no data points.
	size := findMetric(rm, "slabbench.tree.size")
	assert.Nil(t, size)

	// A second unregister is a no-op.
	require.NoError(t, bm.Unregister())
}

func TestNewBenchMetrics_WithNoopMeter(t *testing.T) {
	t.Parallel()

	cfg := observability.DefaultConfig()

	providers, err := observability.Init(cfg)
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, providers.Shutdown(context.Background())) })

	bm, err := observability.NewBenchMetrics(providers.Meter, func() observability.ArenaSnapshot {
		return observability.ArenaSnapshot{}
	})
	require.NoError(t, err)
	assert.NotNil(t, bm)

	// Should not panic on recording.
	bm.RecordWindow(context.Background(), "test", 1, time.Millisecond)
	bm.RecordPhase(context.Background(), "test", "ok", time.Millisecond)
	bm.AddHibernated(context.Background(), 1)
}
