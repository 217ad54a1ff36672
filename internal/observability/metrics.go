package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricOpsTotal        = "slabbench.ops.total"
	metricOpDuration      = "slabbench.op.duration.seconds"
	metricPhaseDuration   = "slabbench.phase.duration.seconds"
	metricTreesHibernated = "slabbench.trees.hibernated"
	metricTreeSize        = "slabbench.tree.size"
	metricTreeCapacity    = "slabbench.tree.capacity"
	metricTreeEvictions   = "slabbench.tree.evictions.total"
	metricTreeGrows       = "slabbench.tree.grows.total"

	attrOp     = "op"
	attrPhase  = "phase"
	attrStatus = "status"
)

// opDurationBucketBoundaries covers 50ns to 1ms: a single tree operation
// ranges from a cache-hot lookup to a rebalancing delete with arena growth.
var opDurationBucketBoundaries = []float64{
	5e-08, 1e-07, 2.5e-07, 5e-07, 1e-06, 2.5e-06, 5e-06, 1e-05, 5e-05, 1e-04, 1e-03,
}

// phaseBucketBoundaries covers 1ms to 60s: a phase ranges from a few
// thousand point lookups to millions of inserts with hibernation cycles.
var phaseBucketBoundaries = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// ArenaSnapshot carries the tree counters sampled by the observable
// instruments. Callers map their tree's stats into this struct.
type ArenaSnapshot struct {
	// Size is the number of records currently stored.
	Size int64

	// Capacity is the arena capacity in slots.
	Capacity int64

	// Evictions is the cumulative count of records evicted by overflow policy.
	Evictions int64

	// Grows is the cumulative count of arena growth events.
	Grows int64
}

// BenchMetrics holds the OTel instruments for workload runs: per-window
// throughput and latency, per-phase durations, and observable arena state.
type BenchMetrics struct {
	opsTotal      metric.Int64Counter
	opDuration    metric.Float64Histogram
	phaseDuration metric.Float64Histogram
	hibernated    metric.Int64UpDownCounter
	treeSize      metric.Int64ObservableGauge
	treeCapacity  metric.Int64ObservableGauge
	evictions     metric.Int64ObservableCounter
	grows         metric.Int64ObservableCounter

	registration metric.Registration
}

// NewBenchMetrics creates workload instruments from the given meter.
// The observe callback is polled on every metric collection to sample arena
// state; it runs on the collection goroutine and must not block.
func NewBenchMetrics(mt metric.Meter, observe func() ArenaSnapshot) (*BenchMetrics, error) {
	b := newMetricBuilder(mt)

	bm := &BenchMetrics{
		opsTotal:      b.counter(metricOpsTotal, "Total number of tree operations executed", "{op}"),
		opDuration:    b.histogram(metricOpDuration, "Mean per-operation latency per measurement window", "s", opDurationBucketBoundaries...),
		phaseDuration: b.histogram(metricPhaseDuration, "Workload phase duration", "s", phaseBucketBoundaries...),
		hibernated:    b.upDownCounter(metricTreesHibernated, "Number of trees currently hibernated", "{tree}"),
		treeSize:      b.gauge(metricTreeSize, "Records currently stored in the tree", "{record}"),
		treeCapacity:  b.gauge(metricTreeCapacity, "Arena capacity in slots", "{slot}"),
		evictions:     b.observableCounter(metricTreeEvictions, "Records evicted by the overflow policy", "{record}"),
		grows:         b.observableCounter(metricTreeGrows, "Arena growth events", "{grow}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	reg, err := mt.RegisterCallback(
		func(_ context.Context, o metric.Observer) error {
			snap := observe()

			o.ObserveInt64(bm.treeSize, snap.Size)
			o.ObserveInt64(bm.treeCapacity, snap.Capacity)
			o.ObserveInt64(bm.evictions, snap.Evictions)
			o.ObserveInt64(bm.grows, snap.Grows)

			return nil
		},
		bm.treeSize, bm.treeCapacity, bm.evictions, bm.grows,
	)
	if err != nil {
		return nil, fmt.Errorf("register arena callback: %w", err)
	}

	bm.registration = reg

	return bm, nil
}

// RecordWindow records a measurement window: ops operations of the given
// kind completed in elapsed wall time. The mean per-operation latency feeds
// the duration histogram.
func (bm *BenchMetrics) RecordWindow(ctx context.Context, op string, ops int64, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String(attrOp, op))

	bm.opsTotal.Add(ctx, ops, attrs)

	if ops > 0 {
		bm.opDuration.Record(ctx, elapsed.Seconds()/float64(ops), attrs)
	}
}

// RecordPhase records a completed workload phase with its status and duration.
func (bm *BenchMetrics) RecordPhase(ctx context.Context, phase, status string, elapsed time.Duration) {
	bm.phaseDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String(attrPhase, phase),
		attribute.String(attrStatus, status),
	))
}

// AddHibernated adjusts the hibernated-trees gauge by delta
// (positive on Hibernate, negative on Boot).
func (bm *BenchMetrics) AddHibernated(ctx context.Context, delta int64) {
	bm.hibernated.Add(ctx, delta)
}

// Unregister stops the arena observation callback. Call it when the observed
// tree is destroyed while the meter provider stays alive.
func (bm *BenchMetrics) Unregister() error {
	if bm.registration == nil {
		return nil
	}

	err := bm.registration.Unregister()
	bm.registration = nil

	if err != nil {
		return fmt.Errorf("unregister arena callback: %w", err)
	}

	return nil
}
