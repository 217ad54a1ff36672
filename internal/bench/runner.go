package bench

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/slabtree/internal/observability"
	"github.com/Sumatoshi-tech/slabtree/pkg/llrb"
	"github.com/Sumatoshi-tech/slabtree/pkg/safeconv"
)

// checkpointsPerPhase is the throughput sample count a phase aims for.
const checkpointsPerPhase = 20

// Mixed phase op mix: 60% inserts, 30% finds, the rest deletes.
const (
	mixedRollRange  = 100
	mixedInsertPct  = 60
	mixedLookupPct  = 30
	mixedLookupEdge = mixedInsertPct + mixedLookupPct
)

// Zipf draw parameters: skew must exceed 1 and the base offset must be at
// least 1 for math/rand's generator.
const (
	zipfSkew = 1.1
	zipfBase = 1.0
)

// Phase completion statuses recorded on the phase duration metric.
const (
	statusOK    = "ok"
	statusError = "error"
)

// keyBytes is the fixed size of the record key within RecordBytes.
const keyBytes = 8

// Checkpoint is one throughput sample taken at a measurement window
// boundary. OpsPerSecond covers the window that just closed, not the whole
// phase.
type Checkpoint struct {
	Elapsed      time.Duration `json:"elapsed_ns"`
	Ops          int64         `json:"ops"`
	OpsPerSecond float64       `json:"ops_per_second"`
}

// PhaseResult summarizes one executed phase. Hits and Misses track lookup
// outcomes for find and mixed phases and removal outcomes for delete
// phases; scan phases count visited records as hits. HeapFreed is the
// resident heap released while parked, sampled once per hibernate phase.
type PhaseResult struct {
	Kind         string        `json:"kind"`
	Distribution string        `json:"distribution"`
	Ops          int64         `json:"ops"`
	Hits         int64         `json:"hits"`
	Misses       int64         `json:"misses"`
	HeapFreed    int64         `json:"heap_freed_bytes,omitempty"`
	Duration     time.Duration `json:"duration_ns"`
	OpsPerSecond float64       `json:"ops_per_second"`
	Checkpoints  []Checkpoint  `json:"checkpoints,omitempty"`
}

// RunResult is the full outcome of a workload run.
type RunResult struct {
	Workload Workload      `json:"workload"`
	Phases   []PhaseResult `json:"phases"`
	Stats    llrb.Stats    `json:"stats"`
	Duration time.Duration `json:"duration_ns"`
}

// RunnerOptions carries the observability hooks a runner reports through.
// The zero value runs without tracing or metrics.
type RunnerOptions struct {
	Tracer trace.Tracer
	Meter  metric.Meter
}

// Runner executes a workload against a forest built to its tree settings.
// A runner is single-use: NewRunner builds a fresh forest, Run consumes it,
// and Close releases the metric registration.
type Runner struct {
	workload *Workload
	forest   *llrb.Forest[Record, uint64]
	rng      *rand.Rand
	tracer   trace.Tracer
	metrics  *observability.BenchMetrics
	gauge    arenaGauge
	payload  int

	// sink accumulates scanned keys so record reads stay observable.
	sink uint64
}

// NewRunner builds the forest under test and seeds the deterministic key
// stream. When a meter is given, arena gauges observe a snapshot refreshed
// at phase boundaries, so the collection goroutine never touches the forest.
func NewRunner(workload *Workload, opts RunnerOptions) (*Runner, error) {
	tracer := opts.Tracer
	if tracer == nil {
		tracer = nooptrace.NewTracerProvider().Tracer("")
	}

	runner := &Runner{
		workload: workload,
		forest:   buildForest(workload),
		rng:      rand.New(rand.NewSource(workload.Seed)),
		tracer:   tracer,
		payload:  workload.RecordBytes - keyBytes,
	}

	if opts.Meter != nil {
		metrics, err := observability.NewBenchMetrics(opts.Meter, runner.gauge.snapshot)
		if err != nil {
			return nil, fmt.Errorf("create bench metrics: %w", err)
		}

		runner.metrics = metrics
	}

	runner.refreshGauge()

	return runner, nil
}

// Forest exposes the forest under test.
func (r *Runner) Forest() *llrb.Forest[Record, uint64] {
	return r.forest
}

// Close unregisters the arena observation callback.
func (r *Runner) Close() error {
	if r.metrics == nil {
		return nil
	}

	return r.metrics.Unregister()
}

// Run executes every phase in order. Cancellation is honored between
// measurement windows; a canceled run returns the context error and no
// result.
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	ctx, span := r.tracer.Start(ctx, "bench.run", trace.WithAttributes(
		attribute.String("workload.name", r.workload.Name),
		attribute.String("workload.policy", r.workload.Policy),
		attribute.Int64("workload.seed", r.workload.Seed),
		attribute.Int("workload.shards", r.workload.Shards),
	))
	defer span.End()

	started := time.Now()
	phases := make([]PhaseResult, 0, len(r.workload.Phases))

	for i := range r.workload.Phases {
		phase := &r.workload.Phases[i]

		result, err := r.runPhase(ctx, phase)
		if err != nil {
			return nil, fmt.Errorf("phase %d (%s): %w", i, phase.Kind, err)
		}

		phases = append(phases, result)
	}

	return &RunResult{
		Workload: *r.workload,
		Phases:   phases,
		Stats:    r.forest.Stats(),
		Duration: time.Since(started),
	}, nil
}

// runPhase wraps one phase in a span and a phase duration sample, then
// refreshes the arena gauge.
func (r *Runner) runPhase(ctx context.Context, phase *Phase) (PhaseResult, error) {
	ctx, span := r.tracer.Start(ctx, "phase."+phase.Kind, trace.WithAttributes(
		attribute.String("phase.distribution", phase.Distribution),
		attribute.Int64("phase.ops", phase.Ops),
	))
	defer span.End()

	started := time.Now()

	result, err := r.executePhase(ctx, phase)

	status := statusOK
	if err != nil {
		status = statusError

		span.RecordError(err)
	}

	if r.metrics != nil {
		r.metrics.RecordPhase(ctx, phase.Kind, status, time.Since(started))
	}

	r.refreshGauge()

	return result, err
}

func (r *Runner) executePhase(ctx context.Context, phase *Phase) (PhaseResult, error) {
	switch phase.Kind {
	case PhaseScan:
		return r.runScanPhase(ctx, phase)
	case PhaseHibernate:
		return r.runHibernatePhase(ctx, phase)
	default:
		return r.runKeyedPhase(ctx, phase)
	}
}

// runKeyedPhase drives insert, find, delete and mixed phases through the
// phase key stream. Delete hits are recovered from the structural removal
// counter, which a pure delete phase is the only mutator of.
func (r *Runner) runKeyedPhase(ctx context.Context, phase *Phase) (PhaseResult, error) {
	result := PhaseResult{Kind: phase.Kind, Distribution: phase.Distribution, Ops: phase.Ops}
	keys := newKeySequence(phase.Distribution, r.workload.KeySpace, r.rng)

	deletesBefore := r.forest.Stats().Deletes

	checkpoints, elapsed, err := r.runWindows(ctx, phase.Kind, phase.Ops, r.keyedStep(phase.Kind, keys, &result))
	if err != nil {
		return PhaseResult{}, err
	}

	if phase.Kind == PhaseDelete {
		result.Hits = safeconv.MustUint64ToInt64(r.forest.Stats().Deletes - deletesBefore)
		result.Misses = phase.Ops - result.Hits
	}

	result.Checkpoints = checkpoints
	result.Duration = elapsed
	result.OpsPerSecond = opsPerSecond(phase.Ops, elapsed)

	return result, nil
}

// keyedStep builds the per-op closure for a keyed phase kind.
func (r *Runner) keyedStep(kind string, keys *keySequence, result *PhaseResult) func() {
	switch kind {
	case PhaseInsert:
		return func() {
			r.insertOne(keys.next())
		}
	case PhaseFind:
		return func() {
			if _, ok := r.forest.Lookup(keys.next()); ok {
				result.Hits++
			} else {
				result.Misses++
			}
		}
	case PhaseDelete:
		return func() {
			r.forest.Delete(keys.next())
		}
	default:
		return func() {
			r.mixedOne(keys, result)
		}
	}
}

// mixedOne rolls the op kind for one mixed-phase operation. Hits and misses
// track only the lookup share of the mix.
func (r *Runner) mixedOne(keys *keySequence, result *PhaseResult) {
	key := keys.next()

	switch roll := r.rng.Intn(mixedRollRange); {
	case roll < mixedInsertPct:
		r.insertOne(key)
	case roll < mixedLookupEdge:
		if _, ok := r.forest.Lookup(key); ok {
			result.Hits++
		} else {
			result.Misses++
		}
	default:
		r.forest.Delete(key)
	}
}

// insertOne stores a record under key, writing the configured number of
// payload bytes.
func (r *Runner) insertOne(key uint64) {
	rec := Record{Key: key}

	for i := range r.payload {
		rec.Payload[i] = byte(key >> (uint(i%keyBytes) * 8))
	}

	r.forest.Insert(rec, true)
}

// runScanPhase treats each op as one full in-order traversal of every
// shard. Hits counts the records visited across all traversals.
func (r *Runner) runScanPhase(ctx context.Context, phase *Phase) (PhaseResult, error) {
	result := PhaseResult{Kind: phase.Kind, Distribution: phase.Distribution, Ops: phase.Ops}

	checkpoints, elapsed, err := r.runWindows(ctx, phase.Kind, phase.Ops, func() {
		result.Hits += r.scanOnce()
	})
	if err != nil {
		return PhaseResult{}, err
	}

	result.Checkpoints = checkpoints
	result.Duration = elapsed
	result.OpsPerSecond = opsPerSecond(phase.Ops, elapsed)

	return result, nil
}

// scanOnce walks every shard in key order and returns the record count.
func (r *Runner) scanOnce() int64 {
	var visited int64

	for _, shard := range r.forest.Shards() {
		shard.ForEach(func(_ llrb.Index, rec *Record) bool {
			visited++
			r.sink += rec.Key

			return true
		})
	}

	return visited
}

// runHibernatePhase treats each op as one hibernate/boot round-trip across
// the whole forest. One extra round-trip runs before the timed windows to
// sample the resident heap released while parked; GC pauses from that
// measurement never land inside a window.
func (r *Runner) runHibernatePhase(ctx context.Context, phase *Phase) (PhaseResult, error) {
	result := PhaseResult{Kind: phase.Kind, Distribution: phase.Distribution, Ops: phase.Ops}
	shardCount := int64(len(r.forest.Shards()))

	heapBefore := heapInUse()

	r.forest.Hibernate()
	r.addHibernated(ctx, shardCount)

	heapParked := heapInUse()

	r.forest.Boot()
	r.addHibernated(ctx, -shardCount)

	result.HeapFreed = safeconv.MustUint64ToInt64(heapBefore) - safeconv.MustUint64ToInt64(heapParked)

	checkpoints, elapsed, err := r.runWindows(ctx, phase.Kind, phase.Ops, func() {
		r.forest.Hibernate()
		r.addHibernated(ctx, shardCount)

		r.forest.Boot()
		r.addHibernated(ctx, -shardCount)
	})
	if err != nil {
		return PhaseResult{}, err
	}

	result.Checkpoints = checkpoints
	result.Duration = elapsed
	result.OpsPerSecond = opsPerSecond(phase.Ops, elapsed)

	return result, nil
}

// heapInUse reads the resident heap after back-to-back collections settle
// the allocator.
func heapInUse() uint64 {
	runtime.GC()
	runtime.GC()

	var m runtime.MemStats

	runtime.ReadMemStats(&m)

	return m.HeapInuse
}

// runWindows drives total ops through step in checkpoint windows, recording
// a throughput sample per window and honoring cancellation between windows.
func (r *Runner) runWindows(ctx context.Context, op string, total int64, step func()) ([]Checkpoint, time.Duration, error) {
	windowSize := max(total/checkpointsPerPhase, 1)
	checkpoints := make([]Checkpoint, 0, checkpointsPerPhase+1)
	started := time.Now()

	var done int64

	for done < total {
		ctxErr := ctx.Err()
		if ctxErr != nil {
			return nil, time.Since(started), fmt.Errorf("workload interrupted: %w", ctxErr)
		}

		windowOps := min(windowSize, total-done)
		windowStart := time.Now()

		for range windowOps {
			step()
		}

		windowElapsed := time.Since(windowStart)
		done += windowOps

		if r.metrics != nil {
			r.metrics.RecordWindow(ctx, op, windowOps, windowElapsed)
		}

		checkpoints = append(checkpoints, Checkpoint{
			Elapsed:      time.Since(started),
			Ops:          done,
			OpsPerSecond: opsPerSecond(windowOps, windowElapsed),
		})
	}

	return checkpoints, time.Since(started), nil
}

func (r *Runner) addHibernated(ctx context.Context, delta int64) {
	if r.metrics != nil {
		r.metrics.AddHibernated(ctx, delta)
	}
}

// refreshGauge samples the forest for the observable arena instruments.
// Runs on the driver goroutine only; collection reads the cached copy.
func (r *Runner) refreshGauge() {
	r.gauge.store(r.forest.Stats())
}

func opsPerSecond(ops int64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}

	return float64(ops) / elapsed.Seconds()
}

// arenaGauge caches the last sampled tree state so the metrics collection
// goroutine never races the workload driver over the forest.
type arenaGauge struct {
	size      atomic.Int64
	capacity  atomic.Int64
	evictions atomic.Int64
	grows     atomic.Int64
}

func (g *arenaGauge) store(st llrb.Stats) {
	g.size.Store(int64(st.Size))
	g.capacity.Store(int64(st.Capacity))
	g.evictions.Store(safeconv.MustUint64ToInt64(st.Evictions))
	g.grows.Store(safeconv.MustUint64ToInt64(st.Grows))
}

func (g *arenaGauge) snapshot() observability.ArenaSnapshot {
	return observability.ArenaSnapshot{
		Size:      g.size.Load(),
		Capacity:  g.capacity.Load(),
		Evictions: g.evictions.Load(),
		Grows:     g.grows.Load(),
	}
}

// keySequence draws the phase key stream from the configured distribution.
// Sequential streams count up from zero and wrap at the key space; uniform
// and zipf draw from the shared workload PRNG.
type keySequence struct {
	rng      *rand.Rand
	zipf     *rand.Zipf
	keySpace uint64
	cursor   uint64
	dist     string
}

func newKeySequence(dist string, keySpace uint64, rng *rand.Rand) *keySequence {
	seq := &keySequence{dist: dist, keySpace: keySpace, rng: rng}

	if dist == DistZipf {
		seq.zipf = rand.NewZipf(rng, zipfSkew, zipfBase, keySpace-1)
	}

	return seq
}

func (s *keySequence) next() uint64 {
	switch s.dist {
	case DistUniform:
		return s.rng.Uint64() % s.keySpace
	case DistZipf:
		return s.zipf.Uint64()
	default:
		key := s.cursor % s.keySpace
		s.cursor++

		return key
	}
}
