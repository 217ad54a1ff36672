package llrb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tinyCapacity = 4

// minEvictor sacrifices the smallest key. The scan visits records in
// ascending key order, so the first slot seen is the victim and the scan
// short-circuits immediately.
type minEvictor struct {
	victim Index
	visits int
}

func (e *minEvictor) Begin() {
	e.victim = Nil
	e.visits = 0
}

func (e *minEvictor) Visit(i Index, _ *entry) bool {
	e.visits++
	e.victim = i

	return true
}

func (e *minEvictor) Pick() Index { return e.victim }

// maxEvictor sacrifices the largest key by scanning to the end.
type maxEvictor struct {
	victim Index
}

func (e *maxEvictor) Begin() { e.victim = Nil }

func (e *maxEvictor) Visit(i Index, _ *entry) bool {
	e.victim = i

	return false
}

func (e *maxEvictor) Pick() Index { return e.victim }

func TestFixedCapacityOverflowPanics(t *testing.T) {
	t.Parallel()

	tree := newEntryTree(WithCapacity[entry, int](tinyCapacity))
	insertKeys(t, tree, 5, 3, 8, 1)

	assert.PanicsWithValue(t, "llrb: arena is full and the tree has no growth or eviction strategy", func() {
		tree.Insert(entry{key: 4}, true)
	})

	assert.Equal(t, tinyCapacity, tree.Len())
	mustValidate(t, tree)
}

func TestFullTreeStillAcceptsExistingKey(t *testing.T) {
	t.Parallel()

	tree := newEntryTree(WithCapacity[entry, int](tinyCapacity))
	insertKeys(t, tree, 5, 3, 8, 1)

	at := tree.Insert(entry{key: 8, payload: "fresh"}, true)

	assert.Equal(t, "fresh", tree.Get(at).payload)
	assert.Equal(t, tinyCapacity, tree.Len())
	mustValidate(t, tree)
}

func TestGrowthReallocatesArena(t *testing.T) {
	t.Parallel()

	tree := newEntryTree(
		WithCapacity[entry, int](tinyCapacity),
		WithGrowth[entry, int](DefaultGrowth),
	)
	insertKeys(t, tree, 5, 3, 8, 1)

	before := map[int]Index{}
	tree.ForEach(func(i Index, rec *entry) bool {
		before[rec.key] = i

		return true
	})

	tree.Insert(entry{key: 4}, true)

	assert.Equal(t, growthFloor, tree.Cap())
	assert.Equal(t, 5, tree.Len())
	assert.Equal(t, uint64(1), tree.Stats().Grows)

	for key, at := range before {
		assert.Equal(t, at, tree.Find(key), "key %d moved during growth", key)
	}

	mustValidate(t, tree)
}

func TestGrowthLinksFreshSlotsAscending(t *testing.T) {
	t.Parallel()

	tree := newEntryTree(
		WithCapacity[entry, int](2),
		WithGrowth[entry, int](func(current int) int { return current + 2 }),
	)

	for i, key := range []int{10, 20, 30, 40} {
		at := tree.Insert(entry{key: key}, true)
		assert.Equal(t, Index(i), at)
	}

	assert.Equal(t, 4, tree.Cap())
	mustValidate(t, tree)
}

func TestDefaultGrowth(t *testing.T) {
	t.Parallel()

	assert.Equal(t, growthFloor, DefaultGrowth(1))
	assert.Equal(t, growthFloor, DefaultGrowth(tinyCapacity))
	assert.Equal(t, 96, DefaultGrowth(defaultCapacity))
	assert.Equal(t, 150, DefaultGrowth(100))
}

func TestGrowthCallbackMustGrow(t *testing.T) {
	t.Parallel()

	tree := newEntryTree(
		WithCapacity[entry, int](2),
		WithGrowth[entry, int](func(current int) int { return current }),
	)
	insertKeys(t, tree, 1, 2)

	assert.PanicsWithValue(t, "llrb: growth callback returned a capacity that does not grow the arena", func() {
		tree.Insert(entry{key: 3}, true)
	})
}

func TestEvictorSacrificesSmallestKey(t *testing.T) {
	t.Parallel()

	ev := &minEvictor{}
	tree := newEntryTree(
		WithCapacity[entry, int](tinyCapacity),
		WithEvictor[entry, int](ev),
	)
	insertKeys(t, tree, 5, 3, 8, 1)

	tree.Insert(entry{key: 4}, true)

	assert.Equal(t, tinyCapacity, tree.Len())
	assert.Equal(t, tinyCapacity, tree.Cap())
	assert.Equal(t, Nil, tree.Find(1))
	assert.Equal(t, []int{3, 4, 5, 8}, collectKeys(tree))
	assert.Equal(t, 1, ev.visits)
	assert.Equal(t, uint64(1), tree.Stats().Evictions)
	mustValidate(t, tree)
}

func TestEvictorSacrificesLargestKey(t *testing.T) {
	t.Parallel()

	tree := newEntryTree(
		WithCapacity[entry, int](tinyCapacity),
		WithEvictor[entry, int](&maxEvictor{}),
	)
	insertKeys(t, tree, 5, 3, 8, 1)

	tree.Insert(entry{key: 4}, true)

	assert.Equal(t, Nil, tree.Find(8))
	assert.Equal(t, []int{1, 3, 4, 5}, collectKeys(tree))
	mustValidate(t, tree)
}

func TestEvictionRunsReleaseProtocol(t *testing.T) {
	t.Parallel()

	finalized := []int{}
	removed := []Index{}

	tree := newEntryTree(
		WithCapacity[entry, int](2),
		WithEvictor[entry, int](&minEvictor{}),
		WithFinalizer[entry, int](func(rec *entry) { finalized = append(finalized, rec.key) }),
		WithHooks[entry, int](Hooks{OnRemove: func(i Index) { removed = append(removed, i) }}),
	)
	insertKeys(t, tree, 5, 3)

	victimAt := tree.Find(3)
	tree.Insert(entry{key: 7}, true)

	assert.Equal(t, []int{3}, finalized)
	assert.Equal(t, []Index{victimAt}, removed)
	mustValidate(t, tree)
}

func TestEvictionKeepsCacheBounded(t *testing.T) {
	t.Parallel()

	const rounds = 100

	tree := newEntryTree(
		WithCapacity[entry, int](tinyCapacity),
		WithEvictor[entry, int](&minEvictor{}),
	)

	for key := range rounds {
		tree.Insert(entry{key: key}, true)
		require.LessOrEqual(t, tree.Len(), tinyCapacity)
	}

	// The smallest key is evicted every round, so the largest four remain.
	assert.Equal(t, []int{96, 97, 98, 99}, collectKeys(tree))
	mustValidate(t, tree)
}

func TestGrowthAndEvictionAreMutuallyExclusive(t *testing.T) {
	t.Parallel()

	assert.PanicsWithValue(t, "llrb: growth and eviction strategies are mutually exclusive", func() {
		newEntryTree(
			WithGrowth[entry, int](DefaultGrowth),
			WithEvictor[entry, int](&minEvictor{}),
		)
	})
}

func TestOptionCallbackValidation(t *testing.T) {
	t.Parallel()

	t.Run("nil_growth", func(t *testing.T) {
		t.Parallel()

		assert.PanicsWithValue(t, "llrb: WithGrowth requires a sizing callback", func() {
			newEntryTree(WithGrowth[entry, int](nil))
		})
	})

	t.Run("nil_evictor", func(t *testing.T) {
		t.Parallel()

		assert.PanicsWithValue(t, "llrb: WithEvictor requires an evictor", func() {
			newEntryTree(WithEvictor[entry, int](nil))
		})
	})

	t.Run("nil_finalizer", func(t *testing.T) {
		t.Parallel()

		assert.PanicsWithValue(t, "llrb: WithFinalizer requires a finalizer", func() {
			newEntryTree(WithFinalizer[entry, int](nil))
		})
	})
}

func TestHooksObserveSlotLifecycle(t *testing.T) {
	t.Parallel()

	type event struct {
		op string
		at Index
	}

	events := []event{}

	var tree *Tree[entry, int]

	tree = newEntryTree(WithHooks[entry, int](Hooks{
		OnInsert: func(i Index) {
			// The record is already in place when the hook fires.
			events = append(events, event{op: "insert:" + tree.Get(i).payload, at: i})
		},
		OnRemove: func(i Index) {
			events = append(events, event{op: "remove", at: i})
		},
	}))

	at5 := tree.Insert(entry{key: 5, payload: "five"}, true)
	at3 := tree.Insert(entry{key: 3, payload: "three"}, true)
	tree.Delete(5)

	assert.Equal(t, []event{
		{op: "insert:five", at: at5},
		{op: "insert:three", at: at3},
		{op: "remove", at: at5},
	}, events)
}

func TestFinalizerRunsExactlyOncePerRecord(t *testing.T) {
	t.Parallel()

	counts := map[string]int{}

	tree := newEntryTree(
		WithCapacity[entry, int](8),
		WithFinalizer[entry, int](func(rec *entry) { counts[rec.payload]++ }),
	)

	tree.Insert(entry{key: 1, payload: "deleted"}, true)
	tree.Insert(entry{key: 2, payload: "replaced"}, true)
	tree.Insert(entry{key: 3, payload: "cleared"}, true)
	tree.Insert(entry{key: 4, payload: "destroyed"}, true)

	tree.Delete(1)
	tree.Insert(entry{key: 2, payload: "replacement"}, true)
	tree.Clear()

	tree.Insert(entry{key: 5, payload: "destroyed"}, true)
	tree.Destroy()

	assert.Equal(t, map[string]int{
		"deleted":     1,
		"replaced":    1,
		"cleared":     1,
		"destroyed":   2,
		"replacement": 1,
	}, counts)
}
