package llrb

import (
	"cmp"
	"fmt"
	"math/rand"
	"slices"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// entry is the record type shared by the package tests.
type entry struct {
	key     int
	payload string
}

func entryKey(e *entry) int { return e.key }

func newEntryTree(opts ...Option[entry, int]) *Tree[entry, int] {
	return New[entry, int](entryKey, cmp.Compare[int], opts...)
}

func insertKeys(t *testing.T, tree *Tree[entry, int], keys ...int) {
	t.Helper()

	for _, k := range keys {
		tree.Insert(entry{key: k, payload: fmt.Sprintf("v%d", k)}, true)
	}
}

func collectKeys(tree *Tree[entry, int]) []int {
	keys := []int{}

	tree.ForEach(func(_ Index, rec *entry) bool {
		keys = append(keys, rec.key)

		return true
	})

	return keys
}

func mustValidate(t *testing.T, tree *Tree[entry, int]) {
	t.Helper()

	require.NoError(t, tree.Validate())
}

func TestInsertThenIterateSorted(t *testing.T) {
	t.Parallel()

	tree := newEntryTree()
	insertKeys(t, tree, 5, 3, 8, 1, 4, 7, 9)

	assert.Equal(t, 7, tree.Len())
	assert.Equal(t, []int{1, 3, 4, 5, 7, 8, 9}, collectKeys(tree))
	mustValidate(t, tree)
}

func TestDeleteInteriorKey(t *testing.T) {
	t.Parallel()

	tree := newEntryTree()
	insertKeys(t, tree, 5, 3, 8, 1, 4, 7, 9)

	tree.Delete(5)

	assert.Equal(t, 6, tree.Len())
	assert.Equal(t, Nil, tree.Find(5))
	assert.Equal(t, []int{1, 3, 4, 7, 8, 9}, collectKeys(tree))
	mustValidate(t, tree)
}

func TestInsertReturnsIncrementingIndices(t *testing.T) {
	t.Parallel()

	tree := newEntryTree()

	for i, key := range []int{50, 20, 80, 10, 60} {
		at := tree.Insert(entry{key: key}, true)
		assert.Equal(t, Index(i), at)
	}
}

func TestFind(t *testing.T) {
	t.Parallel()

	tree := newEntryTree()
	insertKeys(t, tree, 5, 3, 8, 1, 4, 7, 9)

	for _, key := range []int{1, 3, 4, 5, 7, 8, 9} {
		at := tree.Find(key)
		require.NotEqual(t, Nil, at)
		assert.Equal(t, key, tree.Get(at).key)
	}

	for _, key := range []int{0, 2, 6, 10} {
		assert.Equal(t, Nil, tree.Find(key))
	}
}

func TestLookup(t *testing.T) {
	t.Parallel()

	tree := newEntryTree()
	insertKeys(t, tree, 5, 3, 8)

	rec, ok := tree.Lookup(3)
	require.True(t, ok)
	assert.Equal(t, "v3", rec.payload)

	rec, ok = tree.Lookup(4)
	assert.False(t, ok)
	assert.Nil(t, rec)
}

func TestInsertDuplicateKeepExisting(t *testing.T) {
	t.Parallel()

	tree := newEntryTree()

	first := tree.Insert(entry{key: 5, payload: "old"}, true)
	again := tree.Insert(entry{key: 5, payload: "new"}, false)

	assert.Equal(t, first, again)
	assert.Equal(t, 1, tree.Len())
	assert.Equal(t, "old", tree.Get(first).payload)
	mustValidate(t, tree)
}

func TestInsertDuplicateReplace(t *testing.T) {
	t.Parallel()

	finalized := []string{}
	tree := newEntryTree(WithFinalizer[entry, int](func(rec *entry) {
		finalized = append(finalized, rec.payload)
	}))

	first := tree.Insert(entry{key: 5, payload: "old"}, true)
	again := tree.Insert(entry{key: 5, payload: "new"}, true)

	assert.Equal(t, first, again)
	assert.Equal(t, 1, tree.Len())
	assert.Equal(t, "new", tree.Get(first).payload)
	assert.Equal(t, []string{"old"}, finalized)
	mustValidate(t, tree)
}

func TestDeleteAbsentIsNoOp(t *testing.T) {
	t.Parallel()

	removed := 0
	tree := newEntryTree(
		WithHooks[entry, int](Hooks{OnRemove: func(Index) { removed++ }}),
	)
	insertKeys(t, tree, 5, 3, 8)

	tree.Delete(4)
	tree.Delete(100)

	assert.Equal(t, 3, tree.Len())
	assert.Zero(t, removed)
	assert.Equal(t, []int{3, 5, 8}, collectKeys(tree))
	mustValidate(t, tree)
}

func TestDeleteEveryKeyBothDirections(t *testing.T) {
	t.Parallel()

	keys := []int{5, 3, 8, 1, 4, 7, 9, 2, 6}

	t.Run("ascending", func(t *testing.T) {
		t.Parallel()

		tree := newEntryTree()
		insertKeys(t, tree, keys...)

		for _, key := range []int{1, 2, 3, 4, 5, 6, 7, 8, 9} {
			tree.Delete(key)
			mustValidate(t, tree)
		}

		assert.Zero(t, tree.Len())
	})

	t.Run("descending", func(t *testing.T) {
		t.Parallel()

		tree := newEntryTree()
		insertKeys(t, tree, keys...)

		for _, key := range []int{9, 8, 7, 6, 5, 4, 3, 2, 1} {
			tree.Delete(key)
			mustValidate(t, tree)
		}

		assert.Zero(t, tree.Len())
	})
}

func TestDeleteMinWholeTree(t *testing.T) {
	t.Parallel()

	tree := newEntryTree()
	insertKeys(t, tree, 5, 3, 8, 1, 4)

	tree.DeleteMin(Nil)

	assert.Equal(t, []int{3, 4, 5, 8}, collectKeys(tree))
	mustValidate(t, tree)

	tree.DeleteMin(tree.Root())

	assert.Equal(t, []int{4, 5, 8}, collectKeys(tree))
	mustValidate(t, tree)
}

func TestDeleteMinEmptyTree(t *testing.T) {
	t.Parallel()

	tree := newEntryTree()
	tree.DeleteMin(Nil)

	assert.Zero(t, tree.Len())
	mustValidate(t, tree)
}

func TestDeleteMinSubtree(t *testing.T) {
	t.Parallel()

	tree := newEntryTree()
	insertKeys(t, tree, 4, 2, 6, 1, 3, 5, 7)

	sub := tree.Right(tree.Root())
	require.NotEqual(t, Nil, sub)

	victim := tree.Get(tree.Minimum(sub)).key
	tree.DeleteMin(sub)

	assert.Equal(t, Nil, tree.Find(victim))
	assert.Equal(t, 6, tree.Len())
	mustValidate(t, tree)
}

func TestMinimum(t *testing.T) {
	t.Parallel()

	tree := newEntryTree()
	insertKeys(t, tree, 5, 3, 8, 1, 4)

	assert.Equal(t, 1, tree.Get(tree.Minimum(tree.Root())).key)

	assert.PanicsWithValue(t, "llrb: Nil index dereference", func() {
		tree.Minimum(Nil)
	})
}

func TestSurvivorsKeepIndicesAcrossDelete(t *testing.T) {
	t.Parallel()

	tree := newEntryTree()
	insertKeys(t, tree, 5, 3, 8, 1, 4, 7, 9)

	before := map[int]Index{}
	tree.ForEach(func(i Index, rec *entry) bool {
		before[rec.key] = i

		return true
	})

	tree.Delete(5)

	for key, at := range before {
		if key == 5 {
			continue
		}

		assert.Equal(t, at, tree.Find(key), "key %d moved", key)
	}
}

func TestDeletedSlotIsReusedFirst(t *testing.T) {
	t.Parallel()

	tree := newEntryTree()
	insertKeys(t, tree, 5, 3, 8)

	freed := tree.Find(3)
	tree.Delete(3)

	at := tree.Insert(entry{key: 42}, true)
	assert.Equal(t, freed, at)
}

func TestGetPanics(t *testing.T) {
	t.Parallel()

	tree := newEntryTree()
	insertKeys(t, tree, 5, 3)

	assert.PanicsWithValue(t, "llrb: Nil index dereference", func() {
		tree.Get(Nil)
	})

	assert.PanicsWithValue(t, "llrb: index out of arena range", func() {
		tree.Get(Index(tree.Cap()))
	})

	freed := tree.Find(3)
	tree.Delete(3)

	assert.PanicsWithValue(t, "llrb: access to a free slot", func() {
		tree.Get(freed)
	})
}

func TestClear(t *testing.T) {
	t.Parallel()

	finalized := 0
	tree := newEntryTree(WithFinalizer[entry, int](func(*entry) { finalized++ }))
	insertKeys(t, tree, 5, 3, 8, 1, 4)

	tree.Clear()

	assert.Zero(t, tree.Len())
	assert.Equal(t, 5, finalized)
	assert.Equal(t, Nil, tree.Find(5))
	assert.Equal(t, defaultCapacity, tree.Cap())
	mustValidate(t, tree)

	at := tree.Insert(entry{key: 10}, true)
	assert.Equal(t, Index(0), at)
}

func TestClearEmptyTree(t *testing.T) {
	t.Parallel()

	tree := newEntryTree()
	tree.Clear()

	assert.Zero(t, tree.Len())
	mustValidate(t, tree)
}

func TestDestroy(t *testing.T) {
	t.Parallel()

	finalized := 0
	tree := newEntryTree(WithFinalizer[entry, int](func(*entry) { finalized++ }))
	insertKeys(t, tree, 5, 3, 8)

	tree.Destroy()
	assert.Equal(t, 3, finalized)

	tree.Destroy()
	assert.Equal(t, 3, finalized)

	assert.PanicsWithValue(t, "llrb: use of a destroyed tree", func() {
		tree.Insert(entry{key: 1}, true)
	})
}

func TestHeightStaysLogarithmic(t *testing.T) {
	t.Parallel()

	const n = 1000

	tree := newEntryTree(WithGrowth[entry, int](DefaultGrowth))

	for key := range n {
		tree.Insert(entry{key: key}, true)
	}

	height := tree.Stats().Height
	assert.GreaterOrEqual(t, height, 10)
	assert.LessOrEqual(t, height, 20)
	mustValidate(t, tree)
}

func TestStatsCounters(t *testing.T) {
	t.Parallel()

	tree := newEntryTree(WithCapacity[entry, int](4), WithGrowth[entry, int](DefaultGrowth))
	insertKeys(t, tree, 5, 3, 8, 1, 4)

	tree.Insert(entry{key: 5, payload: "again"}, true)
	tree.Delete(3)
	tree.DeleteMin(Nil)

	st := tree.Stats()
	assert.Equal(t, 3, st.Size)
	assert.Equal(t, st.Capacity-st.Size, st.Free)
	assert.Equal(t, uint64(5), st.Inserts)
	assert.Equal(t, uint64(1), st.Updates)
	assert.Equal(t, uint64(2), st.Deletes)
	assert.Equal(t, uint64(1), st.Grows)
	assert.Zero(t, st.Evictions)
}

func TestRandomizedAgainstReference(t *testing.T) {
	t.Parallel()

	const (
		seed     = 1
		ops      = 4000
		keySpace = 500
	)

	rng := rand.New(rand.NewSource(seed))
	tree := newEntryTree(WithCapacity[entry, int](8), WithGrowth[entry, int](DefaultGrowth))
	reference := map[int]string{}

	for op := 0; op < ops; op++ {
		key := rng.Intn(keySpace)

		switch draw := rng.Intn(10); {
		case draw < 6:
			payload := fmt.Sprintf("p%d", op)
			tree.Insert(entry{key: key, payload: payload}, true)
			reference[key] = payload
		case draw < 9:
			tree.Delete(key)
			delete(reference, key)
		default:
			if len(reference) > 0 {
				minKey := -1
				for k := range reference {
					if minKey < 0 || k < minKey {
						minKey = k
					}
				}

				tree.DeleteMin(Nil)
				delete(reference, minKey)
			} else {
				tree.DeleteMin(Nil)
			}
		}

		if op%100 == 0 {
			mustValidate(t, tree)
		}
	}

	mustValidate(t, tree)
	require.Equal(t, len(reference), tree.Len())

	wantKeys := make([]int, 0, len(reference))
	for k := range reference {
		wantKeys = append(wantKeys, k)
	}

	sort.Ints(wantKeys)
	assert.Equal(t, wantKeys, collectKeys(tree))

	for _, k := range wantKeys {
		rec, ok := tree.Lookup(k)
		require.True(t, ok)
		assert.Equal(t, reference[k], rec.payload)
	}
}

func TestKeyProjection(t *testing.T) {
	t.Parallel()

	tree := newEntryTree()
	rec := entry{key: 7}

	assert.Equal(t, 7, tree.Key(&rec))
}

func TestConstructorValidation(t *testing.T) {
	t.Parallel()

	t.Run("nil_key_extraction", func(t *testing.T) {
		t.Parallel()

		assert.PanicsWithValue(t, "llrb: a key extraction function is required", func() {
			New[entry, int](nil, cmp.Compare[int])
		})
	})

	t.Run("nil_comparison", func(t *testing.T) {
		t.Parallel()

		assert.PanicsWithValue(t, "llrb: a key comparison function is required", func() {
			New[entry, int](entryKey, nil)
		})
	})

	t.Run("non_positive_capacity", func(t *testing.T) {
		t.Parallel()

		assert.PanicsWithValue(t, "llrb: capacity must be positive", func() {
			newEntryTree(WithCapacity[entry, int](0))
		})
	})
}

func TestCollectKeysMatchesSlices(t *testing.T) {
	t.Parallel()

	tree := newEntryTree(WithGrowth[entry, int](DefaultGrowth))

	keys := rand.New(rand.NewSource(7)).Perm(300)
	for _, k := range keys {
		tree.Insert(entry{key: k}, true)
	}

	got := collectKeys(tree)
	assert.True(t, slices.IsSorted(got))
	assert.Len(t, got, 300)
}
