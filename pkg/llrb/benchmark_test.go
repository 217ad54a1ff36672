package llrb

import (
	"cmp"
	"testing"
)

const (
	// benchPreloadCount is the number of records preloaded before lookup
	// and steady-state benchmarks.
	benchPreloadCount = 100_000

	// benchWalkCount is the tree size for full-traversal benchmarks.
	benchWalkCount = 10_000
)

// preloadBenchTree builds a fixed-capacity tree holding n sequential keys.
func preloadBenchTree(b *testing.B, n int) *Tree[entry, int] {
	b.Helper()

	tree := New[entry, int](entryKey, cmp.Compare[int], WithCapacity[entry, int](n))

	for i := range n {
		tree.Insert(entry{key: i}, true)
	}

	return tree
}

// BenchmarkInsertPrealloc measures insert throughput into an arena that
// never reallocates.
func BenchmarkInsertPrealloc(b *testing.B) {
	tree := New[entry, int](entryKey, cmp.Compare[int], WithCapacity[entry, int](b.N+1))

	b.ResetTimer()

	for i := range b.N {
		tree.Insert(entry{key: i}, true)
	}
}

// BenchmarkInsertGrowing measures amortized insert throughput including
// arena reallocation.
func BenchmarkInsertGrowing(b *testing.B) {
	tree := New[entry, int](entryKey, cmp.Compare[int], WithGrowth[entry, int](DefaultGrowth))

	b.ResetTimer()

	for i := range b.N {
		tree.Insert(entry{key: i}, true)
	}
}

// BenchmarkFindHit measures lookups that always land on a present key.
func BenchmarkFindHit(b *testing.B) {
	tree := preloadBenchTree(b, benchPreloadCount)

	b.ResetTimer()

	for i := range b.N {
		tree.Find(i % benchPreloadCount)
	}
}

// BenchmarkFindMiss measures lookups beyond the stored key range.
func BenchmarkFindMiss(b *testing.B) {
	tree := preloadBenchTree(b, benchPreloadCount)

	b.ResetTimer()

	for i := range b.N {
		tree.Find(benchPreloadCount + i%benchPreloadCount)
	}
}

// BenchmarkDeleteInsertCycle measures the steady state of removing a key
// and inserting it back, which recycles one slot per round without
// allocating.
func BenchmarkDeleteInsertCycle(b *testing.B) {
	tree := preloadBenchTree(b, benchPreloadCount)

	b.ResetTimer()

	for i := range b.N {
		key := i % benchPreloadCount

		tree.Delete(key)
		tree.Insert(entry{key: key}, true)
	}
}

// BenchmarkForEach measures a full in-order traversal.
func BenchmarkForEach(b *testing.B) {
	tree := preloadBenchTree(b, benchWalkCount)

	b.ResetTimer()

	for range b.N {
		visited := 0

		tree.ForEach(func(Index, *entry) bool {
			visited++

			return true
		})

		if visited != benchWalkCount {
			b.Fatalf("walked %d of %d records", visited, benchWalkCount)
		}
	}
}

// BenchmarkHibernateBoot measures one park-and-wake round trip.
func BenchmarkHibernateBoot(b *testing.B) {
	tree := preloadBenchTree(b, benchPreloadCount)

	b.ResetTimer()

	for range b.N {
		tree.Hibernate()
		tree.Boot()
	}
}
