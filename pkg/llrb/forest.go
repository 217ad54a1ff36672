package llrb

import "sync"

// Forest shards records across independent trees by key hash. A single tree
// is not safe for concurrent use; a forest gives every key a stable home
// shard so that goroutines working on disjoint shards never contend, and
// bulk state transitions like hibernation run across shards in parallel.
type Forest[R any, K any] struct {
	shards []*Tree[R, K]
	hash   func(K) uint32
}

// NewForest builds shardCount trees through the build callback and routes
// keys between them with the hash function. build runs once per shard and
// must return trees with identical key extraction and ordering; stateful
// configuration such as evictors must not be shared between shards.
func NewForest[R any, K any](shardCount int, hash func(K) uint32, build func(shard int) *Tree[R, K]) *Forest[R, K] {
	if shardCount <= 0 {
		panic("llrb: a forest needs at least one shard")
	}

	if hash == nil {
		panic("llrb: a forest needs a key hash function")
	}

	if build == nil {
		panic("llrb: a forest needs a shard constructor")
	}

	shards := make([]*Tree[R, K], shardCount)

	for idx := range shardCount {
		shards[idx] = build(idx)
		if shards[idx] == nil {
			panic("llrb: the shard constructor returned a nil tree")
		}
	}

	return &Forest[R, K]{shards: shards, hash: hash}
}

// ShardIndex returns the shard number owning key.
func (f *Forest[R, K]) ShardIndex(key K) int {
	return int(f.hash(key) % uint32(len(f.shards)))
}

// Shard returns the tree owning key.
func (f *Forest[R, K]) Shard(key K) *Tree[R, K] {
	return f.shards[f.ShardIndex(key)]
}

// Shards returns the underlying trees, one per shard.
func (f *Forest[R, K]) Shards() []*Tree[R, K] {
	return f.shards
}

// Insert routes the record to its home shard and stores it there. It
// returns the shard number and the slot index within that shard.
func (f *Forest[R, K]) Insert(rec R, replace bool) (shard int, at Index) {
	shard = f.ShardIndex(f.shards[0].Key(&rec))

	return shard, f.shards[shard].Insert(rec, replace)
}

// Find locates key and returns its shard number and slot index within the
// shard, Nil when absent.
func (f *Forest[R, K]) Find(key K) (shard int, at Index) {
	shard = f.ShardIndex(key)

	return shard, f.shards[shard].Find(key)
}

// Lookup returns the record stored under key and whether it was present.
func (f *Forest[R, K]) Lookup(key K) (*R, bool) {
	return f.Shard(key).Lookup(key)
}

// Delete removes key from its home shard; absent keys are a no-op.
func (f *Forest[R, K]) Delete(key K) {
	f.Shard(key).Delete(key)
}

// Len reports the total number of records across all shards.
func (f *Forest[R, K]) Len() int {
	total := 0
	for _, shard := range f.shards {
		total += shard.Len()
	}

	return total
}

// Cap reports the total arena capacity across all shards.
func (f *Forest[R, K]) Cap() int {
	total := 0
	for _, shard := range f.shards {
		total += shard.Cap()
	}

	return total
}

// Stats aggregates per-shard snapshots: occupancy and counters sum, height
// is the tallest shard.
func (f *Forest[R, K]) Stats() Stats {
	var agg Stats

	for _, shard := range f.shards {
		st := shard.Stats()

		agg.Size += st.Size
		agg.Capacity += st.Capacity
		agg.Free += st.Free
		agg.Height = max(agg.Height, st.Height)
		agg.Inserts += st.Inserts
		agg.Updates += st.Updates
		agg.Deletes += st.Deletes
		agg.Evictions += st.Evictions
		agg.Grows += st.Grows
	}

	return agg
}

// Hibernate parks all shards in parallel.
func (f *Forest[R, K]) Hibernate() {
	wg := sync.WaitGroup{}
	wg.Add(len(f.shards))

	for _, shard := range f.shards {
		go func(t *Tree[R, K]) {
			defer wg.Done()

			t.Hibernate()
		}(shard)
	}

	wg.Wait()
}

// Boot wakes all shards in parallel.
func (f *Forest[R, K]) Boot() {
	wg := sync.WaitGroup{}
	wg.Add(len(f.shards))

	for _, shard := range f.shards {
		go func(t *Tree[R, K]) {
			defer wg.Done()

			t.Boot()
		}(shard)
	}

	wg.Wait()
}
