package llrb

// Option configures a Tree during construction.
type Option[R any, K any] func(*Tree[R, K])

// Hooks observe slot lifecycle transitions. OnInsert fires right after a
// slot becomes occupied, with the record already in place. OnRemove fires
// while a slot is being released, after the finalizer and before the slot
// returns to the free list. Hooks must not mutate the tree.
type Hooks struct {
	OnInsert func(i Index)
	OnRemove func(i Index)
}

// Evictor selects the record sacrificed when an insert hits a full arena.
// Begin resets the selection state, Visit sees every occupied slot in
// ascending key order and may return true to short-circuit the scan, and
// Pick names the victim. Pick must return an occupied index.
type Evictor[R any] interface {
	Begin()
	Visit(i Index, rec *R) bool
	Pick() Index
}

// DefaultGrowth is the stock sizing callback for WithGrowth: half again the
// current capacity, but never less than the growth floor. It is exported so
// custom callbacks can fall back to it for ordinary sizes.
func DefaultGrowth(current int) int {
	grown := current + current/2
	if grown < growthFloor {
		return growthFloor
	}

	return grown
}

// WithCapacity sets the initial arena capacity in slots. Without this
// option the tree starts with 64 slots. New panics when n is not positive.
func WithCapacity[R any, K any](n int) Option[R, K] {
	return func(t *Tree[R, K]) {
		t.initialCap = n
	}
}

// WithGrowth makes the tree reallocate its arena when an insert overflows,
// asking the callback for the next capacity. The callback receives the
// current capacity and must return a strictly larger one; DefaultGrowth is
// a reasonable choice. Mutually exclusive with WithEvictor.
func WithGrowth[R any, K any](next func(current int) int) Option[R, K] {
	return func(t *Tree[R, K]) {
		if next == nil {
			panic("llrb: WithGrowth requires a sizing callback")
		}

		t.grow = next
	}
}

// WithEvictor caps the tree at its initial capacity and frees one victim
// record per overflowing insert, chosen by the evictor. The victim is
// removed through the normal delete path, so its finalizer and the remove
// hook run and the tree stays balanced. Mutually exclusive with WithGrowth.
func WithEvictor[R any, K any](ev Evictor[R]) Option[R, K] {
	return func(t *Tree[R, K]) {
		if ev == nil {
			panic("llrb: WithEvictor requires an evictor")
		}

		t.evictor = ev
	}
}

// WithHooks installs slot lifecycle observers.
func WithHooks[R any, K any](hooks Hooks) Option[R, K] {
	return func(t *Tree[R, K]) {
		t.hooks = hooks
	}
}

// WithFinalizer installs a destructor that runs exactly once for every
// record leaving the tree: on delete, eviction, replacement, Clear and
// Destroy. The finalizer sees the record before the slot is recycled.
func WithFinalizer[R any, K any](fin func(*R)) Option[R, K] {
	return func(t *Tree[R, K]) {
		if fin == nil {
			panic("llrb: WithFinalizer requires a finalizer")
		}

		t.finalize = fin
	}
}

// makeRoom applies the overflow strategy before an insert descends into a
// full arena. Fixed-capacity trees treat overflow as a programming error.
func (t *Tree[R, K]) makeRoom() {
	switch {
	case t.grow != nil:
		t.growArena()
	case t.evictor != nil:
		t.evictOne()
	default:
		panic("llrb: arena is full and the tree has no growth or eviction strategy")
	}
}

// evictOne runs one full eviction round: scan, pick, structural delete.
func (t *Tree[R, K]) evictOne() {
	ev := t.evictor

	ev.Begin()
	t.ForEach(func(i Index, rec *R) bool {
		return !ev.Visit(i, rec)
	})

	victim := ev.Pick()
	doAssert(victim != Nil, "evictor picked the Nil index")
	doAssert(int(victim) < len(t.slots), "evictor picked an index out of arena range")
	doAssert(t.slots[victim].state == slotUsed, "evictor picked a free slot")

	t.deleteKey(t.keyAt(victim))
	t.evictions++
}
