// Package llrb implements a left-leaning red-black tree whose nodes live in
// a flat arena of fixed-size slots instead of individually allocated heap
// objects. Records are addressed by dense uint32 indices, node bookkeeping
// sits in a parallel slot array, and reclaimed slots are recycled through an
// intrusive free list, so a long-lived tree reaches a steady state with zero
// allocations per operation.
//
// The tree is generic over the record type R and the key type K. A key
// extraction function projects the key out of a stored record and a
// three-way comparison function orders keys, so records never need to carry
// comparison logic themselves.
//
// Overflow behavior is chosen at construction time. By default the arena
// capacity is fixed and inserting into a full tree panics. WithGrowth
// reallocates the arena through a caller-supplied sizing callback, and
// WithEvictor frees one victim record per overflowing insert, which turns
// the tree into a bounded ordered cache. The two strategies are mutually
// exclusive.
//
// The implementation follows Sedgewick's 2008 formulation: red links lean
// left, color flips and rotations are applied bottom-up on the unwind of
// recursive insert and delete, and deletion transfers the in-order successor
// into the vacated position. Tree operations are not safe for concurrent
// use; wrap the tree in a Forest to shard load across goroutines.
package llrb

import "github.com/Sumatoshi-tech/slabtree/pkg/safeconv"

// defaultCapacity is the arena size used when no WithCapacity option is given.
const defaultCapacity = 64

// growthFloor is the smallest capacity DefaultGrowth will propose.
const growthFloor = 32

// Tree is an ordered index over records of type R keyed by K. The zero
// value is not usable; construct trees with New.
type Tree[R any, K any] struct {
	records []R
	slots   []slot

	root      Index
	firstFree Index
	size      int

	keyOf    func(*R) K
	compare  func(a, b K) int
	grow     func(current int) int
	evictor  Evictor[R]
	hooks    Hooks
	finalize func(*R)

	initialCap int
	parked     *hibernatedTree

	inserts   uint64
	updates   uint64
	deletes   uint64
	evictions uint64
	grows     uint64
}

// New builds a tree from a key extraction function and a three-way key
// comparison. compare must return a negative value when a orders before b,
// zero when the keys are equal and a positive value otherwise. Both
// functions are required; configuration mistakes, including a non-positive
// capacity or combining growth with eviction, panic here rather than
// surfacing later as a corrupt tree.
func New[R any, K any](keyOf func(*R) K, compare func(a, b K) int, opts ...Option[R, K]) *Tree[R, K] {
	if keyOf == nil {
		panic("llrb: a key extraction function is required")
	}

	if compare == nil {
		panic("llrb: a key comparison function is required")
	}

	t := &Tree[R, K]{
		root:       Nil,
		firstFree:  Nil,
		keyOf:      keyOf,
		compare:    compare,
		initialCap: defaultCapacity,
	}

	for _, opt := range opts {
		opt(t)
	}

	if t.initialCap <= 0 {
		panic("llrb: capacity must be positive")
	}

	if safeconv.MustIntToUint32(t.initialCap) == uint32(Nil) {
		panic("llrb: capacity overflows the index space")
	}

	if t.grow != nil && t.evictor != nil {
		panic("llrb: growth and eviction strategies are mutually exclusive")
	}

	t.records = make([]R, t.initialCap)
	t.slots = make([]slot, t.initialCap)
	t.linkFree(0, t.initialCap)

	return t
}

// Len reports the number of records currently stored in the tree.
func (t *Tree[R, K]) Len() int {
	return t.size
}

// Cap reports the current arena capacity in slots.
func (t *Tree[R, K]) Cap() int {
	if t.slots == nil && t.parked != nil {
		return t.parked.slotCount
	}

	return len(t.slots)
}

// Root returns the index of the tree root, or Nil for an empty tree.
func (t *Tree[R, K]) Root() Index {
	return t.root
}

// Key projects the key out of a record using the tree's extraction
// function.
func (t *Tree[R, K]) Key(rec *R) K {
	return t.keyOf(rec)
}

// Get returns the record stored at an occupied slot. The pointer stays
// valid until the next mutating operation; callers must not retain it
// across Insert, Delete, Clear or Hibernate. Passing Nil, an out-of-range
// index or a free slot panics.
func (t *Tree[R, K]) Get(i Index) *R {
	t.mustBeAwake()
	t.mustBeUsed(i)

	return &t.records[i]
}

// Left returns the left child of an occupied slot, or Nil.
func (t *Tree[R, K]) Left(i Index) Index {
	t.mustBeAwake()

	return t.mustBeUsed(i).left
}

// Right returns the right child of an occupied slot, or Nil.
func (t *Tree[R, K]) Right(i Index) Index {
	t.mustBeAwake()

	return t.mustBeUsed(i).right
}

// Find locates the slot holding the given key, or Nil when the key is not
// present.
func (t *Tree[R, K]) Find(key K) Index {
	t.mustBeAwake()

	return t.findIndex(key)
}

// Lookup combines Find and Get: it returns the record stored under key and
// whether the key was present at all. The pointer obeys the same lifetime
// rule as Get.
func (t *Tree[R, K]) Lookup(key K) (*R, bool) {
	t.mustBeAwake()

	i := t.findIndex(key)
	if i == Nil {
		return nil, false
	}

	return &t.records[i], true
}

// Minimum returns the index of the smallest key in the subtree rooted at
// from. Use Root to scan the whole tree. Passing Nil or a free slot panics.
func (t *Tree[R, K]) Minimum(from Index) Index {
	t.mustBeAwake()
	t.mustBeUsed(from)

	return t.minimum(from)
}

// Insert stores a record under the key extracted from it and returns the
// slot index the record landed on. When the key is already present, replace
// decides the outcome: true finalizes the old record and overwrites it in
// place, keeping the slot index; false leaves the tree unchanged and
// returns the occupant's index.
//
// When the arena is full and the key is new, the overflow strategy runs
// before the descent: a growing tree reallocates, an evicting tree frees
// one victim, and a fixed tree panics. On a tree that has seen no deletions
// successive inserts return incrementing indices starting at zero.
func (t *Tree[R, K]) Insert(rec R, replace bool) Index {
	t.mustBeAwake()

	key := t.keyOf(&rec)
	if t.size == len(t.slots) && t.findIndex(key) == Nil {
		t.makeRoom()
	}

	root, at := t.insertAt(t.root, &rec, key, replace)
	t.root = root
	t.slots[root].red = false

	return at
}

// Delete removes the record stored under key. Absent keys are a structural
// no-op: no callback runs and no slot changes state. The matched slot is
// the one released; when the node has two children the in-order successor
// is relinked into its place, so surviving records keep their indices.
func (t *Tree[R, K]) Delete(key K) {
	t.mustBeAwake()

	if t.findIndex(key) == Nil {
		return
	}

	t.deleteKey(key)
}

// DeleteMin removes the smallest record of the subtree rooted at from.
// Passing Nil selects the whole tree; an empty tree is a no-op. For an
// interior subtree the removal is routed through a keyed delete from the
// root so rebalancing stays coherent along the whole descent path.
func (t *Tree[R, K]) DeleteMin(from Index) {
	t.mustBeAwake()

	if from == Nil {
		from = t.root
	}

	if from == Nil {
		return
	}

	if from == t.root {
		t.prepareRemoval()

		t.root = t.deleteMinAt(t.root, true)
		if t.root != Nil {
			t.slots[t.root].red = false
		}

		t.deletes++

		return
	}

	t.mustBeUsed(from)
	t.deleteKey(t.keyAt(t.minimum(from)))
}

// deleteKey removes a key known to be present and restores the root color.
func (t *Tree[R, K]) deleteKey(key K) {
	t.prepareRemoval()

	t.root = t.deleteAt(t.root, key)
	if t.root != Nil {
		t.slots[t.root].red = false
	}

	t.deletes++
}

// prepareRemoval reddens a root with two black children so that the
// descent invariant of the removal transformations, a red node on or next
// to the current path, holds from the first step.
func (t *Tree[R, K]) prepareRemoval() {
	if !t.isRed(t.leftOf(t.root)) && !t.isRed(t.rightOf(t.root)) {
		t.slots[t.root].red = true
	}
}

// findIndex is the iterative search core shared by lookups and the insert
// pre-flight.
func (t *Tree[R, K]) findIndex(key K) Index {
	current := t.root

	for current != Nil {
		switch cmp := t.compare(key, t.keyAt(current)); {
		case cmp < 0:
			current = t.slots[current].left
		case cmp > 0:
			current = t.slots[current].right
		default:
			return current
		}
	}

	return Nil
}

// insertAt descends to the insertion point, occupies a slot for new keys or
// resolves the collision for existing ones, and rebalances on the unwind.
// It returns the new subtree root and the slot the record landed on.
func (t *Tree[R, K]) insertAt(h Index, rec *R, key K, replace bool) (root, at Index) {
	if h == Nil {
		at = t.occupyRecord(rec)

		return at, at
	}

	switch cmp := t.compare(key, t.keyAt(h)); {
	case cmp < 0:
		t.slots[h].left, at = t.insertAt(t.slots[h].left, rec, key, replace)
	case cmp > 0:
		t.slots[h].right, at = t.insertAt(t.slots[h].right, rec, key, replace)
	default:
		at = h

		if replace {
			if t.finalize != nil {
				t.finalize(&t.records[h])
			}

			t.records[h] = *rec
			t.updates++
		}
	}

	return t.fixup(h), at
}

// occupyRecord claims a slot, copies the record in and fires the insert
// hook. The hook runs after the copy, so it may inspect the record through
// Get.
func (t *Tree[R, K]) occupyRecord(rec *R) Index {
	i := t.occupy()
	t.records[i] = *rec

	if t.hooks.OnInsert != nil {
		t.hooks.OnInsert(i)
	}

	t.inserts++

	return i
}

// deleteAt removes key from the subtree rooted at h and returns the new
// subtree root. The key must be present in the subtree. A matched node with
// two children is spliced out by index transfer: the in-order successor is
// unlinked from the right subtree, adopts the node's children and color,
// and the matched slot is the one released.
func (t *Tree[R, K]) deleteAt(h Index, key K) Index {
	if t.compare(key, t.keyAt(h)) < 0 {
		if !t.isRed(t.leftOf(h)) && !t.isRed(t.leftOf(t.leftOf(h))) {
			h = t.moveRedLeft(h)
		}

		t.slots[h].left = t.deleteAt(t.slots[h].left, key)

		return t.fixup(h)
	}

	if t.isRed(t.leftOf(h)) {
		h = t.rotateRight(h)
	}

	if t.compare(key, t.keyAt(h)) == 0 && t.rightOf(h) == Nil {
		t.release(h)

		return Nil
	}

	if !t.isRed(t.rightOf(h)) && !t.isRed(t.leftOf(t.rightOf(h))) {
		h = t.moveRedRight(h)
	}

	if t.compare(key, t.keyAt(h)) == 0 {
		succ := t.minimum(t.slots[h].right)
		newRight := t.deleteMinAt(t.slots[h].right, false)

		s := &t.slots[succ]
		s.left = t.slots[h].left
		s.right = newRight
		s.red = t.slots[h].red

		t.release(h)
		h = succ
	} else {
		t.slots[h].right = t.deleteAt(t.slots[h].right, key)
	}

	return t.fixup(h)
}

// deleteMinAt unlinks the leftmost node of the subtree rooted at h, which
// must not be Nil. When free is false the node is only detached, not
// released; the successor splice in deleteAt relinks it afterwards.
func (t *Tree[R, K]) deleteMinAt(h Index, free bool) Index {
	if t.slots[h].left == Nil {
		if free {
			t.release(h)
		}

		return Nil
	}

	if !t.isRed(t.leftOf(h)) && !t.isRed(t.leftOf(t.leftOf(h))) {
		h = t.moveRedLeft(h)
	}

	t.slots[h].left = t.deleteMinAt(t.slots[h].left, free)

	return t.fixup(h)
}

// fixup restores the left-leaning invariants on the unwind of a recursive
// descent: right-leaning reds rotate left, two reds in a row rotate right,
// and a node with two red children flips colors.
func (t *Tree[R, K]) fixup(h Index) Index {
	if t.isRed(t.rightOf(h)) && !t.isRed(t.leftOf(h)) {
		h = t.rotateLeft(h)
	}

	if t.isRed(t.leftOf(h)) && t.isRed(t.leftOf(t.leftOf(h))) {
		h = t.rotateRight(h)
	}

	if t.isRed(t.leftOf(h)) && t.isRed(t.rightOf(h)) {
		t.colorFlip(h)
	}

	return h
}

// moveRedLeft pushes redness onto the left spine ahead of a removal descent
// that is about to step left into an all-black region.
func (t *Tree[R, K]) moveRedLeft(h Index) Index {
	t.colorFlip(h)

	if r := t.slots[h].right; r != Nil && t.isRed(t.slots[r].left) {
		t.slots[h].right = t.rotateRight(r)
		h = t.rotateLeft(h)
		t.colorFlip(h)
	}

	return h
}

// moveRedRight is the mirror of moveRedLeft for descents stepping right.
func (t *Tree[R, K]) moveRedRight(h Index) Index {
	t.colorFlip(h)

	if l := t.slots[h].left; l != Nil && t.isRed(t.slots[l].left) {
		h = t.rotateRight(h)
		t.colorFlip(h)
	}

	return h
}

// rotateLeft rotates the red link h->right to lean left. The new subtree
// root takes over h's color and h itself turns red.
func (t *Tree[R, K]) rotateLeft(h Index) Index {
	doAssert(t.isRed(t.rightOf(h)), "rotate-left requires a red right link")

	x := t.slots[h].right
	t.slots[h].right = t.slots[x].left
	t.slots[x].left = h
	t.slots[x].red = t.slots[h].red
	t.slots[h].red = true

	return x
}

// rotateRight rotates the red link h->left to lean right.
func (t *Tree[R, K]) rotateRight(h Index) Index {
	doAssert(t.isRed(t.leftOf(h)), "rotate-right requires a red left link")

	x := t.slots[h].left
	t.slots[h].left = t.slots[x].right
	t.slots[x].right = h
	t.slots[x].red = t.slots[h].red
	t.slots[h].red = true

	return x
}

// colorFlip toggles the colors of h and both of its children.
func (t *Tree[R, K]) colorFlip(h Index) {
	t.slots[h].red = !t.slots[h].red

	if l := t.slots[h].left; l != Nil {
		t.slots[l].red = !t.slots[l].red
	}

	if r := t.slots[h].right; r != Nil {
		t.slots[r].red = !t.slots[r].red
	}
}

// minimum walks the left spine of the subtree rooted at i, which must be an
// occupied index.
func (t *Tree[R, K]) minimum(i Index) Index {
	for t.slots[i].left != Nil {
		i = t.slots[i].left
	}

	return i
}

// keyAt projects the key out of the record stored at an occupied slot.
func (t *Tree[R, K]) keyAt(i Index) K {
	return t.keyOf(&t.records[i])
}

// isRed reports whether i is an occupied red slot. Nil is black by
// definition.
func (t *Tree[R, K]) isRed(i Index) bool {
	if i == Nil {
		return false
	}

	s := &t.slots[i]
	doAssert(s.state == slotUsed, "color read on a free slot")

	return s.red
}

// leftOf is a Nil-tolerant child accessor for the balancing engine.
func (t *Tree[R, K]) leftOf(i Index) Index {
	if i == Nil {
		return Nil
	}

	return t.slots[i].left
}

// rightOf is a Nil-tolerant child accessor for the balancing engine.
func (t *Tree[R, K]) rightOf(i Index) Index {
	if i == Nil {
		return Nil
	}

	return t.slots[i].right
}

// mustBeUsed panics unless i addresses an occupied slot, and returns it.
func (t *Tree[R, K]) mustBeUsed(i Index) *slot {
	doAssert(i != Nil, "Nil index dereference")
	doAssert(int(i) < len(t.slots), "index out of arena range")

	s := &t.slots[i]
	doAssert(s.state == slotUsed, "access to a free slot")

	return s
}

// mustBeAwake panics when the tree cannot serve operations: either its
// bookkeeping is parked in compressed form or the tree has been destroyed.
func (t *Tree[R, K]) mustBeAwake() {
	if t.slots != nil {
		return
	}

	if t.parked != nil {
		panic("llrb: tree is hibernated; call Boot before use")
	}

	panic("llrb: use of a destroyed tree")
}

// doAssert panics with the violated invariant when condition is false.
func doAssert(condition bool, msg string) {
	if !condition {
		panic("llrb: " + msg)
	}
}
