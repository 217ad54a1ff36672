package llrb

import "github.com/Sumatoshi-tech/slabtree/pkg/safeconv"

// Index identifies a slot in the tree arena. Valid indices range over
// [0, Cap()); Nil marks the absence of a node.
type Index uint32

// Nil is the sentinel index meaning "no node here".
const Nil Index = ^Index(0)

// slotState tags the lifecycle of an arena slot. The tag decides which slot
// fields are meaningful: a free slot carries the next free-list link, an
// occupied slot carries tree links and a color.
type slotState uint8

const (
	slotFree slotState = iota
	slotUsed
)

// slot is the per-index bookkeeping record backing one arena position.
// Free slots keep their children at Nil and their color black so that the
// parked fields never leak stale tree state.
type slot struct {
	left  Index
	right Index
	next  Index
	state slotState
	red   bool
}

// markUsed turns a free slot into a freshly inserted leaf: red, no children.
func (s *slot) markUsed() {
	doAssert(s.state == slotFree, "occupying a slot that is not free")

	s.state = slotUsed
	s.left = Nil
	s.right = Nil
	s.next = Nil
	s.red = true
}

// markFree parks an occupied slot on the free list, chaining to the given head.
func (s *slot) markFree(next Index) {
	doAssert(s.state == slotUsed, "double release of a free slot")

	s.state = slotFree
	s.left = Nil
	s.right = Nil
	s.next = next
	s.red = false
}

// occupy pops the free-list head and turns it into a red leaf. Capacity must
// have been secured by the caller: an empty free list here means the
// overflow strategy was skipped, which is an internal invariant violation.
func (t *Tree[R, K]) occupy() Index {
	doAssert(t.firstFree != Nil, "arena free list exhausted mid-insert")

	i := t.firstFree
	s := &t.slots[i]
	t.firstFree = s.next
	s.markUsed()
	t.size++

	return i
}

// retire runs the release protocol for an occupied slot: size bookkeeping,
// then the finalizer, then the remove hook, each exactly once. The slot is
// not yet returned to the free list; release and Clear decide how.
func (t *Tree[R, K]) retire(i Index) {
	t.size--

	if t.finalize != nil {
		t.finalize(&t.records[i])
	}

	if t.hooks.OnRemove != nil {
		t.hooks.OnRemove(i)
	}

	var zero R

	t.records[i] = zero
}

// release retires an occupied slot and pushes it on the free-list head.
func (t *Tree[R, K]) release(i Index) {
	doAssert(i != Nil, "release of the Nil index")

	s := &t.slots[i]

	t.retire(i)
	s.markFree(t.firstFree)
	t.firstFree = i
}

// linkFree links the slot range [lo, hi) into the free list in ascending
// index order, chaining the last slot to the current head. Ascending order
// keeps allocation deterministic: on a tree that has seen no deletions,
// successive inserts return incrementing indices.
func (t *Tree[R, K]) linkFree(lo, hi int) {
	if hi <= lo {
		return
	}

	for i := lo; i < hi; i++ {
		t.slots[i] = slot{
			left:  Nil,
			right: Nil,
			next:  Index(i) + 1,
			state: slotFree,
		}
	}

	t.slots[hi-1].next = t.firstFree
	t.firstFree = Index(lo)
}

// growArena reallocates both arrays to the capacity returned by the growth
// callback and links the fresh slot range into the free list. Every index
// handed out before the growth remains valid afterwards.
func (t *Tree[R, K]) growArena() {
	oldCap := len(t.slots)

	newCap := t.grow(oldCap)
	if newCap <= oldCap {
		panic("llrb: growth callback returned a capacity that does not grow the arena")
	}

	if safeconv.MustIntToUint32(newCap) == uint32(Nil) {
		panic("llrb: growth callback overflows the index space")
	}

	records := make([]R, newCap)
	copy(records, t.records)
	t.records = records

	slots := make([]slot, newCap)
	copy(slots, t.slots)
	t.slots = slots

	t.linkFree(oldCap, newCap)
	t.grows++
}
