package llrb

// initialWalkDepth sizes the traversal stack for trees up to roughly a
// million records before the first stack growth.
const initialWalkDepth = 32

// walkFrame is one suspended position of the in-order traversal: a subtree
// root and whether its left spine has already been emitted.
type walkFrame struct {
	node    Index
	emitted bool
}

// ForEach visits every record in ascending key order until fn returns
// false. The traversal uses an explicit growable stack, so arbitrarily deep
// trees walk in constant goroutine stack space. fn must not mutate the
// tree; collect indices first and mutate after the walk instead.
func (t *Tree[R, K]) ForEach(fn func(i Index, rec *R) bool) {
	t.mustBeAwake()

	if t.root == Nil {
		return
	}

	stack := make([]walkFrame, 0, initialWalkDepth)
	stack = append(stack, walkFrame{node: t.root})

	for len(stack) > 0 {
		top := &stack[len(stack)-1]

		if top.node == Nil {
			stack = stack[:len(stack)-1]

			continue
		}

		if !top.emitted {
			left := t.slots[top.node].left
			top.emitted = true
			stack = append(stack, walkFrame{node: left})

			continue
		}

		if !fn(top.node, &t.records[top.node]) {
			return
		}

		top.node = t.slots[top.node].right
		top.emitted = false
	}
}

// Clear removes every record, running finalizers and remove hooks in
// ascending key order, and rebuilds the free list in ascending slot order.
// The arena keeps its current capacity.
func (t *Tree[R, K]) Clear() {
	t.mustBeAwake()

	if t.size == 0 {
		return
	}

	occupied := make([]Index, 0, t.size)
	t.ForEach(func(i Index, _ *R) bool {
		occupied = append(occupied, i)

		return true
	})

	for _, i := range occupied {
		t.retire(i)
		t.slots[i].markFree(Nil)
	}

	t.root = Nil
	t.firstFree = Nil
	t.linkFree(0, len(t.slots))
}

// Destroy runs the release protocol over every still-occupied slot exactly
// once and drops the backing arrays. A hibernated tree is booted first so
// its finalizers can see their records. Destroying a destroyed tree is a
// no-op; any other use afterwards panics.
func (t *Tree[R, K]) Destroy() {
	if t.slots == nil && t.parked == nil {
		return
	}

	if t.parked != nil {
		t.Boot()
	}

	for i := range t.slots {
		if t.slots[i].state == slotUsed {
			t.retire(Index(i))
		}
	}

	t.records = nil
	t.slots = nil
	t.root = Nil
	t.firstFree = Nil
}
