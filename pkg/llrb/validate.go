package llrb

import (
	"fmt"
	"strconv"
	"strings"
)

// Validate audits every structural invariant of the tree and the arena: the
// root is black, no red node has a red child, red links lean left, every
// root-to-leaf path crosses the same number of black nodes, in-order keys
// strictly ascend, the free list is acyclic and disjoint from the tree, and
// tree nodes plus free slots exactly cover the capacity. It reports the
// first violation found and is meant for tests and debugging, not for hot
// paths.
func (t *Tree[R, K]) Validate() error {
	t.mustBeAwake()

	if t.root == Nil && t.size != 0 {
		return fmt.Errorf("llrb: validate: empty tree reports size %d", t.size)
	}

	if t.root != Nil {
		if int(t.root) >= len(t.slots) {
			return fmt.Errorf("llrb: validate: root index %d out of arena range", t.root)
		}

		if t.slots[t.root].red {
			return fmt.Errorf("llrb: validate: root %d is red", t.root)
		}
	}

	seen := make([]bool, len(t.slots))

	count, _, err := t.auditNode(t.root, seen)
	if err != nil {
		return err
	}

	if count != t.size {
		return fmt.Errorf("llrb: validate: tree links %d nodes but size is %d", count, t.size)
	}

	if err := t.auditOrder(); err != nil {
		return err
	}

	free := 0

	for i := t.firstFree; i != Nil; i = t.slots[i].next {
		if int(i) >= len(t.slots) {
			return fmt.Errorf("llrb: validate: free list index %d out of arena range", i)
		}

		if t.slots[i].state != slotFree {
			return fmt.Errorf("llrb: validate: free list crosses occupied slot %d", i)
		}

		if seen[i] {
			return fmt.Errorf("llrb: validate: free list visits slot %d twice", i)
		}

		seen[i] = true
		free++
	}

	if count+free != len(t.slots) {
		return fmt.Errorf("llrb: validate: %d tree nodes and %d free slots do not cover capacity %d", count, free, len(t.slots))
	}

	return nil
}

// auditNode recursively checks slot states, red placement and black balance
// for the subtree rooted at h. It returns the node count and the black
// height of the subtree.
func (t *Tree[R, K]) auditNode(h Index, seen []bool) (count, blackHeight int, err error) {
	if h == Nil {
		return 0, 1, nil
	}

	if int(h) >= len(t.slots) {
		return 0, 0, fmt.Errorf("llrb: validate: tree links index %d out of arena range", h)
	}

	if t.slots[h].state != slotUsed {
		return 0, 0, fmt.Errorf("llrb: validate: tree links free slot %d", h)
	}

	if seen[h] {
		return 0, 0, fmt.Errorf("llrb: validate: slot %d linked twice", h)
	}

	seen[h] = true

	s := t.slots[h]

	if s.right != Nil && int(s.right) < len(t.slots) && t.slots[s.right].red {
		return 0, 0, fmt.Errorf("llrb: validate: red link leans right at slot %d", h)
	}

	if s.red && s.left != Nil && int(s.left) < len(t.slots) && t.slots[s.left].red {
		return 0, 0, fmt.Errorf("llrb: validate: two red links in a row at slot %d", h)
	}

	leftCount, leftBlack, err := t.auditNode(s.left, seen)
	if err != nil {
		return 0, 0, err
	}

	rightCount, rightBlack, err := t.auditNode(s.right, seen)
	if err != nil {
		return 0, 0, err
	}

	if leftBlack != rightBlack {
		return 0, 0, fmt.Errorf("llrb: validate: black height %d vs %d under slot %d", leftBlack, rightBlack, h)
	}

	blackHeight = leftBlack
	if !s.red {
		blackHeight++
	}

	return leftCount + rightCount + 1, blackHeight, nil
}

// auditOrder checks that an in-order walk yields strictly ascending keys.
func (t *Tree[R, K]) auditOrder() error {
	var (
		prev    K
		prevSet bool
		err     error
	)

	t.ForEach(func(i Index, rec *R) bool {
		key := t.keyOf(rec)

		if prevSet && t.compare(prev, key) >= 0 {
			err = fmt.Errorf("llrb: validate: keys out of order at slot %d", i)

			return false
		}

		prev = key
		prevSet = true

		return true
	})

	return err
}

// Dump renders the tree shape for debugging: one node per line in preorder,
// indented by depth, with the slot index, color and key.
func (t *Tree[R, K]) Dump() string {
	t.mustBeAwake()

	var b strings.Builder

	fmt.Fprintf(&b, "llrb size=%d cap=%d root=%s\n", t.size, len(t.slots), indexLabel(t.root))
	t.dumpNode(&b, t.root, 0)

	return b.String()
}

// dumpNode writes the subtree rooted at h in preorder.
func (t *Tree[R, K]) dumpNode(b *strings.Builder, h Index, depth int) {
	if h == Nil {
		return
	}

	color := "B"
	if t.slots[h].red {
		color = "R"
	}

	fmt.Fprintf(b, "%s[%s %s] key=%v\n", strings.Repeat("  ", depth), indexLabel(h), color, t.keyAt(h))

	t.dumpNode(b, t.slots[h].left, depth+1)
	t.dumpNode(b, t.slots[h].right, depth+1)
}

// indexLabel formats an index for diagnostics, spelling out Nil.
func indexLabel(i Index) string {
	if i == Nil {
		return "nil"
	}

	return strconv.FormatUint(uint64(i), 10)
}
