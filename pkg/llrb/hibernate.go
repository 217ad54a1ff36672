package llrb

import (
	"slices"
	"sync"
)

// Plane order inside a hibernated tree.
const (
	planeLeft = iota
	planeRight
	planeColor
	planeFreeList
	planeCount
)

// hibernatedTree holds the compressed slot bookkeeping of a parked tree.
// Records stay resident in their arena positions; only the structural
// planes are squeezed.
type hibernatedTree struct {
	planes    [planeCount][]byte
	slotCount int
	freeCount int
}

// Hibernate compresses the slot bookkeeping with LZ4 and drops the slot
// array, shrinking an idle tree to its records plus a few small blobs. The
// slot fields are deinterleaved into per-field planes first, which compress
// far better than the interleaved struct layout, and the free list is
// stored as a delta-encoded ascending index vector, so booting relinks it
// in canonical order. Every operation except Len, Cap and Root panics until
// Boot runs. Hibernating an already hibernated tree panics.
func (t *Tree[R, K]) Hibernate() {
	if t.parked != nil {
		panic("llrb: cannot hibernate an already hibernated tree")
	}

	t.mustBeAwake()

	n := len(t.slots)
	parked := &hibernatedTree{slotCount: n}

	freeList := make([]uint32, 0, n-t.size)
	for i := t.firstFree; i != Nil; i = t.slots[i].next {
		freeList = append(freeList, uint32(i))
	}

	doAssert(len(freeList) == n-t.size, "free list does not match occupancy")

	slices.Sort(freeList)
	deltaEncodeUint32Slice(freeList)
	parked.freeCount = len(freeList)

	left := make([]uint32, n)
	right := make([]uint32, n)
	color := make([]uint32, n)

	for i := range t.slots {
		s := &t.slots[i]
		left[i] = uint32(s.left)
		right[i] = uint32(s.right)

		if s.red {
			color[i] = 1
		}
	}

	t.slots = nil
	t.firstFree = Nil

	planes := [planeCount][]uint32{planeLeft: left, planeRight: right, planeColor: color, planeFreeList: freeList}

	wg := &sync.WaitGroup{}
	wg.Add(planeCount)

	for idx, plane := range planes {
		go func(bufIdx int, buf []uint32) {
			parked.planes[bufIdx] = compressUint32Slice(buf)

			wg.Done()
		}(idx, plane)
	}

	wg.Wait()

	t.parked = parked
}

// Boot decompresses the slot bookkeeping of a hibernated tree and relinks
// the free list in ascending index order. Booting an awake tree is a no-op.
func (t *Tree[R, K]) Boot() {
	if t.parked == nil {
		return
	}

	parked := t.parked
	n := parked.slotCount

	var (
		planes  [planeCount][]uint32
		errs    [planeCount]error
		lengths = [planeCount]int{planeLeft: n, planeRight: n, planeColor: n, planeFreeList: parked.freeCount}
	)

	wg := &sync.WaitGroup{}
	wg.Add(planeCount)

	for idx := range planes {
		go func(bufIdx int) {
			planes[bufIdx] = make([]uint32, lengths[bufIdx])
			errs[bufIdx] = decompressUint32Slice(parked.planes[bufIdx], planes[bufIdx])

			wg.Done()
		}(idx)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			panic("llrb: boot: " + err.Error())
		}
	}

	slots := make([]slot, n)
	for i := range slots {
		slots[i] = slot{
			left:  Index(planes[planeLeft][i]),
			right: Index(planes[planeRight][i]),
			next:  Nil,
			state: slotUsed,
			red:   planes[planeColor][i] > 0,
		}
	}

	freeList := planes[planeFreeList]
	deltaDecodeUint32Slice(freeList)

	// Pushing in descending order leaves the list threaded ascending.
	firstFree := Nil
	for k := len(freeList) - 1; k >= 0; k-- {
		i := Index(freeList[k])
		slots[i] = slot{
			left:  Nil,
			right: Nil,
			next:  firstFree,
			state: slotFree,
		}
		firstFree = i
	}

	t.slots = slots
	t.firstFree = firstFree
	t.parked = nil
}
