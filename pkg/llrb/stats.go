package llrb

// Stats is a point-in-time snapshot of tree occupancy and lifetime
// operation counters. Deletes counts structural removals of every origin,
// evictions included; Updates counts in-place replacements of an existing
// key.
type Stats struct {
	Size     int `json:"size"`
	Capacity int `json:"capacity"`
	Free     int `json:"free"`
	Height   int `json:"height"`

	Inserts   uint64 `json:"inserts"`
	Updates   uint64 `json:"updates"`
	Deletes   uint64 `json:"deletes"`
	Evictions uint64 `json:"evictions"`
	Grows     uint64 `json:"grows"`
}

// Stats snapshots the tree counters. The tree must be awake, since the
// height walk needs the slot array.
func (t *Tree[R, K]) Stats() Stats {
	t.mustBeAwake()

	return Stats{
		Size:      t.size,
		Capacity:  len(t.slots),
		Free:      len(t.slots) - t.size,
		Height:    t.height(t.root),
		Inserts:   t.inserts,
		Updates:   t.updates,
		Deletes:   t.deletes,
		Evictions: t.evictions,
		Grows:     t.grows,
	}
}

// height measures the longest root-to-leaf path in nodes.
func (t *Tree[R, K]) height(h Index) int {
	if h == Nil {
		return 0
	}

	return 1 + max(t.height(t.slots[h].left), t.height(t.slots[h].right))
}
