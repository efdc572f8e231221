package rtree

import (
	"sort"

	"github.com/bluebrain/spatial-index-go/geom"
)

// descend walks the tree depth-first, calling visit for every leaf item
// whose bounding box intersects box. visit returns false to stop the
// search early (used by IsIntersecting for short-circuiting).
func (t *Tree[T]) descend(box geom.Box3D, visit func(item T, itemBox geom.Box3D) bool) {
	t.checkOpen()
	if t.boxes.Len() == 0 {
		return
	}
	root := t.boxes.Len() - 1
	var stack []int
	stack = append(stack, root)
	for len(stack) > 0 {
		pos := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := t.boxes.At(pos)
		if !n.Box.Intersects(box) {
			continue
		}
		lvl := t.levelOf(pos)
		if lvl == 0 {
			if !visit(t.items.At(n.Index), n.Box) {
				return
			}
			continue
		}
		// Every non-last parent in a level owns exactly cfg.FanOut
		// contiguous children; only the level's last parent may own
		// fewer, which the levelBounds cap below accounts for.
		end := t.levelBounds[lvl-1]
		childStart := n.Index
		childEnd := childStart + t.cfg.FanOut
		if childEnd > end {
			childEnd = end
		}
		for c := childStart; c < childEnd; c++ {
			stack = append(stack, c)
		}
	}
}

// levelOf returns the level index (0 = leaves) that boxes position pos
// belongs to.
func (t *Tree[T]) levelOf(pos int) int {
	for lvl, bound := range t.levelBounds {
		if pos < bound {
			return lvl
		}
	}
	return len(t.levelBounds) - 1
}

// IsIntersecting reports whether any item's bounding box intersects box
// and, when mode is BestEffortGeometry, also passes exact. exact is
// ignored when mode is BoundingBoxGeometry (nil is fine in that case).
func (t *Tree[T]) IsIntersecting(box geom.Box3D, mode geom.GeometryMode, exact func(T) bool) bool {
	found := false
	t.descend(box, func(item T, _ geom.Box3D) bool {
		if mode == geom.BestEffortGeometry && exact != nil && !exact(item) {
			return true
		}
		found = true
		return false
	})
	return found
}

// FindIntersecting returns every item passing the query, in the order the
// depth-first descent reaches them (not internal storage order).
func (t *Tree[T]) FindIntersecting(box geom.Box3D, mode geom.GeometryMode, exact func(T) bool) []T {
	var out []T
	t.descend(box, func(item T, _ geom.Box3D) bool {
		if mode == geom.BestEffortGeometry && exact != nil && !exact(item) {
			return true
		}
		out = append(out, item)
		return true
	})
	return out
}

// CountIntersecting returns len(FindIntersecting(...)) without building
// the result slice.
func (t *Tree[T]) CountIntersecting(box geom.Box3D, mode geom.GeometryMode, exact func(T) bool) int {
	n := 0
	t.descend(box, func(item T, _ geom.Box3D) bool {
		if mode == geom.BestEffortGeometry && exact != nil && !exact(item) {
			return true
		}
		n++
		return true
	})
	return n
}

// CountIntersectingAggGid returns, for every matching item, a count keyed
// by aggGid(item). Different entry types aggregate under different keys
// (a morphology part aggregates under its own gid, a synapse aggregates
// under its post-synaptic gid) — aggGid is supplied by the caller so Tree
// itself stays agnostic to which.
func (t *Tree[T]) CountIntersectingAggGid(box geom.Box3D, mode geom.GeometryMode, exact func(T) bool, aggGid func(T) uint64) map[uint64]int {
	out := make(map[uint64]int)
	t.descend(box, func(item T, _ geom.Box3D) bool {
		if mode == geom.BestEffortGeometry && exact != nil && !exact(item) {
			return true
		}
		out[aggGid(item)]++
		return true
	})
	return out
}

// neighbor is one candidate in FindNearest's result heap.
type neighbor[T Indexable] struct {
	item   T
	distSq geom.CoordType
	id     uint64
}

// FindNearest returns up to k items in ascending order of distSq(item),
// breaking ties by the caller-supplied id (ascending) for determinism.
// distSq and id are supplied by the caller since Tree does not know how to
// measure distance to, or identify, an arbitrary T.
func (t *Tree[T]) FindNearest(k int, distSq func(T) geom.CoordType, id func(T) uint64) []T {
	t.checkOpen()
	if k <= 0 || t.numItems == 0 {
		return nil
	}
	cands := make([]neighbor[T], 0, t.numItems)
	for i := 0; i < t.items.Len(); i++ {
		it := t.items.At(i)
		cands = append(cands, neighbor[T]{item: it, distSq: distSq(it), id: id(it)})
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].distSq != cands[j].distSq {
			return cands[i].distSq < cands[j].distSq
		}
		return cands[i].id < cands[j].id
	})
	if k > len(cands) {
		k = len(cands)
	}
	out := make([]T, k)
	for i := 0; i < k; i++ {
		out[i] = cands[i].item
	}
	return out
}
