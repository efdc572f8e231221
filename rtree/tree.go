// Package rtree implements a bulk-loaded, static R-tree over any type
// satisfying Indexable. Trees are built once from a complete item set
// (BulkLoad) using sort-tile-recursion ordering plus flatbush-style
// bottom-up level construction; there is no incremental Insert. Trees are
// meant to be rebuilt wholesale when the underlying dataset changes.
//
// Queries take the query shape's own bounding box for tree descent (which
// is always a box/box test, regardless of geometry mode) plus a caller
// supplied exact predicate for the final candidate filter. This keeps the
// tree itself agnostic to what T actually is: geometric exactness lives in
// package geom and in the entry-specific Visit/Intersects methods, not
// here. The level-construction scheme is the flatbush style of bulk
// tree-building generalized from 2D Hilbert order to 3D STR order.
package rtree

import (
	"sync"
	"sync/atomic"

	"github.com/bluebrain/spatial-index-go/geom"
)

// node is one entry of the tree's flattened box array. For level 0
// (leaves) Index is the position of the item in Tree.items. For every
// level above, Index is the position in Tree.boxes where its children
// begin; children run contiguously up to the next node's Index or the end
// of that child level, whichever comes first.
type node struct {
	Box   geom.Box3D
	Index int
}

// boxStore backs Tree.boxes: an ordinary in-memory slice for a
// heap-built tree, or a decode-on-access view over a still-mapped byte
// range for an arena- or mmap-backed one, so a query only ever faults in
// the pages the nodes it actually visits live on.
type boxStore interface {
	Len() int
	At(i int) node
}

// itemStore backs Tree.items the same way boxStore backs Tree.boxes.
type itemStore[T Indexable] interface {
	Len() int
	At(i int) T
}

type sliceBoxStore []node

func (s sliceBoxStore) Len() int      { return len(s) }
func (s sliceBoxStore) At(i int) node { return s[i] }

type sliceItemStore[T Indexable] []T

func (s sliceItemStore[T]) Len() int   { return len(s) }
func (s sliceItemStore[T]) At(i int) T { return s[i] }

// closedFlag is a shared, atomic "has this tree's backing store been
// closed" bit. A plain heap-built Tree (from BulkLoad) has no backing
// store to close and carries a nil closedFlag, so its query methods pay
// only a nil check. A nil *closedFlag reports itself open, matching the
// heap-tree case.
type closedFlag struct{ v atomic.Bool }

func (c *closedFlag) isClosed() bool {
	return c != nil && c.v.Load()
}

func (c *closedFlag) close() {
	c.v.Store(true)
}

// Tree is a static, bulk-loaded R-tree over items of type T.
type Tree[T Indexable] struct {
	cfg         Config
	items       itemStore[T]
	boxes       boxStore
	levelBounds []int // cumulative node counts per level; levelBounds[0] == numItems
	numItems    int

	placeMu      sync.Mutex
	placeCursors map[geom.Box3D]geom.CoordType // region -> next scan coordinate along region's longest axis

	// closed is non-nil only for a tree loaded from a closeable backing
	// store (LoadFrom, LoadTreeFromArena, BulkLoadWithArena); every query
	// method that reaches into boxes/items panics once it is set, since
	// the byte range those stores decode from may already be unmapped.
	closed *closedFlag
}

// checkOpen panics if t is backed by a store that has been closed. Called
// at the entry point of every method that walks boxes/items, so a query
// against a closed mmap or arena fails loudly instead of reading through
// unmapped memory or silently returning stale data.
func (t *Tree[T]) checkOpen() {
	if t.closed.isClosed() {
		panic("rtree: use of Tree after its backing store was closed")
	}
}

// Len returns the number of items in the tree.
func (t *Tree[T]) Len() int { return t.numItems }

// Bounds returns the bounding box of the whole tree. The zero box is
// returned for an empty tree.
func (t *Tree[T]) Bounds() geom.Box3D {
	t.checkOpen()
	if t.boxes.Len() == 0 {
		return geom.Box3D{}
	}
	return t.boxes.At(t.boxes.Len() - 1).Box
}

// AllIDs returns every item in the tree, in internal storage order (STR
// leaf order, not insertion order — the tree has no insertion order).
func (t *Tree[T]) AllIDs() []T {
	t.checkOpen()
	out := make([]T, t.items.Len())
	for i := range out {
		out[i] = t.items.At(i)
	}
	return out
}

// BulkLoad builds a Tree from items in a single pass: items are ordered by
// 3-axis sort-tile-recursion (SerialSTRParamsFromHeuristic sized to
// cfg.FanOut leaves), then flatbush-style bottom-up level construction
// groups consecutive runs of cfg.FanOut nodes into each parent, up to a
// single root.
func BulkLoad[T Indexable](itemsIn []T, cfg Config) *Tree[T] {
	cfg = cfg.OrDefault()
	t := &Tree[T]{cfg: cfg}
	n := len(itemsIn)
	t.numItems = n
	if n == 0 {
		t.levelBounds = []int{0}
		t.items = sliceItemStore[T](nil)
		t.boxes = sliceBoxStore(nil)
		return t
	}

	params := SerialSTRParamsFromHeuristic(uint64(n), uint64(cfg.FanOut))
	tiles := PartitionSTR(itemsIn, params)
	items := make([]T, 0, n)
	for _, tile := range tiles {
		items = append(items, tile...)
	}
	t.items = sliceItemStore[T](items)

	fanOut := cfg.FanOut
	numNodes := n
	levelBounds := []int{n}
	m := n
	for m > 1 {
		m = (m + fanOut - 1) / fanOut
		numNodes += m
		levelBounds = append(levelBounds, numNodes)
	}
	t.levelBounds = levelBounds

	boxes := make([]node, n, numNodes)
	for i, it := range items {
		boxes[i] = node{Box: it.BoundingBox(), Index: i}
	}

	pos := 0
	for lvl := 0; lvl < len(levelBounds)-1; lvl++ {
		end := levelBounds[lvl]
		for pos < end {
			childStart := pos
			box := geom.InvertedBox()
			for j := 0; j < fanOut && pos < end; j++ {
				box.Extend(boxes[pos].Box.Min)
				box.Extend(boxes[pos].Box.Max)
				pos++
			}
			boxes = append(boxes, node{Box: box, Index: childStart})
		}
	}
	t.boxes = sliceBoxStore(boxes)
	return t
}
