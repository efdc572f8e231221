package rtree

import (
	"math"
	"sort"

	"github.com/bluebrain/spatial-index-go/geom"
)

// Indexable is anything a Tree can store: it must be able to report its
// own bounding box.
type Indexable interface {
	BoundingBox() geom.Box3D
}

// centroid returns the representative point STR sorts and tiles by: the
// midpoint of the item's bounding box.
func centroid(box geom.Box3D) geom.Point3D {
	return geom.Point3D{
		X: (box.Min.X + box.Max.X) / 2,
		Y: (box.Min.Y + box.Max.Y) / 2,
		Z: (box.Min.Z + box.Max.Z) / 2,
	}
}

// SerialSTRParams holds the number of sort-tile-recursion parts along each
// of the three axes, applied in order (x, then y within each x-strip,
// then z within each xy-tile).
type SerialSTRParams struct {
	NPartsPerDim [3]int
}

// NParts returns the total number of leaf tiles the partition produces.
func (p SerialSTRParams) NParts() int {
	return p.NPartsPerDim[0] * p.NPartsPerDim[1] * p.NPartsPerDim[2]
}

func ceilDivU64(a, b uint64) uint64 {
	if b == 0 {
		b = 1
	}
	return (a + b - 1) / b
}

// SerialSTRParamsFromHeuristic picks parts-per-dimension so that their
// product approximates ceil(nElements/maxPerLeaf), balanced across the
// three axes (each dimension's part count differs from the others by at
// most a small constant factor).
func SerialSTRParamsFromHeuristic(nElements, maxPerLeaf uint64) SerialSTRParams {
	if maxPerLeaf == 0 {
		maxPerLeaf = 1
	}
	total := ceilDivU64(nElements, maxPerLeaf)
	if total < 1 {
		total = 1
	}
	cube := math.Cbrt(float64(total))
	parts := [3]int{}
	for i := range parts {
		v := int(math.Round(cube))
		if v < 1 {
			v = 1
		}
		parts[i] = v
	}
	product := func() int { return parts[0] * parts[1] * parts[2] }
	for product() < int(total) {
		idx := 0
		for i := 1; i < 3; i++ {
			if parts[i] < parts[idx] {
				idx = i
			}
		}
		parts[idx]++
	}
	return SerialSTRParams{NPartsPerDim: parts}
}

// PartitionSTR runs the classical sequential sort-tile-recursion over
// items: sort by x and slice into params.NPartsPerDim[0] strips, sort each
// strip by y and slice into params.NPartsPerDim[1] sub-strips, sort each
// of those by z and slice into params.NPartsPerDim[2] final tiles. Each
// returned slice is one tile (a leaf partition / subtree), in the same
// relative spatial order the axes were processed in.
func PartitionSTR[T Indexable](items []T, params SerialSTRParams) [][]T {
	if len(items) == 0 {
		return nil
	}
	xStrips := sliceByAxis(items, 0, params.NPartsPerDim[0])
	var yTiles [][]T
	for _, strip := range xStrips {
		yTiles = append(yTiles, sliceByAxis(strip, 1, params.NPartsPerDim[1])...)
	}
	var zTiles [][]T
	for _, tile := range yTiles {
		zTiles = append(zTiles, sliceByAxis(tile, 2, params.NPartsPerDim[2])...)
	}
	return zTiles
}

// sliceByAxis sorts items by their centroid's axis-th coordinate (stable,
// so ties keep their relative order — this is what keeps repeated builds
// deterministic) and splits the result into n roughly-equal contiguous
// slices.
func sliceByAxis[T Indexable](items []T, axis, n int) [][]T {
	if n <= 1 || len(items) <= 1 {
		return [][]T{items}
	}
	cp := make([]T, len(items))
	copy(cp, items)
	sort.SliceStable(cp, func(i, j int) bool {
		return centroid(cp[i].BoundingBox()).Coord(axis) < centroid(cp[j].BoundingBox()).Coord(axis)
	})
	return splitEven(cp, n)
}

// splitEven splits items into up to n contiguous, roughly-equal slices.
// Never returns more slices than there are items.
func splitEven[T any](items []T, n int) [][]T {
	if n < 1 {
		n = 1
	}
	if n > len(items) {
		n = len(items)
	}
	if n <= 1 {
		return [][]T{items}
	}
	out := make([][]T, 0, n)
	base := len(items) / n
	rem := len(items) % n
	pos := 0
	for i := 0; i < n; i++ {
		size := base
		if i < rem {
			size++
		}
		if size == 0 {
			continue
		}
		out = append(out, items[pos:pos+size])
		pos += size
	}
	return out
}
