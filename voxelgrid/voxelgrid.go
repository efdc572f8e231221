// Package voxelgrid implements a uniform spatial hash grid: a coarse,
// approximate alternative to rtree.Tree that buckets items by the voxel(s)
// their bounding box touches. It trades exact geometry for O(1) bucket
// lookup and is meant for broad-phase filtering ahead of an exact test,
// not as a replacement for the R-tree.
package voxelgrid

import "github.com/bluebrain/spatial-index-go/geom"

// VoxelCoord is a voxel's integer grid coordinate.
type VoxelCoord [3]int

// SpatialGrid buckets values of type T by voxel. VoxelLen is the edge
// length of a cubic voxel; it is fixed for the grid's lifetime.
type SpatialGrid[T any] struct {
	VoxelLen geom.CoordType
	buckets  map[VoxelCoord][]T
}

// NewSpatialGrid constructs an empty grid with the given voxel edge
// length. voxelLen must be positive.
func NewSpatialGrid[T any](voxelLen geom.CoordType) *SpatialGrid[T] {
	return &SpatialGrid[T]{VoxelLen: voxelLen, buckets: make(map[VoxelCoord][]T)}
}

func floorDiv(v, len geom.CoordType) int {
	q := v / len
	f := int(q)
	if q < 0 && geom.CoordType(f) != q {
		f--
	}
	return f
}

func (g *SpatialGrid[T]) voxelOf(p geom.Point3D) VoxelCoord {
	return VoxelCoord{
		floorDiv(p.X, g.VoxelLen),
		floorDiv(p.Y, g.VoxelLen),
		floorDiv(p.Z, g.VoxelLen),
	}
}

// Insert files value under the voxel of bbox.Min and, if it differs, the
// voxel of bbox.Max — at most two voxels, even when bbox also touches
// others (up to eight for a box crossing a voxel boundary on every axis).
// This is the grid's approximate, broad-phase nature: a value never
// appears twice in the same voxel, but it can appear in two voxels, so
// readers enumerating several voxels must deduplicate.
func (g *SpatialGrid[T]) Insert(bbox geom.Box3D, value T) {
	minV := g.voxelOf(bbox.Min)
	maxV := g.voxelOf(bbox.Max)
	g.buckets[minV] = append(g.buckets[minV], value)
	if maxV != minV {
		g.buckets[maxV] = append(g.buckets[maxV], value)
	}
}

// Voxels returns the values filed under coord, or nil if coord is empty.
func (g *SpatialGrid[T]) Voxels(coord VoxelCoord) []T {
	return g.buckets[coord]
}

// Size returns the total number of elements filed across every voxel,
// including the duplicate entry Insert files for a bbox that straddles
// two voxels — not the number of occupied voxels.
func (g *SpatialGrid[T]) Size() int {
	n := 0
	for _, bucket := range g.buckets {
		n += len(bucket)
	}
	return n
}

// Merge folds other's buckets into g, appending other's values after g's
// existing values in every voxel they share (left-then-right order,
// mirroring an operator+= that concatenates rather than dedups).
func (g *SpatialGrid[T]) Merge(other *SpatialGrid[T]) {
	for coord, vals := range other.buckets {
		g.buckets[coord] = append(g.buckets[coord], vals...)
	}
}

// VoxelCoordsForBox returns every voxel coordinate bbox's min/max corners
// occupy (one or two, per Insert's rule) — useful for callers that want to
// probe a grid built by Insert without duplicating its bucketing logic.
func (g *SpatialGrid[T]) VoxelCoordsForBox(bbox geom.Box3D) []VoxelCoord {
	minV := g.voxelOf(bbox.Min)
	maxV := g.voxelOf(bbox.Max)
	if maxV == minV {
		return []VoxelCoord{minV}
	}
	return []VoxelCoord{minV, maxV}
}
