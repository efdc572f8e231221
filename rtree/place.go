package rtree

import "github.com/bluebrain/spatial-index-go/geom"

// Placeable is a shape that can be repositioned by Place: it reports its
// own fixed size and current centroid, and can be moved to a new one.
// geom.Sphere and geom.Cylinder satisfy this via pointer receivers.
type Placeable interface {
	// Extent returns the shape's fixed bounding-box size on every axis,
	// independent of where it is currently centred.
	Extent() geom.Point3D
	// Center returns the shape's current centroid.
	Center() geom.Point3D
	// SetCenter repositions the shape in place.
	SetCenter(c geom.Point3D)
	// BoundingBox returns the shape's current bounding box.
	BoundingBox() geom.Box3D
}

// Place attempts to position shape inside region such that its bounding
// box does not intersect any entry already in t, per mode/exact. The scan
// advances monotonically along region's longest axis in steps of shape's
// extent on that axis, holding the other two axes at region's midpoint;
// the first non-colliding position is kept (shape.SetCenter has already
// moved it there) and true is returned. If the axis is exhausted without
// finding a free position, shape is restored to its original centroid and
// false is returned.
//
// t remembers, per region, how far along the scan axis the last
// successful placement reached, so a second call with the same region
// (even for an unrelated shape) resumes past it rather than starting
// over — this is what makes repeated placements pack a region instead of
// repeatedly claiming the same first free slot.
func (t *Tree[T]) Place(region geom.Box3D, shape Placeable, mode geom.GeometryMode, exact func(T) bool) bool {
	axis := region.LongestAxis()
	other := [2]int{}
	switch axis {
	case 0:
		other = [2]int{1, 2}
	case 1:
		other = [2]int{0, 2}
	default:
		other = [2]int{0, 1}
	}

	step := shape.Extent().Coord(axis)
	if step <= 0 {
		return false
	}
	half := step / 2
	low := region.Min.Coord(axis) + half
	high := region.Max.Coord(axis) - half
	if high < low {
		return false
	}

	mid := [3]geom.CoordType{}
	regionMid := region.Min.Add(region.Max).Scale(0.5)
	mid[other[0]] = regionMid.Coord(other[0])
	mid[other[1]] = regionMid.Coord(other[1])

	t.placeMu.Lock()
	cur, ok := t.placeCursors[region]
	t.placeMu.Unlock()
	if !ok {
		cur = low
	}

	original := shape.Center()
	for cur <= high {
		candidate := [3]geom.CoordType{mid[0], mid[1], mid[2]}
		candidate[axis] = cur
		center := geom.Pt(candidate[0], candidate[1], candidate[2])
		shape.SetCenter(center)

		if !t.IsIntersecting(shape.BoundingBox(), mode, exact) {
			t.placeMu.Lock()
			if t.placeCursors == nil {
				t.placeCursors = map[geom.Box3D]geom.CoordType{}
			}
			t.placeCursors[region] = cur + step
			t.placeMu.Unlock()
			return true
		}
		cur += step
	}

	shape.SetCenter(original)
	t.placeMu.Lock()
	if t.placeCursors == nil {
		t.placeCursors = map[geom.Box3D]geom.CoordType{}
	}
	t.placeCursors[region] = cur
	t.placeMu.Unlock()
	return false
}
