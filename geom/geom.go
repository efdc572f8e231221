// Package geom provides the geometric primitives and exact intersection
// predicates the spatial index is built on: points, axis-aligned boxes,
// spheres and capsule-cylinders.
//
// Coordinates use CoordType (float64 in this build; see CoordType for the
// precision note). Cylinders are treated as capsules for intersection
// purposes but as finite-axis cylinders for Contains — see Cylinder's
// doc comment.
package geom

import "math"

// CoordType is the scalar type used throughout the index. The build picks
// single or double precision once; this build uses double precision.
type CoordType = float64

// relEqualEpsilon is the relative tolerance used by Point3D.Equal, applied
// as epsilon * normSq(a).
const relEqualEpsilon = 1e-8

// Point3D is a 3-component point/vector.
type Point3D struct {
	X, Y, Z CoordType
}

// Pt is a small constructor to keep call sites terse.
func Pt(x, y, z CoordType) Point3D {
	return Point3D{X: x, Y: y, Z: z}
}

// Add returns p + o.
func (p Point3D) Add(o Point3D) Point3D {
	return Point3D{p.X + o.X, p.Y + o.Y, p.Z + o.Z}
}

// Sub returns p - o.
func (p Point3D) Sub(o Point3D) Point3D {
	return Point3D{p.X - o.X, p.Y - o.Y, p.Z - o.Z}
}

// Scale returns p * s.
func (p Point3D) Scale(s CoordType) Point3D {
	return Point3D{p.X * s, p.Y * s, p.Z * s}
}

// Dot returns the dot product of p and o.
func (p Point3D) Dot(o Point3D) CoordType {
	return p.X*o.X + p.Y*o.Y + p.Z*o.Z
}

// Cross returns the cross product of p and o.
func (p Point3D) Cross(o Point3D) Point3D {
	return Point3D{
		p.Y*o.Z - p.Z*o.Y,
		p.Z*o.X - p.X*o.Z,
		p.X*o.Y - p.Y*o.X,
	}
}

// NormSq returns the squared Euclidean norm of p.
func (p Point3D) NormSq() CoordType {
	return p.Dot(p)
}

// Norm returns the Euclidean norm of p.
func (p Point3D) Norm() CoordType {
	return math.Sqrt(p.NormSq())
}

// DistSq returns the squared distance between p and o.
func (p Point3D) DistSq(o Point3D) CoordType {
	d := p.Sub(o)
	return d.NormSq()
}

// Equal compares p and o with a tolerance relative to p's magnitude:
// dist(p,o)^2 < 1e-8 * normSq(p), or the two points are identical.
func (p Point3D) Equal(o Point3D) bool {
	d := p.DistSq(o)
	if d == 0 {
		return true
	}
	return d < relEqualEpsilon*p.NormSq()
}

// MinPt returns the componentwise minimum of a and b.
func MinPt(a, b Point3D) Point3D {
	return Point3D{math.Min(a.X, b.X), math.Min(a.Y, b.Y), math.Min(a.Z, b.Z)}
}

// MaxPt returns the componentwise maximum of a and b.
func MaxPt(a, b Point3D) Point3D {
	return Point3D{math.Max(a.X, b.X), math.Max(a.Y, b.Y), math.Max(a.Z, b.Z)}
}

// Box3D is an axis-aligned bounding box.
type Box3D struct {
	Min, Max Point3D
}

// InvertedBox returns a box primed for accumulation via Extend: its Min is
// math.MaxFloat64 and its Max is -math.MaxFloat64 on every axis.
func InvertedBox() Box3D {
	inf := math.MaxFloat64
	return Box3D{
		Min: Point3D{inf, inf, inf},
		Max: Point3D{-inf, -inf, -inf},
	}
}

// Extend grows b in place to also enclose p.
func (b *Box3D) Extend(p Point3D) {
	b.Min = MinPt(b.Min, p)
	b.Max = MaxPt(b.Max, p)
}

// Union returns the smallest box enclosing both b and o.
func (b Box3D) Union(o Box3D) Box3D {
	return Box3D{Min: MinPt(b.Min, o.Min), Max: MaxPt(b.Max, o.Max)}
}

// Intersects reports whether b and o overlap (touching counts as overlap).
func (b Box3D) Intersects(o Box3D) bool {
	return b.Min.X <= o.Max.X && o.Min.X <= b.Max.X &&
		b.Min.Y <= o.Max.Y && o.Min.Y <= b.Max.Y &&
		b.Min.Z <= o.Max.Z && o.Min.Z <= b.Max.Z
}

// Contains reports whether p lies within b (inclusive of the boundary).
func (b Box3D) Contains(p Point3D) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// Extent returns Max - Min componentwise.
func (b Box3D) Extent() Point3D {
	return b.Max.Sub(b.Min)
}

// LongestAxis returns the index (0=X, 1=Y, 2=Z) of b's longest side. Ties
// are broken toward the lowest axis index.
func (b Box3D) LongestAxis() int {
	e := b.Extent()
	axis, best := 0, e.X
	if e.Y > best {
		axis, best = 1, e.Y
	}
	if e.Z > best {
		axis = 2
	}
	return axis
}

// BoundingBox returns the degenerate box {p, p}, letting a bare point be
// used anywhere a query shape with a bounding box is expected.
func (p Point3D) BoundingBox() Box3D {
	return Box3D{Min: p, Max: p}
}

// BoundingBox returns b itself: a box query's bounding box is exact.
func (b Box3D) BoundingBox() Box3D {
	return b
}

// Coord returns the axis-th component of p (0=X, 1=Y, 2=Z).
func (p Point3D) Coord(axis int) CoordType {
	switch axis {
	case 0:
		return p.X
	case 1:
		return p.Y
	default:
		return p.Z
	}
}
