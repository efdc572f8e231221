package geom

import (
	"errors"
	"math"
)

// ErrNegativeRadius is returned when a shape is constructed with radius < 0.
var ErrNegativeRadius = errors.New("geom: radius must be non-negative")

// ErrDegenerateCylinder is returned when a cylinder's endpoints coincide.
var ErrDegenerateCylinder = errors.New("geom: cylinder endpoints must differ")

// Sphere is a ball defined by its centroid and radius.
type Sphere struct {
	Centroid Point3D
	Radius   CoordType
}

// NewSphere validates radius before constructing a Sphere.
func NewSphere(centroid Point3D, radius CoordType) (Sphere, error) {
	if radius < 0 {
		return Sphere{}, ErrNegativeRadius
	}
	return Sphere{Centroid: centroid, Radius: radius}, nil
}

// BoundingBox returns the axis-aligned box enclosing the sphere.
func (s Sphere) BoundingBox() Box3D {
	r := Point3D{s.Radius, s.Radius, s.Radius}
	return Box3D{Min: s.Centroid.Sub(r), Max: s.Centroid.Add(r)}
}

// Contains reports whether p lies within the sphere.
func (s Sphere) Contains(p Point3D) bool {
	return s.Centroid.DistSq(p) <= s.Radius*s.Radius
}

// IntersectsSphere reports whether s and o overlap: distance between
// centres <= sum of radii.
func (s Sphere) IntersectsSphere(o Sphere) bool {
	maxDist := s.Radius + o.Radius
	return s.Centroid.DistSq(o.Centroid) <= maxDist*maxDist
}

// Extent returns the sphere's fixed size on every axis (its diameter),
// independent of where it is currently centred.
func (s Sphere) Extent() Point3D {
	d := 2 * s.Radius
	return Point3D{X: d, Y: d, Z: d}
}

// Center returns the sphere's current centroid.
func (s Sphere) Center() Point3D { return s.Centroid }

// SetCenter repositions the sphere in place.
func (s *Sphere) SetCenter(c Point3D) { s.Centroid = c }

// Cylinder is a capsule for intersection purposes (hemispherical caps of
// the same radius at both ends) but a finite-axis cylinder for Contains.
// This dichotomy is the single most error-prone corner of the kernel;
// callers that need exact cylinder-vs-cylinder geometry outside of
// intersection tests must not rely on IntersectsCylinder/IntersectsSphere
// respecting flat caps.
type Cylinder struct {
	P1, P2 Point3D
	Radius CoordType
}

// NewCylinder validates radius and endpoint distinctness.
func NewCylinder(p1, p2 Point3D, radius CoordType) (Cylinder, error) {
	if radius < 0 {
		return Cylinder{}, ErrNegativeRadius
	}
	if p1 == p2 {
		return Cylinder{}, ErrDegenerateCylinder
	}
	return Cylinder{P1: p1, P2: p2, Radius: radius}, nil
}

// BoundingBox returns the axis-aligned box enclosing the capsule (endpoints
// inflated by radius on every axis, which safely encloses the caps too).
func (c Cylinder) BoundingBox() Box3D {
	r := Point3D{c.Radius, c.Radius, c.Radius}
	b := Box3D{Min: MinPt(c.P1, c.P2).Sub(r), Max: MaxPt(c.P1, c.P2).Add(r)}
	return b
}

// Extent returns the capsule's fixed bounding-box size, independent of
// where it is currently centred.
func (c Cylinder) Extent() Point3D {
	return c.BoundingBox().Extent()
}

// Center returns the midpoint of the cylinder's axis.
func (c Cylinder) Center() Point3D {
	return c.P1.Add(c.P2).Scale(0.5)
}

// SetCenter repositions the cylinder in place, preserving its axis
// direction and length.
func (c *Cylinder) SetCenter(center Point3D) {
	half := c.P2.Sub(c.P1).Scale(0.5)
	c.P1 = center.Sub(half)
	c.P2 = center.Add(half)
}

// Contains reports whether p lies within the finite-axis cylinder (flat
// caps, no hemispherical extension) — see the type doc for why this
// differs from the capsule treatment used by the Intersects* predicates.
func (c Cylinder) Contains(p Point3D) bool {
	axis := c.P2.Sub(c.P1)
	rel := p.Sub(c.P1)
	dot := rel.Dot(axis)
	axisLenSq := axis.NormSq()
	if dot < 0 || dot > axisLenSq {
		return false
	}
	distSq := rel.NormSq() - dot*dot/axisLenSq
	return distSq <= c.Radius*c.Radius
}

// clamp restricts x to [low, high].
func clamp(x, low, high CoordType) CoordType {
	return math.Min(math.Max(x, low), high)
}

// ProjectPointOntoLine projects x onto the infinite line through base with
// direction dir.
func ProjectPointOntoLine(base, dir, x Point3D) Point3D {
	dirDotDir := dir.Dot(dir)
	xDotDir := x.Sub(base).Dot(dir)
	return base.Add(dir.Scale(xDotDir / dirDotDir))
}

// ProjectPointOntoSegment projects x onto the segment [base, base+dir].
func ProjectPointOntoSegment(base, dir, x Point3D) Point3D {
	dirDotDir := dir.NormSq()
	xDotDir := x.Sub(base).Dot(dir)
	xRel := clamp(xDotDir/dirDotDir, 0, 1)
	return base.Add(dir.Scale(xRel))
}

// IntersectsSphere reports whether the capsule c and sphere s overlap.
func (c Cylinder) IntersectsSphere(s Sphere) bool {
	return s.IntersectsCylinder(c)
}

// IntersectsCylinder reports whether the sphere s and the capsule c
// overlap. Swapping p1/p2 never changes the result (the algorithm only
// ever compares the sphere to the closer of the two caps).
func (s Sphere) IntersectsCylinder(c Cylinder) bool {
	u := s.Centroid.Sub(c.P1)
	v := c.P2.Sub(c.P1)

	vDotU := v.Dot(u)
	vDotV := v.NormSq()

	maxDistance := s.Radius + c.Radius
	maxDistanceSq := maxDistance * maxDistance

	if vDotU >= 0 && vDotU <= vDotV {
		// The sphere centre projects onto the axis segment: treat the
		// cylinder as infinite and compare perpendicular distance.
		distSq := u.NormSq() - vDotU*vDotU/vDotV
		return distSq <= maxDistanceSq
	}

	closerCap := c.P2
	if vDotU < 0 {
		closerCap = c.P1
	}

	if s.Centroid.DistSq(closerCap) > maxDistanceSq {
		return false
	}

	// Project the sphere centre onto the cap plane, then find the point on
	// the cap's diameter (in the direction toward the sphere) nearest the
	// sphere centre.
	p := c.P1.Add(v.Scale(vDotU / vDotV))
	d := s.Centroid.Sub(p)
	dNorm := d.Norm()

	var closestOnCap Point3D
	if dNorm < 100*epsilon {
		closestOnCap = closerCap
	} else {
		dUnit := d.Scale(1 / dNorm)
		segBase := closerCap.Sub(dUnit.Scale(c.Radius))
		segDir := dUnit.Scale(2 * c.Radius)
		closestOnCap = ProjectPointOntoSegment(segBase, segDir, s.Centroid)
	}

	return s.Centroid.DistSq(closestOnCap) <= s.Radius*s.Radius
}

// epsilon is a single-precision-scale tolerance: the branch it guards
// only needs to catch "sphere centre lies on the cylinder axis" so the
// exact ULP doesn't matter, only that it stays small relative to typical
// circuit coordinates (microns).
const epsilon = 1.1920929e-7

// distanceSegmentSegment returns the minimum distance between segments
// [s1p0, s1p1] and [s2p0, s2p1], including the near-parallel branch and
// four edge clamps a general segment-segment distance test needs.
func distanceSegmentSegment(s1p0, s1p1, s2p0, s2p1 Point3D) CoordType {
	u := s1p1.Sub(s1p0)
	v := s2p1.Sub(s2p0)
	w := s1p0.Sub(s2p0)
	a := u.Dot(u)
	b := u.Dot(v)
	c := v.Dot(v)
	d := u.Dot(w)
	e := v.Dot(w)
	D := a*c - b*b
	const segEpsilon = 1e-6

	var sN, sD = CoordType(0), D
	var tN, tD = CoordType(0), D

	if D < segEpsilon {
		sN, sD = 0, 1
		tN, tD = e, c
	} else {
		sN = b*e - c*d
		tN = a*e - b*d
		if sN < 0 {
			sN, tN, tD = 0, e, c
		} else if sN > sD {
			sN, tN, tD = sD, e+b, c
		}
	}

	if tN < 0 {
		tN = 0
		switch {
		case -d < 0:
			sN = 0
		case -d > a:
			sN = sD
		default:
			sN, sD = -d, a
		}
	} else if tN > tD {
		tN = tD
		switch {
		case (-d + b) < 0:
			sN = 0
		case (-d + b) > a:
			sN = sD
		default:
			sN, sD = -d+b, a
		}
	}

	sc := CoordType(0)
	if math.Abs(sN) >= segEpsilon {
		sc = sN / sD
	}
	tc := CoordType(0)
	if math.Abs(tN) >= segEpsilon {
		tc = tN / tD
	}

	dP := w.Add(u.Scale(sc)).Sub(v.Scale(tc))
	return dP.Norm()
}

// IntersectsCylinder reports whether capsules c and o overlap: minimum
// distance between their axis segments <= sum of radii.
func (c Cylinder) IntersectsCylinder(o Cylinder) bool {
	minDist := distanceSegmentSegment(c.P1, c.P2, o.P1, o.P2)
	return minDist <= c.Radius+o.Radius
}

// GeometryMode selects between the fast bounding-box query predicate and
// the exact per-shape predicate.
type GeometryMode int

const (
	// BoundingBoxGeometry treats a query as matching if the stored entry's
	// bounding box intersects the query shape's bounding box. Fast, may
	// admit false positives for cylinders (the default).
	BoundingBoxGeometry GeometryMode = iota
	// BestEffortGeometry applies the exact predicates in this file.
	BestEffortGeometry
)
