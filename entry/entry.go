// Package entry defines the variant types actually stored in the index:
// spheres and cylinders tagged with an id payload, plus two tagged
// unions (GeometryEntry, MorphoEntry) over those variants.
package entry

import (
	"github.com/bluebrain/spatial-index-go/geom"
	"github.com/bluebrain/spatial-index-go/ids"
)

// IndexedSphere is a sphere tagged with a raw ShapeId.
type IndexedSphere struct {
	ids.ShapeId
	geom.Sphere
}

// NewIndexedSphere constructs an IndexedSphere, propagating geometry
// construction errors.
func NewIndexedSphere(id ids.Identifier, centroid geom.Point3D, radius geom.CoordType) (IndexedSphere, error) {
	s, err := geom.NewSphere(centroid, radius)
	if err != nil {
		return IndexedSphere{}, err
	}
	return IndexedSphere{ShapeId: ids.ShapeId{ID: id}, Sphere: s}, nil
}

// BoundingBox implements Indexable.
func (e IndexedSphere) BoundingBox() geom.Box3D { return e.Sphere.BoundingBox() }

// RawID returns the entry's raw shape id.
func (e IndexedSphere) RawID() uint64 { return e.ID }

// Position returns the entry's representative point.
func (e IndexedSphere) Position() geom.Point3D { return e.Sphere.Centroid }

// ExportID returns the entry's id with section/segment left at 0: a
// sphere has no morphology sub-structure to report.
func (e IndexedSphere) ExportID() (id uint64, section, segment uint32) { return e.ID, 0, 0 }

// ExportRadius returns the sphere's radius.
func (e IndexedSphere) ExportRadius() geom.CoordType { return e.Sphere.Radius }

// Soma is a sphere tagged with a MorphPartId whose section/segment are 0.
type Soma struct {
	ids.MorphPartId
	geom.Sphere
}

// NewSoma constructs a Soma from a gid and geometry.
func NewSoma(gid ids.Identifier, centroid geom.Point3D, radius geom.CoordType) (Soma, error) {
	s, err := geom.NewSphere(centroid, radius)
	if err != nil {
		return Soma{}, err
	}
	m, err := ids.NewMorphPartId(gid, 0, 0)
	if err != nil {
		return Soma{}, err
	}
	return Soma{MorphPartId: m, Sphere: s}, nil
}

// BoundingBox implements Indexable.
func (e Soma) BoundingBox() geom.Box3D { return e.Sphere.BoundingBox() }

// MorphID returns the (gid, section, segment) triple packed into e's id.
func (e Soma) MorphID() (gid ids.Identifier, section, segment uint32) {
	return e.Gid(), e.SectionID(), e.SegmentID()
}

// Position returns the entry's representative point.
func (e Soma) Position() geom.Point3D { return e.Sphere.Centroid }

// ExportID returns the soma's packed id fields as (gid, section, segment).
func (e Soma) ExportID() (id uint64, section, segment uint32) {
	return e.Gid(), e.SectionID(), e.SegmentID()
}

// ExportRadius returns the soma's radius.
func (e Soma) ExportRadius() geom.CoordType { return e.Sphere.Radius }

// Segment is a cylinder tagged with a full (gid, section, segment) id.
type Segment struct {
	ids.MorphPartId
	geom.Cylinder
}

// NewSegment constructs a Segment from packed id fields and geometry.
func NewSegment(gid ids.Identifier, sectionID, segmentID uint32, p1, p2 geom.Point3D, radius geom.CoordType) (Segment, error) {
	c, err := geom.NewCylinder(p1, p2, radius)
	if err != nil {
		return Segment{}, err
	}
	m, err := ids.NewMorphPartId(gid, sectionID, segmentID)
	if err != nil {
		return Segment{}, err
	}
	return Segment{MorphPartId: m, Cylinder: c}, nil
}

// BoundingBox implements Indexable.
func (e Segment) BoundingBox() geom.Box3D { return e.Cylinder.BoundingBox() }

// MorphID returns the (gid, section, segment) triple packed into e's id.
func (e Segment) MorphID() (gid ids.Identifier, section, segment uint32) {
	return e.Gid(), e.SectionID(), e.SegmentID()
}

// Position returns the midpoint of the segment's axis.
func (e Segment) Position() geom.Point3D {
	return e.Cylinder.P1.Add(e.Cylinder.P2).Scale(0.5)
}

// ExportID returns the segment's packed id fields as (gid, section, segment).
func (e Segment) ExportID() (id uint64, section, segment uint32) {
	return e.Gid(), e.SectionID(), e.SegmentID()
}

// ExportRadius returns the segment's cylinder radius.
func (e Segment) ExportRadius() geom.CoordType { return e.Cylinder.Radius }

// Synapse is a zero-radius sphere tagged with a SynapseId.
type Synapse struct {
	ids.SynapseId
	geom.Sphere
}

// NewSynapse constructs a Synapse; its geometry is always a zero-radius
// sphere at point.
func NewSynapse(synID, postGid, preGid ids.Identifier, point geom.Point3D) Synapse {
	return Synapse{
		SynapseId: ids.NewSynapseId(synID, postGid, preGid),
		Sphere:    geom.Sphere{Centroid: point, Radius: 0},
	}
}

// BoundingBox implements Indexable.
func (e Synapse) BoundingBox() geom.Box3D { return e.Sphere.BoundingBox() }

// RawID returns the synapse's own id (not its aggregation key — see
// AggGid for that).
func (e Synapse) RawID() uint64 { return e.ID }

// Position returns the entry's representative point.
func (e Synapse) Position() geom.Point3D { return e.Sphere.Centroid }

// ExportID returns the synapse's own id, not its aggregation key, with
// section/segment left at 0.
func (e Synapse) ExportID() (id uint64, section, segment uint32) { return e.ID, 0, 0 }

// ExportRadius returns 0: synapses have no radius.
func (e Synapse) ExportRadius() geom.CoordType { return e.Sphere.Radius }

// GeometryEntry is a tagged union of Sphere | Cylinder, with no id
// payload. Exactly one of the two fields is meaningful, selected by Tag.
type GeometryEntry struct {
	Tag      GeometryTag
	Sphere   geom.Sphere
	Cylinder geom.Cylinder
}

// GeometryTag discriminates GeometryEntry's active field.
type GeometryTag int

const (
	// GeometryTagSphere selects GeometryEntry.Sphere.
	GeometryTagSphere GeometryTag = iota
	// GeometryTagCylinder selects GeometryEntry.Cylinder.
	GeometryTagCylinder
)

// SphereGeometry wraps a Sphere as a GeometryEntry.
func SphereGeometry(s geom.Sphere) GeometryEntry {
	return GeometryEntry{Tag: GeometryTagSphere, Sphere: s}
}

// CylinderGeometry wraps a Cylinder as a GeometryEntry.
func CylinderGeometry(c geom.Cylinder) GeometryEntry {
	return GeometryEntry{Tag: GeometryTagCylinder, Cylinder: c}
}

// Visit dispatches to onSphere or onCylinder depending on Tag, keeping
// callers to a single tag check per candidate rather than per-call
// dynamic dispatch.
func (g GeometryEntry) Visit(onSphere func(geom.Sphere), onCylinder func(geom.Cylinder)) {
	switch g.Tag {
	case GeometryTagSphere:
		onSphere(g.Sphere)
	default:
		onCylinder(g.Cylinder)
	}
}

// BoundingBox implements Indexable.
func (g GeometryEntry) BoundingBox() geom.Box3D {
	if g.Tag == GeometryTagSphere {
		return g.Sphere.BoundingBox()
	}
	return g.Cylinder.BoundingBox()
}

// MorphoEntry is a tagged union of Soma | Segment.
type MorphoEntry struct {
	Tag     MorphoTag
	Soma    Soma
	Segment Segment
}

// MorphoTag discriminates MorphoEntry's active field.
type MorphoTag int

const (
	// MorphoTagSoma selects MorphoEntry.Soma.
	MorphoTagSoma MorphoTag = iota
	// MorphoTagSegment selects MorphoEntry.Segment.
	MorphoTagSegment
)

// SomaEntry wraps a Soma as a MorphoEntry.
func SomaEntry(s Soma) MorphoEntry {
	return MorphoEntry{Tag: MorphoTagSoma, Soma: s}
}

// SegmentEntry wraps a Segment as a MorphoEntry.
func SegmentEntry(s Segment) MorphoEntry {
	return MorphoEntry{Tag: MorphoTagSegment, Segment: s}
}

// Visit dispatches to onSoma or onSegment depending on Tag.
func (m MorphoEntry) Visit(onSoma func(Soma), onSegment func(Segment)) {
	switch m.Tag {
	case MorphoTagSoma:
		onSoma(m.Soma)
	default:
		onSegment(m.Segment)
	}
}

// BoundingBox implements Indexable.
func (m MorphoEntry) BoundingBox() geom.Box3D {
	if m.Tag == MorphoTagSoma {
		return m.Soma.BoundingBox()
	}
	return m.Segment.BoundingBox()
}

// ID returns the inner MorphPartId regardless of which variant is active.
func (m MorphoEntry) ID() ids.MorphPartId {
	if m.Tag == MorphoTagSoma {
		return m.Soma.MorphPartId
	}
	return m.Segment.MorphPartId
}

// AggGid returns the gid m is aggregated under when counting by gid.
func (m MorphoEntry) AggGid() ids.Identifier {
	return m.ID().AggGid()
}

// MorphID returns the (gid, section, segment) triple of the active
// variant.
func (m MorphoEntry) MorphID() (gid ids.Identifier, section, segment uint32) {
	if m.Tag == MorphoTagSoma {
		return m.Soma.MorphID()
	}
	return m.Segment.MorphID()
}

// Position returns the representative point of the active variant.
func (m MorphoEntry) Position() geom.Point3D {
	if m.Tag == MorphoTagSoma {
		return m.Soma.Position()
	}
	return m.Segment.Position()
}

// ExportID returns the active variant's packed id fields.
func (m MorphoEntry) ExportID() (id uint64, section, segment uint32) {
	if m.Tag == MorphoTagSoma {
		return m.Soma.ExportID()
	}
	return m.Segment.ExportID()
}

// ExportRadius returns the active variant's radius.
func (m MorphoEntry) ExportRadius() geom.CoordType {
	if m.Tag == MorphoTagSoma {
		return m.Soma.ExportRadius()
	}
	return m.Segment.ExportRadius()
}

// Contains reports whether p lies within the active variant's geometry.
func (m MorphoEntry) Contains(p geom.Point3D) bool {
	if m.Tag == MorphoTagSoma {
		return m.Soma.Sphere.Contains(p)
	}
	return m.Segment.Cylinder.Contains(p)
}

// IntersectsSphere reports whether the active variant intersects s under
// the exact (best-effort) predicate.
func (m MorphoEntry) IntersectsSphere(s geom.Sphere) bool {
	if m.Tag == MorphoTagSoma {
		return m.Soma.Sphere.IntersectsSphere(s)
	}
	return s.IntersectsCylinder(m.Segment.Cylinder)
}

// IntersectsCylinder reports whether the active variant intersects c under
// the exact (best-effort) predicate.
func (m MorphoEntry) IntersectsCylinder(c geom.Cylinder) bool {
	if m.Tag == MorphoTagSoma {
		return m.Soma.Sphere.IntersectsCylinder(c)
	}
	return m.Segment.Cylinder.IntersectsCylinder(c)
}

// IndexedSubtreeBox is the bounding box of one persisted STR subtree,
// tagged with its global subtree index and element count.
type IndexedSubtreeBox struct {
	ids.SubtreeId
	Box geom.Box3D
}

// NewIndexedSubtreeBox constructs an IndexedSubtreeBox.
func NewIndexedSubtreeBox(subtreeIndex, nElements uint64, box geom.Box3D) IndexedSubtreeBox {
	return IndexedSubtreeBox{SubtreeId: ids.SubtreeId{Index: subtreeIndex, NElements: nElements}, Box: box}
}

// BoundingBox implements Indexable.
func (b IndexedSubtreeBox) BoundingBox() geom.Box3D { return b.Box }
