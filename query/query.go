// Package query is a thin, uniform façade over rtree.Tree's query
// operations: instead of every caller writing its own result-shaping
// loop, a Getter picks how a matched item is
// projected into the caller's answer (a raw id, a (gid, section, segment)
// triple, a position, or a flat export record), and the *Slice helpers
// apply it across a whole result set.
package query

import (
	"github.com/bluebrain/spatial-index-go/geom"
	"github.com/bluebrain/spatial-index-go/ids"
	"github.com/bluebrain/spatial-index-go/rtree"
)

// Getter projects a matched item of type T into a result of type R. It is
// a plain function type rather than an interface: every concrete getter
// below is stateless, so there is nothing an interface method set would
// buy beyond what a function value already gives.
type Getter[T rtree.Indexable, R any] func(item T) R

// HasRawID is implemented by entry types with a single unstructured id
// (IndexedSphere, Synapse).
type HasRawID interface {
	RawID() uint64
}

// HasMorphID is implemented by entry types carrying a packed
// (gid, section, segment) id (Soma, Segment, MorphoEntry).
type HasMorphID interface {
	MorphID() (gid ids.Identifier, section, segment uint32)
}

// HasPosition is implemented by IndexedSphere, Soma, Segment, Synapse and
// MorphoEntry: it reports the point used to represent the entry for
// position-only queries.
type HasPosition interface {
	Position() geom.Point3D
}

// IDGetter returns a Getter projecting a HasRawID entry to its raw id.
func IDGetter[T interface {
	rtree.Indexable
	HasRawID
}]() Getter[T, uint64] {
	return func(item T) uint64 { return item.RawID() }
}

// GidSegmentTriple is the (gid, section, segment) result of GidSegmentGetter.
type GidSegmentTriple struct {
	Gid     ids.Identifier
	Section uint32
	Segment uint32
}

// GidSegmentGetter returns a Getter projecting a HasMorphID entry to its
// packed id fields.
func GidSegmentGetter[T interface {
	rtree.Indexable
	HasMorphID
}]() Getter[T, GidSegmentTriple] {
	return func(item T) GidSegmentTriple {
		gid, section, segment := item.MorphID()
		return GidSegmentTriple{Gid: gid, Section: section, Segment: segment}
	}
}

// PositionGetter returns a Getter projecting any HasPosition entry to its
// representative point.
func PositionGetter[T interface {
	rtree.Indexable
	HasPosition
}]() Getter[T, geom.Point3D] {
	return func(item T) geom.Point3D { return item.Position() }
}

// ExportRecord is a flat, POD-shaped projection suitable for bulk export
// (CSV/columnar dumps): every HasExportFields entry type (IndexedSphere,
// Soma, Segment, Synapse, MorphoEntry) can produce one regardless of its
// id shape, using 0 for section/segment where the entry has none.
type ExportRecord struct {
	ID      uint64
	Section uint32
	Segment uint32
	X, Y, Z geom.CoordType
	Radius  geom.CoordType
}

// HasExportFields is implemented by entry types that can describe
// themselves as an ExportRecord.
type HasExportFields interface {
	HasPosition
	ExportID() (id uint64, section, segment uint32)
	ExportRadius() geom.CoordType
}

// ExportRecordGetter returns a Getter projecting a HasExportFields entry
// to a flat ExportRecord.
func ExportRecordGetter[T interface {
	rtree.Indexable
	HasExportFields
}]() Getter[T, ExportRecord] {
	return func(item T) ExportRecord {
		id, section, segment := item.ExportID()
		p := item.Position()
		return ExportRecord{
			ID: id, Section: section, Segment: segment,
			X: p.X, Y: p.Y, Z: p.Z,
			Radius: item.ExportRadius(),
		}
	}
}

// FindIntersectingSlice runs tree.FindIntersecting and projects every
// match through get.
func FindIntersectingSlice[T rtree.Indexable, R any](tree *rtree.Tree[T], box geom.Box3D, mode geom.GeometryMode, exact func(T) bool, get Getter[T, R]) []R {
	matches := tree.FindIntersecting(box, mode, exact)
	out := make([]R, len(matches))
	for i, m := range matches {
		out[i] = get(m)
	}
	return out
}

// FindNearestSlice runs tree.FindNearest and projects every result
// through get.
func FindNearestSlice[T rtree.Indexable, R any](tree *rtree.Tree[T], k int, distSq func(T) geom.CoordType, id func(T) uint64, get Getter[T, R]) []R {
	matches := tree.FindNearest(k, distSq, id)
	out := make([]R, len(matches))
	for i, m := range matches {
		out[i] = get(m)
	}
	return out
}
