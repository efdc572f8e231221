// Package ids implements the packed and tagged identifiers stored
// alongside geometry in the index: raw shape ids, synapse ids, and the
// bit-packed (gid, section, segment) morphology part id.
package ids

import (
	"errors"
	"fmt"
)

// Identifier is the raw 64-bit id type used throughout the index.
type Identifier = uint64

// Bit widths for MorphPartId packing: 14 bits segment, 14 bits section,
// the remaining 36 bits gid. These widths are load-bearing for the
// on-disk layout and must not change casually.
const (
	segmentBits = 14
	sectionBits = 14
	totalBits   = segmentBits + sectionBits
	gidBits     = 64 - totalBits
)

func maskBits(n uint) uint64 {
	return (uint64(1) << n) - 1
}

var (
	maskSegment = maskBits(segmentBits)
	maskSection = maskBits(sectionBits) << segmentBits
	maskGid     = maskBits(gidBits)
)

// ErrFieldOverflow is returned by NewMorphPartId when gid, section, or
// segment does not fit its allotted bit width.
var ErrFieldOverflow = errors.New("ids: field does not fit its packed width")

// ShapeId is the raw id payload wrapping a geometry-less identifier.
type ShapeId struct {
	ID Identifier
}

// SynapseId extends ShapeId with the pre/post-synaptic gid, kept for
// aggregate counting by gid.
type SynapseId struct {
	ShapeId
	PostGid Identifier
	PreGid  Identifier
}

// NewSynapseId constructs a SynapseId from its three components.
func NewSynapseId(synID, postGid, preGid Identifier) SynapseId {
	return SynapseId{ShapeId: ShapeId{ID: synID}, PostGid: postGid, PreGid: preGid}
}

// AggGid returns the gid a synapse is aggregated under when counting by
// gid: the post-synaptic gid, not the synapse's own id.
func (s SynapseId) AggGid() Identifier {
	return s.PostGid
}

// IsGidSafe reports whether gid fits in the bits reserved for it.
func IsGidSafe(gid Identifier) bool {
	return gid&^maskGid == 0
}

// IsSectionIDSafe reports whether sectionID fits in its reserved bits.
func IsSectionIDSafe(sectionID uint32) bool {
	return uint64(sectionID)&^maskBits(sectionBits) == 0
}

// IsSegmentIDSafe reports whether segmentID fits in its reserved bits.
func IsSegmentIDSafe(segmentID uint32) bool {
	return uint64(segmentID)&^maskBits(segmentBits) == 0
}

// MorphPartId packs gid (36 bits), section id (14 bits) and segment id
// (14 bits) into a single 64-bit ShapeId. Construction rejects any
// sub-field that overflows its width.
type MorphPartId struct {
	ShapeId
}

// NewMorphPartId packs gid/sectionID/segmentID into a MorphPartId,
// returning ErrFieldOverflow (naming the offending field) if any of them
// exceeds its bit width.
func NewMorphPartId(gid Identifier, sectionID, segmentID uint32) (MorphPartId, error) {
	if !IsGidSafe(gid) {
		return MorphPartId{}, fmt.Errorf("%w: gid %d exceeds %d bits", ErrFieldOverflow, gid, gidBits)
	}
	if !IsSectionIDSafe(sectionID) {
		return MorphPartId{}, fmt.Errorf("%w: section_id %d exceeds %d bits", ErrFieldOverflow, sectionID, sectionBits)
	}
	if !IsSegmentIDSafe(segmentID) {
		return MorphPartId{}, fmt.Errorf("%w: segment_id %d exceeds %d bits", ErrFieldOverflow, segmentID, segmentBits)
	}
	packed := (gid << totalBits) | (Identifier(sectionID) << segmentBits) | Identifier(segmentID)
	return MorphPartId{ShapeId: ShapeId{ID: packed}}, nil
}

// MustMorphPartId is NewMorphPartId but panics on overflow, for callers
// that construct ids from trusted, already-validated sources.
func MustMorphPartId(gid Identifier, sectionID, segmentID uint32) MorphPartId {
	m, err := NewMorphPartId(gid, sectionID, segmentID)
	if err != nil {
		panic(err)
	}
	return m
}

// Gid recovers the gid sub-field.
func (m MorphPartId) Gid() Identifier {
	return m.ID >> totalBits
}

// AggGid returns the gid a morphology part is aggregated under when
// counting by gid: its own gid sub-field.
func (m MorphPartId) AggGid() Identifier {
	return m.Gid()
}

// SectionID recovers the section id sub-field.
func (m MorphPartId) SectionID() uint32 {
	return uint32((m.ID & maskSection) >> segmentBits)
}

// SegmentID recovers the segment id sub-field.
func (m MorphPartId) SegmentID() uint32 {
	return uint32(m.ID & maskSegment)
}

// SubtreeId identifies one persisted STR subtree by its global index and
// the number of elements it holds.
type SubtreeId struct {
	Index     uint64
	NElements uint64
}
