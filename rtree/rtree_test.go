package rtree

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bluebrain/spatial-index-go/entry"
	"github.com/bluebrain/spatial-index-go/geom"
	"github.com/bluebrain/spatial-index-go/ids"
)

func mustSphereEntry(t *testing.T, id uint64, c geom.Point3D, r geom.CoordType) entry.IndexedSphere {
	t.Helper()
	e, err := entry.NewIndexedSphere(id, c, r)
	require.NoError(t, err)
	return e
}

// TestBasicSphereTreeScenario mirrors the literal three-sphere fixture:
// centres (0,0,0),(10,0,0),(20,0,0) with radii 2,2.5,4, probed with a
// radius-2 sphere at four points.
func TestBasicSphereTreeScenario(t *testing.T) {
	items := []entry.IndexedSphere{
		mustSphereEntry(t, 0, geom.Pt(0, 0, 0), 2),
		mustSphereEntry(t, 1, geom.Pt(10, 0, 0), 2.5),
		mustSphereEntry(t, 2, geom.Pt(20, 0, 0), 4),
	}
	tree := BulkLoad(items, DefaultConfig())
	require.Equal(t, 3, tree.Len())

	probes := []geom.Point3D{
		geom.Pt(15, 0, 0),
		geom.Pt(5, 0, 0),
		geom.Pt(0, -3, 0),
		geom.Pt(0, 6, 0),
	}
	want := []bool{true, false, true, false}
	probeRadius := geom.CoordType(2)

	for i, p := range probes {
		probe, err := geom.NewSphere(p, probeRadius)
		require.NoError(t, err)
		exact := func(e entry.IndexedSphere) bool { return e.Sphere.IntersectsSphere(probe) }
		got := tree.IsIntersecting(probe.BoundingBox(), geom.BestEffortGeometry, exact)
		require.Equalf(t, want[i], got, "probe %d (%v)", i, p)
	}
}

// TestSynapseTreeAggregatesByPostGid mirrors the SynapseTree scenario:
// synapses (id,post_gid,pre_gid) = (0,1,0),(1,2,1),(2,2,1), aggregation by
// post-synaptic gid rather than by the synapse's own id.
func TestSynapseTreeAggregatesByPostGid(t *testing.T) {
	c := geom.Pt(5, 0, 0)
	items := []entry.Synapse{
		entry.NewSynapse(0, 1, 0, c),
		entry.NewSynapse(1, 2, 1, c),
		entry.NewSynapse(2, 2, 1, geom.Pt(20, 0, 0)),
	}
	tree := BulkLoad(items, DefaultConfig())

	agg := func(box geom.Box3D) map[uint64]int {
		return tree.CountIntersectingAggGid(box, geom.BoundingBoxGeometry, nil, func(s entry.Synapse) uint64 {
			return s.AggGid()
		})
	}

	narrow := geom.Box3D{Min: geom.Pt(-1, -1, -1), Max: geom.Pt(11, 1, 1)}
	got := agg(narrow)
	require.Equal(t, 2, tree.CountIntersecting(narrow, geom.BoundingBoxGeometry, nil))
	require.Equal(t, map[uint64]int{1: 1, 2: 1}, got)

	wide := geom.Box3D{Min: geom.Pt(-1, -1, -1), Max: geom.Pt(21, 1, 1)}
	got = agg(wide)
	require.Equal(t, 3, tree.CountIntersecting(wide, geom.BoundingBoxGeometry, nil))
	require.Equal(t, map[uint64]int{1: 1, 2: 2}, got)
}

func mustSegment(t *testing.T, gid ids.Identifier, section, segment uint32, p1, p2 geom.Point3D, r geom.CoordType) entry.Segment {
	t.Helper()
	s, err := entry.NewSegment(gid, section, segment, p1, p2, r)
	require.NoError(t, err)
	return s
}

// TestMixedMorphoTreeDispatchesByTag builds a tree of MorphoEntry mixing
// somas and segments and checks that intersection dispatch picks the
// right predicate per tag.
func TestMixedMorphoTreeDispatchesByTag(t *testing.T) {
	soma, err := entry.NewSoma(7, geom.Pt(0, 0, 0), 3)
	require.NoError(t, err)
	seg := mustSegment(t, 7, 1, 0, geom.Pt(0, 0, 0), geom.Pt(10, 0, 0), 1)

	items := []entry.MorphoEntry{
		entry.SomaEntry(soma),
		entry.SegmentEntry(seg),
	}
	tree := BulkLoad(items, DefaultConfig())
	require.Equal(t, 2, tree.Len())

	probe, err := geom.NewSphere(geom.Pt(5, 0, 0), 0.5)
	require.NoError(t, err)
	exact := func(m entry.MorphoEntry) bool { return m.IntersectsSphere(probe) }
	got := tree.FindIntersecting(probe.BoundingBox(), geom.BestEffortGeometry, exact)
	require.Len(t, got, 1)
	require.Equal(t, entry.MorphoTagSegment, got[0].Tag)

	nearSoma, err := geom.NewSphere(geom.Pt(1, 0, 0), 0.5)
	require.NoError(t, err)
	exactNear := func(m entry.MorphoEntry) bool { return m.IntersectsSphere(nearSoma) }
	got = tree.FindIntersecting(nearSoma.BoundingBox(), geom.BestEffortGeometry, exactNear)
	require.Len(t, got, 2) // soma contains it, segment's capsule also reaches near the axis
}

// TestBulkLoadWithManyItemsPreservesAll checks that a larger build (which
// exercises multiple internal levels) still returns every item.
func TestBulkLoadWithManyItemsPreservesAll(t *testing.T) {
	const n = 500
	items := make([]entry.IndexedSphere, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, mustSphereEntry(t, uint64(i), geom.Pt(geom.CoordType(i), geom.CoordType(i%7), geom.CoordType(i%3)), 0.1))
	}
	tree := BulkLoad(items, DefaultConfig())
	require.Equal(t, n, tree.Len())
	require.Len(t, tree.AllIDs(), n)

	seen := make(map[uint64]bool)
	for _, e := range tree.AllIDs() {
		seen[e.ID] = true
	}
	require.Len(t, seen, n)

	all := tree.FindIntersecting(tree.Bounds(), geom.BoundingBoxGeometry, nil)
	require.Len(t, all, n)
}

func TestFindNearestOrdersByDistanceThenID(t *testing.T) {
	items := []entry.IndexedSphere{
		mustSphereEntry(t, 2, geom.Pt(10, 0, 0), 1),
		mustSphereEntry(t, 0, geom.Pt(0, 0, 0), 1),
		mustSphereEntry(t, 1, geom.Pt(0, 0, 0), 1), // same centroid as id 0, ties broken by id
	}
	tree := BulkLoad(items, DefaultConfig())

	origin := geom.Pt(0, 0, 0)
	distSq := func(e entry.IndexedSphere) geom.CoordType { return e.Sphere.Centroid.DistSq(origin) }
	id := func(e entry.IndexedSphere) uint64 { return e.ID }

	nearest := tree.FindNearest(2, distSq, id)
	require.Len(t, nearest, 2)
	require.Equal(t, uint64(0), nearest[0].ID)
	require.Equal(t, uint64(1), nearest[1].ID)
}

func TestCountIntersectingMatchesFindIntersectingLength(t *testing.T) {
	items := []entry.IndexedSphere{
		mustSphereEntry(t, 0, geom.Pt(0, 0, 0), 2),
		mustSphereEntry(t, 1, geom.Pt(3, 0, 0), 2),
		mustSphereEntry(t, 2, geom.Pt(100, 0, 0), 2),
	}
	tree := BulkLoad(items, DefaultConfig())
	box := geom.Box3D{Min: geom.Pt(-5, -5, -5), Max: geom.Pt(5, 5, 5)}
	count := tree.CountIntersecting(box, geom.BoundingBoxGeometry, nil)
	found := tree.FindIntersecting(box, geom.BoundingBoxGeometry, nil)
	require.Equal(t, len(found), count)
}

func TestTreePlaceAvoidsExistingSpheresAndAdvances(t *testing.T) {
	items := []entry.IndexedSphere{
		mustSphereEntry(t, 0, geom.Pt(0, 0, 0), 2),
		mustSphereEntry(t, 1, geom.Pt(10, 0, 0), 2.5),
		mustSphereEntry(t, 2, geom.Pt(20, 0, 0), 4),
	}
	tree := BulkLoad(items, DefaultConfig())
	region := geom.Box3D{Min: geom.Pt(0, 0, -2), Max: geom.Pt(20, 5, 2)}

	toPlace, err := geom.NewSphere(geom.Pt(0, 0, 0), 2)
	require.NoError(t, err)
	ok := tree.Place(region, &toPlace, geom.BestEffortGeometry, func(e entry.IndexedSphere) bool {
		return e.Sphere.IntersectsSphere(toPlace)
	})
	require.True(t, ok)
	require.Greater(t, toPlace.Centroid.X, geom.CoordType(1.0))

	toPlace2, err := geom.NewSphere(geom.Pt(0, 0, 0), 2)
	require.NoError(t, err)
	ok = tree.Place(region, &toPlace2, geom.BestEffortGeometry, func(e entry.IndexedSphere) bool {
		return e.Sphere.IntersectsSphere(toPlace2)
	})
	require.True(t, ok)
	require.Greater(t, toPlace2.Centroid.X, toPlace.Centroid.X)
}
