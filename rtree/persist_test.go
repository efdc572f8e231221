package rtree

import (
	"encoding/binary"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bluebrain/spatial-index-go/entry"
	"github.com/bluebrain/spatial-index-go/geom"
)

// sphereCodec encodes an entry.IndexedSphere as id + centroid + radius, all
// little-endian: a minimal fixed-width Codec for round-trip testing.
type sphereCodec struct{}

func (sphereCodec) ItemSize() int { return 8 + 8*4 }

func (sphereCodec) Encode(e entry.IndexedSphere, dst []byte) {
	binary.LittleEndian.PutUint64(dst[0:8], e.ID)
	binary.LittleEndian.PutUint64(dst[8:16], math.Float64bits(e.Sphere.Centroid.X))
	binary.LittleEndian.PutUint64(dst[16:24], math.Float64bits(e.Sphere.Centroid.Y))
	binary.LittleEndian.PutUint64(dst[24:32], math.Float64bits(e.Sphere.Centroid.Z))
	binary.LittleEndian.PutUint64(dst[32:40], math.Float64bits(e.Sphere.Radius))
}

func (sphereCodec) Decode(src []byte) entry.IndexedSphere {
	id := binary.LittleEndian.Uint64(src[0:8])
	x := math.Float64frombits(binary.LittleEndian.Uint64(src[8:16]))
	y := math.Float64frombits(binary.LittleEndian.Uint64(src[16:24]))
	z := math.Float64frombits(binary.LittleEndian.Uint64(src[24:32]))
	r := math.Float64frombits(binary.LittleEndian.Uint64(src[32:40]))
	e, err := entry.NewIndexedSphere(id, geom.Pt(x, y, z), r)
	if err != nil {
		panic(err)
	}
	return e
}

func TestSaveToAndLoadFromRoundTrips(t *testing.T) {
	items := []entry.IndexedSphere{
		mustSphereEntry(t, 0, geom.Pt(0, 0, 0), 2),
		mustSphereEntry(t, 1, geom.Pt(10, 0, 0), 2.5),
		mustSphereEntry(t, 2, geom.Pt(20, 0, 0), 4),
	}
	tree := BulkLoad(items, DefaultConfig())

	dir := t.TempDir()
	path := filepath.Join(dir, "tree.six")
	require.NoError(t, tree.SaveToAtomic(path, sphereCodec{}))

	loaded, err := LoadFrom[entry.IndexedSphere](path, sphereCodec{})
	require.NoError(t, err)
	defer loaded.Close()

	require.Equal(t, tree.Len(), loaded.Len())

	probe, err := geom.NewSphere(geom.Pt(15, 0, 0), 2)
	require.NoError(t, err)
	exact := func(e entry.IndexedSphere) bool { return e.Sphere.IntersectsSphere(probe) }

	wantIDs := map[uint64]bool{}
	for _, e := range tree.FindIntersecting(probe.BoundingBox(), geom.BestEffortGeometry, exact) {
		wantIDs[e.ID] = true
	}
	gotIDs := map[uint64]bool{}
	for _, e := range loaded.FindIntersecting(probe.BoundingBox(), geom.BestEffortGeometry, exact) {
		gotIDs[e.ID] = true
	}
	require.Equal(t, wantIDs, gotIDs)
	require.Equal(t, len(items), len(loaded.AllIDs()))
}

func TestLoadFromRejectsMismatchedItemSize(t *testing.T) {
	items := []entry.IndexedSphere{mustSphereEntry(t, 0, geom.Pt(0, 0, 0), 1)}
	tree := BulkLoad(items, DefaultConfig())

	dir := t.TempDir()
	path := filepath.Join(dir, "tree.six")
	require.NoError(t, tree.SaveTo(path, sphereCodec{}))

	_, err := LoadFrom[entry.IndexedSphere](path, badSizeCodec{})
	require.Error(t, err)
}

type badSizeCodec struct{ sphereCodec }

func (badSizeCodec) ItemSize() int { return 41 }

func TestLoadedTreeQueriesPanicAfterClose(t *testing.T) {
	items := []entry.IndexedSphere{mustSphereEntry(t, 0, geom.Pt(0, 0, 0), 1)}
	tree := BulkLoad(items, DefaultConfig())

	dir := t.TempDir()
	path := filepath.Join(dir, "tree.six")
	require.NoError(t, tree.SaveTo(path, sphereCodec{}))

	loaded, err := LoadFrom[entry.IndexedSphere](path, sphereCodec{})
	require.NoError(t, err)
	require.NoError(t, loaded.Close())
	require.NoError(t, loaded.Close()) // second close is a no-op, not an error

	require.Panics(t, func() {
		loaded.FindIntersecting(geom.Box3D{Min: geom.Pt(-1, -1, -1), Max: geom.Pt(1, 1, 1)}, geom.BoundingBoxGeometry, nil)
	})
}
