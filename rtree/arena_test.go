package rtree

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bluebrain/spatial-index-go/entry"
	"github.com/bluebrain/spatial-index-go/geom"
	"github.com/bluebrain/spatial-index-go/rtree/store"
)

func makeArenaSpheres(n int) []entry.IndexedSphere {
	items := make([]entry.IndexedSphere, n)
	for i := 0; i < n; i++ {
		e, err := entry.NewIndexedSphere(uint64(i), geom.Pt(geom.CoordType(i)*3, 0, 0), 1)
		if err != nil {
			panic(err)
		}
		items[i] = e
	}
	return items
}

func TestBulkLoadWithArenaBuildsQueryableTree(t *testing.T) {
	items := makeArenaSpheres(50)
	arena, err := store.CreateMmapArena(t.TempDir(), 1, false)
	require.NoError(t, err)

	tree, err := BulkLoadWithArena(items, Config{FanOut: 4}, sphereCodec{}, arena)
	require.NoError(t, err)
	defer tree.Close()
	require.Equal(t, 50, tree.Len())

	got := tree.FindIntersecting(geom.Box3D{Min: geom.Pt(-1, -1, -1), Max: geom.Pt(1, 1, 1)}, geom.BoundingBoxGeometry, nil)
	require.Len(t, got, 1)
	require.Equal(t, uint64(0), got[0].ID)
}

func TestBulkLoadWithArenaRejectsUndersizedArena(t *testing.T) {
	items := makeArenaSpheres(10000)
	arena, err := store.CreateMmapArena(t.TempDir(), 1, false)
	require.NoError(t, err)
	defer arena.Close()

	_, err = BulkLoadWithArena(items, Config{FanOut: 4}, sphereCodec{}, arena)
	require.Error(t, err)
}

func TestBulkLoadWithArenaAcceptsHeapArena(t *testing.T) {
	items := makeArenaSpheres(50)
	arena := NewHeapArena(1 << 20)

	tree, err := BulkLoadWithArena(items, Config{FanOut: 4}, sphereCodec{}, arena)
	require.NoError(t, err)
	defer tree.Close()
	require.Equal(t, 50, tree.Len())
	require.Greater(t, arena.LiveSize(), int64(0))

	got := tree.FindIntersecting(geom.Box3D{Min: geom.Pt(-1, -1, -1), Max: geom.Pt(1, 1, 1)}, geom.BoundingBoxGeometry, nil)
	require.Len(t, got, 1)
	require.Equal(t, uint64(0), got[0].ID)
}

// TestLoadTreeFromArenaSurvivesReopen builds a tree into an on-disk arena
// in one process-equivalent step, closes it, reopens the arena directory
// fresh (as a separate process restart would), and confirms the resulting
// tree answers queries correctly without ever having rerun BulkLoad.
func TestLoadTreeFromArenaSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	items := makeArenaSpheres(20)
	arena, err := store.CreateMmapArena(dir, 1, false)
	require.NoError(t, err)

	built, err := BulkLoadWithArena(items, Config{FanOut: 4}, sphereCodec{}, arena)
	require.NoError(t, err)
	require.Equal(t, 20, built.Len())
	require.NoError(t, built.Close())

	reopened, err := store.OpenMmapArena(dir)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := LoadTreeFromArena[entry.IndexedSphere](reopened, sphereCodec{})
	require.NoError(t, err)
	defer loaded.Close()

	require.Equal(t, 20, loaded.Len())
	require.ElementsMatch(t, items, loaded.AllIDs())

	got := loaded.FindIntersecting(geom.Box3D{Min: geom.Pt(-1, -1, -1), Max: geom.Pt(1, 1, 1)}, geom.BoundingBoxGeometry, nil)
	require.Len(t, got, 1)
	require.Equal(t, uint64(0), got[0].ID)
}

func TestArenaTreeQueriesPanicAfterClose(t *testing.T) {
	items := makeArenaSpheres(10)
	arena := NewHeapArena(1 << 16)

	tree, err := BulkLoadWithArena(items, Config{FanOut: 4}, sphereCodec{}, arena)
	require.NoError(t, err)
	require.NoError(t, tree.Close())
	require.NoError(t, tree.Close()) // second close is a no-op, not an error

	require.Panics(t, func() {
		tree.FindIntersecting(geom.Box3D{Min: geom.Pt(-1, -1, -1), Max: geom.Pt(1, 1, 1)}, geom.BoundingBoxGeometry, nil)
	})
}
