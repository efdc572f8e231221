package strbuild

import (
	"context"
	"encoding/binary"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bluebrain/spatial-index-go/entry"
	"github.com/bluebrain/spatial-index-go/geom"
	"github.com/bluebrain/spatial-index-go/rtree"
)

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

type memStorage struct {
	mu       sync.Mutex
	subtrees map[uint64][]entry.IndexedSphere
	top      []entry.IndexedSubtreeBox
}

func newMemStorage() *memStorage {
	return &memStorage{subtrees: make(map[uint64][]entry.IndexedSphere)}
}

func (s *memStorage) SaveSubtree(ctx context.Context, subtreeIndex uint64, items []entry.IndexedSphere) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]entry.IndexedSphere, len(items))
	copy(cp, items)
	s.subtrees[subtreeIndex] = cp
	return nil
}

func (s *memStorage) SaveTop(ctx context.Context, boxes []entry.IndexedSubtreeBox) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.top = boxes
	return nil
}

func distributeEvenly(items []entry.IndexedSphere, ranks int) [][]entry.IndexedSphere {
	out := make([][]entry.IndexedSphere, ranks)
	for i, it := range items {
		out[i%ranks] = append(out[i%ranks], it)
	}
	return out
}

func TestDistributedPartitionCoversAllItems(t *testing.T) {
	const n = 400
	const ranks = 4
	items := make([]entry.IndexedSphere, 0, n)
	for i := 0; i < n; i++ {
		e, err := entry.NewIndexedSphere(uint64(i),
			geom.Pt(float64(i%20), float64((i/20)%20), float64(i%5)), 0.1)
		require.NoError(t, err)
		items = append(items, e)
	}
	shares := distributeEvenly(items, ranks)

	comms := NewLocalGroup(ranks)
	storage := newMemStorage()

	var wg sync.WaitGroup
	errs := make([]error, ranks)
	for r := 0; r < ranks; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			_, err := DistributedPartition[entry.IndexedSphere](
				context.Background(), comms[r], shares[r], rtree.DefaultConfig(), sphereCodec{}, storage)
			errs[r] = err
		}(r)
	}
	wg.Wait()

	for r, err := range errs {
		require.NoErrorf(t, err, "rank %d", r)
	}

	total := 0
	seen := make(map[uint64]bool)
	for _, sub := range storage.subtrees {
		total += len(sub)
		for _, e := range sub {
			require.False(t, seen[e.ID], "item %d saved twice", e.ID)
			seen[e.ID] = true
		}
	}
	require.Equal(t, n, total)
	require.NotEmpty(t, storage.top)

	// The local STR level must fan each rank out into multiple tiles, not
	// persist exactly one subtree per rank.
	require.Greater(t, len(storage.subtrees), ranks)
	require.Len(t, storage.top, len(storage.subtrees))
}

func TestDistributedPartitionRejectsTooFewElements(t *testing.T) {
	comms := NewLocalGroup(4)
	items := []entry.IndexedSphere{}
	storage := newMemStorage()

	var wg sync.WaitGroup
	errs := make([]error, len(comms))
	for r := range comms {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			_, err := DistributedPartition[entry.IndexedSphere](
				context.Background(), comms[r], items, rtree.DefaultConfig(), sphereCodec{}, storage)
			errs[r] = err
		}(r)
	}
	wg.Wait()

	for _, err := range errs {
		require.ErrorIs(t, err, ErrTooFewElements)
	}
}

func TestRankDistributionNeverExceedsCommSize(t *testing.T) {
	for _, size := range []int{1, 2, 3, 4, 7, 8, 16, 27, 30, 100} {
		parts := RankDistribution(size)
		require.LessOrEqualf(t, parts[0]*parts[1]*parts[2], size, "commSize=%d", size)
	}
}
