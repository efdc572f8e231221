package strbuild

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/bluebrain/spatial-index-go/entry"
	"github.com/bluebrain/spatial-index-go/rtree"
	"github.com/bluebrain/spatial-index-go/strbuild/metrics"
)

// minElementsPerRank is the smallest per-rank load DistributedPartition
// accepts before it decides a distributed build isn't worth the
// coordination overhead relative to just running a local BulkLoad.
const minElementsPerRank = 10

// ErrTooFewElements is returned when the total element count is too small
// to spread meaningfully across the communicator's ranks.
var ErrTooFewElements = errors.New("strbuild: too few elements for this communicator size")

// TwoLevelSTRHeuristic picks the outer (across ranks) and inner (within a
// rank) tiling factors for a distributed build: RanksPerDim balances
// nElements across the communicator's ranks along x/y/z, and
// LocalMaxPerLeaf feeds the per-rank local rtree.SerialSTRParamsFromHeuristic
// call. Grounded on the same cube-root balancing idea as
// rtree.SerialSTRParamsFromHeuristic, applied one level higher.
type TwoLevelSTRHeuristic struct {
	RanksPerDim     [3]int
	LocalMaxPerLeaf uint64
}

// ComputeTwoLevelSTRHeuristic derives a TwoLevelSTRHeuristic for
// nElements spread across commSize ranks, with each rank's local tree
// using localFanOut as its leaf capacity.
func ComputeTwoLevelSTRHeuristic(nElements uint64, commSize int, localFanOut uint64) TwoLevelSTRHeuristic {
	return TwoLevelSTRHeuristic{
		RanksPerDim:     RankDistribution(commSize),
		LocalMaxPerLeaf: localFanOut,
	}
}

// RankDistribution factors commSize ranks across 3 axes as evenly as
// possible, with the product never exceeding commSize (an in-process
// build has exactly commSize goroutines to hand out, unlike leaf-tile
// counts which can freely round up).
func RankDistribution(commSize int) [3]int {
	if commSize < 1 {
		commSize = 1
	}
	cube := math.Cbrt(float64(commSize))
	parts := [3]int{}
	for i := range parts {
		v := int(math.Round(cube))
		if v < 1 {
			v = 1
		}
		parts[i] = v
	}
	product := func() int { return parts[0] * parts[1] * parts[2] }
	for {
		idx := 0
		for i := 1; i < 3; i++ {
			if parts[i] < parts[idx] {
				idx = i
			}
		}
		trial := parts
		trial[idx]++
		if trial[0]*trial[1]*trial[2] <= commSize {
			parts = trial
		} else {
			break
		}
	}
	for product() > commSize {
		idx := 0
		for i := 1; i < 3; i++ {
			if parts[i] > parts[idx] {
				idx = i
			}
		}
		if parts[idx] <= 1 {
			break
		}
		parts[idx]--
	}
	return parts
}

// Storage persists the pieces a distributed build produces: one local
// subtree per rank-local tile plus a single top-level tree of every
// tile's bounding box.
type Storage[V rtree.Indexable] interface {
	SaveSubtree(ctx context.Context, subtreeIndex uint64, items []V) error
	SaveTop(ctx context.Context, boxes []entry.IndexedSubtreeBox) error
}

// Codec is the payload marshaling DistributedPartition needs to move
// items between ranks over Communicator.SortAndBalance, which only moves
// (float64 key, []byte payload) pairs.
type Codec[V any] interface {
	ItemSize() int
	Encode(item V, dst []byte)
	Decode(src []byte) V
}

func checkSignals(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func encodeAll[V any](items []V, codec Codec[V]) [][]byte {
	out := make([][]byte, len(items))
	for i, it := range items {
		buf := make([]byte, codec.ItemSize())
		codec.Encode(it, buf)
		out[i] = buf
	}
	return out
}

func decodeAll[V any](payload [][]byte, codec Codec[V]) []V {
	out := make([]V, len(payload))
	for i, p := range payload {
		out[i] = codec.Decode(p)
	}
	return out
}

func keysForAxis[V rtree.Indexable](items []V, axis int) []float64 {
	out := make([]float64, len(items))
	for i, it := range items {
		box := it.BoundingBox()
		mid := box.Min.Add(box.Max).Scale(0.5)
		out[i] = mid.Coord(axis)
	}
	return out
}

// DistributedPartition runs the two-level build: a distributed sort and
// split across x, then y, then z (via Communicator.Split into
// progressively smaller subgroups, each handling one spatial slab), then
// a local sort-tile-recursion pass over this rank's items in its final
// slab (rtree.PartitionSTR sized by heuristic.LocalMaxPerLeaf for an even
// per-rank share of the total, the same on every rank) that divides them
// into at most localParts tiles, each bulk-loaded and persisted as its
// own subtree under global id rank*localParts+k. A gather of every tile's
// bounding box across every rank then feeds a small top-level tree saved
// via storage.SaveTop. localItems is this rank's share of the input
// before any redistribution; ctx is checked between phases and before
// each subtree is saved so a caller can cancel a long build.
func DistributedPartition[V rtree.Indexable](ctx context.Context, c Communicator, localItems []V, localCfg rtree.Config, codec Codec[V], storage Storage[V]) (metrics.BuildReport, error) {
	before := metrics.Take()

	total, err := c.SumCount(ctx, len(localItems))
	if err != nil {
		return metrics.BuildReport{}, err
	}
	if total < minElementsPerRank*c.Size() {
		return metrics.BuildReport{}, fmt.Errorf("%w: %d elements across %d ranks", ErrTooFewElements, total, c.Size())
	}

	heuristic := ComputeTwoLevelSTRHeuristic(uint64(total), c.Size(), uint64(localCfg.OrDefault().FanOut))

	items := localItems
	rank := c.Rank()
	group := c
	remainingRanks := c.Size()
	for axis := 0; axis < 3 && remainingRanks > 1; axis++ {
		if err := checkSignals(ctx); err != nil {
			return metrics.BuildReport{}, err
		}
		partsThisAxis := heuristic.RanksPerDim[axis]
		if partsThisAxis <= 1 {
			continue
		}

		keys := keysForAxis(items, axis)
		payload := encodeAll(items, codec)
		_, sortedPayload, err := group.SortAndBalance(ctx, keys, payload)
		if err != nil {
			return metrics.BuildReport{}, err
		}
		items = decodeAll(sortedPayload, codec)

		// This rank's slab along axis, among partsThisAxis slabs spread
		// over the current subgroup's ranks.
		color := rank * partsThisAxis / group.Size()
		sub, err := group.Split(ctx, color, rank)
		if err != nil {
			return metrics.BuildReport{}, err
		}
		group = sub
		rank = group.Rank()
		remainingRanks = group.Size()
	}

	if err := checkSignals(ctx); err != nil {
		return metrics.BuildReport{}, err
	}

	// Every rank sizes its local STR from the same per-rank share of the
	// total, so localParts is equal on all ranks and the global ids
	// rank*localParts+k never collide.
	share := (total + c.Size() - 1) / c.Size()
	localParams := rtree.SerialSTRParamsFromHeuristic(uint64(share), heuristic.LocalMaxPerLeaf)
	tiles := rtree.PartitionSTR(items, localParams)
	localParts := localParams.NParts()

	var localTileBoxes []SubtreeBox
	for k, tile := range tiles {
		if len(tile) == 0 {
			continue
		}
		if err := checkSignals(ctx); err != nil {
			return metrics.BuildReport{}, err
		}
		tileTree := rtree.BulkLoad(tile, localCfg)
		globalTileID := uint64(c.Rank())*uint64(localParts) + uint64(k)
		if err := storage.SaveSubtree(ctx, globalTileID, tile); err != nil {
			return metrics.BuildReport{}, err
		}
		localTileBoxes = append(localTileBoxes, SubtreeBox{ID: globalTileID, NElements: uint64(len(tile)), Box: tileTree.Bounds()})
	}

	allTileBoxes, err := c.GatherSubtreeBoxes(ctx, localTileBoxes)
	if err != nil {
		return metrics.BuildReport{}, err
	}

	var report metrics.BuildReport
	if c.Rank() == 0 {
		top := make([]entry.IndexedSubtreeBox, len(allTileBoxes))
		for i, tb := range allTileBoxes {
			top[i] = entry.NewIndexedSubtreeBox(tb.ID, tb.NElements, tb.Box)
		}
		if err := storage.SaveTop(ctx, top); err != nil {
			return metrics.BuildReport{}, err
		}
	}

	after := metrics.Take()
	report = metrics.NewBuildReport(before, after, after.TS.Sub(before.TS), total, len(allTileBoxes))
	return report, nil
}
