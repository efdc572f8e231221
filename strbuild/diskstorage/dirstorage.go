// Package diskstorage implements strbuild.Storage by writing one
// rtree.store-formatted file per subtree plus a single top-level file,
// laid out under one directory.
package diskstorage

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/bluebrain/spatial-index-go/entry"
	"github.com/bluebrain/spatial-index-go/rtree"
)

// Codec mirrors strbuild.Codec / rtree.Codec: a fixed-width item
// marshaler. Kept as a separate local type so this package does not need
// to import strbuild (which already imports rtree; diskstorage sits
// beside strbuild, not below it, to avoid entangling the storage
// implementation with the build orchestration).
type Codec[V rtree.Indexable] interface {
	ItemSize() int
	Encode(item V, dst []byte)
	Decode(src []byte) V
}

// DirStorage persists subtrees as "subtree-<index>.six" and the top-level
// tree as "top.six" inside Dir.
type DirStorage[V rtree.Indexable] struct {
	Dir      string
	Codec    Codec[V]
	LocalCfg rtree.Config
	TopCfg   rtree.Config
	TopCodec Codec[entry.IndexedSubtreeBox]
}

func (s DirStorage[V]) subtreePath(index uint64) string {
	return filepath.Join(s.Dir, fmt.Sprintf("subtree-%d.six", index))
}

func (s DirStorage[V]) topPath() string {
	return filepath.Join(s.Dir, "top.six")
}

// SaveSubtree bulk-loads items into a local rtree.Tree and persists it
// atomically under the subtree's index.
func (s DirStorage[V]) SaveSubtree(ctx context.Context, subtreeIndex uint64, items []V) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tree := rtree.BulkLoad(items, s.LocalCfg)
	return tree.SaveToAtomic(s.subtreePath(subtreeIndex), rtreeCodecAdapter[V]{s.Codec})
}

// SaveTop bulk-loads the gathered subtree boxes into a small top-level
// tree and persists it atomically.
func (s DirStorage[V]) SaveTop(ctx context.Context, boxes []entry.IndexedSubtreeBox) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tree := rtree.BulkLoad(boxes, s.TopCfg)
	return tree.SaveToAtomic(s.topPath(), rtreeCodecAdapter[entry.IndexedSubtreeBox]{s.TopCodec})
}

// rtreeCodecAdapter adapts diskstorage.Codec to rtree.Codec (identical
// method sets; kept distinct so the two packages don't need to import one
// another's Codec type directly).
type rtreeCodecAdapter[V rtree.Indexable] struct {
	Codec[V]
}

var _ rtree.Codec[entry.IndexedSubtreeBox] = rtreeCodecAdapter[entry.IndexedSubtreeBox]{}
