package rtree

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/bluebrain/spatial-index-go/geom"
	"github.com/bluebrain/spatial-index-go/rtree/store"
)

func uint64FromFloat(f geom.CoordType) uint64 { return math.Float64bits(float64(f)) }
func floatFromUint64(u uint64) geom.CoordType { return geom.CoordType(math.Float64frombits(u)) }

// Codec knows how to serialize and deserialize items of type T to a fixed
// byte width, so a Tree[T] can be persisted without rtree itself knowing
// anything about T's shape.
type Codec[T Indexable] interface {
	// ItemSize is the fixed number of bytes Encode writes and Decode reads.
	ItemSize() int
	Encode(item T, dst []byte)
	Decode(src []byte) T
}

const nodeRecordSize = 8*6 + 8 // 6 float64 box components + int64 index

func encodeNode(dst []byte, n node) {
	binary.LittleEndian.PutUint64(dst[0:8], uint64FromFloat(n.Box.Min.X))
	binary.LittleEndian.PutUint64(dst[8:16], uint64FromFloat(n.Box.Min.Y))
	binary.LittleEndian.PutUint64(dst[16:24], uint64FromFloat(n.Box.Min.Z))
	binary.LittleEndian.PutUint64(dst[24:32], uint64FromFloat(n.Box.Max.X))
	binary.LittleEndian.PutUint64(dst[32:40], uint64FromFloat(n.Box.Max.Y))
	binary.LittleEndian.PutUint64(dst[40:48], uint64FromFloat(n.Box.Max.Z))
	binary.LittleEndian.PutUint64(dst[48:56], uint64(int64(n.Index)))
}

func decodeNode(src []byte) node {
	return node{
		Box: geom.Box3D{
			Min: geom.Pt(
				floatFromUint64(binary.LittleEndian.Uint64(src[0:8])),
				floatFromUint64(binary.LittleEndian.Uint64(src[8:16])),
				floatFromUint64(binary.LittleEndian.Uint64(src[16:24])),
			),
			Max: geom.Pt(
				floatFromUint64(binary.LittleEndian.Uint64(src[24:32])),
				floatFromUint64(binary.LittleEndian.Uint64(src[32:40])),
				floatFromUint64(binary.LittleEndian.Uint64(src[40:48])),
			),
		},
		Index: int(int64(binary.LittleEndian.Uint64(src[48:56]))),
	}
}

// arenaBoxStore decodes nodes on demand from a byte range that may be
// backed by mapped memory: touching node i only faults in the page(s)
// under data[i*nodeRecordSize:].
type arenaBoxStore struct {
	data []byte
	n    int
}

func (a *arenaBoxStore) Len() int { return a.n }
func (a *arenaBoxStore) At(i int) node {
	return decodeNode(a.data[i*nodeRecordSize:])
}

// arenaItemStore decodes items on demand the same way arenaBoxStore
// decodes nodes.
type arenaItemStore[T Indexable] struct {
	data     []byte
	n        int
	itemSize int
	codec    Codec[T]
}

func (a *arenaItemStore[T]) Len() int { return a.n }
func (a *arenaItemStore[T]) At(i int) T {
	return a.codec.Decode(a.data[i*a.itemSize:])
}

// treeLayout serializes t into the on-disk/on-arena byte layout every
// persisted tree uses: header, level bounds, node array, item array, back
// to back with no padding between sections. Both SaveTo and
// BulkLoadWithArena write this same layout, just to different
// destinations (a file, an arena's byte buffer).
func treeLayout[T Indexable](t *Tree[T], codec Codec[T]) ([]byte, error) {
	itemSize := codec.ItemSize()
	numItems := t.items.Len()
	numBoxes := t.boxes.Len()

	h := &store.Header{
		ItemSize:  uint32(itemSize),
		NumItems:  uint32(numItems),
		NumBoxes:  uint32(numBoxes),
		NumLevels: uint32(len(t.levelBounds)),
		FanOut:    uint32(t.cfg.FanOut),
	}
	headerBytes, err := store.EncodeHeader(h)
	if err != nil {
		return nil, err
	}

	levelBuf := make([]byte, 8*len(t.levelBounds))
	for i, b := range t.levelBounds {
		binary.LittleEndian.PutUint64(levelBuf[i*8:], uint64(b))
	}

	nodeBuf := make([]byte, nodeRecordSize*numBoxes)
	for i := 0; i < numBoxes; i++ {
		encodeNode(nodeBuf[i*nodeRecordSize:], t.boxes.At(i))
	}

	itemBuf := make([]byte, itemSize*numItems)
	tmp := make([]byte, itemSize)
	for i := 0; i < numItems; i++ {
		codec.Encode(t.items.At(i), tmp)
		copy(itemBuf[i*itemSize:], tmp)
	}

	out := make([]byte, 0, len(headerBytes)+len(levelBuf)+len(nodeBuf)+len(itemBuf))
	out = append(out, headerBytes...)
	out = append(out, levelBuf...)
	out = append(out, nodeBuf...)
	out = append(out, itemBuf...)
	return out, nil
}

// decodeTreeFromBytes reconstructs a Tree[T] header and level bounds from
// data (small, so decoded eagerly) but leaves the node and item arrays as
// arenaBoxStore/arenaItemStore views over data itself: nothing beyond the
// header and level bounds is copied out, so a query against the returned
// tree only touches the byte ranges it actually visits. Callers own
// data's lifetime and are responsible for setting the returned Tree's
// closed flag once that backing memory goes away.
func decodeTreeFromBytes[T Indexable](data []byte, codec Codec[T]) (*Tree[T], error) {
	h, err := store.DecodeHeader(data)
	if err != nil {
		return nil, err
	}
	if int(h.ItemSize) != codec.ItemSize() {
		return nil, fmt.Errorf("store: file item size %d does not match codec item size %d", h.ItemSize, codec.ItemSize())
	}

	pos := store.HeaderSize
	levelBounds := make([]int, h.NumLevels)
	for i := range levelBounds {
		levelBounds[i] = int(binary.LittleEndian.Uint64(data[pos:]))
		pos += 8
	}

	nodeBytes := nodeRecordSize * int(h.NumBoxes)
	boxData := data[pos : pos+nodeBytes]
	pos += nodeBytes

	itemBytes := int(h.ItemSize) * int(h.NumItems)
	itemData := data[pos : pos+itemBytes]

	return &Tree[T]{
		cfg:         Config{FanOut: int(h.FanOut)}.OrDefault(),
		items:       &arenaItemStore[T]{data: itemData, n: int(h.NumItems), itemSize: int(h.ItemSize), codec: codec},
		boxes:       &arenaBoxStore{data: boxData, n: int(h.NumBoxes)},
		levelBounds: levelBounds,
		numItems:    int(h.NumItems),
	}, nil
}

// SaveTo writes t to path in a single pass: header, level bounds, node
// array, then codec-encoded items. Callers that want atomic replacement of
// an existing file should write to a temp path and rename over it
// themselves (see SaveToAtomic).
func (t *Tree[T]) SaveTo(path string, codec Codec[T]) error {
	t.checkOpen()
	buf, err := treeLayout(t, codec)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(buf); err != nil {
		return err
	}
	return f.Sync()
}

// SaveToAtomic writes t to path+".tmp" then renames it over path, so
// readers never observe a partially written file.
func (t *Tree[T]) SaveToAtomic(path string, codec Codec[T]) error {
	tmp := path + ".tmp"
	if err := t.SaveTo(tmp, codec); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// LoadedTree is a Tree loaded from a persisted file, plus the open mmap
// backing it. Close must be called when done to release the mapping;
// every query method panics if called afterward.
type LoadedTree[T Indexable] struct {
	*Tree[T]
	file *store.MmapFile
}

// Close unmaps the backing file. A second call is a no-op.
func (l *LoadedTree[T]) Close() error {
	if l.file == nil {
		return nil
	}
	l.Tree.closed.close()
	err := l.file.Close()
	l.file = nil
	return err
}

// LoadFrom mmaps path and builds a Tree[T] over it using codec. The
// header's declared fan-out becomes the loaded tree's Config.FanOut, since
// FanOut controls how descend() computes child ranges and must match what
// SaveTo recorded. Node and item data are decoded lazily straight off the
// mapped bytes (see decodeTreeFromBytes): a query only faults in the pages
// under the nodes and items it actually visits.
func LoadFrom[T Indexable](path string, codec Codec[T]) (*LoadedTree[T], error) {
	mf, err := store.OpenMmap(path)
	if err != nil {
		return nil, err
	}
	data, err := mf.Bytes()
	if err != nil {
		mf.Close()
		return nil, err
	}

	t, err := decodeTreeFromBytes[T](data, codec)
	if err != nil {
		mf.Close()
		return nil, err
	}
	t.closed = &closedFlag{}
	return &LoadedTree[T]{Tree: t, file: mf}, nil
}
