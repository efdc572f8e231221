package rtree

import "fmt"

// Arena is a byte-oriented backing store that a Tree's node and item
// arrays can be built inside, so a bulk load can target a file larger
// than RAM instead of the Go heap. store.MmapArena satisfies this
// directly (it already exposes exactly these three methods); NewHeapArena
// gives the same byte-oriented path somewhere to run without a backing
// file, for callers that want to exercise it in a test or a short-lived
// build.
type Arena interface {
	Bytes() ([]byte, error)
	LiveSize() int64
	SetLiveSize(n int64) error
}

// heapArena is an Arena backed by a single growable in-process slice. A
// Tree built against one lives entirely on the Go heap, same as a plain
// BulkLoad.
type heapArena struct {
	data []byte
	live int64
}

// NewHeapArena returns an Arena backed by a plain in-process byte slice of
// the given capacity, for exercising BulkLoadWithArena without an
// mmap-backed file.
func NewHeapArena(capacity int) Arena {
	return &heapArena{data: make([]byte, capacity)}
}

func (a *heapArena) Bytes() ([]byte, error) { return a.data, nil }
func (a *heapArena) LiveSize() int64        { return a.live }
func (a *heapArena) SetLiveSize(n int64) error {
	if n < 0 || n > int64(len(a.data)) {
		return fmt.Errorf("rtree: live size %d out of range [0, %d]", n, len(a.data))
	}
	a.live = n
	return nil
}

// ArenaTree is a Tree whose node and item arrays live inside an Arena's
// byte range instead of on the ordinary Go heap. Close marks the tree
// closed and, if the arena itself is closeable (store.MmapArena is),
// closes it too; every query method on the embedded Tree panics
// afterward.
type ArenaTree[T Indexable] struct {
	*Tree[T]
	arena Arena
}

// Close releases the tree's backing arena, if it supports being closed,
// and marks the tree itself closed so further queries panic instead of
// reading through memory that may since have been unmapped. Safe to call
// once; a second call is a no-op.
func (a *ArenaTree[T]) Close() error {
	if a.Tree.closed.isClosed() {
		return nil
	}
	a.Tree.closed.close()
	if closer, ok := a.arena.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// BulkLoadWithArena builds a Tree exactly as BulkLoad does, then writes
// its full on-disk layout (treeLayout: header, level bounds, nodes,
// items) into arena's byte range and rebuilds the returned tree's node
// and item arrays as decode-on-access views over that same range
// (decodeTreeFromBytes), rather than as a second, independent set of heap
// slices. For a store.MmapArena backed by a file, that range is the
// mapped pages, so the tree this returns reads through the mapped file on
// every query — a query only faults in the pages under the nodes and
// items it actually visits — and the data survives past this call,
// reloadable with LoadTreeFromArena after a reopen via
// store.OpenMmapArena.
func BulkLoadWithArena[T Indexable](itemsIn []T, cfg Config, codec Codec[T], arena Arena) (*ArenaTree[T], error) {
	built := BulkLoad(itemsIn, cfg)
	buf, err := treeLayout(built, codec)
	if err != nil {
		return nil, err
	}

	dst, err := arena.Bytes()
	if err != nil {
		return nil, err
	}
	if len(buf) > len(dst) {
		return nil, fmt.Errorf("rtree: arena capacity %d too small for %d bytes of tree storage", len(dst), len(buf))
	}
	copy(dst, buf)
	if err := arena.SetLiveSize(int64(len(buf))); err != nil {
		return nil, err
	}

	t, err := decodeTreeFromBytes[T](dst[:len(buf)], codec)
	if err != nil {
		return nil, err
	}
	t.closed = &closedFlag{}
	return &ArenaTree[T]{Tree: t, arena: arena}, nil
}

// LoadTreeFromArena rebuilds a queryable Tree[T] from an arena previously
// populated by BulkLoadWithArena, without repeating the build: it decodes
// the header and level bounds (small, read once) and leaves the node and
// item arrays as decode-on-access views over arena.Bytes() itself, the
// same way LoadFrom does for a plain file. This is what makes an index
// larger than RAM usable across process restarts — reopen the arena
// directory with store.OpenMmapArena, then call LoadTreeFromArena, and
// only the pages a query actually visits ever fault in.
func LoadTreeFromArena[T Indexable](arena Arena, codec Codec[T]) (*ArenaTree[T], error) {
	data, err := arena.Bytes()
	if err != nil {
		return nil, err
	}
	if live := arena.LiveSize(); live < int64(len(data)) {
		data = data[:live]
	}

	t, err := decodeTreeFromBytes[T](data, codec)
	if err != nil {
		return nil, err
	}
	t.closed = &closedFlag{}
	return &ArenaTree[T]{Tree: t, arena: arena}, nil
}
