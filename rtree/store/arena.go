package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/edsrzf/mmap-go"
)

const (
	arenaFileName = "arena.dat"
	metaFileName  = "meta.json"
)

// arenaMeta is the small sidecar file recording an arena's capacity and
// live size. It is JSON, not the binary format the tree itself uses:
// it is read once at open time by a human or a management tool as often
// as by this package, and its size is immaterial next to the arena file
// it describes.
type arenaMeta struct {
	CapacityBytes int64 `json:"capacity_bytes"`
	LiveSize      int64 `json:"live_size"`
	CloseShrink   bool  `json:"close_shrink"`
}

// MmapArena is a directory holding one large, fixed-capacity mmap'd
// backing file (arena.dat) plus a small metadata sidecar (meta.json)
// recording how much of the arena is actually live. It supports writing
// during a single build (CreateMmapArena) and read-only access
// afterward (OpenMmapArena) from any number of readers.
type MmapArena struct {
	dir      string
	f        *os.File
	data     mmap.MMap
	writable bool
	meta     arenaMeta
	closed   bool
}

// CreateMmapArena creates dir (if needed) and a new arena file of
// capacityMB preallocated capacity, mapped read-write. closeShrink, if
// set, makes Close truncate the file down to the live size last recorded
// via SetLiveSize, so a finished build doesn't ship capacity headroom
// it never used.
func CreateMmapArena(dir string, capacityMB int, closeShrink bool) (*MmapArena, error) {
	if capacityMB <= 0 {
		return nil, fmt.Errorf("store: capacityMB must be positive, got %d", capacityMB)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	capacity := int64(capacityMB) * (1 << 20)

	f, err := os.Create(filepath.Join(dir, arenaFileName))
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(capacity); err != nil {
		f.Close()
		return nil, err
	}
	m, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, err
	}

	a := &MmapArena{
		dir:      dir,
		f:        f,
		data:     m,
		writable: true,
		meta:     arenaMeta{CapacityBytes: capacity, CloseShrink: closeShrink},
	}
	if err := a.writeMeta(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// OpenMmapArena opens an existing arena directory read-only.
func OpenMmapArena(dir string) (*MmapArena, error) {
	metaBytes, err := os.ReadFile(filepath.Join(dir, metaFileName))
	if err != nil {
		return nil, err
	}
	var meta arenaMeta
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return nil, fmt.Errorf("store: corrupt arena metadata: %w", err)
	}

	f, err := os.Open(filepath.Join(dir, arenaFileName))
	if err != nil {
		return nil, err
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &MmapArena{dir: dir, f: f, data: m, writable: false, meta: meta}, nil
}

// Bytes returns the full mapped arena. For a writable arena this spans
// the whole preallocated capacity, not just the live prefix; callers
// track their own write cursor and record it via SetLiveSize.
func (a *MmapArena) Bytes() ([]byte, error) {
	if a.closed {
		return nil, ErrClosed
	}
	return a.data, nil
}

// LiveSize returns the arena's last-recorded live size in bytes.
func (a *MmapArena) LiveSize() int64 { return a.meta.LiveSize }

// SetLiveSize records how many bytes from the start of the arena are
// actually live, persisting the update to meta.json immediately so a
// concurrent crash never leaves live size stale relative to what a
// reader can already see mapped.
func (a *MmapArena) SetLiveSize(n int64) error {
	if a.closed {
		return ErrClosed
	}
	if !a.writable {
		return errors.New("store: arena is read-only")
	}
	if n < 0 || n > a.meta.CapacityBytes {
		return fmt.Errorf("store: live size %d out of range [0, %d]", n, a.meta.CapacityBytes)
	}
	a.meta.LiveSize = n
	return a.writeMeta()
}

func (a *MmapArena) writeMeta() error {
	buf, err := json.Marshal(a.meta)
	if err != nil {
		return err
	}
	tmp := filepath.Join(a.dir, metaFileName+".tmp")
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(a.dir, metaFileName))
}

// Close unmaps and closes the arena file. If the arena was created
// writable with closeShrink set, the backing file is truncated to the
// last-recorded live size first.
func (a *MmapArena) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true

	if a.data != nil {
		if err := a.data.Unmap(); err != nil {
			return err
		}
		a.data = nil
	}
	if a.writable && a.meta.CloseShrink && a.f != nil {
		if err := a.f.Truncate(a.meta.LiveSize); err != nil {
			a.f.Close()
			return err
		}
	}
	if a.f != nil {
		err := a.f.Close()
		a.f = nil
		return err
	}
	return nil
}
