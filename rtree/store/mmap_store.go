package store

import (
	"errors"
	"os"

	"github.com/edsrzf/mmap-go"
)

// ErrClosed is returned by MmapFile and MmapArena methods after Close.
var ErrClosed = errors.New("store: mmap file is closed")

// MmapFile is a read-only, mmap-backed view of a persisted tree file:
// open, Bytes(), unmap-then-close teardown.
type MmapFile struct {
	f    *os.File
	data mmap.MMap
}

// OpenMmap memory-maps path read-only.
func OpenMmap(path string) (*MmapFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &MmapFile{f: f, data: m}, nil
}

// Bytes returns the full mapped file. The slice is only valid until
// Close.
func (m *MmapFile) Bytes() ([]byte, error) {
	if m.data == nil {
		return nil, ErrClosed
	}
	return m.data, nil
}

// Close unmaps and closes the underlying file.
func (m *MmapFile) Close() error {
	if m.data != nil {
		if err := m.data.Unmap(); err != nil {
			return err
		}
		m.data = nil
	}
	if m.f != nil {
		err := m.f.Close()
		m.f = nil
		return err
	}
	return nil
}
