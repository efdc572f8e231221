// Package store implements the on-disk file format a Tree is persisted to
// and the mmap-backed reader it is loaded from: a fixed little-endian
// header with a magic and version, mmap-go for read-only access, and
// unmap-then-close teardown.
package store

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// HeaderSize is the fixed header size on disk.
	HeaderSize = 64

	// Magic identifies a valid persisted tree file.
	Magic = "SIX1"

	// FormatVersion is the current on-disk format version.
	FormatVersion uint16 = 2
)

// ErrBadMagic is returned by DecodeHeader when src does not start with the
// expected magic bytes.
var ErrBadMagic = errors.New("store: not a spatial index file")

// ErrFutureVersion is returned by DecodeHeader when the file's format
// version is newer than this build understands.
var ErrFutureVersion = errors.New("store: file is in a future format version")

// Header is the fixed 64-byte prefix of a persisted tree file. It is
// followed by NumLevels uint64 level bounds, then NumBoxes tree nodes,
// then NumItems codec-encoded items of ItemSize bytes each.
type Header struct {
	Magic     [4]byte
	Version   uint16
	Pad0      uint16
	ItemSize  uint32
	NumItems  uint32
	NumBoxes  uint32
	NumLevels uint32
	FanOut    uint32
	Reserved  [36]byte
}

// EncodeHeader serializes h, stamping Magic and Version, and pads the
// result to HeaderSize.
func EncodeHeader(h *Header) ([]byte, error) {
	if h == nil {
		return nil, errors.New("store: nil header")
	}
	copy(h.Magic[:], Magic)
	h.Version = FormatVersion
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, h); err != nil {
		return nil, err
	}
	b := buf.Bytes()
	if len(b) > HeaderSize {
		return nil, fmt.Errorf("store: encoded header %d bytes exceeds HeaderSize %d", len(b), HeaderSize)
	}
	if len(b) < HeaderSize {
		padded := make([]byte, HeaderSize)
		copy(padded, b)
		return padded, nil
	}
	return b, nil
}

// DecodeHeader parses the header from the front of src, validating the
// magic and version.
func DecodeHeader(src []byte) (*Header, error) {
	if len(src) < HeaderSize {
		return nil, errors.New("store: file too short for header")
	}
	var h Header
	r := bytes.NewReader(src[:HeaderSize])
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, err
	}
	if string(h.Magic[:]) != Magic {
		return nil, ErrBadMagic
	}
	if h.Version > FormatVersion {
		return nil, fmt.Errorf("%w: file version %d, build supports up to %d", ErrFutureVersion, h.Version, FormatVersion)
	}
	if h.Version < FormatVersion {
		return nil, fmt.Errorf("store: file version %d predates this build's supported format %d", h.Version, FormatVersion)
	}
	return &h, nil
}
