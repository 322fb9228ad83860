// Package mmfile maps arena files into memory. A Mapping is either
// read-only (zero copy, pages shared with the page cache) or read-write
// (MAP_SHARED, so stores reach the file). Read-write mappings can be
// resized; the file is truncated and the region remapped, which moves the
// base address.
//
// On platforms without mmap support the file is read into an aligned heap
// buffer and written back on Flush and Close.
package mmfile

import (
	"os"

	"github.com/cockroachdb/errors"
)

var (
	// ErrReadOnly is returned when resizing or flushing a read-only mapping.
	ErrReadOnly = errors.New("mmfile: mapping is read-only")
	// ErrClosed is returned for operations on a closed mapping.
	ErrClosed = errors.New("mmfile: mapping is closed")
	// ErrEmpty is returned when opening a zero-length file.
	ErrEmpty = errors.New("mmfile: file is empty")
	// ErrTooLarge is returned when a size does not fit the address space.
	ErrTooLarge = errors.New("mmfile: size too large to map")
)

// FlushMode controls the durability of Flush.
type FlushMode int

const (
	// FlushAuto writes dirty pages with msync and then fdatasync (fsync on darwin).
	FlushAuto FlushMode = iota

	// FlushDataOnly only issues msync. Metadata such as the file size may
	// not be durable after a crash.
	FlushDataOnly

	// FlushFull is FlushAuto with F_FULLFSYNC on darwin so the drive cache
	// is flushed too. Identical to FlushAuto elsewhere.
	FlushFull
)

func (m FlushMode) String() string {
	switch m {
	case FlushAuto:
		return "auto"
	case FlushDataOnly:
		return "data"
	case FlushFull:
		return "full"
	default:
		return "unknown"
	}
}

// Mapping is a file-backed byte region.
type Mapping struct {
	f        *os.File
	path     string
	data     []byte
	words    []uint64 // heap backing on platforms without mmap
	size     int64
	writable bool
	closed   bool
}

// Bytes returns the mapped region. The slice is invalidated by Resize and Close.
func (m *Mapping) Bytes() []byte { return m.data }

// Size returns the mapped length, which equals the file size.
func (m *Mapping) Size() int64 { return m.size }

// Writable reports whether stores to Bytes reach the file.
func (m *Mapping) Writable() bool { return m.writable }

// Path returns the file path the mapping was opened from.
func (m *Mapping) Path() string { return m.path }

func checkSize(size int64) error {
	if size < 0 || size > int64(^uint(0)>>1) {
		return errors.Wrapf(ErrTooLarge, "%d bytes", size)
	}
	return nil
}

func (m *Mapping) checkResize(newSize int64) error {
	if m == nil || m.closed {
		return ErrClosed
	}
	if !m.writable {
		return ErrReadOnly
	}
	if newSize <= 0 {
		return errors.Newf("mmfile: resize to %d bytes", newSize)
	}
	return checkSize(newSize)
}
