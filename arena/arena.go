package arena

import (
	"log/slog"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"

	"github.com/joshuapare/arenakit/arena/alloc"
	"github.com/joshuapare/arenakit/internal/format"
	"github.com/joshuapare/arenakit/internal/mmfile"
)

type storageMode int

const (
	modeHeap storageMode = iota
	modeMappedRO
	modeMappedRW
)

func (m storageMode) String() string {
	switch m {
	case modeHeap:
		return "heap"
	case modeMappedRO:
		return "mapped-ro"
	case modeMappedRW:
		return "mapped-rw"
	default:
		return "unknown"
	}
}

// Arena is a relocatable buffer hosting an allocator, a root directory and
// the objects reachable from it. len(data) is always the logical size:
// header plus every chunk.
type Arena struct {
	data    []byte
	words   []uint64        // heap backing, keeps data 8-byte aligned
	mapping *mmfile.Mapping // mapped modes
	mode    storageMode

	alloc alloc.Allocator
	opts  Options
	log   *slog.Logger

	// names caches canonical root name -> directory index. The directory in
	// the buffer is authoritative; the cache is rebuilt at open.
	names *swiss.Map[string, int]

	closed bool

	grows, shrinks, retries int
}

// New creates a heap arena of about size bytes, header included. size is
// rounded up to a whole chunk and to at least the header size.
func New(size int, opts ...Option) (*Arena, error) {
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	g := o.geometry()
	if err := g.Validate(); err != nil {
		return nil, errors.Wrap(err, "arena: new")
	}
	total := max(format.AlignUp(size, g.ChunkSize), g.HeaderSize())
	if o.MaxSize > 0 && int64(total) > o.MaxSize {
		return nil, errors.Wrapf(ErrOversize, "initial size %d exceeds max size %d", total, o.MaxSize)
	}

	a := &Arena{mode: modeHeap, opts: o, log: o.Logger}
	a.setHeap(total)
	if err := a.format(g); err != nil {
		return nil, err
	}
	a.log.Info("arena created",
		slog.String("strategy", o.Strategy.String()),
		slog.Int("size", total),
		slog.Int("chunk_size", g.ChunkSize))
	return a, nil
}

// Bytes returns the whole buffer, header included. The slice is invalidated
// by anything that can move the buffer.
func (a *Arena) Bytes() []byte { return a.data }

// Base returns the current address of byte 0.
func (a *Arena) Base() uintptr {
	if len(a.data) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&a.data[0]))
}

// Size returns the buffer size in bytes.
func (a *Arena) Size() int { return len(a.data) }

// FreeBytes returns the bytes held in free chunks.
func (a *Arena) FreeBytes() int64 {
	return int64(a.alloc.FreeChunks()) * int64(a.ChunkSize())
}

// ChunkSize returns the allocation granule.
func (a *Arena) ChunkSize() int { return a.header().ChunkSize() }

// HeaderSize returns the offset of the first data chunk.
func (a *Arena) HeaderSize() int { return a.header().HeaderSize() }

// Strategy returns the allocator strategy recorded in the header.
func (a *Arena) Strategy() alloc.Strategy { return a.alloc.Strategy() }

// Allocator exposes the chunk allocator, for inspection and tooling.
func (a *Arena) Allocator() alloc.Allocator { return a.alloc }

// ReadOnly reports whether the arena is a read-only mapping.
func (a *Arena) ReadOnly() bool { return a.mode == modeMappedRO }

// Mapped reports whether the arena is backed by a file mapping.
func (a *Arena) Mapped() bool { return a.mode != modeHeap }

func (a *Arena) header() format.Header { return format.View(a.data) }

func (a *Arena) checkOpen() error {
	if a == nil || a.closed {
		return ErrClosed
	}
	return nil
}

func (a *Arena) checkWritable() error {
	if err := a.checkOpen(); err != nil {
		return err
	}
	if a.mode == modeMappedRO {
		return ErrReadOnly
	}
	return nil
}

// setHeap replaces the storage with a zeroed, aligned heap buffer.
func (a *Arena) setHeap(size int) {
	a.words = make([]uint64, format.CeilDiv(size, 8))
	a.data = unsafe.Slice((*byte)(unsafe.Pointer(&a.words[0])), len(a.words)*8)[:size]
}

// resize changes the storage size, preserving min(old, new) bytes. The base
// address may change.
func (a *Arena) resize(size int) error {
	switch a.mode {
	case modeHeap:
		old := a.data
		a.setHeap(size)
		copy(a.data, old)
		return nil
	case modeMappedRW:
		if err := a.mapping.Resize(int64(size)); err != nil {
			a.data = a.mapping.Bytes()
			return err
		}
		a.data = a.mapping.Bytes()
		return nil
	default:
		return ErrReadOnly
	}
}

// format writes a fresh header for g over the current storage and hands
// every chunk after it to a new allocator.
func (a *Arena) format(g format.Geometry) error {
	if _, err := format.WriteHeader(a.data, g); err != nil {
		return errors.Wrap(err, "arena: format")
	}
	al, err := alloc.New(alloc.Strategy(g.Strategy), a)
	if err != nil {
		return err
	}
	chunks := (len(a.data) - g.HeaderSize()) / g.ChunkSize
	if err := al.Init(chunks); err != nil {
		return errors.Wrap(err, "arena: format")
	}
	a.alloc = al
	a.names = swiss.NewMap[string, int](uint32(format.MinDirCap))
	return nil
}

// adopt opens the allocator and directory recorded in an existing image.
func (a *Arena) adopt() error {
	if a.Base()%8 != 0 {
		return errors.Wrapf(ErrMisaligned, "base %#x", a.Base())
	}
	al, err := alloc.Open(a)
	if err != nil {
		return errors.Mark(err, ErrInvalidArena)
	}
	if err := al.Check(); err != nil {
		return errors.Mark(err, ErrInvalidArena)
	}
	a.alloc = al
	if err := a.loadDirectory(); err != nil {
		return errors.Mark(err, ErrInvalidArena)
	}
	if a.opts.Verify || debugChecks {
		if err := a.Validate(); err != nil {
			return errors.Mark(err, ErrInvalidArena)
		}
	}
	return nil
}

// Close releases the storage. Mapped read-write arenas are not flushed;
// call Flush first for durability.
func (a *Arena) Close() error {
	if a == nil || a.closed {
		return nil
	}
	a.closed = true
	var err error
	if a.mapping != nil {
		err = a.mapping.Close()
		a.mapping = nil
	}
	a.data, a.words = nil, nil
	a.alloc = nil
	a.names = nil
	return err
}
