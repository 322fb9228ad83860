package alloc

import (
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/joshuapare/arenakit/internal/format"
)

// Strategy selects the free-space bookkeeping scheme.
type Strategy uint32

const (
	FreeListStrategy Strategy = Strategy(format.StrategyFreeList)
	BitmapStrategy   Strategy = Strategy(format.StrategyBitmap)
)

func (s Strategy) String() string {
	switch s {
	case FreeListStrategy:
		return "freelist"
	case BitmapStrategy:
		return "bitmap"
	default:
		return "unknown"
	}
}

// ParseStrategy maps a strategy name to its identifier.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(name) {
	case "freelist", "free-list", "list":
		return FreeListStrategy, nil
	case "bitmap", "bits":
		return BitmapStrategy, nil
	}
	return 0, errors.Wrapf(ErrUnknownStrategy, "%q", name)
}

// Space is the byte region an allocator manages. Bytes must return the
// current storage, header included; it may return a different slice after
// the owner reallocates.
type Space interface {
	Bytes() []byte
}

// Allocator hands out runs of contiguous chunks from a Space. Offsets are
// byte displacements from the start of the Space.
//
// Implementations:
//   - FreeList: intrusive list of free chunks, no capacity ceiling
//   - Bitmap: one bit per chunk with a fixed capacity
type Allocator interface {
	// Strategy identifies the implementation.
	Strategy() Strategy

	// Init formats the free-space structure for a fresh data region of
	// chunks chunks, all free. The header geometry must already be written.
	Init(chunks int) error

	// Expand hands chunks new chunks, appended after the current data
	// region, to the free structure. The Space must already be large enough.
	Expand(chunks int) error

	// Allocate reserves n contiguous chunks and returns the offset of the
	// first. It returns *ExhaustedError when the current region cannot
	// satisfy the request, or ErrOversize when no region ever could.
	Allocate(n int) (int64, error)

	// Free releases the n chunks starting at off.
	Free(off int64, n int) error

	// Trim drops the maximal run of free chunks at the end of the data
	// region and returns its length in bytes. The caller shrinks storage.
	Trim() (int64, error)

	ChunkCount() int
	FreeChunks() int

	// MaxChunks returns the capacity ceiling, or zero if unbounded.
	MaxChunks() int

	// Visit calls fn for each maximal run of chunks in address order.
	Visit(fn func(off int64, chunks int, free bool) error) error

	// Check verifies the header fields the allocator dereferences without
	// walking the whole structure. It is run on every open.
	Check() error

	// Validate checks the free-space structure against the header.
	Validate() error
}

var (
	_ Allocator = (*FreeList)(nil)
	_ Allocator = (*Bitmap)(nil)
)

// New opens an allocator of strategy s over sp.
func New(s Strategy, sp Space) (Allocator, error) {
	switch s {
	case FreeListStrategy:
		return &FreeList{sp: sp}, nil
	case BitmapStrategy:
		return &Bitmap{sp: sp}, nil
	default:
		return nil, errors.Wrapf(ErrUnknownStrategy, "id %d", uint32(s))
	}
}

// Open opens the allocator recorded in the header of sp.
func Open(sp Space) (Allocator, error) {
	return New(Strategy(format.View(sp.Bytes()).Strategy()), sp)
}
