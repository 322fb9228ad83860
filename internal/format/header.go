package format

import (
	"bytes"

	"github.com/cockroachdb/errors"
	"github.com/zeebo/xxh3"

	"github.com/joshuapare/arenakit/internal/buf"
)

// Allocator strategy identifiers stored at StrategyOffset.
const (
	StrategyFreeList uint32 = 1
	StrategyBitmap   uint32 = 2
)

// Geometry is the immutable part of a header: fixed when the arena is
// created and covered by the geometry checksum.
type Geometry struct {
	Strategy  uint32
	ChunkSize int
	MaxChunks int // bitmap capacity; zero for the free list
}

// HeaderSize returns the chunk-aligned header size for g.
func (g Geometry) HeaderSize() int {
	return HeaderSizeFor(g.ChunkSize, g.MaxChunks)
}

// Validate checks that g describes a header this package can write.
func (g Geometry) Validate() error {
	if !IsPow2(g.ChunkSize) || g.ChunkSize < MinChunkSize || g.ChunkSize > MaxChunkSize {
		return errors.Wrapf(ErrGeometry, "chunk size %d must be a power of two in [%d, %d]",
			g.ChunkSize, MinChunkSize, MaxChunkSize)
	}
	switch g.Strategy {
	case StrategyFreeList:
		if g.MaxChunks != 0 {
			return errors.Wrapf(ErrGeometry, "free list takes no chunk ceiling (got %d)", g.MaxChunks)
		}
	case StrategyBitmap:
		if g.MaxChunks <= 0 || g.MaxChunks%WordBits != 0 || g.MaxChunks > MaxBitmapChunks {
			return errors.Wrapf(ErrGeometry, "bitmap capacity %d must be a positive multiple of %d up to %d",
				g.MaxChunks, WordBits, MaxBitmapChunks)
		}
	default:
		return errors.Wrapf(ErrUnsupported, "strategy %d", g.Strategy)
	}
	return nil
}

// Header is a zero-copy view over the header region. All accessors read and
// write the underlying bytes directly, so a Header must be re-derived after
// the buffer it views is relocated.
type Header struct {
	raw []byte
}

// View wraps b without validation. b must hold at least FixedHeaderSize bytes.
func View(b []byte) Header {
	return Header{raw: b}
}

// IsBlank reports whether the fixed header of b is entirely zero, which is
// how a freshly truncated file looks before it is formatted.
func IsBlank(b []byte) bool {
	if len(b) < FixedHeaderSize {
		return false
	}
	for _, c := range b[:FixedHeaderSize] {
		if c != 0 {
			return false
		}
	}
	return true
}

// GeometrySum computes the checksum stored at GeometrySumOffset.
func GeometrySum(b []byte) uint64 {
	return xxh3.Hash(b[:GeometrySumOffset])
}

// WriteHeader formats a fresh header for g at the start of b, zeroing the
// whole header region (bitmap included). Chunk bookkeeping is left at zero
// for the allocator to initialise.
func WriteHeader(b []byte, g Geometry) (Header, error) {
	if err := g.Validate(); err != nil {
		return Header{}, err
	}
	hs := g.HeaderSize()
	if len(b) < hs {
		return Header{}, errors.Wrapf(ErrTruncated, "need %d header bytes, have %d", hs, len(b))
	}
	clear(b[:hs])
	copy(b[MagicOffset:MagicOffset+MagicSize], Magic)
	PutU32(b, VersionOffset, Version)
	PutU32(b, StrategyOffset, g.Strategy)
	PutU32(b, ChunkSizeOffset, uint32(g.ChunkSize))
	PutU32(b, HeaderSizeOffset, uint32(hs))
	PutU32(b, MaxChunksOffset, uint32(g.MaxChunks))
	PutU64(b, GeometrySumOffset, GeometrySum(b))
	return Header{raw: b}, nil
}

// ParseHeader validates the header at the start of b and returns a view.
// It checks signature, version, checksum, geometry and that the data region
// described by the header fits inside b. Trailing bytes beyond the data
// region are allowed; callers decide what to do with them.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < FixedHeaderSize {
		return Header{}, errors.Wrapf(ErrTruncated, "buffer too small for header (%d)", len(b))
	}
	if !bytes.Equal(b[MagicOffset:MagicOffset+MagicSize], Magic) {
		return Header{}, ErrSignatureMismatch
	}
	h := Header{raw: b}
	if v := ReadU32(b, VersionOffset); v != Version {
		return Header{}, errors.Wrapf(ErrUnsupported, "version %d", v)
	}
	if sum := ReadU64(b, GeometrySumOffset); sum != GeometrySum(b) {
		return Header{}, errors.Wrapf(ErrChecksum, "stored %#x", sum)
	}
	g := h.Geometry()
	if err := g.Validate(); err != nil {
		return Header{}, err
	}
	if hs := h.HeaderSize(); hs != g.HeaderSize() {
		return Header{}, errors.Wrapf(ErrGeometry, "header size %d, expected %d", hs, g.HeaderSize())
	}
	if ReadU32(b, FlagsOffset) != 0 {
		return Header{}, errors.Wrap(ErrUnsupported, "non-zero flags")
	}
	dataBytes, ok := buf.MulOverflowSafe(int64(h.ChunkCount()), int64(g.ChunkSize))
	if !ok {
		return Header{}, errors.Wrapf(ErrGeometry, "chunk count %d overflows", h.ChunkCount())
	}
	if _, err := buf.CheckSpan(int64(len(b)), int64(h.HeaderSize()), dataBytes); err != nil {
		return Header{}, errors.Wrapf(ErrTruncated, "data region: %v", err)
	}
	if h.FreeChunks() > h.ChunkCount() {
		return Header{}, errors.Wrapf(ErrGeometry, "free chunks %d > chunk count %d", h.FreeChunks(), h.ChunkCount())
	}
	if g.Strategy == StrategyBitmap && h.ChunkCount() > uint64(g.MaxChunks) {
		return Header{}, errors.Wrapf(ErrGeometry, "chunk count %d > bitmap capacity %d", h.ChunkCount(), g.MaxChunks)
	}
	return h, nil
}

// Raw returns the bytes the header views.
func (h Header) Raw() []byte { return h.raw }

// Geometry returns the immutable geometry fields.
func (h Header) Geometry() Geometry {
	return Geometry{
		Strategy:  h.Strategy(),
		ChunkSize: h.ChunkSize(),
		MaxChunks: h.MaxChunks(),
	}
}

// Strategy returns the allocator strategy identifier.
func (h Header) Strategy() uint32 { return ReadU32(h.raw, StrategyOffset) }

// ChunkSize returns the chunk size in bytes.
func (h Header) ChunkSize() int { return int(ReadU32(h.raw, ChunkSizeOffset)) }

// HeaderSize returns the offset of the first data chunk.
func (h Header) HeaderSize() int { return int(ReadU32(h.raw, HeaderSizeOffset)) }

// MaxChunks returns the bitmap capacity, or zero for the free list.
func (h Header) MaxChunks() int { return int(ReadU32(h.raw, MaxChunksOffset)) }

func (h Header) ChunkCount() uint64     { return ReadU64(h.raw, ChunkCountOffset) }
func (h Header) SetChunkCount(n uint64) { PutU64(h.raw, ChunkCountOffset, n) }
func (h Header) FreeChunks() uint64     { return ReadU64(h.raw, FreeChunksOffset) }
func (h Header) SetFreeChunks(n uint64) { PutU64(h.raw, FreeChunksOffset, n) }
func (h Header) AllocWord() uint64      { return ReadU64(h.raw, AllocWordOffset) }
func (h Header) SetAllocWord(v uint64)  { PutU64(h.raw, AllocWordOffset, v) }
func (h Header) DirOffset() int64       { return ReadI64(h.raw, DirOffsetOffset) }
func (h Header) SetDirOffset(off int64) { PutI64(h.raw, DirOffsetOffset, off) }
func (h Header) DirCount() int          { return int(ReadU32(h.raw, DirCountOffset)) }
func (h Header) SetDirCount(n int)      { PutU32(h.raw, DirCountOffset, uint32(n)) }
func (h Header) DirCap() int            { return int(ReadU32(h.raw, DirCapOffset)) }
func (h Header) SetDirCap(n int)        { PutU32(h.raw, DirCapOffset, uint32(n)) }

// DataEnd returns the logical buffer size: header plus every chunk.
func (h Header) DataEnd() int64 {
	return int64(h.HeaderSize()) + int64(h.ChunkCount())*int64(h.ChunkSize())
}
