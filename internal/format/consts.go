// Package format describes the on-disk and in-memory layout of an arena
// buffer. The arena is persisted verbatim, so the layout here is the file
// format: a fixed header, an optional bitmap, then a chunk-granular data
// region. Everything is little-endian and every offset is relative to the
// buffer base.
package format

// Magic is the eight-byte signature at the start of every arena buffer.
//
//	0x00  'O' 'F' 'F' 'A' 'R' 'E' 'N' 'A'
var Magic = []byte{'O', 'F', 'F', 'A', 'R', 'E', 'N', 'A'}

const (
	// Version is the only header version this package reads and writes.
	Version = 1

	// MagicOffset and MagicSize locate the signature.
	MagicOffset = 0x00
	MagicSize   = 8

	// VersionOffset holds the u32 format version.
	VersionOffset = 0x08

	// StrategyOffset holds the u32 allocator strategy identifier.
	StrategyOffset = 0x0C

	// ChunkSizeOffset holds the u32 chunk size in bytes (power of two).
	ChunkSizeOffset = 0x10

	// HeaderSizeOffset holds the u32 header size; the data region starts here.
	HeaderSizeOffset = 0x14

	// MaxChunksOffset holds the u32 bitmap capacity in chunks. Zero for the free list.
	MaxChunksOffset = 0x18

	// FlagsOffset is reserved and must be zero.
	FlagsOffset = 0x1C

	// GeometrySumOffset holds the xxh3 checksum of [0x00, GeometrySumOffset).
	GeometrySumOffset = 0x20

	// ChunkCountOffset holds the u64 number of chunks in the data region.
	ChunkCountOffset = 0x28

	// FreeChunksOffset holds the u64 number of free chunks.
	FreeChunksOffset = 0x30

	// AllocWordOffset is owned by the allocator strategy: the free-list head
	// offset, or the bitmap rolling hint.
	AllocWordOffset = 0x38

	// DirOffsetOffset holds the i64 offset of the root directory table (0 = none).
	DirOffsetOffset = 0x40

	// DirCountOffset holds the u32 number of live directory entries.
	DirCountOffset = 0x48

	// DirCapOffset holds the u32 capacity of the directory table in entries.
	DirCapOffset = 0x4C

	// FixedHeaderSize is the size of the fixed fields, reserved tail included.
	FixedHeaderSize = 0x80

	// BitmapOffset is where the bitmap strategy keeps its words.
	BitmapOffset = FixedHeaderSize
)

const (
	// DefaultChunkSize is the allocation granule used when none is configured.
	DefaultChunkSize = 64

	// MinChunkSize leaves room for the free-list link and keeps chunks 8-byte aligned.
	MinChunkSize = 16

	// MaxChunkSize bounds a single granule.
	MaxChunkSize = 1 << 20

	// DefaultMaxChunks is the bitmap capacity used when none is configured.
	DefaultMaxChunks = 1 << 14

	// MaxBitmapChunks bounds the bitmap so the header stays reasonable.
	MaxBitmapChunks = 1 << 26

	// WordBits is the number of chunks tracked by one bitmap word.
	WordBits = 64

	// FreeLinkSize is the size of the next-link stored in a free chunk.
	FreeLinkSize = 8
)

const (
	// DirEntrySize is the size of one root directory entry.
	//
	//	0x00  u64 name hash
	//	0x08  i64 object offset
	//	0x10  i64 name offset
	//	0x18  u32 name length
	//	0x1C  u32 object size
	DirEntrySize = 32

	DirHashOffset    = 0x00
	DirObjectOffset  = 0x08
	DirNameOffset    = 0x10
	DirNameLenOffset = 0x18
	DirSizeOffset    = 0x1C

	// MinDirCap is the capacity of a freshly allocated directory table.
	MinDirCap = 8

	// MaxNameLen bounds a root name.
	MaxNameLen = 1 << 12
)
