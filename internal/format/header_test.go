package format

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAlignUp(t *testing.T) {
	require.Equal(t, 64, AlignUp(1, 64))
	require.Equal(t, 64, AlignUp(64, 64))
	require.Equal(t, 128, AlignUp(65, 64))
	require.Equal(t, int64(8192), AlignUp(int64(4097), 4096))
	require.Equal(t, uint32(0), AlignUp(uint32(0), 16))
	require.Equal(t, 64, AlignDown(127, 64))
	require.True(t, IsPow2(64))
	require.False(t, IsPow2(96))
	require.False(t, IsPow2(0))
	require.Equal(t, 3, CeilDiv(129, 64))
}

func TestHeaderSizeFor(t *testing.T) {
	require.Equal(t, 128, HeaderSizeFor(64, 0))
	// 0x80 fixed + 16384/8 bitmap bytes, rounded to 64.
	require.Equal(t, 0x80+2048, HeaderSizeFor(64, 16384))
	require.Equal(t, 4096, HeaderSizeFor(4096, 64))
}

func TestWriteAndParseHeader(t *testing.T) {
	g := Geometry{Strategy: StrategyBitmap, ChunkSize: 64, MaxChunks: 256}
	b := make([]byte, g.HeaderSize()+10*64)
	for i := range b {
		b[i] = 0xAA
	}

	h, err := WriteHeader(b, g)
	require.NoError(t, err)
	require.Equal(t, g.HeaderSize(), h.HeaderSize())
	// The bitmap area is zeroed along with the fixed fields.
	for _, c := range b[BitmapOffset:g.HeaderSize()] {
		require.Zero(t, c)
	}

	h.SetChunkCount(10)
	h.SetFreeChunks(7)
	h.SetDirOffset(int64(g.HeaderSize()))

	parsed, err := ParseHeader(b)
	require.NoError(t, err)
	require.Equal(t, g, parsed.Geometry())
	require.Equal(t, uint64(10), parsed.ChunkCount())
	require.Equal(t, uint64(7), parsed.FreeChunks())
	require.Equal(t, int64(g.HeaderSize()+640), parsed.DataEnd())
}

func TestParseHeaderRejects(t *testing.T) {
	g := Geometry{Strategy: StrategyFreeList, ChunkSize: 64}
	fresh := func() []byte {
		b := make([]byte, g.HeaderSize()+4*64)
		h, err := WriteHeader(b, g)
		require.NoError(t, err)
		h.SetChunkCount(4)
		return b
	}

	t.Run("short", func(t *testing.T) {
		_, err := ParseHeader(make([]byte, 16))
		require.ErrorIs(t, err, ErrTruncated)
	})
	t.Run("magic", func(t *testing.T) {
		b := fresh()
		b[0] = 'X'
		_, err := ParseHeader(b)
		require.ErrorIs(t, err, ErrSignatureMismatch)
	})
	t.Run("checksum", func(t *testing.T) {
		b := fresh()
		PutU32(b, ChunkSizeOffset, 128)
		_, err := ParseHeader(b)
		require.ErrorIs(t, err, ErrChecksum)
	})
	t.Run("data region beyond buffer", func(t *testing.T) {
		b := fresh()
		View(b).SetChunkCount(5)
		_, err := ParseHeader(b)
		require.ErrorIs(t, err, ErrTruncated)
	})
	t.Run("free count above chunk count", func(t *testing.T) {
		b := fresh()
		View(b).SetFreeChunks(9)
		_, err := ParseHeader(b)
		require.ErrorIs(t, err, ErrGeometry)
	})
}

func TestGeometryValidate(t *testing.T) {
	require.NoError(t, Geometry{Strategy: StrategyFreeList, ChunkSize: 64}.Validate())
	require.ErrorIs(t, Geometry{Strategy: StrategyFreeList, ChunkSize: 48}.Validate(), ErrGeometry)
	require.ErrorIs(t, Geometry{Strategy: StrategyFreeList, ChunkSize: 8}.Validate(), ErrGeometry)
	require.ErrorIs(t, Geometry{Strategy: StrategyFreeList, ChunkSize: 64, MaxChunks: 64}.Validate(), ErrGeometry)
	require.ErrorIs(t, Geometry{Strategy: StrategyBitmap, ChunkSize: 64, MaxChunks: 100}.Validate(), ErrGeometry)
	require.ErrorIs(t, Geometry{Strategy: 9, ChunkSize: 64}.Validate(), ErrUnsupported)
}

func TestIsBlank(t *testing.T) {
	b := make([]byte, 4096)
	require.True(t, IsBlank(b))
	b[FixedHeaderSize-1] = 1
	require.False(t, IsBlank(b))
	require.False(t, IsBlank(make([]byte, 8)))
}
