package alloc

import (
	"sort"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/arenakit/internal/format"
)

const testChunk = 64

// memSpace is a heap Space whose resize always reallocates, so every grow
// moves the base address.
type memSpace struct {
	words []uint64
	size  int
}

func newMemSpace(size int) *memSpace {
	return &memSpace{words: make([]uint64, (size+7)/8), size: size}
}

func (s *memSpace) Bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(&s.words[0])), s.size)
}

func (s *memSpace) resize(size int) {
	nw := make([]uint64, (size+7)/8)
	copy(nw, s.words)
	s.words, s.size = nw, size
}

// newTestAllocator formats a space of chunks data chunks for strategy s.
// maxChunks is only used by the bitmap.
func newTestAllocator(t testing.TB, s Strategy, chunks, maxChunks int) (*memSpace, Allocator) {
	t.Helper()
	g := format.Geometry{Strategy: uint32(s), ChunkSize: testChunk}
	if s == BitmapStrategy {
		g.MaxChunks = maxChunks
	}
	sp := newMemSpace(g.HeaderSize() + chunks*testChunk)
	_, err := format.WriteHeader(sp.Bytes(), g)
	require.NoError(t, err)

	a, err := New(s, sp)
	require.NoError(t, err)
	require.NoError(t, a.Init(chunks))
	require.NoError(t, a.Validate())
	return sp, a
}

// growBy extends the space and hands the new chunks to the allocator.
func growBy(t testing.TB, sp *memSpace, a Allocator, chunks int) {
	t.Helper()
	sp.resize(sp.size + chunks*testChunk)
	require.NoError(t, a.Expand(chunks))
}

// chunkOff returns the offset of chunk idx.
func chunkOff(sp *memSpace, idx int) int64 {
	return int64(format.View(sp.Bytes()).HeaderSize()) + int64(idx)*testChunk
}

// assertConsistent checks that live runs are pairwise disjoint, inside the
// data region, reported as used by Visit, and that the accounting adds up.
func assertConsistent(t testing.TB, sp *memSpace, a Allocator, live map[int64]int) {
	t.Helper()
	require.NoError(t, a.Validate())

	h := format.View(sp.Bytes())
	start := int64(h.HeaderSize())
	end := h.DataEnd()

	offs := make([]int64, 0, len(live))
	used := 0
	for off, n := range live {
		offs = append(offs, off)
		used += n
		require.GreaterOrEqual(t, off, start, "run overlaps header")
		require.LessOrEqual(t, off+int64(n)*testChunk, end, "run past data end")
	}
	sort.Slice(offs, func(i, j int) bool { return offs[i] < offs[j] })
	for i := 1; i < len(offs); i++ {
		prevEnd := offs[i-1] + int64(live[offs[i-1]])*testChunk
		require.LessOrEqual(t, prevEnd, offs[i], "runs at %#x and %#x overlap", offs[i-1], offs[i])
	}

	require.Equal(t, a.ChunkCount(), used+a.FreeChunks())

	usedByVisit := make(map[int64]bool)
	require.NoError(t, a.Visit(func(off int64, chunks int, free bool) error {
		for i := 0; i < chunks; i++ {
			if !free {
				usedByVisit[off+int64(i)*testChunk] = true
			}
		}
		return nil
	}))
	require.Len(t, usedByVisit, used)
	for off, n := range live {
		for i := 0; i < n; i++ {
			require.True(t, usedByVisit[off+int64(i)*testChunk], "live chunk %#x reported free", off+int64(i)*testChunk)
		}
	}
}
