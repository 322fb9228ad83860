package alloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/arenakit/internal/format"
)

func TestFreeList_InitThreadsAscending(t *testing.T) {
	sp, a := newTestAllocator(t, FreeListStrategy, 8, 0)
	require.Equal(t, 8, a.ChunkCount())
	require.Equal(t, 8, a.FreeChunks())
	require.Zero(t, a.MaxChunks())

	for i := range 8 {
		off, err := a.Allocate(1)
		require.NoError(t, err)
		require.Equal(t, chunkOff(sp, i), off)
	}
	require.Zero(t, a.FreeChunks())
}

func TestFreeList_AllocateNeedsContiguousLinks(t *testing.T) {
	sp, a := newTestAllocator(t, FreeListStrategy, 8, 0)

	// Take every chunk one at a time, then free alternating chunks: four
	// free chunks, but no two of them adjacent.
	for range 8 {
		_, err := a.Allocate(1)
		require.NoError(t, err)
	}
	for _, i := range []int{0, 2, 4, 6} {
		require.NoError(t, a.Free(chunkOff(sp, i), 1))
	}
	require.Equal(t, 4, a.FreeChunks())

	_, err := a.Allocate(2)
	ex, ok := AsExhausted(err)
	require.True(t, ok, "expected exhaustion, got %v", err)
	require.Equal(t, int64(2*testChunk), ex.Needed)
	require.Equal(t, 2, ex.Chunks)
	require.Equal(t, 4, a.FreeChunks(), "failed allocate must not change state")

	off, err := a.Allocate(1)
	require.NoError(t, err)
	require.Equal(t, chunkOff(sp, 6), off, "most recently freed chunk is at the head")
}

func TestFreeList_UnlinksRunFromMiddleOfList(t *testing.T) {
	sp, a := newTestAllocator(t, FreeListStrategy, 5, 0)

	live := map[int64]int{}
	first, err := a.Allocate(2) // chunks 0,1
	require.NoError(t, err)
	second, err := a.Allocate(1) // chunk 2
	require.NoError(t, err)
	third, err := a.Allocate(2) // chunks 3,4
	require.NoError(t, err)

	require.NoError(t, a.Free(first, 2))
	require.NoError(t, a.Free(third, 2))
	require.NoError(t, a.Free(second, 1))
	// List is now 2 -> 3 -> 4 -> 0 -> 1.

	off, err := a.Allocate(2)
	require.NoError(t, err)
	require.Equal(t, chunkOff(sp, 2), off)
	live[off] = 2

	// Remaining list 4 -> 0 -> 1: the run 0,1 sits behind chunk 4 and
	// must be unlinked without dropping chunk 4.
	off, err = a.Allocate(2)
	require.NoError(t, err)
	require.Equal(t, chunkOff(sp, 0), off)
	live[off] = 2

	require.Equal(t, 1, a.FreeChunks())
	assertConsistent(t, sp, a, live)

	off, err = a.Allocate(1)
	require.NoError(t, err)
	require.Equal(t, chunkOff(sp, 4), off)
}

func TestFreeList_ExpandAppendsContiguousRun(t *testing.T) {
	sp, a := newTestAllocator(t, FreeListStrategy, 2, 0)
	_, err := a.Allocate(2)
	require.NoError(t, err)

	_, err = a.Allocate(3)
	_, ok := AsExhausted(err)
	require.True(t, ok)

	growBy(t, sp, a, 4)
	require.Equal(t, 6, a.ChunkCount())

	off, err := a.Allocate(3)
	require.NoError(t, err)
	require.Equal(t, chunkOff(sp, 2), off)
	assertConsistent(t, sp, a, map[int64]int{chunkOff(sp, 0): 2, off: 3})
}

func TestFreeList_ExpandWithoutStorage(t *testing.T) {
	_, a := newTestAllocator(t, FreeListStrategy, 2, 0)
	require.Error(t, a.Expand(4))
	require.Equal(t, 2, a.ChunkCount(), "failed expand must not change count")
}

func TestFreeList_TrimSuffixIncludingHead(t *testing.T) {
	sp, a := newTestAllocator(t, FreeListStrategy, 8, 0)
	keep, err := a.Allocate(2)
	require.NoError(t, err)
	tail, err := a.Allocate(6)
	require.NoError(t, err)
	require.NoError(t, a.Free(tail, 6)) // the suffix is now the whole list, head included

	reclaimed, err := a.Trim()
	require.NoError(t, err)
	require.Equal(t, int64(6*testChunk), reclaimed)
	require.Equal(t, 2, a.ChunkCount())
	require.Zero(t, a.FreeChunks())
	require.Zero(t, format.View(sp.Bytes()).AllocWord(), "list head cleared")
	assertConsistent(t, sp, a, map[int64]int{keep: 2})
}

func TestFreeList_TrimInterleavedNodes(t *testing.T) {
	sp, a := newTestAllocator(t, FreeListStrategy, 8, 0)
	for range 8 {
		_, err := a.Allocate(1)
		require.NoError(t, err)
	}
	for _, i := range []int{7, 1, 6} {
		require.NoError(t, a.Free(chunkOff(sp, i), 1))
	}
	// List 6 -> 1 -> 7: the suffix {6, 7} is split around chunk 1.

	reclaimed, err := a.Trim()
	require.NoError(t, err)
	require.Equal(t, int64(2*testChunk), reclaimed)
	require.Equal(t, 6, a.ChunkCount())
	require.Equal(t, 1, a.FreeChunks())

	live := map[int64]int{}
	for _, i := range []int{0, 2, 3, 4, 5} {
		live[chunkOff(sp, i)] = 1
	}
	assertConsistent(t, sp, a, live)

	off, err := a.Allocate(1)
	require.NoError(t, err)
	require.Equal(t, chunkOff(sp, 1), off)
}

func TestFreeList_TrimNothingAndEverything(t *testing.T) {
	_, a := newTestAllocator(t, FreeListStrategy, 4, 0)
	_, err := a.Allocate(4)
	require.NoError(t, err)
	reclaimed, err := a.Trim()
	require.NoError(t, err)
	require.Zero(t, reclaimed)

	_, b := newTestAllocator(t, FreeListStrategy, 4, 0)
	reclaimed, err = b.Trim()
	require.NoError(t, err)
	require.Equal(t, int64(4*testChunk), reclaimed)
	require.Zero(t, b.ChunkCount())
	require.NoError(t, b.Validate())
}

func TestFreeList_FreeRejectsBadRuns(t *testing.T) {
	sp, a := newTestAllocator(t, FreeListStrategy, 4, 0)
	require.ErrorIs(t, a.Free(chunkOff(sp, 0)+8, 1), ErrBadOffset)
	require.ErrorIs(t, a.Free(0, 1), ErrBadOffset)
	require.ErrorIs(t, a.Free(chunkOff(sp, 3), 2), ErrBadOffset)
	require.ErrorIs(t, a.Free(chunkOff(sp, 0), 0), ErrBadRequest)
	_, err := a.Allocate(0)
	require.ErrorIs(t, err, ErrBadRequest)
}

func TestFreeList_ValidateDetectsCycle(t *testing.T) {
	sp, a := newTestAllocator(t, FreeListStrategy, 4, 0)
	// Point chunk 2 back at chunk 0.
	format.PutI64(sp.Bytes(), int(chunkOff(sp, 2)), chunkOff(sp, 0))
	require.ErrorIs(t, a.Validate(), ErrCorrupt)
}

func TestFreeList_CheckBoundsHead(t *testing.T) {
	sp, a := newTestAllocator(t, FreeListStrategy, 4, 0)
	require.NoError(t, a.Check())
	h := format.View(sp.Bytes())

	h.SetAllocWord(uint64(len(sp.Bytes())) + 4096)
	require.ErrorIs(t, a.Check(), ErrCorrupt)

	h.SetAllocWord(uint64(chunkOff(sp, 1)) + 3)
	require.ErrorIs(t, a.Check(), ErrCorrupt)

	h.SetAllocWord(0)
	require.ErrorIs(t, a.Check(), ErrCorrupt, "free chunks with an empty list")

	h.SetAllocWord(uint64(chunkOff(sp, 0)))
	h.SetFreeChunks(5)
	require.ErrorIs(t, a.Check(), ErrCorrupt)
}

func TestFreeList_AllocateStopsAtBadLink(t *testing.T) {
	if debugChecks {
		t.Skip("corruption panics in debug builds")
	}
	sp, a := newTestAllocator(t, FreeListStrategy, 4, 0)
	// Chunk 1 links far past the end of the buffer.
	format.PutI64(sp.Bytes(), int(chunkOff(sp, 1)), 1<<40)
	require.NoError(t, a.Check(), "only the head is checked up front")

	_, err := a.Allocate(4)
	require.ErrorIs(t, err, ErrCorrupt)

	// The last chunk links to the chunk just past the region.
	sp, a = newTestAllocator(t, FreeListStrategy, 4, 0)
	format.PutI64(sp.Bytes(), int(chunkOff(sp, 3)), chunkOff(sp, 4))
	_, err = a.Allocate(5)
	_, exhausted := AsExhausted(err)
	require.True(t, exhausted, "more than the free count never walks")
	_, err = a.Allocate(4)
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestFreeList_SurvivesRelocation(t *testing.T) {
	sp, a := newTestAllocator(t, FreeListStrategy, 4, 0)
	off, err := a.Allocate(2)
	require.NoError(t, err)
	copy(sp.Bytes()[off:], "payload")

	// Reopen over a copy at a new address.
	moved := newMemSpace(sp.size)
	copy(moved.Bytes(), sp.Bytes())
	b, err := Open(moved)
	require.NoError(t, err)
	require.Equal(t, FreeListStrategy, b.Strategy())
	require.Equal(t, "payload", string(moved.Bytes()[off:off+7]))

	next, err := b.Allocate(2)
	require.NoError(t, err)
	require.Equal(t, chunkOff(moved, 2), next)
	require.NoError(t, b.Validate())
}
