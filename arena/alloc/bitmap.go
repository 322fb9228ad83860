package alloc

import (
	"unsafe"

	"github.com/bits-and-blooms/bitset"
	"github.com/cockroachdb/errors"

	"github.com/joshuapare/arenakit/internal/format"
)

// Bitmap keeps one bit per chunk (1 = used) in the header, starting at
// format.BitmapOffset. Capacity is fixed at creation; bits at or beyond the
// current chunk count are kept set so searches never run past the data
// region. The header allocator word holds the rolling search hint.
//
// Bitmap words are stored in native byte order and aliased in place, so the
// Space base must be 8-byte aligned.
type Bitmap struct {
	sp Space
}

func (m *Bitmap) Strategy() Strategy { return BitmapStrategy }

func (m *Bitmap) ChunkCount() int { return int(format.View(m.sp.Bytes()).ChunkCount()) }

func (m *Bitmap) FreeChunks() int { return int(format.View(m.sp.Bytes()).FreeChunks()) }

func (m *Bitmap) MaxChunks() int { return format.View(m.sp.Bytes()).MaxChunks() }

// words aliases the bitmap inside the header.
func words(l layout) []uint64 {
	n := l.h.MaxChunks() / format.WordBits
	return unsafe.Slice((*uint64)(unsafe.Pointer(&l.b[format.BitmapOffset])), n)
}

func (m *Bitmap) Init(chunks int) error {
	l := load(m.sp)
	maxc := l.h.MaxChunks()
	if chunks < 0 {
		return errors.Wrapf(ErrBadRequest, "init with %d chunks", chunks)
	}
	if chunks > maxc {
		return errors.Wrapf(ErrOversize, "%d chunks exceeds bitmap capacity %d", chunks, maxc)
	}
	l.h.SetChunkCount(uint64(chunks))
	l = load(m.sp)
	if err := l.checkStorage(); err != nil {
		return err
	}
	w := words(l)
	clear(w)
	setRange(w, chunks, maxc)
	l.h.SetFreeChunks(uint64(chunks))
	l.h.SetAllocWord(0)
	return nil
}

func (m *Bitmap) Expand(chunks int) error {
	if chunks < 0 {
		return errors.Wrapf(ErrBadRequest, "expand by %d chunks", chunks)
	}
	if chunks == 0 {
		return nil
	}
	l := load(m.sp)
	old, maxc := l.count, l.h.MaxChunks()
	if old+chunks > maxc {
		return errors.Wrapf(ErrOversize, "%d chunks exceeds bitmap capacity %d", old+chunks, maxc)
	}
	l.h.SetChunkCount(uint64(old + chunks))
	l = load(m.sp)
	if err := l.checkStorage(); err != nil {
		l.h.SetChunkCount(uint64(old))
		return err
	}
	clearRange(words(l), old, old+chunks)
	l.h.SetFreeChunks(l.h.FreeChunks() + uint64(chunks))
	return nil
}

// findRun returns the first start index in [from, limit) of n consecutive
// clear bits.
func findRun(bs *bitset.BitSet, n, from, limit uint) (uint, bool) {
	for i := from; i < limit; {
		s, ok := bs.NextClear(i)
		if !ok || s >= limit {
			return 0, false
		}
		e, ok := bs.NextSet(s)
		if !ok {
			e = bs.Len()
		}
		if e-s >= n {
			return s, true
		}
		i = e
	}
	return 0, false
}

// Allocate searches from the hint to the end of the data region, then wraps
// once to the beginning. On success the hint moves just past the run.
func (m *Bitmap) Allocate(n int) (int64, error) {
	if n <= 0 {
		return 0, errors.Wrapf(ErrBadRequest, "allocate %d chunks", n)
	}
	l := load(m.sp)
	if maxc := l.h.MaxChunks(); n > maxc {
		return 0, errors.Wrapf(ErrOversize, "%d chunks exceeds bitmap capacity %d", n, maxc)
	}
	free := l.freeChunks()
	if n <= free {
		w := words(l)
		bs := bitset.From(w)
		count := uint(l.count)
		hint := uint(l.h.AllocWord())
		if hint >= count {
			hint = 0
		}
		start, ok := findRun(bs, uint(n), hint, count)
		if !ok && hint > 0 {
			start, ok = findRun(bs, uint(n), 0, hint)
		}
		if ok {
			s := int(start)
			setRange(w, s, s+n)
			l.h.SetFreeChunks(uint64(free - n))
			next := uint64(s + n)
			if next >= uint64(l.count) {
				next = 0
			}
			l.h.SetAllocWord(next)
			return l.off(s), nil
		}
	}
	return 0, &ExhaustedError{Needed: int64(n) * l.cs, Chunks: n}
}

func (m *Bitmap) Free(off int64, n int) error {
	l := load(m.sp)
	if err := l.checkRun(off, n); err != nil {
		return err
	}
	w := words(l)
	idx := l.index(off)
	if !allSet(w, idx, idx+n) {
		return invariant(errors.Wrapf(ErrDoubleFree, "run %#x+%d chunks", off, n))
	}
	clearRange(w, idx, idx+n)
	l.h.SetFreeChunks(l.h.FreeChunks() + uint64(n))
	return nil
}

// Trim scans backwards from the last chunk for the last used bit and drops
// every chunk after it. Dropped bits are set again, as beyond-capacity bits
// always are.
func (m *Bitmap) Trim() (int64, error) {
	l := load(m.sp)
	w := words(l)
	cut := 0
	if last, ok := lastSetBelow(w, l.count); ok {
		cut = last + 1
	}
	if cut == l.count {
		return 0, nil
	}
	dropped := l.count - cut
	setRange(w, cut, l.count)
	l.h.SetChunkCount(uint64(cut))
	l.h.SetFreeChunks(uint64(l.freeChunks() - dropped))
	if l.h.AllocWord() >= uint64(cut) {
		l.h.SetAllocWord(0)
	}
	return int64(dropped) * l.cs, nil
}

func (m *Bitmap) Visit(fn func(off int64, chunks int, free bool) error) error {
	l := load(m.sp)
	bs := bitset.From(words(l))
	return visitRuns(l, func(i uint) bool { return !bs.Test(i) }, fn)
}

// Check validates the bitmap, which is one pass over at most MaxChunks bits,
// and the search hint.
func (m *Bitmap) Check() error {
	l := load(m.sp)
	if hint := l.h.AllocWord(); hint != 0 && hint >= uint64(l.count) {
		return errors.Wrapf(ErrCorrupt, "search hint %d past %d chunks", hint, l.count)
	}
	return m.Validate()
}

func (m *Bitmap) Validate() error {
	l := load(m.sp)
	maxc := l.h.MaxChunks()
	if maxc <= 0 || maxc%format.WordBits != 0 {
		return invariant(errors.Wrapf(ErrCorrupt, "bitmap capacity %d", maxc))
	}
	if l.count > maxc {
		return invariant(errors.Wrapf(ErrCorrupt, "chunk count %d exceeds capacity %d", l.count, maxc))
	}
	if err := l.checkStorage(); err != nil {
		return err
	}
	w := words(l)
	if !allSet(w, l.count, maxc) {
		return invariant(errors.Wrap(ErrCorrupt, "bits beyond chunk count are clear"))
	}
	if free := l.count - countSet(w, 0, l.count); free != l.freeChunks() {
		return invariant(errors.Wrapf(ErrCorrupt, "bitmap has %d free chunks, header says %d", free, l.freeChunks()))
	}
	return nil
}
