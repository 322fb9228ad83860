package alloc

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/cockroachdb/errors"

	"github.com/joshuapare/arenakit/internal/format"
)

// FreeList threads free chunks into a singly linked list. The first eight
// bytes of each free chunk hold the offset of the next free chunk (0 ends
// the list); the head offset lives in the header allocator word.
//
// Runs are pushed in ascending address order, so a freshly initialised or
// expanded region is one long chain of byte-contiguous links and large
// requests are satisfied from it without fragmentation.
type FreeList struct {
	sp Space
}

// headSlot is the pseudo link slot meaning "the list head in the header".
const headSlot = int64(-1)

func (f *FreeList) Strategy() Strategy { return FreeListStrategy }

func (f *FreeList) ChunkCount() int { return int(format.View(f.sp.Bytes()).ChunkCount()) }

func (f *FreeList) FreeChunks() int { return int(format.View(f.sp.Bytes()).FreeChunks()) }

func (f *FreeList) MaxChunks() int { return 0 }

func next(b []byte, off int64) int64 { return format.ReadI64(b, int(off)) }

func setNext(b []byte, off, v int64) { format.PutI64(b, int(off), v) }

func head(l layout) int64 { return int64(l.h.AllocWord()) }

// relink points slot (a chunk offset, or headSlot) at v.
func relink(l layout, slot, v int64) {
	if slot == headSlot {
		l.h.SetAllocWord(uint64(v))
		return
	}
	setNext(l.b, slot, v)
}

// pushRun links n chunks starting at off in ascending order in front of the
// current head.
func pushRun(l layout, off int64, n int) {
	if n <= 0 {
		return
	}
	last := off + int64(n-1)*l.cs
	for c := off; c < last; c += l.cs {
		setNext(l.b, c, c+l.cs)
	}
	setNext(l.b, last, head(l))
	l.h.SetAllocWord(uint64(off))
	l.h.SetFreeChunks(l.h.FreeChunks() + uint64(n))
}

func (f *FreeList) Init(chunks int) error {
	if chunks < 0 {
		return errors.Wrapf(ErrBadRequest, "init with %d chunks", chunks)
	}
	l := load(f.sp)
	l.h.SetChunkCount(uint64(chunks))
	l.h.SetFreeChunks(0)
	l.h.SetAllocWord(0)
	l = load(f.sp)
	if err := l.checkStorage(); err != nil {
		return err
	}
	pushRun(l, l.start, chunks)
	return nil
}

func (f *FreeList) Expand(chunks int) error {
	if chunks < 0 {
		return errors.Wrapf(ErrBadRequest, "expand by %d chunks", chunks)
	}
	if chunks == 0 {
		return nil
	}
	l := load(f.sp)
	old := l.count
	l.h.SetChunkCount(uint64(old + chunks))
	l = load(f.sp)
	if err := l.checkStorage(); err != nil {
		l.h.SetChunkCount(uint64(old))
		return err
	}
	pushRun(l, l.off(old), chunks)
	return nil
}

// Allocate walks the list looking for n consecutive links whose targets are
// exactly one chunk apart. When a run breaks, the scan resumes at the node
// that broke it, so the walk is linear in the list length.
func (f *FreeList) Allocate(n int) (int64, error) {
	if n <= 0 {
		return 0, errors.Wrapf(ErrBadRequest, "allocate %d chunks", n)
	}
	l := load(f.sp)
	free := l.freeChunks()
	if n <= free {
		slot, cur := headSlot, head(l)
		if !l.isChunk(cur) {
			return 0, invariant(errors.Wrapf(ErrCorrupt, "list head %#x outside data region", cur))
		}
		visited := 0
		for cur != 0 {
			run, last := 1, cur
			nxt := next(l.b, last)
			for run < n && nxt == last+l.cs && nxt < l.end() {
				last = nxt
				nxt = next(l.b, last)
				run++
			}
			if nxt != 0 && !l.isChunk(nxt) {
				return 0, invariant(errors.Wrapf(ErrCorrupt, "link %#x at %#x outside data region", nxt, last))
			}
			visited += run
			if run == n {
				relink(l, slot, nxt)
				l.h.SetFreeChunks(uint64(free - n))
				return cur, nil
			}
			if visited > free {
				return 0, invariant(errors.Wrapf(ErrCorrupt, "list longer than %d free chunks", free))
			}
			slot, cur = last, nxt
		}
	}
	return 0, &ExhaustedError{Needed: int64(n) * l.cs, Chunks: n}
}

func (f *FreeList) Free(off int64, n int) error {
	l := load(f.sp)
	if err := l.checkRun(off, n); err != nil {
		return err
	}
	if debugChecks {
		member, err := f.members(l)
		if err != nil {
			return err
		}
		idx := l.index(off)
		for i := idx; i < idx+n; i++ {
			if member.Test(uint(i)) {
				return invariant(errors.Wrapf(ErrDoubleFree, "chunk %#x", l.off(i)))
			}
		}
	}
	pushRun(l, off, n)
	return nil
}

// members walks the list and returns the set of free chunk indices. It
// rejects out-of-range or misaligned links, duplicates (which also catches
// cycles), and a length that disagrees with the header free count.
func (f *FreeList) members(l layout) (*bitset.BitSet, error) {
	member := bitset.New(uint(l.count))
	free := l.freeChunks()
	seen := 0
	for cur := head(l); cur != 0; cur = next(l.b, cur) {
		if cur < l.start || cur >= l.end() || (cur-l.start)%l.cs != 0 {
			return nil, invariant(errors.Wrapf(ErrCorrupt, "link %#x outside data region", cur))
		}
		idx := uint(l.index(cur))
		if member.Test(idx) {
			return nil, invariant(errors.Wrapf(ErrCorrupt, "chunk %#x linked twice", cur))
		}
		member.Set(idx)
		seen++
		if seen > free {
			return nil, invariant(errors.Wrapf(ErrCorrupt, "list longer than %d free chunks", free))
		}
	}
	if seen != free {
		return nil, invariant(errors.Wrapf(ErrCorrupt, "list has %d chunks, header says %d", seen, free))
	}
	return member, nil
}

// Trim finds the maximal suffix of free chunks and unlinks exactly those
// nodes, wherever they sit in the list (the head included).
func (f *FreeList) Trim() (int64, error) {
	l := load(f.sp)
	if l.count == 0 {
		return 0, nil
	}
	member, err := f.members(l)
	if err != nil {
		return 0, err
	}
	cut := l.count
	for cut > 0 && member.Test(uint(cut-1)) {
		cut--
	}
	if cut == l.count {
		return 0, nil
	}

	limit := l.off(cut)
	slot := headSlot
	for cur := head(l); cur != 0; {
		nxt := next(l.b, cur)
		if cur >= limit {
			relink(l, slot, nxt)
		} else {
			slot = cur
		}
		cur = nxt
	}

	dropped := l.count - cut
	l.h.SetChunkCount(uint64(cut))
	l.h.SetFreeChunks(uint64(l.freeChunks() - dropped))
	return int64(dropped) * l.cs, nil
}

func (f *FreeList) Visit(fn func(off int64, chunks int, free bool) error) error {
	l := load(f.sp)
	member, err := f.members(l)
	if err != nil {
		return err
	}
	return visitRuns(l, member.Test, fn)
}

// Check bounds the head link and the free count. Links past the head are
// checked as Allocate reaches them.
func (f *FreeList) Check() error {
	l := load(f.sp)
	if err := l.checkStorage(); err != nil {
		return errors.Mark(err, ErrCorrupt)
	}
	free := l.freeChunks()
	if free < 0 || free > l.count {
		return errors.Wrapf(ErrCorrupt, "%d free chunks of %d", free, l.count)
	}
	h := head(l)
	switch {
	case h == 0 && free > 0:
		return errors.Wrapf(ErrCorrupt, "empty list with %d free chunks", free)
	case h != 0 && free == 0:
		return errors.Wrapf(ErrCorrupt, "list head %#x with no free chunks", h)
	case h != 0 && !l.isChunk(h):
		return errors.Wrapf(ErrCorrupt, "list head %#x outside data region", h)
	}
	return nil
}

func (f *FreeList) Validate() error {
	l := load(f.sp)
	if err := l.checkStorage(); err != nil {
		return err
	}
	_, err := f.members(l)
	return err
}

// visitRuns groups chunks [0, count) into maximal runs with the same
// free state.
func visitRuns(l layout, isFree func(uint) bool, fn func(off int64, chunks int, free bool) error) error {
	for i := 0; i < l.count; {
		state := isFree(uint(i))
		j := i + 1
		for j < l.count && isFree(uint(j)) == state {
			j++
		}
		if err := fn(l.off(i), j-i, state); err != nil {
			return err
		}
		i = j
	}
	return nil
}
