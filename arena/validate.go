package arena

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/cockroachdb/errors"

	"github.com/joshuapare/arenakit/internal/format"
)

// Validate checks the allocator structure and the root directory against
// the header: every root lies inside an allocated run, hashes match their
// names and no name is bound twice.
func (a *Arena) Validate() error {
	if err := a.checkOpen(); err != nil {
		return err
	}
	if err := a.alloc.Validate(); err != nil {
		return errors.Wrap(err, "arena: allocator")
	}
	used, err := a.usedChunks()
	if err != nil {
		return err
	}
	h := a.header()
	cs, start := int64(a.ChunkSize()), int64(a.HeaderSize())
	inUse := func(off int64, n int) bool {
		first := int((off - start) / cs)
		for i := first; i < first+n; i++ {
			if i < 0 || !used.Test(uint(i)) {
				return false
			}
		}
		return true
	}

	if off := h.DirOffset(); off != 0 {
		if !inUse(off, a.chunksFor(h.DirCap()*format.DirEntrySize)) {
			return errors.Newf("arena: directory table %#x is not allocated", off)
		}
	}
	seen := make(map[string]struct{}, h.DirCount())
	for i := range h.DirCount() {
		e := a.readEntry(i)
		n, err := a.checkEntry(i, e)
		if err != nil {
			return err
		}
		if _, dup := seen[n]; dup {
			return errors.Newf("arena: root %q bound twice", n)
		}
		seen[n] = struct{}{}
		if (e.obj-start)%cs != 0 || !inUse(e.obj, a.chunksFor(rootBlock(int(e.size), int(e.nameLen)))) {
			return errors.Newf("arena: root %q at %#x is not an allocated run", n, e.obj)
		}
		if j, ok := a.lookup(n); !ok || j != i {
			return errors.AssertionFailedf("arena: name cache disagrees for %q", n)
		}
	}
	return nil
}

// usedChunks expands the allocator's run list into one bit per chunk.
func (a *Arena) usedChunks() (*bitset.BitSet, error) {
	used := bitset.New(uint(a.alloc.ChunkCount()))
	cs, start := int64(a.ChunkSize()), int64(a.HeaderSize())
	err := a.alloc.Visit(func(off int64, chunks int, free bool) error {
		if free {
			return nil
		}
		first := uint((off - start) / cs)
		for i := first; i < first+uint(chunks); i++ {
			used.Set(i)
		}
		return nil
	})
	return used, err
}
