package alloc

import (
	"github.com/cockroachdb/errors"

	"github.com/joshuapare/arenakit/internal/format"
)

// layout is a snapshot of the geometry needed by one operation. It must not
// outlive the operation: the Space may be reallocated between calls.
type layout struct {
	b     []byte
	h     format.Header
	cs    int64 // chunk size
	start int64 // offset of chunk 0
	count int
}

func load(sp Space) layout {
	b := sp.Bytes()
	h := format.View(b)
	return layout{
		b:     b,
		h:     h,
		cs:    int64(h.ChunkSize()),
		start: int64(h.HeaderSize()),
		count: int(h.ChunkCount()),
	}
}

func (l layout) off(idx int) int64 { return l.start + int64(idx)*l.cs }

func (l layout) index(off int64) int { return int((off - l.start) / l.cs) }

func (l layout) end() int64 { return l.off(l.count) }

func (l layout) freeChunks() int { return int(l.h.FreeChunks()) }

// isChunk reports whether off is the start of a chunk in the data region.
func (l layout) isChunk(off int64) bool {
	return off >= l.start && off < l.end() && (off-l.start)%l.cs == 0
}

// checkRun validates that [off, off+n chunks) is chunk-aligned and inside
// the data region.
func (l layout) checkRun(off int64, n int) error {
	if n <= 0 {
		return errors.Wrapf(ErrBadRequest, "free of %d chunks", n)
	}
	if off < l.start || (off-l.start)%l.cs != 0 {
		return invariant(errors.Wrapf(ErrBadOffset, "offset %#x", off))
	}
	if off+int64(n)*l.cs > l.end() {
		return invariant(errors.Wrapf(ErrBadOffset, "run %#x+%d chunks ends past %#x", off, n, l.end()))
	}
	return nil
}

// checkStorage verifies the Space holds the whole data region.
func (l layout) checkStorage() error {
	if l.end() > int64(len(l.b)) {
		return errors.Newf("alloc: data region ends at %d but space holds %d bytes", l.end(), len(l.b))
	}
	return nil
}
