package arena

import (
	"log/slog"

	"github.com/cockroachdb/errors"

	"github.com/joshuapare/arenakit/arena/alloc"
	"github.com/joshuapare/arenakit/internal/format"
)

// maxRetries bounds the growth loop. Each round grows by at least the
// failed request, so a correct operation never comes near it.
const maxRetries = 64

// Retry runs op, growing the arena and running it again whenever it fails
// with an exhaustion error. op must be safe to replay: it has to detect
// exhaustion before making any visible change, and release whatever it
// allocated on the failing path. Retry returns nil, the first other error
// from op or from growth, or ErrOversize when the arena cannot grow enough.
// Exhaustion never escapes it.
func (a *Arena) Retry(op func() error) error {
	if err := a.checkWritable(); err != nil {
		return err
	}
	for attempt := 0; ; attempt++ {
		err := op()
		ex, ok := alloc.AsExhausted(err)
		if !ok {
			return err
		}
		if attempt == maxRetries {
			return errors.AssertionFailedf("arena: still exhausted after %d growth rounds (need %d bytes)", attempt, ex.Needed)
		}
		extra, err := a.growthFor(ex.Needed)
		if err != nil {
			return err
		}
		a.retries++
		a.log.Debug("arena exhausted, growing",
			slog.Int64("needed", ex.Needed),
			slog.Int("grow", extra),
			slog.Int("attempt", attempt+1))
		if err := a.Grow(extra); err != nil {
			return err
		}
	}
}

// growthFor rounds a shortfall up to the grow granularity and then to whole
// chunks. Near a capacity ceiling it is clamped to what is left, since free
// chunks at the end of the region can still join the new ones.
func (a *Arena) growthFor(needed int64) (int, error) {
	n := format.AlignUp(needed, int64(a.opts.GrowGranularity))
	n = format.AlignUp(n, int64(a.ChunkSize()))
	if room := a.room(); room >= 0 && n > room {
		if room == 0 {
			return 0, errors.Wrapf(ErrOversize, "need %d bytes at the capacity ceiling", needed)
		}
		n = room
	}
	return int(n), nil
}

// Allocate makes a single attempt to reserve size bytes of zeroed storage.
// On exhaustion it returns an error satisfying IsExhausted without growing;
// wrap the call in Retry, or use AllocateRetry.
func (a *Arena) Allocate(size int) (Offset, error) {
	if err := a.checkWritable(); err != nil {
		return 0, err
	}
	if size <= 0 {
		return 0, errors.Wrapf(alloc.ErrBadRequest, "size %d", size)
	}
	n := a.chunksFor(size)
	off, err := a.alloc.Allocate(n)
	if err != nil {
		return 0, err
	}
	clear(a.data[off : off+int64(n*a.ChunkSize())])
	return Offset(off), nil
}

// Free releases storage obtained from Allocate with the same size.
func (a *Arena) Free(off Offset, size int) error {
	if err := a.checkWritable(); err != nil {
		return err
	}
	if off == 0 {
		return nil
	}
	if size <= 0 {
		return errors.Wrapf(alloc.ErrBadRequest, "size %d", size)
	}
	return a.alloc.Free(int64(off), a.chunksFor(size))
}

// AllocateRetry is Allocate inside Retry.
func (a *Arena) AllocateRetry(size int) (Offset, error) {
	var off Offset
	err := a.Retry(func() error {
		o, err := a.Allocate(size)
		off = o
		return err
	})
	return off, err
}

// Reserve allocates one block per size, all or none, growing as needed.
func (a *Arena) Reserve(sizes ...int) ([]Offset, error) {
	offs := make([]Offset, 0, len(sizes))
	err := a.Retry(func() error {
		offs = offs[:0]
		for _, size := range sizes {
			off, err := a.Allocate(size)
			if err != nil {
				for i, o := range offs {
					if ferr := a.Free(o, sizes[i]); ferr != nil {
						return ferr
					}
				}
				return err
			}
			offs = append(offs, off)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return offs, nil
}
