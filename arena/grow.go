package arena

import (
	"log/slog"

	"github.com/cockroachdb/errors"

	"github.com/joshuapare/arenakit/arena/alloc"
)

// Grow enlarges the arena by at least extra bytes, rounded up to whole
// chunks, and hands the new chunks to the allocator. The buffer may move;
// offsets stay valid, raw addresses do not.
func (a *Arena) Grow(extra int) error {
	if err := a.checkWritable(); err != nil {
		return err
	}
	if extra < 0 {
		return errors.Wrapf(alloc.ErrBadRequest, "grow by %d bytes", extra)
	}
	if extra == 0 {
		return nil
	}
	cs := a.ChunkSize()
	k := a.chunksFor(extra)
	if limit := a.alloc.MaxChunks(); limit > 0 && a.alloc.ChunkCount()+k > limit {
		return errors.Wrapf(ErrOversize, "grow to %d chunks exceeds bitmap capacity %d", a.alloc.ChunkCount()+k, limit)
	}
	oldSize, oldBase := len(a.data), a.Base()
	newSize := oldSize + k*cs
	if a.opts.MaxSize > 0 && int64(newSize) > a.opts.MaxSize {
		return errors.Wrapf(ErrOversize, "grow to %d bytes exceeds max size %d", newSize, a.opts.MaxSize)
	}
	if err := a.resize(newSize); err != nil {
		return errors.Wrapf(err, "arena: grow to %d bytes", newSize)
	}
	if err := a.alloc.Expand(k); err != nil {
		return err
	}
	a.grows++
	a.log.Debug("arena grown",
		slog.Int("from", oldSize),
		slog.Int("to", newSize),
		slog.Bool("moved", a.Base() != oldBase))
	return nil
}

// room returns how many bytes the arena may still grow by, or -1 when
// unbounded.
func (a *Arena) room() int64 {
	room := int64(-1)
	if limit := a.alloc.MaxChunks(); limit > 0 {
		room = int64(limit-a.alloc.ChunkCount()) * int64(a.ChunkSize())
	}
	if a.opts.MaxSize > 0 {
		r := max(0, a.opts.MaxSize-int64(len(a.data)))
		r -= r % int64(a.ChunkSize())
		if room < 0 || r < room {
			room = r
		}
	}
	return room
}

// ShrinkToFit returns the trailing run of free chunks to the system and
// reports how many bytes were released. Live objects never move.
func (a *Arena) ShrinkToFit() (int64, error) {
	if err := a.checkWritable(); err != nil {
		return 0, err
	}
	reclaimed, err := a.alloc.Trim()
	if err != nil {
		return 0, err
	}
	if reclaimed == 0 {
		return 0, nil
	}
	oldSize := len(a.data)
	newSize := int(a.header().DataEnd())
	if err := a.resize(newSize); err != nil {
		return 0, errors.Wrapf(err, "arena: shrink to %d bytes", newSize)
	}
	a.shrinks++
	a.log.Debug("arena shrunk", slog.Int("from", oldSize), slog.Int("to", newSize))
	if debugChecks {
		if err := a.Validate(); err != nil {
			return reclaimed, err
		}
	}
	return reclaimed, nil
}
