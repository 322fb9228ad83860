package arena

import (
	"log/slog"

	"github.com/cockroachdb/errors"

	"github.com/joshuapare/arenakit/internal/format"
	"github.com/joshuapare/arenakit/internal/mmfile"
)

// FlushMode selects how much of a mapped arena Flush makes durable.
type FlushMode = mmfile.FlushMode

const (
	FlushAuto     = mmfile.FlushAuto
	FlushDataOnly = mmfile.FlushDataOnly
	FlushFull     = mmfile.FlushFull
)

// OpenMapped maps an arena file. With readOnly set the file is mapped
// read-only: nothing is copied and every mutating call returns ErrReadOnly.
// Otherwise the mapping is shared read-write, stores reach the file through
// the page cache, and growth resizes the file.
//
// A read-write file whose header is all zero is formatted in place using
// the geometry options.
func OpenMapped(path string, readOnly bool, opts ...Option) (*Arena, error) {
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	m, err := mmfile.Open(path, !readOnly)
	if err != nil {
		return nil, errors.Wrapf(err, "arena: open %s", path)
	}
	a := &Arena{mapping: m, data: m.Bytes(), mode: modeMappedRW, opts: o, log: o.Logger}
	if readOnly {
		a.mode = modeMappedRO
	}
	if err := a.openMapping(); err != nil {
		_ = m.Close()
		return nil, errors.Wrapf(err, "arena: open %s", path)
	}
	a.log.Info("arena mapped",
		slog.String("path", path),
		slog.String("mode", a.mode.String()),
		slog.Int("size", len(a.data)))
	return a, nil
}

func (a *Arena) openMapping() error {
	if a.mode == modeMappedRW && format.IsBlank(a.data) {
		return a.formatMapping()
	}
	h, err := format.ParseHeader(a.data)
	if err != nil {
		return errors.Mark(err, ErrInvalidArena)
	}
	logical := int(h.DataEnd())
	if slack := len(a.data) - logical; slack > 0 {
		a.log.Warn("ignoring trailing bytes", slog.Int("logical", logical), slog.Int("slack", slack))
		if a.mode == modeMappedRW {
			if err := a.resize(logical); err != nil {
				return err
			}
		} else {
			a.data = a.data[:logical]
		}
	}
	if a.opts.PreFault {
		if err := mmfile.PreFault(a.data); err != nil {
			a.log.Warn("prefault failed", slog.String("error", err.Error()))
		}
	}
	return a.adopt()
}

// formatMapping lays a fresh arena over a blank read-write file, rounding
// the file to whole chunks and at least the header size.
func (a *Arena) formatMapping() error {
	g := a.opts.geometry()
	if err := g.Validate(); err != nil {
		return err
	}
	size := max(format.AlignDown(len(a.data), g.ChunkSize), g.HeaderSize())
	if size != len(a.data) {
		if err := a.resize(size); err != nil {
			return err
		}
	}
	a.log.Info("formatting blank file", slog.Int("size", size))
	return a.format(g)
}

// CreateMapped creates or truncates path and formats it as a read-write
// mapped arena of about size bytes.
func CreateMapped(path string, size int, opts ...Option) (*Arena, error) {
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	g := o.geometry()
	if err := g.Validate(); err != nil {
		return nil, errors.Wrap(err, "arena: create")
	}
	total := max(format.AlignUp(size, g.ChunkSize), g.HeaderSize())
	if o.MaxSize > 0 && int64(total) > o.MaxSize {
		return nil, errors.Wrapf(ErrOversize, "initial size %d exceeds max size %d", total, o.MaxSize)
	}
	m, err := mmfile.Create(path, int64(total))
	if err != nil {
		return nil, errors.Wrapf(err, "arena: create %s", path)
	}
	a := &Arena{mapping: m, data: m.Bytes(), mode: modeMappedRW, opts: o, log: o.Logger}
	if err := a.format(g); err != nil {
		_ = m.Close()
		return nil, err
	}
	a.log.Info("arena created",
		slog.String("path", path),
		slog.String("strategy", o.Strategy.String()),
		slog.Int("size", total))
	return a, nil
}

// Flush makes a read-write mapping durable. It is a no-op for heap arenas.
func (a *Arena) Flush(mode FlushMode) error {
	if err := a.checkWritable(); err != nil {
		return err
	}
	if a.mapping == nil {
		return nil
	}
	return a.mapping.Flush(mode)
}
