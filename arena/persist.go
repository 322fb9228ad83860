package arena

import (
	"io"
	"log/slog"
	"os"

	"github.com/cockroachdb/errors"

	"github.com/joshuapare/arenakit/internal/format"
	"github.com/joshuapare/arenakit/internal/writer"
)

// SaveToBytes returns a copy of the whole buffer, header included. The
// copy is a complete arena image for LoadFromBytes.
func (a *Arena) SaveToBytes() []byte {
	if a.checkOpen() != nil {
		return nil
	}
	return append([]byte(nil), a.data...)
}

// WriteTo writes the arena image to w.
func (a *Arena) WriteTo(w io.Writer) (int64, error) {
	if err := a.checkOpen(); err != nil {
		return 0, err
	}
	n, err := w.Write(a.data)
	return int64(n), err
}

// SaveTo hands the arena image to a sink.
func (a *Arena) SaveTo(s writer.Sink) error {
	if err := a.checkOpen(); err != nil {
		return err
	}
	return s.WriteArena(a.data)
}

// SaveFile writes the image to path atomically. With WithVerify the staged
// file is reread before it replaces path.
func (a *Arena) SaveFile(path string) error {
	if err := a.checkOpen(); err != nil {
		return err
	}
	w := &writer.FileWriter{Path: path, Verify: a.opts.Verify}
	if err := w.WriteFrom(a); err != nil {
		return errors.Wrapf(err, "arena: save %s", path)
	}
	a.log.Info("arena saved", slog.String("path", path), slog.Int("size", len(a.data)))
	return nil
}

// LoadFromBytes copies an arena image into a new heap arena. Offsets are
// base-relative, so nothing in the image is rewritten. Bytes past the
// logical end are dropped. Geometry options are ignored in favour of the
// header.
func LoadFromBytes(b []byte, opts ...Option) (*Arena, error) {
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	h, err := format.ParseHeader(b)
	if err != nil {
		return nil, errors.Mark(err, ErrInvalidArena)
	}
	size := int(h.DataEnd())

	a := &Arena{mode: modeHeap, opts: o, log: o.Logger}
	if len(b) > size {
		a.log.Warn("ignoring trailing bytes", slog.Int("logical", size), slog.Int("slack", len(b)-size))
	}
	a.setHeap(size)
	copy(a.data, b[:size])
	if err := a.adopt(); err != nil {
		return nil, err
	}
	a.log.Info("arena loaded",
		slog.String("strategy", a.Strategy().String()),
		slog.Int("size", size),
		slog.Int("roots", a.header().DirCount()))
	return a, nil
}

// LoadFile reads path into a new heap arena.
func LoadFile(path string, opts ...Option) (*Arena, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "arena: read %s", path)
	}
	a, err := LoadFromBytes(b, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "arena: load %s", path)
	}
	return a, nil
}
