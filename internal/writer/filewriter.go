// Package writer exposes sinks for saved arena images.
package writer

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/zeebo/xxh3"
)

// Sink receives a complete arena image.
type Sink interface {
	WriteArena(buf []byte) error
}

// ErrVerify indicates the staged image did not read back as written.
var ErrVerify = errors.New("writer: staged image does not match")

const defaultPerm os.FileMode = 0o644

// FileWriter replaces the file at Path with an arena image. The image is
// staged in a sibling temp file and renamed over Path once it is synced, so
// a process mapping Path sees the old image or the new one, never a mix.
type FileWriter struct {
	Path string
	// Perm applies when Path does not exist yet; a replaced file keeps its
	// mode. Zero means 0o644.
	Perm os.FileMode
	// Verify rereads the staged file and compares digests before renaming.
	Verify bool
}

// WriteArena stages buf and renames it over Path.
func (w *FileWriter) WriteArena(buf []byte) error {
	return w.WriteFrom(bytesSource(buf))
}

// WriteFrom stages whatever src writes and renames it over Path.
func (w *FileWriter) WriteFrom(src io.WriterTo) error {
	tmp, err := os.CreateTemp(filepath.Dir(w.Path), ".arena-*")
	if err != nil {
		return errors.Wrap(err, "stage image")
	}
	staged := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(staged)
		}
	}()

	h := xxh3.New()
	if _, err := src.WriteTo(io.MultiWriter(tmp, h)); err != nil {
		return errors.Wrapf(err, "write %s", staged)
	}
	if err := tmp.Chmod(w.mode()); err != nil {
		return errors.Wrapf(err, "chmod %s", staged)
	}
	if err := tmp.Sync(); err != nil {
		return errors.Wrapf(err, "sync %s", staged)
	}
	if w.Verify {
		if err := verify(tmp, h.Sum64()); err != nil {
			return err
		}
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close %s", staged)
	}
	if err := os.Rename(staged, w.Path); err != nil {
		return errors.Wrapf(err, "replace %s", w.Path)
	}
	committed = true
	return syncDir(filepath.Dir(w.Path))
}

func (w *FileWriter) mode() os.FileMode {
	if fi, err := os.Stat(w.Path); err == nil && fi.Mode().IsRegular() {
		return fi.Mode().Perm()
	}
	if w.Perm != 0 {
		return w.Perm
	}
	return defaultPerm
}

func verify(f *os.File, want uint64) error {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return errors.Wrap(err, "rewind staged image")
	}
	h := xxh3.New()
	if _, err := io.Copy(h, f); err != nil {
		return errors.Wrap(err, "reread staged image")
	}
	if got := h.Sum64(); got != want {
		return errors.Wrapf(ErrVerify, "digest %#x, wrote %#x", got, want)
	}
	return nil
}

// syncDir makes the rename durable. Filesystems that cannot sync a
// directory report it as unsupported, which is not an error here.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return nil
	}
	defer d.Close()
	if err := d.Sync(); err != nil && !errors.Is(err, syscall.EINVAL) && !errors.Is(err, fs.ErrInvalid) {
		return errors.Wrapf(err, "sync %s", dir)
	}
	return nil
}

type bytesSource []byte

func (b bytesSource) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(b)
	return int64(n), err
}
