// Package names canonicalises root-object names. Names are stored in the
// arena as NFC-normalised UTF-8 so that visually identical names typed on
// different platforms bind to the same root.
package names

import (
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/zeebo/xxh3"
	"golang.org/x/text/unicode/norm"
)

// ErrInvalid is returned for empty, oversized, or non-UTF-8 names.
var ErrInvalid = errors.New("names: invalid root name")

// Canonical returns the normalised form of name, rejecting names that are
// empty, longer than maxLen bytes after normalisation, or not valid UTF-8.
func Canonical(name string, maxLen int) (string, error) {
	if name == "" {
		return "", errors.Wrap(ErrInvalid, "empty")
	}
	if !utf8.ValidString(name) {
		return "", errors.Wrapf(ErrInvalid, "%q is not valid UTF-8", name)
	}
	c := norm.NFC.String(name)
	if len(c) > maxLen {
		return "", errors.Wrapf(ErrInvalid, "%d bytes exceeds %d", len(c), maxLen)
	}
	return c, nil
}

// Hash returns the directory hash of an already canonical name.
func Hash(canonical string) uint64 {
	return xxh3.HashString(canonical)
}
