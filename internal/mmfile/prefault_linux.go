//go:build linux

package mmfile

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

// PreFault faults in every page of data so that an unreadable region (a
// truncated file, a failing device) is reported here as an error instead of
// as SIGBUS during normal access.
//
// MADV_POPULATE_READ (Linux 5.14+) is tried first. Older kernels fall back
// to touching each page with panic-on-fault enabled.
func PreFault(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	err := unix.Madvise(data, unix.MADV_POPULATE_READ)
	if err == nil {
		return nil
	}
	if !errors.Is(err, unix.EINVAL) && !errors.Is(err, unix.ENOSYS) {
		return errors.Wrap(err, "mmfile: madvise populate")
	}
	return touchPages(data)
}
