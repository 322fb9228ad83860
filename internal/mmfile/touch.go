package mmfile

import (
	"os"
	"runtime/debug"

	"github.com/cockroachdb/errors"
)

// touchPages reads one byte per page with SetPanicOnFault enabled so a
// SIGBUS becomes a recoverable panic.
func touchPages(data []byte) (retErr error) {
	old := debug.SetPanicOnFault(true)
	defer debug.SetPanicOnFault(old)
	defer func() {
		if r := recover(); r != nil {
			if err, ok := r.(error); ok {
				retErr = errors.Wrap(err, "mmfile: fault during pre-fault")
			} else {
				retErr = errors.Newf("mmfile: fault during pre-fault: %v", r)
			}
		}
	}()

	page := os.Getpagesize()
	var sink byte
	for i := 0; i < len(data); i += page {
		sink ^= data[i]
	}
	sink ^= data[len(data)-1]
	_ = sink
	return nil
}
