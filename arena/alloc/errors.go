package alloc

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// ErrOversize indicates a request that no amount of growth can satisfy.
	ErrOversize = errors.New("alloc: request exceeds allocator capacity")

	// ErrBadRequest indicates a non-positive chunk count.
	ErrBadRequest = errors.New("alloc: chunk count must be positive")

	// ErrBadOffset indicates an offset outside the data region or not on a chunk boundary.
	ErrBadOffset = errors.New("alloc: bad chunk offset")

	// ErrDoubleFree indicates a free of chunks that are not allocated.
	ErrDoubleFree = errors.New("alloc: chunk already free")

	// ErrCorrupt indicates the in-buffer free-space structure is inconsistent.
	ErrCorrupt = errors.New("alloc: free-space structure corrupt")

	// ErrUnknownStrategy indicates an unsupported strategy identifier.
	ErrUnknownStrategy = errors.New("alloc: unknown strategy")
)

// ExhaustedError reports that a request could not be met from the current
// free space. It is recoverable: grow the space by at least Needed bytes and
// retry.
type ExhaustedError struct {
	Needed int64 // bytes required by the failed request
	Chunks int   // the same request in chunks
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("alloc: exhausted, need %d bytes (%d chunks)", e.Needed, e.Chunks)
}

// AsExhausted unwraps an *ExhaustedError from err.
func AsExhausted(err error) (*ExhaustedError, bool) {
	var ex *ExhaustedError
	if errors.As(err, &ex) {
		return ex, true
	}
	return nil, false
}

// invariant marks err as a programming error. Builds with the arenadebug tag
// abort instead of returning.
func invariant(err error) error {
	err = errors.WithAssertionFailure(err)
	if debugChecks {
		panic(err)
	}
	return err
}
