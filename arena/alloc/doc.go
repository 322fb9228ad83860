// Package alloc manages the data region of an arena as fixed-size chunks.
//
// # Overview
//
// An arena buffer is a header followed by chunkCount chunks of chunkSize
// bytes. The allocator hands out runs of physically contiguous chunks and
// takes them back. Every byte of allocator state (chunk count, free count,
// free-list head or bitmap) lives in the buffer header, so the buffer can be
// copied, saved, reloaded or mapped at another address and the allocator
// reopened over it with no rebuild step.
//
// The Go allocator values hold nothing but a Space. Each operation re-reads
// Space.Bytes, so a Space whose storage was reallocated (and whose base
// address moved) is picked up automatically.
//
// # Strategies
//
// FreeList: an intrusive singly linked list threaded through the first eight
// bytes of each free chunk, anchored by a head offset in the header. A run of
// n chunks is usable only when n consecutive links are also byte-contiguous
// (each link target is exactly one chunk past the previous one). Unbounded.
//
// Bitmap: one bit per chunk (1 = used), stored in the header. The bitmap has
// a fixed capacity chosen at creation; bits at or beyond the current chunk
// count are permanently set. Searches start at a rolling hint and wrap once.
//
// # Failure semantics
//
// Allocate never grows storage. When a request cannot be met it returns an
// *ExhaustedError carrying the exact byte count needed; growth policy lives
// with the caller. A request that can never be met (larger than the bitmap
// capacity) returns ErrOversize and leaves the allocator untouched.
//
// Double frees and out-of-range offsets are programming errors. They are
// returned as assertion failures, and panic when built with the arenadebug
// tag.
//
// # Usage
//
//	a, err := alloc.New(alloc.FreeListStrategy, space)
//	if err != nil {
//	    return err
//	}
//	off, err := a.Allocate(4)
//	var ex *alloc.ExhaustedError
//	if errors.As(err, &ex) {
//	    // grow the space by at least ex.Needed bytes, then a.Expand(...)
//	}
package alloc
