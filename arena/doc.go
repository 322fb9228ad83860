// Package arena implements a relocatable, offset-addressed memory arena.
//
// # Overview
//
// An Arena is one contiguous byte buffer holding a header, a chunk
// allocator's bookkeeping and any number of typed objects. Every reference
// stored inside the buffer is an Offset from the buffer base, never an
// absolute address. The buffer can therefore be copied, saved, reloaded at
// another address or mapped from a file, and all internal links stay valid
// with no fixup pass.
//
// # Storage
//
// Three storage modes share one access path:
//
//   - heap: New and LoadFromBytes own an 8-byte aligned heap buffer
//   - mapped read-only: OpenMapped(path, true) maps the file with no copy;
//     every mutating call returns ErrReadOnly
//   - mapped read-write: OpenMapped(path, false) and CreateMapped map the
//     file MAP_SHARED; stores reach the file through the page cache and
//     Grow/ShrinkToFit resize the file and remap it
//
// # Objects
//
// Objects are plain Go values without Go pointers (no slices, strings,
// maps, interfaces or pointer fields), so their bytes mean the same thing at
// any address. Nested data is reached through Offset fields; the
// collections package builds vectors and strings this way.
//
//	type Record struct {
//	    ID    int64
//	    Items collections.Vector[int64]
//	}
//
//	a, _ := arena.New(4096)
//	rec, _ := arena.MakeRoot[Record](a, "record")
//	rec.Get().ID = 7
//	_ = collections.Append(a, arena.Field(rec, &rec.Get().Items), 1, 2, 3)
//
// A Ptr resolves its offset against the arena's current base on every Get.
// Raw *T values from Get are invalidated by anything that can move the
// buffer (Grow, ShrinkToFit, any retried allocation) and must not be kept
// across such calls.
//
// # Growth
//
// Allocation never grows the buffer by itself. An allocation that does not
// fit fails with an exhaustion error carrying the size it needed; Retry
// catches it, grows the arena by that size rounded up to the growth
// granularity, and runs the whole operation again. Operations passed to
// Retry must perform every allocation before any visible write so that a
// replay starts from the same state.
//
// # Concurrency
//
// An Arena is not safe for concurrent mutation. Concurrent readers of a
// read-only mapping are safe.
package arena
