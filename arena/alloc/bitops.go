package alloc

import "math/bits"

// Word-level helpers over a bitmap stored as []uint64. Ranges are
// half-open bit indices [lo, hi).

// spanMasks calls fn once per word touched by [lo, hi) with the mask of
// bits in that word.
func spanMasks(lo, hi int, fn func(wi int, mask uint64)) {
	for lo < hi {
		bit := lo & 63
		n := min(64-bit, hi-lo)
		mask := ^uint64(0)
		if n < 64 {
			mask = (uint64(1)<<uint(n) - 1) << uint(bit)
		}
		fn(lo>>6, mask)
		lo += n
	}
}

func setRange(w []uint64, lo, hi int) {
	spanMasks(lo, hi, func(wi int, mask uint64) { w[wi] |= mask })
}

func clearRange(w []uint64, lo, hi int) {
	spanMasks(lo, hi, func(wi int, mask uint64) { w[wi] &^= mask })
}

func allSet(w []uint64, lo, hi int) bool {
	ok := true
	spanMasks(lo, hi, func(wi int, mask uint64) {
		if w[wi]&mask != mask {
			ok = false
		}
	})
	return ok
}

func countSet(w []uint64, lo, hi int) int {
	n := 0
	spanMasks(lo, hi, func(wi int, mask uint64) { n += bits.OnesCount64(w[wi] & mask) })
	return n
}

// lastSetBelow returns the highest set bit index strictly below hi.
func lastSetBelow(w []uint64, hi int) (int, bool) {
	if hi <= 0 {
		return 0, false
	}
	wi := (hi - 1) >> 6
	word := w[wi] & (^uint64(0) >> uint(63-((hi-1)&63)))
	for {
		if word != 0 {
			return wi<<6 + 63 - bits.LeadingZeros64(word), true
		}
		wi--
		if wi < 0 {
			return 0, false
		}
		word = w[wi]
	}
}
