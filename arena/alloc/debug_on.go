//go:build arenadebug

package alloc

// debugChecks enables O(n) consistency checks on every free and turns
// invariant violations into panics.
const debugChecks = true
