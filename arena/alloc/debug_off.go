//go:build !arenadebug

package alloc

const debugChecks = false
