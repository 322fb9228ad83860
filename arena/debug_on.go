//go:build arenadebug

package arena

// debugChecks validates every adopted image and every shrink.
const debugChecks = true
