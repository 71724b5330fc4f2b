//go:build packedint_debug

package packedint

// debugChecks enables index and range assertions on element access.
const debugChecks = true
