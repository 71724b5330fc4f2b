//go:build !packedint_debug

package packedint

const debugChecks = false
