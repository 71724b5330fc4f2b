package packedint

import (
	"os"
	"strings"
)

// VectorLevel describes how much of the search engine may use the 128-bit
// SSE block comparison kernels. Only amd64 has them; elsewhere, and with the
// purego build tag, the level is always VectorNone.
type VectorLevel uint8

const (
	// VectorNone disables block comparison; every search runs on 64-bit
	// chunks.
	VectorNone VectorLevel = iota
	// VectorEqual enables block comparison for Equal at widths 8, 16 and 32
	// (SSE2).
	VectorEqual
	// VectorFull enables Equal and NotEqual at widths 8 to 64 and Greater and
	// Less at widths 8 to 32 (SSE4.1).
	VectorFull
)

func (l VectorLevel) String() string {
	switch l {
	case VectorNone:
		return "generic"
	case VectorEqual:
		return "equal"
	case VectorFull:
		return "full"
	}
	return "unknown"
}

// ParseVectorLevel parses the values accepted by PACKEDINT_SIMD.
func ParseVectorLevel(s string) (VectorLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "generic", "none", "off":
		return VectorNone, true
	case "equal":
		return VectorEqual, true
	case "full":
		return VectorFull, true
	}
	return VectorNone, false
}

var (
	// detectedVector is what the CPU supports.
	detectedVector VectorLevel
	// activeVector is what searches use. It never exceeds detectedVector
	// except in tests.
	activeVector VectorLevel
)

// Initialize the vector path once. PACKEDINT_SIMD may lower the level but
// never raise it above what the CPU reports.
func init() {
	detectedVector = detectVectorLevel()
	activeVector = detectedVector
	if override := os.Getenv("PACKEDINT_SIMD"); override != "" {
		if lvl, ok := ParseVectorLevel(override); ok && lvl <= detectedVector {
			activeVector = lvl
		}
	}
}

// IsVectorAvailable reports whether searches use the block comparison path.
func IsVectorAvailable() bool {
	return activeVector != VectorNone
}

// ActiveVectorLevel returns the level selected at start-up.
func ActiveVectorLevel() VectorLevel {
	return activeVector
}

// vectorMinElements is the shortest range worth a block scan.
const vectorMinElements = 16

// vectorKernel returns the block comparison for c at width w, or nil when
// the active level does not cover the combination. NotEqual runs the
// equality kernel with invert set.
func vectorKernel(c Cond, w uint8) (kern blockScan, invert bool) {
	switch activeVector {
	case VectorNone:
		return nil, false
	case VectorEqual:
		if c != Equal || w == 64 {
			return nil, false
		}
	}
	if c == NotEqual {
		return blockKernels[Equal][widthIndex(w)], true
	}
	if w == 64 && c != Equal {
		return nil, false
	}
	return blockKernels[c][widthIndex(w)], false
}
