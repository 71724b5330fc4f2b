package packedint

import "math"

// Legal element widths in bits. Widths below 8 store unsigned bit fields,
// wider ones store two's-complement integers.
var legalWidths = [numWidths]uint8{0, 1, 2, 4, 8, 16, 32, 64}

const numWidths = 8

// IsLegalWidth reports whether w is one of 0, 1, 2, 4, 8, 16, 32 or 64.
func IsLegalWidth(w int) bool {
	switch w {
	case 0, 1, 2, 4, 8, 16, 32, 64:
		return true
	}
	return false
}

// widthIndex maps a legal width to its position in legalWidths. The index is
// also the width code stored in the header.
func widthIndex(w uint8) int {
	switch w {
	case 0:
		return 0
	case 1:
		return 1
	case 2:
		return 2
	case 4:
		return 3
	case 8:
		return 4
	case 16:
		return 5
	case 32:
		return 6
	case 64:
		return 7
	}
	panic("packedint: illegal width")
}

// LowerBound returns the smallest value representable at width w.
func LowerBound(w uint8) int64 {
	switch w {
	case 8:
		return math.MinInt8
	case 16:
		return math.MinInt16
	case 32:
		return math.MinInt32
	case 64:
		return math.MinInt64
	}
	return 0
}

// UpperBound returns the largest value representable at width w.
func UpperBound(w uint8) int64 {
	switch w {
	case 0:
		return 0
	case 1:
		return 1
	case 2:
		return 3
	case 4:
		return 15
	case 8:
		return math.MaxInt8
	case 16:
		return math.MaxInt16
	case 32:
		return math.MaxInt32
	}
	return math.MaxInt64
}

// smallBitWidth holds the width needed for the values 0 through 15.
var smallBitWidth = [16]uint8{0, 1, 2, 2, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4}

// BitWidth returns the smallest legal width that can represent v.
func BitWidth(v int64) uint8 {
	if uint64(v)>>4 == 0 {
		return smallBitWidth[v]
	}
	if v < 0 {
		v = ^v
	}
	switch u := uint64(v); {
	case u>>31 != 0:
		return 64
	case u>>15 != 0:
		return 32
	case u>>7 != 0:
		return 16
	}
	return 8
}

// fits reports whether v is representable at width w.
func fits(w uint8, v int64) bool {
	return v >= LowerBound(w) && v <= UpperBound(w)
}
