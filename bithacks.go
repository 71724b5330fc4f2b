package packedint

// SWAR helpers operating on a 64-bit chunk holding 64/w fields of w bits.
// See http://graphics.stanford.edu/~seander/bithacks.html for the idioms.

// widthMask returns a mask covering one field of width w.
func widthMask(w uint8) uint64 {
	if w == 64 {
		return ^uint64(0)
	}
	return 1<<w - 1
}

// lowerBits returns a chunk with the lowest bit of every field set.
func lowerBits(w uint8) uint64 {
	if w == 0 {
		return 0
	}
	return ^uint64(0) / widthMask(w)
}

// upperBits returns a chunk with the highest bit of every field set.
func upperBits(w uint8) uint64 {
	return lowerBits(w) << (w - 1)
}

// testZero reports whether any field of v is zero.
func testZero(w uint8, v uint64) bool {
	lower := lowerBits(w)
	return (v-lower)&^v&upperBits(w) != 0
}

// cascade sets the lowest bit of every field that is zero (zero == true) or
// non-zero (zero == false) and clears all other bits. For w == 4 and
// zero == true, 0x5fd07a107610f610 becomes 0x0001000100010001.
func cascade(w uint8, zero bool, v uint64) uint64 {
	switch w {
	case 1:
		if zero {
			return ^v
		}
		return v
	case 64:
		if (v == 0) == zero {
			return 1
		}
		return 0
	}
	mask := widthMask(w)
	lower := lowerBits(w)
	// Fold every field onto its lowest bit; the masks keep bits from
	// spilling into the neighbouring field.
	for s := uint8(1); s < w; s <<= 1 {
		v |= (v >> s) & (lower * (mask >> s))
	}
	v &= lower
	if zero {
		v ^= lower
	}
	return v
}

// signExtend interprets the low w bits of v as a two's-complement integer.
func signExtend(w uint8, v uint64) int64 {
	shift := 64 - w
	return int64(v<<shift) >> shift
}

// fieldValue extracts field j of a chunk, signed for w >= 8.
func fieldValue(w uint8, chunk uint64, j int) int64 {
	f := (chunk >> (uint(j) * uint(w))) & widthMask(w)
	if w >= 8 {
		return signExtend(w, f)
	}
	return int64(f)
}

// gtltMagic returns the constant added to (greater) or subtracted from (less)
// a chunk in findGtltFast.
func gtltMagic(gt bool, w uint8, value int64) uint64 {
	if gt {
		return lowerBits(w) * (widthMask(w)>>1 - uint64(value))
	}
	return lowerBits(w) * uint64(value)
}

// gtltFastUsable reports whether the carry-free comparison of findGtltFast
// applies to value at width w. Chunks must additionally have every field's
// top bit clear.
func gtltFastUsable(gt bool, w uint8, value int64) bool {
	if w < 2 || w > 16 || value < 0 {
		return false
	}
	limit := int64(widthMask(w) >> 1)
	if gt {
		limit--
	}
	return value <= limit
}

// findGtltFast returns a chunk with the top bit set in every field that is
// greater (gt) or less (!gt) than the value magic was built from. All fields
// of chunk must have their top bit clear.
//
// For greater, adding mask/2-value to a field x <= mask/2 cannot carry out of
// the field and sets the top bit exactly when x > value. For less, setting
// the top bit before subtracting value prevents borrows, and the top bit
// survives exactly when x >= value.
func findGtltFast(gt bool, w uint8, magic, chunk uint64) uint64 {
	upper := upperBits(w)
	if gt {
		return (chunk + magic) & upper
	}
	return ^((chunk | upper) - magic) & upper
}
