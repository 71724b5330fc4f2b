package packedint

import "math/bits"

// Masks for the parallel field sums of sub-byte widths.
const (
	m2  = 0x3333333333333333
	m4  = 0x0f0f0f0f0f0f0f0f
	h01 = 0x0101010101010101
)

// Sum returns the sum of elements [start, end). end may be Npos.
func (a *Array) Sum(start, end int) int64 {
	if end < 0 || end > a.size {
		end = a.size
	}
	if start >= end {
		return 0
	}
	return a.k.sum(a, start, end)
}

// Minimum returns the smallest element in [start, end) and the index of its
// first occurrence. ok is false for an empty range.
func (a *Array) Minimum(start, end int) (value int64, index int, ok bool) {
	if end < 0 || end > a.size {
		end = a.size
	}
	return a.k.minmax(a, false, start, end)
}

// Maximum returns the largest element in [start, end) and the index of its
// first occurrence. ok is false for an empty range.
func (a *Array) Maximum(start, end int) (value int64, index int, ok bool) {
	if end < 0 || end > a.size {
		end = a.size
	}
	return a.k.minmax(a, true, start, end)
}

// sumRange adds up elements [start, end). Sub-byte widths sum whole chunks
// with a population-count style reduction; their fields are never negative.
func sumRange[W widthSpec](a *Array, start, end int) int64 {
	w := widthOf[W]()
	if w == 0 {
		return 0
	}
	get, data := a.k.get, a.data
	var s int64

	if w == 1 || w == 2 || w == 4 {
		per := elementsPerChunk(w)
		head := min((start+per-1)/per*per, end)
		for ; start < head; start++ {
			s += get(data, start)
		}
		for ; start+per <= end; start += per {
			v := chunkAt(data, start, w)
			switch w {
			case 1:
				s += int64(bits.OnesCount64(v))
			case 2:
				v = v&m2 + (v>>2)&m2
				v = (v + v>>4) & m4
				s += int64((v * h01) >> 56)
			case 4:
				v = v&m4 + (v>>4)&m4
				s += int64((v * h01) >> 56)
			}
		}
	}
	for ; start < end; start++ {
		s += get(data, start)
	}
	return s
}

// minmaxRange finds the smallest (or, with wantMax, the largest) element.
func minmaxRange[W widthSpec](a *Array, wantMax bool, start, end int) (int64, int, bool) {
	if start < 0 || start >= end {
		return 0, NotFound, false
	}
	if widthOf[W]() == 0 {
		return 0, start, true
	}
	get, data := a.k.get, a.data
	best, at := get(data, start), start
	for i := start + 1; i < end; i++ {
		v := get(data, i)
		if wantMax && v > best || !wantMax && v < best {
			best, at = v, i
		}
	}
	return best, at, true
}
