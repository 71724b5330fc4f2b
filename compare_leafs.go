package packedint

import "fmt"

// CompareLeafs reports every index i in [start, end) for which element i of
// this array satisfies cond against element i of foreign. The arrays may have
// different widths. end may be Npos; foreign must have at least end elements.
func (a *Array) CompareLeafs(cond Cond, foreign *Array, start, end, baseIndex int, state QueryState) bool {
	if end < 0 || end > a.size {
		end = a.size
	}
	if end > foreign.size {
		panic(fmt.Sprintf("packedint: foreign array has %d elements, need %d", foreign.size, end))
	}
	if start >= end {
		return true
	}

	if w := a.width; w == foreign.width && w >= 8 && end-start >= vectorMinElements {
		if kern, invert := vectorKernel(cond, w); kern != nil {
			bw := int(w >> 3)
			from := (start*bw + 15) &^ 15
			to := (end * bw) &^ 15
			if from < to {
				if !compareLeafsRange(a, foreign, cond, start, from/bw, baseIndex, state) {
					return false
				}
				if !scanBlocks(kern, invert, a, from, to, foreign.data[from:], 16, baseIndex, state) {
					return false
				}
				start = to / bw
			}
		}
	}
	return compareLeafsRange(a, foreign, cond, start, end, baseIndex, state)
}

func compareLeafsRange(a, foreign *Array, cond Cond, start, end, baseIndex int, state QueryState) bool {
	get, fget := a.k.get, foreign.k.get
	for i := start; i < end; i++ {
		v := get(a.data, i)
		if cond.Eval(v, fget(foreign.data, i)) {
			if !state.Match(i+baseIndex, v) {
				return false
			}
		}
	}
	return true
}
