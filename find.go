package packedint

import (
	"fmt"
	"math/bits"
)

// finder scans elements [start, end) of an array for one condition at one
// width. It returns false if the query state stopped the search.
type finder func(a *Array, value int64, start, end, baseIndex int, state QueryState) bool

// Find reports every element in [start, end) that satisfies cond against
// value to state, as index+baseIndex. end may be Npos. Find returns false if
// the state stopped the search early, or if it was already full on entry.
func (a *Array) Find(cond Cond, value int64, start, end, baseIndex int, state QueryState) bool {
	if cond >= numConds {
		panic(fmt.Sprintf("packedint: unknown condition %d", cond))
	}
	if end < 0 {
		end = a.size
	} else if end > a.size {
		if debugChecks {
			panic(fmt.Sprintf("packedint: end %d past size %d", end, a.size))
		}
		end = a.size
	}
	if start < 0 {
		panic(fmt.Sprintf("packedint: negative start %d", start))
	}
	if state.MatchCount() >= state.Limit() {
		return false
	}
	if start >= end {
		return true
	}
	return a.k.finders[cond](a, value, start, end, baseIndex, state)
}

// FindFirst returns the index of the first element in [start, end) that
// satisfies cond against value, or NotFound.
func (a *Array) FindFirst(cond Cond, value int64, start, end int) int {
	state := NewFindFirstState()
	a.Find(cond, value, start, end, 0, state)
	return state.Index
}

// FindAll returns the indices of all elements in [start, end) equal to value,
// offset by baseIndex.
func (a *Array) FindAll(value int64, start, end, baseIndex int) []int {
	state := NewFindAllState(Unlimited)
	a.Find(Equal, value, start, end, baseIndex, state)
	return state.Indices
}

// FindAllFunc calls fn for every element in [start, end) that satisfies cond
// against value, until fn returns false.
func (a *Array) FindAllFunc(cond Cond, value int64, start, end int, fn func(index int, value int64) bool) bool {
	return a.Find(cond, value, start, end, 0, NewCallbackState(fn))
}

// Count returns the number of elements equal to value.
func (a *Array) Count(value int64) int {
	state := NewCountState(Unlimited)
	a.Find(Equal, value, 0, Npos, 0, state)
	return state.MatchCount()
}

// findOptimized is the search entry point for one width and condition. It
// rules out or short-circuits the whole range using the bounds of the width,
// then scans.
func findOptimized[W widthSpec, C condition](a *Array, value int64, start, end, baseIndex int, state QueryState) bool {
	w, c := widthOf[W](), condOf[C]()
	lower, upper := LowerBound(w), UpperBound(w)
	if !c.CanMatch(value, lower, upper) {
		return true
	}
	if c.WillMatch(value, lower, upper) {
		return findAllWillMatch(a, start, end, baseIndex, state)
	}
	if end-start >= vectorMinElements {
		if kern, invert := vectorKernel(c, w); kern != nil {
			return findVector(a, kern, invert, c, w, value, start, end, baseIndex, state)
		}
	}
	return compare(a, c, w, value, start, end, baseIndex, state)
}

// findAllWillMatch reports every element in [start, end), but no more than
// the state still accepts.
func findAllWillMatch(a *Array, start, end, baseIndex int, state QueryState) bool {
	if remaining := state.Limit() - state.MatchCount(); remaining < end-start {
		end = start + max(remaining, 0)
	}
	get, data := a.k.get, a.data
	for i := start; i < end; i++ {
		if !state.Match(i+baseIndex, get(data, i)) {
			return false
		}
	}
	return true
}

// findVector splits [start, end) into a head, a run of 16-byte blocks and a
// tail. Blocks are aligned relative to the start of the payload.
func findVector(a *Array, kern blockScan, invert bool, c Cond, w uint8, value int64, start, end, baseIndex int, state QueryState) bool {
	bw := int(w >> 3)
	from := (start*bw + 15) &^ 15
	to := (end * bw) &^ 15
	if from >= to {
		return compare(a, c, w, value, start, end, baseIndex, state)
	}
	if !compare(a, c, w, value, start, from/bw, baseIndex, state) {
		return false
	}
	needle := splatLane(w, value)
	if !scanBlocks(kern, invert, a, from, to, needle[:], 0, baseIndex, state) {
		return false
	}
	return compare(a, c, w, value, to/bw, end, baseIndex, state)
}

// compare runs the chunked scan for c.
func compare(a *Array, c Cond, w uint8, value int64, start, end, baseIndex int, state QueryState) bool {
	switch c {
	case Equal:
		return compareEquality(a, true, w, value, start, end, baseIndex, state)
	case NotEqual:
		return compareEquality(a, false, w, value, start, end, baseIndex, state)
	case Greater:
		return compareRelation(a, true, w, value, start, end, baseIndex, state)
	}
	return compareRelation(a, false, w, value, start, end, baseIndex, state)
}

// scanRange checks elements one by one.
func scanRange(a *Array, c Cond, value int64, start, end, baseIndex int, state QueryState) bool {
	get, data := a.k.get, a.data
	for i := start; i < end; i++ {
		if v := get(data, i); c.Eval(v, value) {
			if !state.Match(i+baseIndex, v) {
				return false
			}
		}
	}
	return true
}

// reportFlags reports the fields flagged in a chunk. flags holds one set bit
// per matching field, anywhere inside the field.
func reportFlags(a *Array, w uint8, flags uint64, first, baseIndex int, state QueryState) bool {
	get, data := a.k.get, a.data
	for flags != 0 {
		i := first + bits.TrailingZeros64(flags)/int(w)
		flags &= flags - 1
		if !state.Match(i+baseIndex, get(data, i)) {
			return false
		}
	}
	return true
}

// compareEquality scans for elements equal (eq) or unequal (!eq) to value.
// Widths below 32 XOR each 64-bit chunk with value repeated in every field,
// which turns matching fields into zero (or non-zero) fields.
func compareEquality(a *Array, eq bool, w uint8, value int64, start, end, baseIndex int, state QueryState) bool {
	c := Equal
	if !eq {
		c = NotEqual
	}
	per := elementsPerChunk(w)
	head := min((start+per-1)/per*per, end)
	if !scanRange(a, c, value, start, head, baseIndex, state) {
		return false
	}
	start = head

	if w != 0 && w < 32 {
		pattern := lowerBits(w) * (uint64(value) & widthMask(w))
		for ; start+per <= end; start += per {
			chunk := chunkAt(a.data, start, w) ^ pattern
			if eq && !testZero(w, chunk) || !eq && chunk == 0 {
				continue
			}
			if !reportFlags(a, w, cascade(w, eq, chunk), start, baseIndex, state) {
				return false
			}
		}
	}
	return scanRange(a, c, value, start, end, baseIndex, state)
}

// compareRelation scans for elements greater (gt) or less (!gt) than value.
// Widths up to 16 compare whole chunks: when every field of a chunk has its
// top bit clear and value is small enough, findGtltFast flags all matches of
// the chunk at once; otherwise the fields are compared one by one.
func compareRelation(a *Array, gt bool, w uint8, value int64, start, end, baseIndex int, state QueryState) bool {
	c := Less
	if gt {
		c = Greater
	}
	per := elementsPerChunk(w)
	head := min((start+per-1)/per*per, end)
	if !scanRange(a, c, value, start, head, baseIndex, state) {
		return false
	}
	start = head

	if w != 0 && w <= 16 {
		fast := gtltFastUsable(gt, w, value)
		var magic uint64
		if fast {
			magic = gtltMagic(gt, w, value)
		}
		upper := upperBits(w)
		for ; start+per <= end; start += per {
			chunk := chunkAt(a.data, start, w)
			if fast && chunk&upper == 0 {
				if !reportFlags(a, w, findGtltFast(gt, w, magic, chunk), start, baseIndex, state) {
					return false
				}
				continue
			}
			if !findGtlt(a, gt, w, value, chunk, start, baseIndex, state) {
				return false
			}
		}
	}
	return scanRange(a, c, value, start, end, baseIndex, state)
}

// findGtlt compares the fields of one chunk individually.
func findGtlt(a *Array, gt bool, w uint8, value int64, chunk uint64, first, baseIndex int, state QueryState) bool {
	per := elementsPerChunk(w)
	for j := range per {
		v := fieldValue(w, chunk, j)
		if gt && v > value || !gt && v < value {
			if !state.Match(first+j+baseIndex, v) {
				return false
			}
		}
	}
	return true
}
