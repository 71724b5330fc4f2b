package packedint

import (
	"fmt"
	"sort"

	"github.com/Akron/packedint/alloc"
)

func (a *Array) checkIndex(ndx, limit int) {
	if uint(ndx) >= uint(limit) {
		panic(fmt.Sprintf("packedint: index %d out of range [0, %d)", ndx, limit))
	}
}

func (a *Array) checkRange(begin, end int) {
	if begin < 0 || begin > end || end > a.size {
		panic(fmt.Sprintf("packedint: range [%d, %d) out of bounds for size %d", begin, end, a.size))
	}
}

// Get returns element ndx.
func (a *Array) Get(ndx int) int64 {
	if debugChecks {
		a.checkIndex(ndx, a.size)
	}
	return a.k.get(a.data, ndx)
}

// GetDirect reads element ndx straight from a region, without an accessor.
func GetDirect(mem []byte, ndx int) int64 {
	h, _ := decodeHeader(bo.Uint64(mem))
	return getUniversal(h.Width, mem[HeaderSize:], ndx)
}

// Front returns the first element.
func (a *Array) Front() int64 { return a.Get(0) }

// Back returns the last element.
func (a *Array) Back() int64 { return a.Get(a.size - 1) }

// GetChunk reads the 8 elements starting at ndx into res. Positions past the
// end of the array read as zero.
func (a *Array) GetChunk(ndx int, res *[8]int64) {
	if debugChecks {
		a.checkIndex(ndx, a.size)
	}
	getChunk(a.k.get, a.data, ndx, a.size, res)
}

// Set stores v at ndx. The value must already fit the current width; call
// EnsureMinimumWidth first otherwise. Set panics if it does not.
func (a *Array) Set(ndx int, v int64) {
	a.mustBeWritable()
	if v < a.lbound || v > a.ubound {
		panic(fmt.Sprintf("packedint: value %d does not fit width %d", v, a.width))
	}
	if debugChecks {
		a.checkIndex(ndx, a.size)
	}
	a.k.set(a.data, ndx, v)
}

// EnsureMinimumWidth widens the array so that v can be stored. All elements
// are re-encoded at the new width. It never narrows the array.
func (a *Array) EnsureMinimumWidth(v int64) error {
	if v >= a.lbound && v <= a.ubound {
		return nil
	}
	a.mustBeWritable()
	w := BitWidth(v)
	oldGet := a.k.get
	if err := a.allocFor(a.size, w); err != nil {
		return err
	}
	// Widening back to front never overwrites an element before it is read.
	set := a.k.set
	for i := a.size - 1; i >= 0; i-- {
		set(a.data, i, oldGet(a.data, i))
	}
	return nil
}

// Insert places v at ndx, shifting later elements up by one.
func (a *Array) Insert(ndx int, v int64) error {
	a.mustBeWritable()
	if ndx < 0 || ndx > a.size {
		panic(fmt.Sprintf("packedint: insert position %d out of range [0, %d]", ndx, a.size))
	}
	oldWidth, oldSize, oldGet := a.width, a.size, a.k.get
	expand := v < a.lbound || v > a.ubound
	w := oldWidth
	if expand {
		w = BitWidth(v)
	}
	if err := a.allocFor(oldSize+1, w); err != nil {
		return err
	}

	set := a.k.set
	switch {
	case expand || oldWidth < 8:
		for i := oldSize - 1; i >= ndx; i-- {
			set(a.data, i+1, oldGet(a.data, i))
		}
	case ndx != oldSize:
		bw := int(oldWidth / 8)
		copy(a.data[(ndx+1)*bw:(oldSize+1)*bw], a.data[ndx*bw:oldSize*bw])
	}
	set(a.data, ndx, v)

	if expand {
		for i := ndx - 1; i >= 0; i-- {
			set(a.data, i, oldGet(a.data, i))
		}
	}
	return nil
}

// Add appends v.
func (a *Array) Add(v int64) error {
	return a.Insert(a.size, v)
}

// Erase removes element ndx.
func (a *Array) Erase(ndx int) {
	a.EraseRange(ndx, ndx+1)
}

// EraseRange removes elements [begin, end).
func (a *Array) EraseRange(begin, end int) {
	a.mustBeWritable()
	a.checkRange(begin, end)
	if end != a.size {
		a.Move(end, a.size, begin)
	}
	a.setSize(a.size - (end - begin))
}

// Move copies elements [begin, end) to dest. The destination may overlap the
// source only if dest lies before begin.
func (a *Array) Move(begin, end, dest int) {
	a.mustBeWritable()
	a.checkRange(begin, end)
	n := end - begin
	if dest < 0 || dest > a.size || n > a.size-dest {
		panic(fmt.Sprintf("packedint: move destination %d out of range", dest))
	}
	if dest >= begin && dest < end && n > 0 && dest != begin {
		panic("packedint: move destination inside source range")
	}
	if a.width < 8 {
		get, set := a.k.get, a.k.set
		for i := begin; i < end; i++ {
			set(a.data, dest, get(a.data, i))
			dest++
		}
		return
	}
	bw := int(a.width / 8)
	copy(a.data[dest*bw:(dest+n)*bw], a.data[begin*bw:end*bw])
}

// MoveTo appends elements [ndx, Size) to dst and truncates this array to ndx.
func (a *Array) MoveTo(dst *Array, ndx int) error {
	if dst == a {
		panic("packedint: move to self")
	}
	a.mustBeWritable()
	dst.mustBeWritable()
	if ndx < 0 || ndx > a.size {
		panic(fmt.Sprintf("packedint: move position %d out of range [0, %d]", ndx, a.size))
	}
	if err := dst.EnsureMinimumWidth(a.ubound); err != nil {
		return err
	}
	if err := dst.EnsureMinimumWidth(a.lbound); err != nil {
		return err
	}
	destBegin := dst.size
	n := a.size - ndx
	if err := dst.allocFor(dst.size+n, dst.width); err != nil {
		return err
	}
	get, set := a.k.get, dst.k.set
	for i := ndx; i < a.size; i++ {
		set(dst.data, destBegin, get(a.data, i))
		destBegin++
	}
	a.Truncate(ndx)
	return nil
}

// Truncate shrinks the array to n elements, keeping the capacity. An array
// truncated to zero elements drops back to width 0.
func (a *Array) Truncate(n int) {
	if n < 0 || n > a.size {
		panic(fmt.Sprintf("packedint: truncate to %d out of range [0, %d]", n, a.size))
	}
	if n == a.size {
		return
	}
	a.mustBeWritable()
	a.setSize(n)
	if n == 0 {
		setHeaderWidth(a.mem, 0)
		a.setWidth(0)
	}
}

// TruncateAndDestroyChildren is Truncate, additionally destroying the
// subtrees referenced by the removed elements. The array is truncated even
// if a subtree turns out to be corrupt; that error is returned.
func (a *Array) TruncateAndDestroyChildren(n int) error {
	if n < 0 || n > a.size {
		panic(fmt.Sprintf("packedint: truncate to %d out of range [0, %d]", n, a.size))
	}
	if n == a.size {
		return nil
	}
	a.mustBeWritable()
	var err error
	if a.hasRefs {
		err = a.destroyChildren(n)
	}
	a.Truncate(n)
	return err
}

// Clear removes all elements.
func (a *Array) Clear() { a.Truncate(0) }

// ClearAndDestroyChildren removes all elements and destroys their subtrees.
func (a *Array) ClearAndDestroyChildren() error { return a.TruncateAndDestroyChildren(0) }

// Adjust adds diff to element ndx, widening the array as needed.
func (a *Array) Adjust(ndx int, diff int64) error {
	if diff == 0 {
		return nil
	}
	v := a.Get(ndx) + diff
	if err := a.EnsureMinimumWidth(v); err != nil {
		return err
	}
	a.Set(ndx, v)
	return nil
}

// AdjustRange adds diff to every element in [begin, end).
func (a *Array) AdjustRange(begin, end int, diff int64) error {
	a.checkRange(begin, end)
	for i := begin; i < end; i++ {
		if err := a.Adjust(i, diff); err != nil {
			return err
		}
	}
	return nil
}

// SetAllToZero turns every element into zero by dropping to width 0. The
// size is kept.
func (a *Array) SetAllToZero() {
	if a.size == 0 || a.width == 0 {
		return
	}
	a.mustBeWritable()
	setHeaderWidth(a.mem, 0)
	a.setWidth(0)
}

// LowerBoundInt returns the first position whose element is not less than v.
// The array must be sorted ascending.
func (a *Array) LowerBoundInt(v int64) int {
	get, data := a.k.get, a.data
	return sort.Search(a.size, func(i int) bool { return get(data, i) >= v })
}

// UpperBoundInt returns the first position whose element is greater than v.
// The array must be sorted ascending.
func (a *Array) UpperBoundInt(v int64) int {
	get, data := a.k.get, a.data
	return sort.Search(a.size, func(i int) bool { return get(data, i) > v })
}

// GetAsRef returns element ndx as a ref.
func (a *Array) GetAsRef(ndx int) alloc.Ref { return toRef(a.Get(ndx)) }

// SetAsRef stores ref at ndx, widening as needed.
func (a *Array) SetAsRef(ndx int, ref alloc.Ref) error {
	return a.SetRefOrTagged(ndx, MakeRef(ref))
}

// GetAsRefOrTagged returns element ndx as a RefOrTagged.
func (a *Array) GetAsRefOrTagged(ndx int) RefOrTagged {
	return refOrTaggedFromRaw(a.Get(ndx))
}

// SetRefOrTagged stores r at ndx, widening as needed.
func (a *Array) SetRefOrTagged(ndx int, r RefOrTagged) error {
	if err := a.EnsureMinimumWidth(r.raw); err != nil {
		return err
	}
	a.Set(ndx, r.raw)
	return nil
}

// AddRefOrTagged appends r.
func (a *Array) AddRefOrTagged(r RefOrTagged) error {
	return a.Add(r.raw)
}

// EnsureMinimumWidthRefOrTagged widens the array so that r can be stored.
func (a *Array) EnsureMinimumWidthRefOrTagged(r RefOrTagged) error {
	return a.EnsureMinimumWidth(r.raw)
}

// UpdateChildRef implements Parent for arrays holding refs.
func (a *Array) UpdateChildRef(childNdx int, ref alloc.Ref) error {
	return a.SetAsRef(childNdx, ref)
}

// ChildRef implements Parent for arrays holding refs.
func (a *Array) ChildRef(childNdx int) alloc.Ref {
	return a.GetAsRef(childNdx)
}
