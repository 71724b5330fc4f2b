package packedint

import (
	"errors"
	"fmt"

	"github.com/Akron/packedint/alloc"
)

// Type selects the flags an array is created with.
type Type uint8

const (
	// TypeNormal arrays hold plain integers.
	TypeNormal Type = iota
	// TypeInnerBptreeNode arrays are inner nodes of a B+-tree; they hold refs.
	TypeInnerBptreeNode
	// TypeHasRefs arrays hold refs (or tagged integers) to child regions.
	TypeHasRefs
)

func (t Type) String() string {
	switch t {
	case TypeNormal:
		return "normal"
	case TypeInnerBptreeNode:
		return "inner-bptree-node"
	case TypeHasRefs:
		return "has-refs"
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// initialCapacity is the minimum region size of a freshly created array.
const initialCapacity = 128

// ErrDetached is returned when an operation needs an attached array.
var ErrDetached = errors.New("packedint: array is detached")

// Parent is implemented by whatever stores the ref of an array. When an array
// has to move to a new region (growth, widening, copy-on-write) it reports
// the new ref to its parent.
type Parent interface {
	UpdateChildRef(childNdx int, ref alloc.Ref) error
	ChildRef(childNdx int) alloc.Ref
}

// Array is an accessor for an integer array stored in an allocator region.
//
// The accessor does not own the region: destroying an Array value leaves the
// region alone, and several accessors may read the same region. An Array is
// either detached (no region) or attached to exactly one region. It is not
// safe for concurrent mutation.
type Array struct {
	alloc alloc.Allocator
	ref   alloc.Ref
	mem   []byte // header and payload, len(mem) is the usable capacity
	data  []byte // payload, mem[HeaderSize:]

	size     int
	width    uint8
	lbound   int64
	ubound   int64
	k        *widthKernels
	readOnly bool

	isInner     bool
	hasRefs     bool
	contextFlag bool

	parent      Parent
	ndxInParent int
}

// NewArray returns a detached accessor bound to a.
func NewArray(a alloc.Allocator) *Array {
	return &Array{alloc: a, k: &kernelTable[0]}
}

// Allocator returns the allocator the accessor is bound to.
func (a *Array) Allocator() alloc.Allocator { return a.alloc }

// CreateArray allocates a new region holding size copies of value and returns
// it without attaching an accessor.
func CreateArray(t Type, contextFlag bool, size int, value int64, al alloc.Allocator) (alloc.MemRef, error) {
	if size < 0 || size > MaxSize {
		return alloc.MemRef{}, fmt.Errorf("%w: %d elements", ErrTooLarge, size)
	}
	var w uint8
	byteSize := HeaderSize
	if value != 0 {
		w = BitWidth(value)
		byteSize = CalcAlignedByteSize(size, w)
	}
	byteSize = max(byteSize, initialCapacity)
	if byteSize > MaxCapacity {
		return alloc.MemRef{}, fmt.Errorf("%w: %d bytes", ErrTooLarge, byteSize)
	}

	mem, err := al.Alloc(byteSize)
	if err != nil {
		return alloc.MemRef{}, err
	}
	WriteHeader(mem.Addr, Header{
		Width:         w,
		Size:          size,
		Capacity:      byteSize,
		IsInnerBptree: t == TypeInnerBptreeNode,
		HasRefs:       t == TypeInnerBptreeNode || t == TypeHasRefs,
		ContextFlag:   contextFlag,
	})
	if value != 0 {
		fillDirect(w, mem.Addr[HeaderSize:], 0, size, value)
	}
	return alloc.MemRef{Ref: mem.Ref, Addr: mem.Addr[:byteSize]}, nil
}

// CreateEmptyArray allocates a new empty region.
func CreateEmptyArray(t Type, contextFlag bool, al alloc.Allocator) (alloc.MemRef, error) {
	return CreateArray(t, contextFlag, 0, 0, al)
}

// Create allocates a new region of size elements, all equal to value, and
// attaches the accessor to it.
func (a *Array) Create(t Type, contextFlag bool, size int, value int64) error {
	mem, err := CreateArray(t, contextFlag, size, value, a.alloc)
	if err != nil {
		return err
	}
	return a.InitFromMem(mem)
}

// InitFromRef attaches the accessor to the region at ref.
func (a *Array) InitFromRef(ref alloc.Ref) error {
	mem := a.alloc.Translate(ref)
	if mem == nil {
		return fmt.Errorf("%w: unknown ref %d", ErrCorrupt, ref)
	}
	return a.InitFromMem(alloc.MemRef{Ref: ref, Addr: mem})
}

// InitFromMem attaches the accessor to an already translated region.
func (a *Array) InitFromMem(m alloc.MemRef) error {
	h, err := ReadHeader(m.Addr)
	if err != nil {
		return err
	}
	if need := h.ByteSize(); len(m.Addr) < need {
		return fmt.Errorf("%w: region of %d bytes holds array of %d bytes", ErrCorrupt, len(m.Addr), need)
	}
	a.setMem(m.Ref, m.Addr[:min(len(m.Addr), h.Capacity)])
	a.readOnly = a.alloc.IsReadOnly(m.Ref)
	a.size = h.Size
	a.isInner = h.IsInnerBptree
	a.hasRefs = h.HasRefs
	a.contextFlag = h.ContextFlag
	a.setWidth(h.Width)
	return nil
}

// InitFromParent attaches the accessor to the region its parent points at.
func (a *Array) InitFromParent() error {
	if a.parent == nil {
		return errors.New("packedint: array has no parent")
	}
	return a.InitFromRef(a.parent.ChildRef(a.ndxInParent))
}

// UpdateFromParent re-attaches the accessor if the parent's ref changed. It
// reports whether the accessor moved.
func (a *Array) UpdateFromParent() (bool, error) {
	if a.parent == nil {
		return false, nil
	}
	ref := a.parent.ChildRef(a.ndxInParent)
	if ref == a.ref && a.IsAttached() {
		return false, nil
	}
	return true, a.InitFromRef(ref)
}

// SetParent records where the ref of this array is stored.
func (a *Array) SetParent(p Parent, ndxInParent int) {
	a.parent = p
	a.ndxInParent = ndxInParent
}

// Parent returns the parent set with SetParent.
func (a *Array) Parent() Parent { return a.parent }

// IndexInParent returns the index set with SetParent.
func (a *Array) IndexInParent() int { return a.ndxInParent }

func (a *Array) updateParent() error {
	if a.parent == nil {
		return nil
	}
	return a.parent.UpdateChildRef(a.ndxInParent, a.ref)
}

// Detach unbinds the accessor from its region. The region is left alone.
// The accessor keeps no flags of the region it was bound to.
func (a *Array) Detach() {
	a.mem = nil
	a.data = nil
	a.ref = 0
	a.size = 0
	a.readOnly = false
	a.hasRefs = false
	a.isInner = false
	a.contextFlag = false
	a.setWidth(0)
}

// IsAttached reports whether the accessor is bound to a region.
func (a *Array) IsAttached() bool { return a.mem != nil }

// Ref returns the ref of the attached region.
func (a *Array) Ref() alloc.Ref { return a.ref }

// Mem returns the attached region.
func (a *Array) Mem() alloc.MemRef { return alloc.MemRef{Ref: a.ref, Addr: a.mem} }

// Size returns the number of elements.
func (a *Array) Size() int { return a.size }

// IsEmpty reports whether the array has no elements.
func (a *Array) IsEmpty() bool { return a.size == 0 }

// Width returns the current element width in bits.
func (a *Array) Width() uint8 { return a.width }

// Bounds returns the smallest and largest value storable at the current width.
func (a *Array) Bounds() (lower, upper int64) { return a.lbound, a.ubound }

// Capacity returns the size of the region in bytes.
func (a *Array) Capacity() int { return len(a.mem) }

// IsReadOnly reports whether the region must not be modified in place.
func (a *Array) IsReadOnly() bool { return a.readOnly }

// IsInnerBptreeNode reports the inner-node flag.
func (a *Array) IsInnerBptreeNode() bool { return a.isInner }

// HasRefs reports whether elements are refs or tagged integers.
func (a *Array) HasRefs() bool { return a.hasRefs }

// SetHasRefs updates the has-refs flag.
func (a *Array) SetHasRefs(v bool) {
	a.mustBeWritable()
	a.hasRefs = v
	setHeaderFlag(a.mem, headerHasRefsFlag, v)
}

// ContextFlag reports the context flag, a bit reserved for the owner of the
// array.
func (a *Array) ContextFlag() bool { return a.contextFlag }

// SetContextFlag updates the context flag.
func (a *Array) SetContextFlag(v bool) {
	a.mustBeWritable()
	a.contextFlag = v
	setHeaderFlag(a.mem, headerContextFlag, v)
}

// Type returns the type implied by the flags.
func (a *Array) Type() Type {
	switch {
	case a.isInner:
		return TypeInnerBptreeNode
	case a.hasRefs:
		return TypeHasRefs
	}
	return TypeNormal
}

// SetType changes the flags to match t.
func (a *Array) SetType(t Type) {
	a.mustBeWritable()
	a.isInner = t == TypeInnerBptreeNode
	a.hasRefs = t == TypeInnerBptreeNode || t == TypeHasRefs
	setHeaderFlag(a.mem, headerInnerFlag, a.isInner)
	setHeaderFlag(a.mem, headerHasRefsFlag, a.hasRefs)
}

// ByteSize returns the number of bytes the array needs, header included.
func (a *Array) ByteSize() int {
	return CalcAlignedByteSize(a.size, a.width)
}

// MaxByteSize returns the byte size of an array of n elements at width 64.
func MaxByteSize(n int) int {
	return CalcAlignedByteSize(n, 64)
}

func (a *Array) setMem(ref alloc.Ref, mem []byte) {
	a.ref = ref
	a.mem = mem
	a.data = mem[HeaderSize:]
}

// setWidth refreshes the cached bounds and kernels after a width change.
func (a *Array) setWidth(w uint8) {
	a.width = w
	a.lbound = LowerBound(w)
	a.ubound = UpperBound(w)
	a.k = &kernelTable[widthIndex(w)]
}

func (a *Array) setSize(n int) {
	a.size = n
	setHeaderSize(a.mem, n)
}

func (a *Array) mustBeWritable() {
	if !a.IsAttached() {
		panic(ErrDetached)
	}
	if a.readOnly {
		panic("packedint: mutation of read-only array")
	}
}

// CopyOnWrite moves a read-only array into a writable region, releasing the
// original region to the allocator and updating the parent. It is a no-op for
// writable arrays.
func (a *Array) CopyOnWrite() error {
	if !a.IsAttached() {
		return ErrDetached
	}
	if !a.readOnly {
		return nil
	}
	return a.doCopyOnWrite(0)
}

func (a *Array) doCopyOnWrite(minSize int) error {
	used := a.ByteSize()
	newSize := (max(used, minSize)+7)&^7 + 64
	if newSize > MaxCapacity {
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, newSize)
	}
	m, err := a.alloc.Alloc(newSize)
	if err != nil {
		return err
	}
	copy(m.Addr, a.mem[:used])

	oldRef, oldMem := a.ref, a.mem
	a.setMem(m.Ref, m.Addr[:newSize])
	setHeaderCapacity(a.mem, newSize)
	a.readOnly = false
	a.alloc.Free(oldRef, oldMem)
	return a.updateParent()
}

// allocFor makes room for size elements of width w, moving the array to a
// larger region if needed, and records the new size and width in the header.
// The payload is not re-encoded. On error the array is unchanged.
func (a *Array) allocFor(size int, w uint8) error {
	if size > MaxSize {
		return fmt.Errorf("%w: %d elements", ErrTooLarge, size)
	}
	needed := CalcByteLen(size, w)
	if needed > MaxCapacity {
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, needed)
	}
	if capacity := len(a.mem); capacity < needed {
		newCap := capacity * 2
		if newCap < needed {
			newCap = needed
		}
		newCap = min((newCap+7)&^7, MaxCapacity)

		m, err := a.alloc.Alloc(newCap)
		if err != nil {
			return err
		}
		copy(m.Addr, a.mem[:min(len(a.mem), a.ByteSize())])

		oldRef, oldMem := a.ref, a.mem
		a.setMem(m.Ref, m.Addr[:newCap])
		setHeaderCapacity(a.mem, newCap)
		a.alloc.Free(oldRef, oldMem)
		if err := a.updateParent(); err != nil {
			return err
		}
	}
	setHeaderWidth(a.mem, w)
	a.setSize(size)
	a.setWidth(w)
	return nil
}
