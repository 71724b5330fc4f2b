package packedint

import (
	"errors"
	"fmt"

	"github.com/Akron/packedint/alloc"
)

// ArrayWriter receives serialized array regions and returns the ref under
// which each one will be found when the output is loaded.
type ArrayWriter interface {
	WriteArray(region []byte) (alloc.Ref, error)
}

// Destroy releases the region of this array (but not its children) and
// detaches the accessor.
func (a *Array) Destroy() {
	if !a.IsAttached() {
		return
	}
	a.alloc.Free(a.ref, a.mem)
	a.Detach()
}

// DestroyDeep releases this array and, if it holds refs, every region
// reachable from it. Tagged integers and null refs are skipped. A child that
// does not resolve or has a corrupt header is left in place; the rest of the
// tree is still released and the first such error, wrapping ErrCorrupt, is
// returned. A detached accessor is a no-op.
func (a *Array) DestroyDeep() error {
	if !a.IsAttached() {
		return nil
	}
	var err error
	if a.hasRefs {
		err = a.destroyChildren(0)
	}
	a.Destroy()
	return err
}

func (a *Array) destroyChildren(offset int) error {
	var first error
	get := a.k.get
	for i := offset; i < a.size; i++ {
		if v := get(a.data, i); isSubArray(v) {
			if err := DestroyDeepRef(toRef(v), a.alloc); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

// DestroyDeepRef releases the tree rooted at ref. A null ref is ignored; a
// ref the allocator cannot translate yields ErrCorrupt.
func DestroyDeepRef(ref alloc.Ref, al alloc.Allocator) error {
	if ref.IsNull() {
		return nil
	}
	mem := al.Translate(ref)
	if mem == nil {
		return fmt.Errorf("%w: ref %d does not resolve", ErrCorrupt, ref)
	}
	return DestroyDeepMem(alloc.MemRef{Ref: ref, Addr: mem}, al)
}

// DestroyDeepMem releases the tree rooted at a translated region. A region
// with a corrupt header is not freed.
func DestroyDeepMem(m alloc.MemRef, al alloc.Allocator) error {
	h, err := ReadHeader(m.Addr)
	if err != nil {
		return fmt.Errorf("destroy ref %d: %w", m.Ref, err)
	}
	if !h.HasRefs {
		al.Free(m.Ref, m.Addr[:min(len(m.Addr), h.Capacity)])
		return nil
	}
	arr := NewArray(al)
	if err := arr.InitFromMem(m); err != nil {
		return fmt.Errorf("destroy ref %d: %w", m.Ref, err)
	}
	return arr.DestroyDeep()
}

// CloneDeep copies the tree rooted at this array into target and returns the
// new root.
func (a *Array) CloneDeep(target alloc.Allocator) (alloc.MemRef, error) {
	if !a.IsAttached() {
		return alloc.MemRef{}, ErrDetached
	}
	return Clone(a.Mem(), a.alloc, target)
}

// Clone copies the tree rooted at m from one allocator into another. Arrays
// without refs are copied byte for byte; arrays with refs are rebuilt with
// the refs of their cloned children. On error nothing is left allocated in
// target.
func Clone(m alloc.MemRef, from, to alloc.Allocator) (alloc.MemRef, error) {
	h, err := ReadHeader(m.Addr)
	if err != nil {
		return alloc.MemRef{}, err
	}
	if !h.HasRefs {
		size := h.ByteSize()
		c, err := to.Alloc(size)
		if err != nil {
			return alloc.MemRef{}, err
		}
		copy(c.Addr, m.Addr[:size])
		setHeaderCapacity(c.Addr, size)
		return alloc.MemRef{Ref: c.Ref, Addr: c.Addr[:size]}, nil
	}

	src := NewArray(from)
	if err := src.InitFromMem(m); err != nil {
		return alloc.MemRef{}, err
	}
	dst := NewArray(to)
	if err := dst.Create(src.Type(), src.contextFlag, 0, 0); err != nil {
		return alloc.MemRef{}, err
	}
	for i := range src.size {
		v := src.Get(i)
		if isSubArray(v) {
			ref := toRef(v)
			child, err := Clone(alloc.MemRef{Ref: ref, Addr: from.Translate(ref)}, from, to)
			if err != nil {
				return alloc.MemRef{}, errors.Join(fmt.Errorf("clone child %d: %w", i, err), dst.DestroyDeep())
			}
			v = fromRef(child.Ref)
			if err := dst.Add(v); err != nil {
				return alloc.MemRef{}, errors.Join(err, DestroyDeepRef(child.Ref, to), dst.DestroyDeep())
			}
			continue
		}
		if err := dst.Add(v); err != nil {
			return alloc.MemRef{}, errors.Join(err, dst.DestroyDeep())
		}
	}
	return dst.Mem(), nil
}

// Write serializes the array to out and returns its ref in the output. With
// deep set, children are written first and the array is written with their
// new refs. With onlyIfModified set, read-only regions are assumed to be in
// the output already and keep their ref.
func (a *Array) Write(out ArrayWriter, deep, onlyIfModified bool) (alloc.Ref, error) {
	if !a.IsAttached() {
		return 0, ErrDetached
	}
	if onlyIfModified && a.alloc.IsReadOnly(a.ref) {
		return a.ref, nil
	}
	if !deep || !a.hasRefs {
		return a.writeShallow(out)
	}
	return a.writeDeep(out, onlyIfModified)
}

// WriteRef is Write for the tree rooted at ref.
func WriteRef(ref alloc.Ref, al alloc.Allocator, out ArrayWriter, onlyIfModified bool) (alloc.Ref, error) {
	if onlyIfModified && al.IsReadOnly(ref) {
		return ref, nil
	}
	arr := NewArray(al)
	if err := arr.InitFromRef(ref); err != nil {
		return 0, err
	}
	return arr.Write(out, true, onlyIfModified)
}

// writeShallow emits the array with its capacity trimmed to its byte size.
func (a *Array) writeShallow(out ArrayWriter) (alloc.Ref, error) {
	size := a.ByteSize()
	region := make([]byte, size)
	copy(region, a.mem[:size])
	setHeaderCapacity(region, size)
	return out.WriteArray(region)
}

func (a *Array) writeDeep(out ArrayWriter, onlyIfModified bool) (alloc.Ref, error) {
	tmp := NewArray(alloc.Default())
	if err := tmp.Create(a.Type(), a.contextFlag, 0, 0); err != nil {
		return 0, err
	}
	defer tmp.Destroy()

	for i := range a.size {
		v := a.Get(i)
		if isSubArray(v) {
			ref, err := WriteRef(toRef(v), a.alloc, out, onlyIfModified)
			if err != nil {
				return 0, err
			}
			v = fromRef(ref)
		}
		if err := tmp.Add(v); err != nil {
			return 0, err
		}
	}
	return tmp.writeShallow(out)
}

// MemStats accumulates the memory footprint of a tree of arrays.
type MemStats struct {
	// Allocated is the total capacity of the visited regions.
	Allocated int
	// Used is the total byte size of the visited arrays.
	Used int
	// Arrays is the number of visited arrays.
	Arrays int
}

// Stats adds the footprint of the tree rooted at this array to st.
func (a *Array) Stats(st *MemStats) error {
	return a.ReportMemoryUsage(func(_ alloc.Ref, allocated, used int) {
		st.Allocated += allocated
		st.Used += used
		st.Arrays++
	})
}

// ReportMemoryUsage calls fn for this array and every array reachable from
// it, in depth-first order, children first.
func (a *Array) ReportMemoryUsage(fn func(ref alloc.Ref, allocated, used int)) error {
	if !a.IsAttached() {
		return ErrDetached
	}
	if a.hasRefs {
		for i := range a.size {
			v := a.Get(i)
			if !isSubArray(v) {
				continue
			}
			child := NewArray(a.alloc)
			if err := child.InitFromRef(toRef(v)); err != nil {
				return fmt.Errorf("child %d: %w", i, err)
			}
			if err := child.ReportMemoryUsage(fn); err != nil {
				return err
			}
		}
	}
	fn(a.ref, len(a.mem), a.ByteSize())
	return nil
}

// Verify checks that the accessor agrees with the header of its region and
// that child refs are well-formed.
func (a *Array) Verify() error {
	if !a.IsAttached() {
		return ErrDetached
	}
	h, err := ReadHeader(a.mem)
	if err != nil {
		return err
	}
	switch {
	case h.Width != a.width:
		return fmt.Errorf("%w: header width %d, accessor width %d", ErrCorrupt, h.Width, a.width)
	case h.Size != a.size:
		return fmt.Errorf("%w: header size %d, accessor size %d", ErrCorrupt, h.Size, a.size)
	case h.HasRefs != a.hasRefs || h.IsInnerBptree != a.isInner || h.ContextFlag != a.contextFlag:
		return fmt.Errorf("%w: header flags disagree with accessor", ErrCorrupt)
	case len(a.mem) < h.ByteSize():
		return fmt.Errorf("%w: region of %d bytes holds array of %d bytes", ErrCorrupt, len(a.mem), h.ByteSize())
	}
	if !a.hasRefs {
		return nil
	}
	for i := range a.size {
		v := a.Get(i)
		if !isSubArray(v) {
			continue
		}
		ref := toRef(v)
		if !ref.IsAligned() || a.alloc.Translate(ref) == nil {
			return fmt.Errorf("%w: element %d holds invalid ref %d", ErrCorrupt, i, ref)
		}
	}
	return nil
}
