package packedint

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Akron/packedint/alloc"
)

// newArrayOf creates an array in al holding values.
func newArrayOf(t testing.TB, al alloc.Allocator, values ...int64) *Array {
	t.Helper()
	a := NewArray(al)
	require.NoError(t, a.Create(TypeNormal, false, 0, 0))
	for _, v := range values {
		require.NoError(t, a.Add(v))
	}
	return a
}

func contents(a *Array) []int64 {
	out := make([]int64, a.Size())
	for i := range out {
		out[i] = a.Get(i)
	}
	return out
}

// widthValues returns values that need exactly width w, including its bounds.
func widthValues(w uint8) []int64 {
	switch w {
	case 0:
		return []int64{0, 0, 0}
	case 1:
		return []int64{1, 0, 1, 1}
	}
	lo, hi := LowerBound(w), UpperBound(w)
	return []int64{hi, lo, hi / 2, lo / 2, 1, 0, hi - 1}
}

func TestCreateFilled(t *testing.T) {
	assert := assert.New(t)
	al := alloc.NewHeap()

	a := NewArray(al)
	require.NoError(t, a.Create(TypeNormal, true, 10, -300))
	assert.Equal(10, a.Size())
	assert.Equal(uint8(16), a.Width())
	assert.True(a.ContextFlag())
	assert.Equal(TypeNormal, a.Type())
	for i := range 10 {
		assert.Equal(int64(-300), a.Get(i))
	}
	assert.NoError(a.Verify())

	z := NewArray(al)
	require.NoError(t, z.Create(TypeHasRefs, false, 1000, 0))
	assert.Equal(uint8(0), z.Width())
	assert.Equal(int64(0), z.Get(999))
	assert.True(z.HasRefs())
	assert.Equal(initialCapacity, z.Capacity())
}

func TestAddWidensThroughAllWidths(t *testing.T) {
	assert := assert.New(t)
	a := newArrayOf(t, alloc.NewHeap())

	var want []int64
	for _, v := range []int64{0, 1, 3, 15, 127, -128, 32767, math.MinInt32, math.MaxInt64} {
		require.NoError(t, a.Add(v))
		want = append(want, v)
		assert.Equal(BitWidth(v), a.Width(), "after adding %d", v)
		assert.Equal(want, contents(a))
	}
	assert.Equal(int64(0), a.Front())
	assert.Equal(int64(math.MaxInt64), a.Back())
	assert.NoError(a.Verify())
}

func TestWidthRoundTrip(t *testing.T) {
	for _, w := range legalWidths {
		values := widthValues(w)
		a := newArrayOf(t, alloc.NewHeap(), values...)
		assert.Equalf(t, w, a.Width(), "width %d", w)
		assert.Equalf(t, values, contents(a), "width %d", w)

		// The region alone is enough to read elements back.
		for i, v := range values {
			assert.Equal(t, v, GetDirect(a.Mem().Addr, i))
		}
	}
}

func TestGetChunk(t *testing.T) {
	a := newArrayOf(t, alloc.NewHeap(), 1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
	var res [8]int64
	a.GetChunk(0, &res)
	assert.Equal(t, [8]int64{1, 2, 3, 4, 5, 6, 7, 8}, res)
	a.GetChunk(5, &res)
	assert.Equal(t, [8]int64{6, 7, 8, 9, 10, 0, 0, 0}, res)
}

func TestSetRequiresWidth(t *testing.T) {
	assert := assert.New(t)
	a := newArrayOf(t, alloc.NewHeap(), 1, 2, 3)
	require.Equal(t, uint8(2), a.Width())

	a.Set(1, 0)
	assert.Equal([]int64{1, 0, 3}, contents(a))
	assert.Panics(func() { a.Set(1, 4) })
	assert.Panics(func() { a.Set(1, -1) })

	require.NoError(t, a.EnsureMinimumWidth(-1))
	assert.Equal(uint8(8), a.Width())
	a.Set(1, -1)
	assert.Equal([]int64{1, -1, 3}, contents(a))

	// Never narrows.
	require.NoError(t, a.EnsureMinimumWidth(0))
	assert.Equal(uint8(8), a.Width())
}

func TestInsert(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, w := range legalWidths {
		a := newArrayOf(t, alloc.NewHeap())
		var want []int64
		pool := widthValues(w)
		for range 200 {
			v := pool[rng.Intn(len(pool))]
			ndx := rng.Intn(len(want) + 1)
			require.NoError(t, a.Insert(ndx, v))
			want = append(want[:ndx], append([]int64{v}, want[ndx:]...)...)
		}
		assert.Equalf(t, w, a.Width(), "width %d", w)
		assert.Equalf(t, want, contents(a), "width %d", w)
	}
}

func TestInsertEraseRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	for _, w := range legalWidths {
		pool := widthValues(w)
		values := make([]int64, 40+rng.Intn(90))
		for i := range values {
			values[i] = pool[rng.Intn(len(pool))]
		}
		values[0] = pool[0]
		a := newArrayOf(t, alloc.NewHeap(), values...)
		require.Equalf(t, w, a.Width(), "width %d", w)

		for range 100 {
			ndx := rng.Intn(len(values) + 1)
			v := pool[rng.Intn(len(pool))]
			require.NoError(t, a.Insert(ndx, v))
			require.Equalf(t, v, a.Get(ndx), "width %d, index %d", w, ndx)
			a.Erase(ndx)
			if !assert.Equalf(t, values, contents(a), "width %d, index %d", w, ndx) {
				break
			}
		}
		assert.Equalf(t, w, a.Width(), "width %d", w)
	}
}

func TestInsertWidening(t *testing.T) {
	assert := assert.New(t)
	a := newArrayOf(t, alloc.NewHeap(), 1, 0, 1, 1, 0)

	require.NoError(t, a.Insert(2, 1000))
	assert.Equal(uint8(16), a.Width())
	assert.Equal([]int64{1, 0, 1000, 1, 1, 0}, contents(a))

	require.NoError(t, a.Insert(0, -1<<40))
	assert.Equal(uint8(64), a.Width())
	assert.Equal([]int64{-1 << 40, 1, 0, 1000, 1, 1, 0}, contents(a))

	assert.Panics(func() { a.Insert(8, 0) })
}

func TestEraseAndMove(t *testing.T) {
	assert := assert.New(t)
	for _, w := range []uint8{4, 16} {
		a := newArrayOf(t, alloc.NewHeap(), 1, 2, 3, 4, 5, 6, 7, 8)
		if w == 16 {
			require.NoError(t, a.EnsureMinimumWidth(1000))
		}

		a.Erase(0)
		assert.Equal([]int64{2, 3, 4, 5, 6, 7, 8}, contents(a))
		a.EraseRange(2, 4)
		assert.Equal([]int64{2, 3, 6, 7, 8}, contents(a))
		a.Erase(a.Size() - 1)
		assert.Equal([]int64{2, 3, 6, 7}, contents(a))

		a.Move(2, 4, 0)
		assert.Equal([]int64{6, 7, 6, 7}, contents(a))
		a.Move(0, 1, 3)
		assert.Equal([]int64{6, 7, 6, 6}, contents(a))
		assert.Panics(func() { a.Move(0, 3, 1) })
		assert.Panics(func() { a.Move(0, 2, 3) })
	}
}

func TestMoveTo(t *testing.T) {
	assert := assert.New(t)
	al := alloc.NewHeap()
	src := newArrayOf(t, al, 1, 2, -3, 4, 5)
	dst := newArrayOf(t, al, 0, 1)

	require.NoError(t, src.MoveTo(dst, 2))
	assert.Equal([]int64{1, 2}, contents(src))
	assert.Equal([]int64{0, 1, -3, 4, 5}, contents(dst))
	assert.Equal(uint8(8), dst.Width())

	require.NoError(t, src.MoveTo(dst, 0))
	assert.True(src.IsEmpty())
	assert.Equal(uint8(0), src.Width())
	assert.Equal([]int64{0, 1, -3, 4, 5, 1, 2}, contents(dst))
}

func TestTruncate(t *testing.T) {
	assert := assert.New(t)
	a := newArrayOf(t, alloc.NewHeap(), 100, 200, 300)
	capacity := a.Capacity()

	a.Truncate(1)
	assert.Equal([]int64{100}, contents(a))
	assert.Equal(uint8(16), a.Width())
	assert.Equal(capacity, a.Capacity())

	a.Clear()
	assert.True(a.IsEmpty())
	assert.Equal(uint8(0), a.Width())
	assert.Panics(func() { a.Truncate(1) })

	h, err := ReadHeader(a.Mem().Addr)
	require.NoError(t, err)
	assert.Equal(0, h.Size)
	assert.Equal(uint8(0), h.Width)
}

func TestAdjust(t *testing.T) {
	assert := assert.New(t)
	a := newArrayOf(t, alloc.NewHeap(), 1, 2, 3, 4)

	require.NoError(t, a.Adjust(0, 200))
	assert.Equal([]int64{201, 2, 3, 4}, contents(a))
	require.NoError(t, a.AdjustRange(1, 4, -10))
	assert.Equal([]int64{201, -8, -7, -6}, contents(a))
	assert.Equal(uint8(16), a.Width())
}

func TestSetAllToZero(t *testing.T) {
	assert := assert.New(t)
	a := newArrayOf(t, alloc.NewHeap(), 5, 6, 7)
	a.SetAllToZero()
	assert.Equal(uint8(0), a.Width())
	assert.Equal([]int64{0, 0, 0}, contents(a))
	require.NoError(t, a.Add(9))
	assert.Equal([]int64{0, 0, 0, 9}, contents(a))
}

func TestLowerUpperBound(t *testing.T) {
	assert := assert.New(t)
	a := newArrayOf(t, alloc.NewHeap(), 3, 3, 3, 4, 4, 4, 5, 6, 7, 9, 9, 9)

	assert.Equal(3, a.LowerBoundInt(4))
	assert.Equal(6, a.UpperBoundInt(4))
	assert.Equal(9, a.LowerBoundInt(8))
	assert.Equal(9, a.UpperBoundInt(8))
	assert.Equal(0, a.LowerBoundInt(2))
	assert.Equal(12, a.UpperBoundInt(10))
}

func TestFlags(t *testing.T) {
	assert := assert.New(t)
	a := newArrayOf(t, alloc.NewHeap(), 1)

	a.SetType(TypeInnerBptreeNode)
	assert.True(a.IsInnerBptreeNode())
	assert.True(a.HasRefs())
	a.SetContextFlag(true)

	b := NewArray(a.Allocator())
	require.NoError(t, b.InitFromRef(a.Ref()))
	assert.Equal(TypeInnerBptreeNode, b.Type())
	assert.True(b.ContextFlag())

	a.SetType(TypeNormal)
	assert.False(a.HasRefs())
	a.SetHasRefs(true)
	assert.Equal(TypeHasRefs, a.Type())
	assert.Equal("has-refs", a.Type().String())
}

func TestParentFollowsReallocation(t *testing.T) {
	assert := assert.New(t)
	al := alloc.NewHeap()

	parent := newArrayOf(t, al)
	parent.SetType(TypeHasRefs)
	child := newArrayOf(t, al, 1)
	require.NoError(t, parent.AddRefOrTagged(MakeRef(child.Ref())))
	child.SetParent(parent, 0)

	// Grow far beyond the initial capacity and widen.
	for i := range 500 {
		require.NoError(t, child.Add(int64(i)<<20))
	}
	assert.Equal(child.Ref(), parent.GetAsRef(0))
	assert.Equal(child.Ref(), parent.ChildRef(0))

	other := NewArray(al)
	other.SetParent(parent, 0)
	require.NoError(t, other.InitFromParent())
	assert.Equal(child.Size(), other.Size())

	moved, err := other.UpdateFromParent()
	require.NoError(t, err)
	assert.False(moved)

	// The old regions were released; only parent and child remain.
	assert.Equal(2, al.Len())
}

func TestReadOnlyAndCopyOnWrite(t *testing.T) {
	assert := assert.New(t)

	// Serialize a small array into an image and load it read-only.
	src := newArrayOf(t, alloc.NewHeap(), 7, 8, 9)
	out := &memWriter{}
	ref, err := src.Write(out, false, false)
	require.NoError(t, err)

	slab := alloc.NewSlabFromImage(out.image())
	a := NewArray(slab)
	require.NoError(t, a.InitFromRef(ref))
	assert.True(a.IsReadOnly())
	assert.Equal([]int64{7, 8, 9}, contents(a))
	assert.Equal(a.ByteSize(), a.Capacity())

	assert.Panics(func() { a.Set(0, 1) })
	assert.Panics(func() { a.Add(1) })
	assert.Panics(func() { a.Truncate(0) })

	holder := &refHolder{ref: ref}
	a.SetParent(holder, 0)
	require.NoError(t, a.CopyOnWrite())
	assert.False(a.IsReadOnly())
	assert.NotEqual(ref, a.Ref())
	assert.Equal(a.Ref(), holder.ref)
	assert.Greater(a.Capacity(), a.ByteSize())

	a.Set(0, 1)
	require.NoError(t, a.Add(-1000))
	assert.Equal([]int64{1, 8, 9, -1000}, contents(a))
	assert.Equal(a.Ref(), holder.ref)

	// The image is untouched.
	ro := NewArray(slab)
	require.NoError(t, ro.InitFromRef(ref))
	assert.Equal([]int64{7, 8, 9}, contents(ro))
	assert.Equal(1, slab.Stats().Frees)
}

func TestInitRejectsCorruptRegion(t *testing.T) {
	al := alloc.NewHeap()
	m, err := al.Alloc(16)
	require.NoError(t, err)
	bo.PutUint64(m.Addr, 3<<headerWidthTypeShift|16<<headerCapacityShift)

	a := NewArray(al)
	assert.ErrorIs(t, a.InitFromRef(m.Ref), ErrCorrupt)
	assert.ErrorIs(t, a.InitFromRef(12345), ErrCorrupt)
	assert.False(t, a.IsAttached())
}

func TestDetach(t *testing.T) {
	assert := assert.New(t)
	al := alloc.NewHeap()
	a := NewArray(al)
	require.NoError(t, a.Create(TypeInnerBptreeNode, true, 2, 1))
	require.True(t, a.HasRefs())
	require.True(t, a.IsInnerBptreeNode())
	require.True(t, a.ContextFlag())

	a.Detach()
	assert.False(a.IsAttached())
	assert.Equal(0, a.Size())
	assert.Equal(uint8(0), a.Width())
	assert.False(a.HasRefs())
	assert.False(a.IsInnerBptreeNode())
	assert.False(a.ContextFlag())
	assert.False(a.IsReadOnly())
	assert.Equal(TypeNormal, a.Type())
	assert.ErrorIs(a.Verify(), ErrDetached)
	assert.ErrorIs(a.CopyOnWrite(), ErrDetached)
	assert.Panics(func() { a.Set(0, 0) })

	// A detached read-only accessor does not stay read-only.
	out := &memWriter{}
	ref, err := newArrayOf(t, al, 7, 8, 9).Write(out, false, false)
	require.NoError(t, err)
	ro := NewArray(alloc.NewSlabFromImage(out.image()))
	require.NoError(t, ro.InitFromRef(ref))
	require.True(t, ro.IsReadOnly())
	ro.Detach()
	assert.False(ro.IsReadOnly())
}

func TestAllocationFailureLeavesArrayIntact(t *testing.T) {
	assert := assert.New(t)
	al := alloc.NewHeap(alloc.WithMaxBytes(256))
	a := newArrayOf(t, al, 1, 2, 3)

	var addErr error
	for i := 0; addErr == nil && i < 1000; i++ {
		addErr = a.Add(1)
	}
	assert.ErrorIs(addErr, alloc.ErrOutOfMemory)
	size := a.Size()
	assert.Equal([]int64{1, 2, 3}, contents(a)[:3])

	assert.ErrorIs(a.EnsureMinimumWidth(math.MaxInt64), alloc.ErrOutOfMemory)
	assert.Equal(uint8(2), a.Width())
	assert.Equal(size, a.Size())
	assert.NoError(a.Verify())
}

// refHolder is a Parent storing a single ref.
type refHolder struct {
	ref alloc.Ref
}

func (h *refHolder) UpdateChildRef(_ int, ref alloc.Ref) error {
	h.ref = ref
	return nil
}

func (h *refHolder) ChildRef(int) alloc.Ref { return h.ref }

// memWriter collects written regions into an image that starts with 8
// reserved bytes, so the first region gets ref 8.
type memWriter struct {
	buf []byte
}

func (w *memWriter) WriteArray(region []byte) (alloc.Ref, error) {
	if len(w.buf) == 0 {
		w.buf = make([]byte, 8)
	}
	ref := alloc.Ref(len(w.buf))
	w.buf = append(w.buf, region...)
	return ref, nil
}

func (w *memWriter) image() []byte { return w.buf }
