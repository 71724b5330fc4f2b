package packedint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Akron/packedint/alloc"
)

func TestHeaderRoundTrip(t *testing.T) {
	mem := make([]byte, 64)
	for _, h := range []Header{
		{Width: 0, Size: 0, Capacity: 8},
		{Width: 4, Size: 100, Capacity: 64, ContextFlag: true},
		{Width: 64, Size: 7, Capacity: 64, HasRefs: true},
		{Width: 16, Size: 3, Capacity: 1 << 20, HasRefs: true, IsInnerBptree: true},
		{Width: 0, Size: MaxSize, Capacity: MaxCapacity},
	} {
		WriteHeader(mem, h)
		got, err := ReadHeader(mem)
		require.NoError(t, err)
		assert.Equal(t, h, got)
	}
}

func TestHeaderBitLayout(t *testing.T) {
	mem := make([]byte, 8)
	WriteHeader(mem, Header{Width: 8, Size: 0x123456, Capacity: 0x1000, HasRefs: true, ContextFlag: true})
	// width code 4, has refs, context flag, size, capacity
	assert.Equal(t, uint64(0x00001000_12345664), bo.Uint64(mem))
}

func TestReadHeaderRejects(t *testing.T) {
	for name, word := range map[string]uint64{
		"width type":     1<<headerWidthTypeShift | 8<<headerCapacityShift,
		"inner no refs":  headerInnerFlag | 8<<headerCapacityShift,
		"capacity align": 12 << headerCapacityShift,
		"capacity zero":  0,
		"too small":      7 | 10<<headerSizeShift | 16<<headerCapacityShift,
	} {
		t.Run(name, func(t *testing.T) {
			mem := make([]byte, 8)
			bo.PutUint64(mem, word)
			_, err := ReadHeader(mem)
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
	_, err := ReadHeader(make([]byte, 4))
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestWriteHeaderPanics(t *testing.T) {
	mem := make([]byte, 8)
	assert.Panics(t, func() { WriteHeader(mem, Header{Width: 3, Capacity: 8}) })
	assert.Panics(t, func() { WriteHeader(mem, Header{Size: MaxSize + 1, Capacity: 8}) })
}

func TestHeaderFieldUpdates(t *testing.T) {
	assert := assert.New(t)
	mem := make([]byte, 8)
	WriteHeader(mem, Header{Width: 2, Size: 9, Capacity: 128, ContextFlag: true})

	setHeaderSize(mem, 1000)
	setHeaderWidth(mem, 32)
	setHeaderCapacity(mem, 4096)
	setHeaderFlag(mem, headerHasRefsFlag, true)
	setHeaderFlag(mem, headerContextFlag, false)

	h, err := ReadHeader(mem)
	require.NoError(t, err)
	assert.Equal(Header{Width: 32, Size: 1000, Capacity: 4096, HasRefs: true}, h)
	assert.Equal(4096, headerCapacity(mem))
}

func TestByteSizes(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(8, CalcByteLen(0, 0))
	assert.Equal(8, CalcByteLen(1000, 0))
	assert.Equal(10, CalcByteLen(10, 1))
	assert.Equal(16, CalcAlignedByteSize(10, 1))
	assert.Equal(16, CalcAlignedByteSize(2, 32))
	assert.Equal(24, CalcAlignedByteSize(3, 32))
	assert.Equal(8+8*5, MaxByteSize(5))
	assert.Equal(16, CalcItemCount(16, 4))
	assert.Equal(MaxSize, CalcItemCount(16, 0))
	assert.Equal(16, Header{Width: 4, Size: 16}.ByteSize())
}

func TestBitWidth(t *testing.T) {
	for v, w := range map[int64]uint8{
		0: 0, 1: 1, 2: 2, 3: 2, 4: 4, 15: 4, 16: 8, 127: 8, 128: 16, -1: 8, -128: 8,
		-129: 16, 32767: 16, -32768: 16, 32768: 32, 1<<31 - 1: 32, -1 << 31: 32,
		1 << 31: 64, -1<<31 - 1: 64, 1<<63 - 1: 64, -1 << 63: 64,
	} {
		assert.Equalf(t, w, BitWidth(v), "value %d", v)
		assert.Truef(t, fits(w, v), "value %d at width %d", v, w)
	}
}

func TestBounds(t *testing.T) {
	assert := assert.New(t)
	for _, w := range legalWidths {
		assert.True(IsLegalWidth(int(w)))
		lo, hi := LowerBound(w), UpperBound(w)
		assert.LessOrEqual(lo, int64(0))
		assert.Equal(w, max(BitWidth(lo), BitWidth(hi)))
	}
	assert.False(IsLegalWidth(3))
	assert.False(IsLegalWidth(128))
	assert.Panics(func() { widthIndex(5) })
}

func TestRefOrTagged(t *testing.T) {
	assert := assert.New(t)

	r := MakeRef(4096)
	assert.True(r.IsRef())
	assert.False(r.IsTagged())
	assert.Equal("ref(4096)", r.String())
	assert.Panics(func() { MakeRef(12) })

	tag, err := MakeTagged(1<<63 - 1)
	require.NoError(t, err)
	assert.True(tag.IsTagged())
	assert.Equal(uint64(1<<63-1), tag.Int())
	assert.Equal(int64(-1), tag.Raw())

	tag, err = MakeTagged(21)
	require.NoError(t, err)
	assert.Equal("tagged(21)", tag.String())
	assert.Equal(int64(43), tag.Raw())

	_, err = MakeTagged(1 << 63)
	assert.ErrorIs(err, ErrTaggedOverflow)

	assert.True(isSubArray(8))
	assert.False(isSubArray(0))
	assert.False(isSubArray(43))
}

func TestRefsInArray(t *testing.T) {
	assert := assert.New(t)
	al := alloc.NewHeap()
	a := NewArray(al)
	require.NoError(t, a.Create(TypeHasRefs, false, 0, 0))

	tag, err := MakeTagged(5)
	require.NoError(t, err)
	require.NoError(t, a.AddRefOrTagged(tag))
	require.NoError(t, a.AddRefOrTagged(MakeRef(0)))
	require.NoError(t, a.EnsureMinimumWidthRefOrTagged(MakeRef(1<<40)))
	assert.Equal(uint8(64), a.Width())
	require.NoError(t, a.SetAsRef(1, 1<<40))

	assert.Equal(alloc.Ref(1<<40), a.GetAsRef(1))
	assert.Equal(tag, a.GetAsRefOrTagged(0))
	require.NoError(t, a.SetRefOrTagged(0, MakeRef(64)))
	assert.True(a.GetAsRefOrTagged(0).IsRef())
	assert.Equal(alloc.Ref(64), a.ChildRef(0))
}
