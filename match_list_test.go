package packedint

import (
	"math/rand"
	"testing"

	"github.com/mhr3/streamvbyte"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Akron/packedint/alloc"
)

func TestMatchListFromSearch(t *testing.T) {
	assert := assert.New(t)
	rng := rand.New(rand.NewSource(8))
	values := make([]int64, 5000)
	for i := range values {
		values[i] = rng.Int63n(6)
	}
	a := newArrayOf(t, alloc.NewHeap(), values...)

	list := NewMatchList(0)
	a.Find(Equal, 3, 0, Npos, 70000, list)
	want := naiveFind(values, Equal, 3, 0, len(values), 70000)

	require.Equal(t, len(want), list.Len())
	assert.Equal(want, list.Indices())
	for _, i := range []int{0, 1, 127, 128, 129, len(want) / 2, len(want) - 1} {
		assert.Equalf(want[i], list.At(i), "position %d", i)
	}
	// Offsets within a block fit in two bytes.
	assert.Less(list.CompressedBytes(), len(want)*3)
	assert.Panics(func() { list.At(len(want)) })
}

func TestMatchListAcrossSearches(t *testing.T) {
	assert := assert.New(t)
	list := NewMatchList(0)

	// Indices reported by separate searches need not be ascending overall.
	for _, idx := range []int{500, 501, 900, 3, 4, 1 << 30} {
		list.Match(idx, 0)
	}
	assert.Equal([]int{500, 501, 900, 3, 4, 1 << 30}, list.Indices())
	assert.Equal(3, list.At(3))
	assert.Equal(1<<30, list.At(5))
	assert.Panics(func() { list.Match(-1, 0) })
}

func TestMatchListLimit(t *testing.T) {
	a := newArrayOf(t, alloc.NewHeap(), 1, 1, 1, 1, 1, 1)
	list := NewMatchList(4)
	assert.False(t, a.Find(Equal, 1, 0, Npos, 0, list))
	assert.Equal(t, []int{0, 1, 2, 3}, list.Indices())
}

func TestMatchIterator(t *testing.T) {
	assert := assert.New(t)
	list := NewMatchList(0)
	var want []int
	for i := range 1000 {
		idx := i*i%7 + i*13
		want = append(want, idx)
		list.Match(idx, 0)
	}

	it := list.Iter()
	assert.Equal(1000, it.Len())
	var got []int
	for {
		idx, ok := it.Next()
		if !ok {
			break
		}
		got = append(got, idx)
	}
	assert.Equal(want, got)
	assert.Equal(1000, it.Pos())

	it.Reset()
	idx, ok := it.Next()
	assert.True(ok)
	assert.Equal(want[0], idx)
	assert.Equal(1, it.Pos())

	empty := NewMatchList(0).Iter()
	_, ok = empty.Next()
	assert.False(ok)
}

func TestSvbDecodeOne(t *testing.T) {
	values := []uint32{0, 1, 255, 256, 65535, 65536, 1<<24 - 1, 1 << 24, 1<<32 - 1, 7, 300}
	data := streamvbyte.EncodeUint32(values, &streamvbyte.EncodeOptions[uint32]{
		Buffer: make([]byte, streamvbyte.MaxEncodedLen(len(values))),
	})
	for i, v := range values {
		assert.Equalf(t, v, svbDecodeOne(data, len(values), i), "index %d", i)
	}
}
