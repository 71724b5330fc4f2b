package packedint

import (
	"math"
	"slices"
	"sort"

	"github.com/mhr3/streamvbyte"
)

// matchBlockSize is the number of indices per compressed block of a
// MatchList.
const matchBlockSize = 128

// MatchList is a query state that keeps match indices compressed. Indices are
// grouped into blocks of up to 128; each block stores its first index and the
// offsets of all its indices from it, StreamVByte-encoded. Searches report
// ascending indices, which keeps the offsets small. Indices must fit in 32
// bits.
type MatchList struct {
	stateBase
	blocks  []matchBlock
	starts  []int // position of the first index of each block
	pending []uint32
	base    uint32
}

type matchBlock struct {
	base  uint32
	count int
	data  []byte
}

// NewMatchList returns an empty list. A limit of zero or less means
// unlimited.
func NewMatchList(limit int) *MatchList {
	return &MatchList{stateBase: newStateBase(limit)}
}

// Match implements QueryState.
func (l *MatchList) Match(index int, _ int64) bool {
	if index < 0 || uint(index) > math.MaxUint32 {
		panic("packedint: match index exceeds match list range")
	}
	ndx := uint32(index)
	if len(l.pending) > 0 && ndx < l.base {
		l.flush()
	}
	if len(l.pending) == 0 {
		l.base = ndx
	}
	l.pending = append(l.pending, ndx-l.base)
	if len(l.pending) == matchBlockSize {
		l.flush()
	}
	return l.matched()
}

// flush compresses the pending offsets into a new block.
func (l *MatchList) flush() {
	if len(l.pending) == 0 {
		return
	}
	data := streamvbyte.EncodeUint32(l.pending, &streamvbyte.EncodeOptions[uint32]{
		Buffer: make([]byte, streamvbyte.MaxEncodedLen(len(l.pending))),
	})
	l.starts = append(l.starts, l.flushed())
	l.blocks = append(l.blocks, matchBlock{base: l.base, count: len(l.pending), data: data})
	l.pending = l.pending[:0]
}

// flushed returns the number of indices held in compressed blocks.
func (l *MatchList) flushed() int {
	if len(l.blocks) == 0 {
		return 0
	}
	last := len(l.blocks) - 1
	return l.starts[last] + l.blocks[last].count
}

// Len returns the number of stored indices.
func (l *MatchList) Len() int {
	return l.flushed() + len(l.pending)
}

// At returns the i-th stored index without decompressing its block.
func (l *MatchList) At(i int) int {
	if i < 0 || i >= l.Len() {
		panic("packedint: match list position out of range")
	}
	if n := l.flushed(); i >= n {
		return int(l.base + l.pending[i-n])
	}
	b := sort.Search(len(l.starts), func(j int) bool { return l.starts[j] > i }) - 1
	blk := l.blocks[b]
	return int(blk.base + svbDecodeOne(blk.data, blk.count, i-l.starts[b]))
}

// Indices decompresses all stored indices.
func (l *MatchList) Indices() []int {
	out := make([]int, 0, l.Len())
	var scratch []uint32
	for _, blk := range l.blocks {
		scratch = streamvbyte.DecodeUint32(blk.data, blk.count, &streamvbyte.DecodeOptions[uint32]{
			Buffer: slices.Grow(scratch[:0], blk.count)[:blk.count],
		})
		for _, off := range scratch[:blk.count] {
			out = append(out, int(blk.base+off))
		}
	}
	for _, off := range l.pending {
		out = append(out, int(l.base+off))
	}
	return out
}

// CompressedBytes returns the size of the compressed blocks.
func (l *MatchList) CompressedBytes() int {
	n := 0
	for _, blk := range l.blocks {
		n += len(blk.data)
	}
	return n
}

// svbDecodeOne decodes value index of a StreamVByte stream holding count
// values. Each control byte describes four values with two bits each
// (byte length minus one); the data bytes follow all control bytes.
func svbDecodeOne(svb []byte, count, index int) uint32 {
	nctrl := (count + 3) >> 2
	ctrl, data := svb[:nctrl], svb[nctrl:]

	off := 0
	for _, c := range ctrl[:index>>2] {
		off += int(svbGroupLen[c])
	}
	c := ctrl[index>>2]
	for i := range index & 3 {
		off += int(c>>(2*i)&3) + 1
	}
	switch c>>(2*(index&3))&3 + 1 {
	case 1:
		return uint32(data[off])
	case 2:
		return uint32(bo.Uint16(data[off:]))
	case 3:
		return uint32(data[off]) | uint32(data[off+1])<<8 | uint32(data[off+2])<<16
	}
	return bo.Uint32(data[off:])
}

// svbGroupLen holds the number of data bytes described by each control byte.
var svbGroupLen = func() (t [256]uint8) {
	for c := range 256 {
		t[c] = uint8(c&3 + c>>2&3 + c>>4&3 + c>>6 + 4)
	}
	return t
}()

// MatchIterator walks a MatchList in order, decompressing one block at a
// time. It is not safe for concurrent use.
type MatchIterator struct {
	list   *MatchList
	block  int
	values []uint32
	base   uint32
	i      int
	pos    int
}

// Iter returns an iterator positioned before the first index.
func (l *MatchList) Iter() *MatchIterator {
	it := &MatchIterator{list: l}
	it.Reset()
	return it
}

// Reset moves the iterator back to the first index.
func (it *MatchIterator) Reset() {
	it.block = -1
	it.values = it.values[:0]
	it.i = 0
	it.pos = 0
}

// Pos returns the number of indices returned so far.
func (it *MatchIterator) Pos() int { return it.pos }

// Len returns the number of indices in the list.
func (it *MatchIterator) Len() int { return it.list.Len() }

// Next returns the next index, or ok == false at the end.
func (it *MatchIterator) Next() (index int, ok bool) {
	for it.i >= len(it.values) {
		if !it.load(it.block + 1) {
			return 0, false
		}
	}
	index = int(it.base + it.values[it.i])
	it.i++
	it.pos++
	return index, true
}

// load decompresses block b; b == len(blocks) selects the pending offsets.
func (it *MatchIterator) load(b int) bool {
	l := it.list
	switch {
	case b < len(l.blocks):
		blk := l.blocks[b]
		it.values = streamvbyte.DecodeUint32(blk.data, blk.count, &streamvbyte.DecodeOptions[uint32]{
			Buffer: slices.Grow(it.values[:0], blk.count)[:blk.count],
		})[:blk.count]
		it.base = blk.base
	case b == len(l.blocks):
		it.values = append(it.values[:0], l.pending...)
		it.base = l.base
	default:
		return false
	}
	it.block = b
	it.i = 0
	return true
}
