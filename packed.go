package packedint

// Bit-packed payload access.
//
// Element i of width w occupies bits [i*w, (i+1)*w) of the payload, counted
// from the least significant bit of byte 0. Widths 8 and above are stored as
// little-endian two's-complement integers. The functions below operate on the
// payload (the region without its header) and assume the index is in range.

// widthSpec is implemented by the width marker types. Generic kernels are
// instantiated once per marker so each table entry is bound to one width.
type widthSpec interface {
	w0 | w1 | w2 | w4 | w8 | w16 | w32 | w64
	bits() uint8
}

type (
	w0  struct{}
	w1  struct{}
	w2  struct{}
	w4  struct{}
	w8  struct{}
	w16 struct{}
	w32 struct{}
	w64 struct{}
)

func (w0) bits() uint8  { return 0 }
func (w1) bits() uint8  { return 1 }
func (w2) bits() uint8  { return 2 }
func (w4) bits() uint8  { return 4 }
func (w8) bits() uint8  { return 8 }
func (w16) bits() uint8 { return 16 }
func (w32) bits() uint8 { return 32 }
func (w64) bits() uint8 { return 64 }

func widthOf[W widthSpec]() uint8 {
	var w W
	return w.bits()
}

type (
	getFunc func(data []byte, ndx int) int64
	setFunc func(data []byte, ndx int, v int64)
)

func get0(_ []byte, _ int) int64 { return 0 }

func get1(data []byte, ndx int) int64 {
	return int64(data[ndx>>3]>>(ndx&7)) & 1
}

func get2(data []byte, ndx int) int64 {
	return int64(data[ndx>>2]>>((ndx&3)<<1)) & 3
}

func get4(data []byte, ndx int) int64 {
	return int64(data[ndx>>1]>>((ndx&1)<<2)) & 0xF
}

func get8(data []byte, ndx int) int64 {
	return int64(int8(data[ndx]))
}

func get16(data []byte, ndx int) int64 {
	return int64(int16(bo.Uint16(data[ndx<<1:])))
}

func get32(data []byte, ndx int) int64 {
	return int64(int32(bo.Uint32(data[ndx<<2:])))
}

func get64(data []byte, ndx int) int64 {
	return int64(bo.Uint64(data[ndx<<3:]))
}

func set0(_ []byte, _ int, _ int64) {}

func set1(data []byte, ndx int, v int64) {
	p := &data[ndx>>3]
	shift := uint(ndx & 7)
	*p = *p&^(1<<shift) | byte(v&1)<<shift
}

func set2(data []byte, ndx int, v int64) {
	p := &data[ndx>>2]
	shift := uint(ndx&3) << 1
	*p = *p&^(3<<shift) | byte(v&3)<<shift
}

func set4(data []byte, ndx int, v int64) {
	p := &data[ndx>>1]
	shift := uint(ndx&1) << 2
	*p = *p&^(0xF<<shift) | byte(v&0xF)<<shift
}

func set8(data []byte, ndx int, v int64) {
	data[ndx] = byte(v)
}

func set16(data []byte, ndx int, v int64) {
	bo.PutUint16(data[ndx<<1:], uint16(v))
}

func set32(data []byte, ndx int, v int64) {
	bo.PutUint32(data[ndx<<2:], uint32(v))
}

func set64(data []byte, ndx int, v int64) {
	bo.PutUint64(data[ndx<<3:], uint64(v))
}

var getters = [numWidths]getFunc{get0, get1, get2, get4, get8, get16, get32, get64}

var setters = [numWidths]setFunc{set0, set1, set2, set4, set8, set16, set32, set64}

// getUniversal reads element ndx of a payload stored at width w.
func getUniversal(w uint8, data []byte, ndx int) int64 {
	return getters[widthIndex(w)](data, ndx)
}

// getChunk copies up to 8 consecutive elements starting at ndx into res.
// Positions at or beyond size are zero.
func getChunk(get getFunc, data []byte, ndx, size int, res *[8]int64) {
	n := min(8, size-ndx)
	i := 0
	for ; i < n; i++ {
		res[i] = get(data, ndx+i)
	}
	for ; i < 8; i++ {
		res[i] = 0
	}
}

// fillDirect stores v into elements [begin, end) of a payload at width w.
func fillDirect(w uint8, data []byte, begin, end int, v int64) {
	set := setters[widthIndex(w)]
	for i := begin; i < end; i++ {
		set(data, i, v)
	}
}

// chunkAt loads the 64-bit little-endian word holding element ndx of width
// bits. ndx must be the first element of a chunk.
func chunkAt(data []byte, ndx int, bits uint8) uint64 {
	return bo.Uint64(data[ndx*int(bits)>>3:])
}

// elementsPerChunk returns how many elements of width w share a 64-bit word.
func elementsPerChunk(w uint8) int {
	if w == 0 {
		return 64
	}
	return 64 / int(w)
}
