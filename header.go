// Package packedint implements compact arrays of signed 64-bit integers whose
// element width adapts to the values stored.
//
// Every array lives in a region handed out by an alloc.Allocator. A region
// begins with an 8-byte header describing the width, the logical size, the
// capacity and a few flags, followed by the bit-packed payload. Elements are
// stored at 0, 1, 2, 4, 8, 16, 32 or 64 bits; storing a value that does not fit
// widens the whole array. Widths below 8 bits hold unsigned values, wider ones
// hold two's-complement values.
//
// Besides element access the package offers a search engine that scans the
// packed payload in 64-bit chunks with SWAR bit tricks (and 128-bit blocks
// where the CPU allows), aggregates, cross-array comparison and deep
// operations over trees of arrays linked by refs.
package packedint

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var bo = binary.LittleEndian

// Header layout constants.
//
// The 64-bit header is stored little-endian at the start of every region:
//
//	Bits  0-2:   width code (0 = width 0, k = width 1<<(k-1))
//	Bits  3-4:   width type (must be 0 = bit-packed)
//	Bit   5:     context flag
//	Bit   6:     has refs
//	Bit   7:     inner B+-tree node
//	Bits  8-31:  number of elements
//	Bits 32-63:  capacity of the region in bytes
const (
	// HeaderSize is the size of the array header in bytes.
	HeaderSize = 8

	headerWidthMask      = 0x7
	headerWidthTypeShift = 3
	headerWidthTypeMask  = 0x3 << headerWidthTypeShift
	headerContextFlag    = 1 << 5
	headerHasRefsFlag    = 1 << 6
	headerInnerFlag      = 1 << 7
	headerSizeShift      = 8
	headerSizeBits       = 24
	headerSizeMask       = (1 << headerSizeBits) - 1
	headerCapacityShift  = 32

	// MaxSize is the largest number of elements an array can hold.
	MaxSize = headerSizeMask
	// MaxCapacity is the largest region, in bytes, an array may occupy.
	MaxCapacity = (1<<32 - 1) &^ 7
)

// ErrCorrupt is returned when a region does not hold a valid array header.
var ErrCorrupt = errors.New("packedint: corrupt array header")

// ErrTooLarge is returned when an operation would exceed MaxSize elements or
// MaxCapacity bytes.
var ErrTooLarge = errors.New("packedint: array too large")

// Header is the decoded form of an array header.
type Header struct {
	Width         uint8
	Size          int
	Capacity      int
	IsInnerBptree bool
	HasRefs       bool
	ContextFlag   bool
}

// ByteSize returns the number of bytes the array occupies, header included,
// rounded up to a multiple of 8.
func (h Header) ByteSize() int {
	return CalcAlignedByteSize(h.Size, h.Width)
}

// encodeHeader packs the header fields into their 64-bit representation.
func encodeHeader(h Header) uint64 {
	word := uint64(widthIndex(h.Width))
	if h.ContextFlag {
		word |= headerContextFlag
	}
	if h.HasRefs {
		word |= headerHasRefsFlag
	}
	if h.IsInnerBptree {
		word |= headerInnerFlag
	}
	word |= uint64(h.Size&headerSizeMask) << headerSizeShift
	word |= uint64(uint32(h.Capacity)) << headerCapacityShift
	return word
}

// decodeHeader extracts the header fields without validating them.
func decodeHeader(word uint64) (h Header, widthType uint8) {
	h.Width = legalWidths[word&headerWidthMask]
	widthType = uint8((word & headerWidthTypeMask) >> headerWidthTypeShift)
	h.ContextFlag = word&headerContextFlag != 0
	h.HasRefs = word&headerHasRefsFlag != 0
	h.IsInnerBptree = word&headerInnerFlag != 0
	h.Size = int((word >> headerSizeShift) & headerSizeMask)
	h.Capacity = int(word >> headerCapacityShift)
	return h, widthType
}

// ReadHeader decodes and validates the header at the start of mem.
func ReadHeader(mem []byte) (Header, error) {
	if len(mem) < HeaderSize {
		return Header{}, fmt.Errorf("%w: region too small for header (need %d bytes, got %d)",
			ErrCorrupt, HeaderSize, len(mem))
	}
	h, widthType := decodeHeader(bo.Uint64(mem))
	if widthType != 0 {
		return Header{}, fmt.Errorf("%w: unsupported width type %d", ErrCorrupt, widthType)
	}
	if h.IsInnerBptree && !h.HasRefs {
		return Header{}, fmt.Errorf("%w: inner node without refs", ErrCorrupt)
	}
	if h.Capacity&7 != 0 || h.Capacity < HeaderSize {
		return Header{}, fmt.Errorf("%w: invalid capacity %d", ErrCorrupt, h.Capacity)
	}
	if need := h.ByteSize(); h.Capacity < need {
		return Header{}, fmt.Errorf("%w: capacity %d below byte size %d (size %d, width %d)",
			ErrCorrupt, h.Capacity, need, h.Size, h.Width)
	}
	return h, nil
}

// WriteHeader encodes h into the first HeaderSize bytes of mem.
func WriteHeader(mem []byte, h Header) {
	if !IsLegalWidth(int(h.Width)) {
		panic(fmt.Sprintf("packedint: illegal width %d", h.Width))
	}
	if h.Size < 0 || h.Size > MaxSize {
		panic(fmt.Sprintf("packedint: size %d out of range", h.Size))
	}
	bo.PutUint64(mem[:HeaderSize], encodeHeader(h))
}

// Header field updates in place. They leave all other fields untouched.

func setHeaderSize(mem []byte, size int) {
	word := bo.Uint64(mem)
	word &^= uint64(headerSizeMask) << headerSizeShift
	word |= uint64(size&headerSizeMask) << headerSizeShift
	bo.PutUint64(mem, word)
}

func setHeaderWidth(mem []byte, w uint8) {
	word := bo.Uint64(mem)
	word = word&^headerWidthMask | uint64(widthIndex(w))
	bo.PutUint64(mem, word)
}

func setHeaderCapacity(mem []byte, capacity int) {
	word := bo.Uint64(mem)
	word = word&(1<<headerCapacityShift-1) | uint64(uint32(capacity))<<headerCapacityShift
	bo.PutUint64(mem, word)
}

func setHeaderFlag(mem []byte, flag uint64, on bool) {
	word := bo.Uint64(mem)
	if on {
		word |= flag
	} else {
		word &^= flag
	}
	bo.PutUint64(mem, word)
}

func headerCapacity(mem []byte) int {
	return int(bo.Uint64(mem) >> headerCapacityShift)
}

// CalcByteLen returns the unaligned number of bytes needed for size elements
// of width w, header included.
func CalcByteLen(size int, w uint8) int {
	return HeaderSize + (size*int(w)+7)/8
}

// CalcAlignedByteSize returns CalcByteLen rounded up to a multiple of 8.
func CalcAlignedByteSize(size int, w uint8) int {
	return (CalcByteLen(size, w) + 7) &^ 7
}

// CalcItemCount returns how many elements of width w fit in a region of
// byteSize bytes.
func CalcItemCount(byteSize int, w uint8) int {
	if w == 0 {
		return MaxSize
	}
	return (byteSize - HeaderSize) * 8 / int(w)
}
