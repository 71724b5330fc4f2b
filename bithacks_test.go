package packedint

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCascade(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(uint64(0x0001000100010001), cascade(4, true, 0x5fd07a107610f610))
	assert.Equal(uint64(0x1110111011101110), cascade(4, false, 0x5fd07a107610f610))
	assert.Equal(uint64(0xff00), cascade(1, true, 0xffffffffffff00ff))
	assert.Equal(uint64(1), cascade(64, true, 0))
	assert.Equal(uint64(0), cascade(64, false, 0))
}

func TestCascadeMatchesFields(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for _, w := range []uint8{1, 2, 4, 8, 16, 32} {
		mask := widthMask(w)
		for range 500 {
			// Sparse chunks have plenty of zero fields.
			v := rng.Uint64() & rng.Uint64() & rng.Uint64()
			for _, zero := range []bool{true, false} {
				var want uint64
				for j := range elementsPerChunk(w) {
					shift := uint(j) * uint(w)
					if (v>>shift&mask == 0) == zero {
						want |= 1 << shift
					}
				}
				assert.Equalf(t, want, cascade(w, zero, v), "width %d, chunk %#x", w, v)
			}
			assert.Equal(t, cascade(w, true, v) != 0, testZero(w, v))
		}
	}
}

func TestFindGtltFastMatchesFields(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	for _, w := range []uint8{2, 4, 8, 16} {
		upper := upperBits(w)
		half := int64(widthMask(w) >> 1)
		for range 300 {
			chunk := rng.Uint64() &^ upper
			for _, gt := range []bool{true, false} {
				for value := int64(0); value <= half; value += max(1, half/7) {
					if !gtltFastUsable(gt, w, value) {
						continue
					}
					var want uint64
					for j := range elementsPerChunk(w) {
						f := fieldValue(w, chunk, j)
						if gt && f > value || !gt && f < value {
							want |= 1 << (uint(j)*uint(w) + uint(w) - 1)
						}
					}
					got := findGtltFast(gt, w, gtltMagic(gt, w, value), chunk)
					assert.Equalf(t, want, got, "width %d, gt %v, value %d, chunk %#x", w, gt, value, chunk)
				}
			}
		}
	}
}

func TestGtltFastUsable(t *testing.T) {
	assert := assert.New(t)
	assert.False(gtltFastUsable(true, 1, 0))
	assert.False(gtltFastUsable(true, 32, 0))
	assert.False(gtltFastUsable(false, 8, -1))
	assert.True(gtltFastUsable(true, 4, 6))
	assert.False(gtltFastUsable(true, 4, 7))
	assert.True(gtltFastUsable(false, 4, 7))
	assert.False(gtltFastUsable(false, 4, 8))
}

func TestSignExtend(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(int64(-1), signExtend(8, 0xff))
	assert.Equal(int64(127), signExtend(8, 0x7f))
	assert.Equal(int64(-32768), signExtend(16, 0x8000))
	assert.Equal(int64(-2), fieldValue(16, 0x1234fffe, 0))
	assert.Equal(int64(0x1234), fieldValue(16, 0x1234fffe, 1))
	assert.Equal(int64(0xe), fieldValue(4, 0x1234fffe, 0))
}
