package packedint

import "math/bits"

// blockScan compares n consecutive 16-byte blocks starting at a with the
// blocks starting at b. b advances by step bytes per block, so a step of 0
// compares every block against the same needle. masks[i] receives one bit per
// lane of block i whose a-lane satisfies the condition against its b-lane.
// Lanes are little-endian signed integers of 1, 2, 4 or 8 bytes.
type blockScan func(a, b *byte, step, n int, masks *uint16)

// blockBatch is the number of blocks compared per kernel call.
const blockBatch = 64

// laneMask returns the mask covering every lane of a block of width w.
func laneMask(w uint8) uint16 {
	return uint16(1<<(128/int(w)) - 1)
}

// splatLane fills a block with value repeated in every lane of w bits.
func splatLane(w uint8, value int64) (blk [16]byte) {
	switch w {
	case 8:
		for i := range 16 {
			blk[i] = byte(value)
		}
	case 16:
		for i := 0; i < 16; i += 2 {
			bo.PutUint16(blk[i:], uint16(value))
		}
	case 32:
		for i := 0; i < 16; i += 4 {
			bo.PutUint32(blk[i:], uint32(value))
		}
	case 64:
		bo.PutUint64(blk[0:], uint64(value))
		bo.PutUint64(blk[8:], uint64(value))
	}
	return blk
}

// scanBlocks runs kern over the 16-byte blocks of a.data[from:to] and
// reports the matching elements. other holds the blocks compared against,
// advancing by step bytes per block. With invert set, lanes the kernel does
// not flag are reported instead. from and to are byte offsets and multiples
// of 16.
func scanBlocks(kern blockScan, invert bool, a *Array, from, to int, other []byte, step, baseIndex int, state QueryState) bool {
	var masks [blockBatch]uint16
	w := a.width
	bw := int(w >> 3)
	lanes := 16 / bw
	all := laneMask(w)
	get, data := a.k.get, a.data

	first := from / bw
	for off := from; off < to; {
		n := min((to-off)/16, blockBatch)
		kern(&data[off], &other[0], step, n, &masks[0])
		for i, m := range masks[:n] {
			if invert {
				m ^= all
			}
			for m != 0 {
				j := first + i*lanes + bits.TrailingZeros16(m)
				m &= m - 1
				if !state.Match(j+baseIndex, get(data, j)) {
					return false
				}
			}
		}
		off += n * 16
		first += n * lanes
		if step != 0 {
			other = other[n*step:]
		}
	}
	return true
}
