//go:build amd64 && !purego

package packedint

import "golang.org/x/sys/cpu"

//go:generate go run -tags avogen ./internal/avo -out vector_amd64.s

// Assembly entry points provided by vector_amd64.s. Each compares n 16-byte
// blocks as described by blockScan.
//
//go:noescape
func blockEq8(a, b *byte, step, n int, masks *uint16)

//go:noescape
func blockEq16(a, b *byte, step, n int, masks *uint16)

//go:noescape
func blockEq32(a, b *byte, step, n int, masks *uint16)

//go:noescape
func blockEq64(a, b *byte, step, n int, masks *uint16)

//go:noescape
func blockGt8(a, b *byte, step, n int, masks *uint16)

//go:noescape
func blockGt16(a, b *byte, step, n int, masks *uint16)

//go:noescape
func blockGt32(a, b *byte, step, n int, masks *uint16)

//go:noescape
func blockLt8(a, b *byte, step, n int, masks *uint16)

//go:noescape
func blockLt16(a, b *byte, step, n int, masks *uint16)

//go:noescape
func blockLt32(a, b *byte, step, n int, masks *uint16)

// blockKernels holds the kernels per condition and width index. NotEqual
// reuses the equality kernels; signed 64-bit ordering has none.
var blockKernels = [numConds][numWidths]blockScan{
	Equal:   {4: blockEq8, 5: blockEq16, 6: blockEq32, 7: blockEq64},
	Greater: {4: blockGt8, 5: blockGt16, 6: blockGt32},
	Less:    {4: blockLt8, 5: blockLt16, 6: blockLt32},
}

// PCMPEQQ needs SSE4.1; everything else is SSE2, which every amd64 CPU has.
func detectVectorLevel() VectorLevel {
	switch {
	case cpu.X86.HasSSE41:
		return VectorFull
	case cpu.X86.HasSSE2:
		return VectorEqual
	}
	return VectorNone
}
