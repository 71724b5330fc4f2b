//go:build avogen
// +build avogen

package main

import (
	. "github.com/mmcloughlin/avo/build"
	op "github.com/mmcloughlin/avo/operand"
	"github.com/mmcloughlin/avo/reg"
)

// This file generates the SSE block comparison kernels. Every kernel walks n
// 16-byte blocks of a, compares each against the block at b lane by lane and
// stores a 16-bit mask with one bit per matching lane. b advances by step
// bytes, so step 0 compares against a single needle block.
//
// Lane results are all-ones or all-zero. PMOVMSKB collects one bit per byte,
// which is exactly one bit per lane for bytes. Word results are first packed
// to bytes with PACKSSWB (the upper half then repeats the lower half and is
// masked off); dword and qword results use MOVMSKPS and MOVMSKPD.

type blockKernel struct {
	name string
	// compare combines the lanes of a and b and returns the register holding
	// the result.
	compare func(a, b reg.VecVirtual) reg.VecVirtual
	// movemask moves one bit per lane of v into r.
	movemask func(v reg.VecVirtual, r reg.GPVirtual)
}

func maskBytes(v reg.VecVirtual, r reg.GPVirtual) {
	PMOVMSKB(v, r)
}

func maskWords(v reg.VecVirtual, r reg.GPVirtual) {
	PACKSSWB(v, v)
	PMOVMSKB(v, r)
	ANDL(op.U32(0xff), r)
}

func maskDwords(v reg.VecVirtual, r reg.GPVirtual) {
	MOVMSKPS(v, r)
}

func maskQwords(v reg.VecVirtual, r reg.GPVirtual) {
	MOVMSKPD(v, r)
}

// equal leaves a == b in a.
func equal(cmp func(mx, x op.Op)) func(a, b reg.VecVirtual) reg.VecVirtual {
	return func(a, b reg.VecVirtual) reg.VecVirtual {
		cmp(b, a)
		return a
	}
}

// greater leaves a > b (signed) in a.
func greater(cmp func(mx, x op.Op)) func(a, b reg.VecVirtual) reg.VecVirtual {
	return func(a, b reg.VecVirtual) reg.VecVirtual {
		cmp(b, a)
		return a
	}
}

// less leaves a < b (signed), computed as b > a, in b.
func less(cmp func(mx, x op.Op)) func(a, b reg.VecVirtual) reg.VecVirtual {
	return func(a, b reg.VecVirtual) reg.VecVirtual {
		cmp(a, b)
		return b
	}
}

func genBlockKernels() {
	for _, k := range []blockKernel{
		{"blockEq8", equal(PCMPEQB), maskBytes},
		{"blockEq16", equal(PCMPEQW), maskWords},
		{"blockEq32", equal(PCMPEQL), maskDwords},
		{"blockEq64", equal(PCMPEQQ), maskQwords},
		{"blockGt8", greater(PCMPGTB), maskBytes},
		{"blockGt16", greater(PCMPGTW), maskWords},
		{"blockGt32", greater(PCMPGTL), maskDwords},
		{"blockLt8", less(PCMPGTB), maskBytes},
		{"blockLt16", less(PCMPGTW), maskWords},
		{"blockLt32", less(PCMPGTL), maskDwords},
	} {
		genBlockKernel(k)
	}
}

func genBlockKernel(k blockKernel) {
	TEXT(k.name, NOSPLIT, "func(a, b *byte, step, n int, masks *uint16)")

	aPtr := Load(Param("a"), GP64())
	bPtr := Load(Param("b"), GP64())
	step := Load(Param("step"), GP64())
	n := Load(Param("n"), GP64())
	out := Load(Param("masks"), GP64())

	loop := k.name + "_loop"
	done := k.name + "_done"

	TESTQ(n, n)
	JZ(op.LabelRef(done))

	Label(loop)
	a, b := XMM(), XMM()
	MOVOU(op.Mem{Base: aPtr}, a)
	MOVOU(op.Mem{Base: bPtr}, b)

	mask := GP32()
	k.movemask(k.compare(a, b), mask)
	MOVW(mask.As16(), op.Mem{Base: out})

	ADDQ(op.Imm(16), aPtr)
	ADDQ(step, bPtr)
	ADDQ(op.Imm(2), out)
	DECQ(n)
	JNZ(op.LabelRef(loop))

	Label(done)
	RET()
}
