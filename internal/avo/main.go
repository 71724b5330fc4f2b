//go:build avogen
// +build avogen

package main

import (
	"flag"

	. "github.com/mmcloughlin/avo/build"
)

// main emits the block comparison kernels used by the search engine.
func main() {
	flag.Parse()

	Package("github.com/Akron/packedint")
	ConstraintExpr("amd64")
	ConstraintExpr("!purego")

	genBlockKernels()

	Generate()
}
