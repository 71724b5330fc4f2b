//go:build !amd64 || purego

package packedint

// No block kernels; every search runs on 64-bit chunks.
var blockKernels [numConds][numWidths]blockScan

func detectVectorLevel() VectorLevel {
	return VectorNone
}
