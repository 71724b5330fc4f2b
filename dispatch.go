package packedint

// widthKernels bundles the width-specialized routines of one element width.
// An attached Array points at the entry of its current width, so switching
// width is a single table lookup.
type widthKernels struct {
	width   uint8
	get     getFunc
	set     setFunc
	finders [numConds]finder
	sum     func(a *Array, start, end int) int64
	minmax  func(a *Array, wantMax bool, start, end int) (int64, int, bool)
}

func kernelsFor[W widthSpec]() widthKernels {
	w := widthOf[W]()
	i := widthIndex(w)
	return widthKernels{
		width: w,
		get:   getters[i],
		set:   setters[i],
		finders: [numConds]finder{
			Equal:    findOptimized[W, condEqual],
			NotEqual: findOptimized[W, condNotEqual],
			Greater:  findOptimized[W, condGreater],
			Less:     findOptimized[W, condLess],
		},
		sum:    sumRange[W],
		minmax: minmaxRange[W],
	}
}

// kernelTable is indexed by width code.
var kernelTable = [numWidths]widthKernels{
	kernelsFor[w0](),
	kernelsFor[w1](),
	kernelsFor[w2](),
	kernelsFor[w4](),
	kernelsFor[w8](),
	kernelsFor[w16](),
	kernelsFor[w32](),
	kernelsFor[w64](),
}
