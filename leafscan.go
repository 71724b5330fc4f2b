package packedint

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/Akron/packedint/alloc"
)

type leafOptions struct {
	workers int
}

// LeafOption configures FindLeaves.
type LeafOption func(*leafOptions)

// WithWorkers limits the number of leaves scanned at the same time. The
// default is GOMAXPROCS.
func WithWorkers(n int) LeafOption {
	return func(o *leafOptions) {
		if n > 0 {
			o.workers = n
		}
	}
}

// FindLeaves searches a sequence of leaf arrays as if they were one array
// and returns the matching positions. The leaf at position i starts at the
// sum of the sizes of the leaves before it. Leaves are scanned concurrently,
// each with its own accessor; the regions must not be modified meanwhile.
func FindLeaves(ctx context.Context, al alloc.Allocator, leaves []alloc.Ref, cond Cond, value int64, opts ...LeafOption) (*roaring.Bitmap, error) {
	o := leafOptions{workers: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(&o)
	}

	bases := make([]int, len(leaves))
	total := 0
	for i, ref := range leaves {
		h, err := ReadHeader(al.Translate(ref))
		if err != nil {
			return nil, fmt.Errorf("leaf %d: %w", i, err)
		}
		bases[i] = total
		total += h.Size
	}
	if uint64(total) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d elements across leaves", ErrTooLarge, total)
	}

	results := make([]*roaring.Bitmap, len(leaves))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for i, ref := range leaves {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			leaf := NewArray(al)
			if err := leaf.InitFromRef(ref); err != nil {
				return fmt.Errorf("leaf %d: %w", i, err)
			}
			state := NewBitmapState(Unlimited)
			leaf.Find(cond, value, 0, Npos, bases[i], state)
			results[i] = state.Bitmap
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := roaring.New()
	for _, bm := range results {
		out.Or(bm)
	}
	return out, nil
}
