// Package alloc provides the memory collaborators for packedint arrays.
//
// Arrays never own memory. They address regions by Ref, a byte offset in a
// flat address space, and ask an Allocator to translate refs into byte slices,
// to hand out new writable regions and to take regions back. Refs below an
// allocator's baseline may point into a read-only image (for example a memory
// mapped snapshot file); everything above it is writable.
package alloc

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Ref is the offset of a region in an allocator's address space. Valid refs
// are multiples of 8. The zero Ref is the null ref.
type Ref uint64

// IsNull reports whether r is the null ref.
func (r Ref) IsNull() bool { return r == 0 }

// IsAligned reports whether r is 8-byte aligned.
func (r Ref) IsAligned() bool { return r&7 == 0 }

// MemRef pairs a ref with the bytes it translates to. Addr starts at the
// region's first byte and spans the whole allocation.
type MemRef struct {
	Ref  Ref
	Addr []byte
}

// Allocator hands out and reclaims regions.
//
// Implementations translate refs into byte slices. A translated slice starts
// at the region's header and is at least as long as the region; it may extend
// further (for instance to the end of a read-only image).
type Allocator interface {
	// Alloc returns a new zeroed writable region of at least size bytes.
	// size is rounded up to a multiple of 8.
	Alloc(size int) (MemRef, error)
	// Free releases a region previously returned by Alloc or translated from
	// a ref. Freeing a read-only region records it but never reuses it.
	Free(ref Ref, addr []byte)
	// Translate resolves ref into its bytes, or nil for an unknown ref.
	Translate(ref Ref) []byte
	// IsReadOnly reports whether the region at ref must not be modified.
	IsReadOnly(ref Ref) bool
}

// ErrOutOfMemory is returned when an allocation would exceed the configured
// budget or the addressable range.
var ErrOutOfMemory = errors.New("alloc: out of memory")

// ErrInvalidSize is returned for non-positive allocation requests.
var ErrInvalidSize = errors.New("alloc: invalid allocation size")

// Stats describes the state of an allocator.
type Stats struct {
	// ReadOnlyBytes is the size of the attached read-only image.
	ReadOnlyBytes int
	// ReservedBytes is the total size of all writable slabs.
	ReservedBytes int
	// UsedBytes is the number of writable bytes currently handed out.
	UsedBytes int
	// Allocs and Frees count successful calls.
	Allocs int
	Frees  int
	// ReadOnlyFreed is the number of bytes released inside the read-only image.
	ReadOnlyFreed int
}

// alignSize rounds n up to a multiple of 8.
func alignSize(n int) int {
	return (n + 7) &^ 7
}

// options configures the allocators of this package.
type options struct {
	logger   *zap.Logger
	slabSize int
	maxBytes int
}

const defaultSlabSize = 64 * 1024

// Option configures an allocator.
type Option func(*options)

// WithLogger sets the logger used for slab growth and free bookkeeping.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithSlabSize sets the minimum size of a newly reserved writable slab.
func WithSlabSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.slabSize = alignSize(n)
		}
	}
}

// WithMaxBytes limits the number of writable bytes an allocator may reserve.
// Zero means no limit.
func WithMaxBytes(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxBytes = n
		}
	}
}

func applyOptions(opts []Option) options {
	o := options{
		logger:   zap.NewNop(),
		slabSize: defaultSlabSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
