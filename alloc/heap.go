package alloc

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Heap is the default allocator. Every region is its own Go slice and refs are
// drawn from a monotonically increasing counter, so a ref is never reused
// while the Heap lives. Nothing is ever read-only.
//
// A Heap is safe for concurrent use.
type Heap struct {
	mu      sync.RWMutex
	regions map[Ref][]byte
	next    Ref
	opts    options
	stats   Stats
}

var (
	defaultHeap     *Heap
	defaultHeapOnce sync.Once
)

// Default returns the process-wide Heap used for temporary arrays.
func Default() *Heap {
	defaultHeapOnce.Do(func() {
		defaultHeap = NewHeap()
	})
	return defaultHeap
}

// NewHeap creates an empty Heap.
func NewHeap(opts ...Option) *Heap {
	return &Heap{
		regions: make(map[Ref][]byte),
		next:    8,
		opts:    applyOptions(opts),
	}
}

// Alloc implements Allocator.
func (h *Heap) Alloc(size int) (MemRef, error) {
	if size <= 0 {
		return MemRef{}, errors.Wrapf(ErrInvalidSize, "heap: %d bytes", size)
	}
	size = alignSize(size)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.opts.maxBytes > 0 && h.stats.UsedBytes+size > h.opts.maxBytes {
		return MemRef{}, errors.Wrapf(ErrOutOfMemory, "heap: %d bytes requested, %d of %d in use",
			size, h.stats.UsedBytes, h.opts.maxBytes)
	}
	ref := h.next
	h.next += Ref(size)
	buf := make([]byte, size)
	h.regions[ref] = buf
	h.stats.Allocs++
	h.stats.UsedBytes += size
	h.stats.ReservedBytes += size
	return MemRef{Ref: ref, Addr: buf}, nil
}

// Free implements Allocator.
func (h *Heap) Free(ref Ref, _ []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	buf, ok := h.regions[ref]
	if !ok {
		h.opts.logger.Error("heap: free of unknown ref", zap.Uint64("ref", uint64(ref)))
		return
	}
	delete(h.regions, ref)
	h.stats.Frees++
	h.stats.UsedBytes -= len(buf)
	h.stats.ReservedBytes -= len(buf)
}

// Translate implements Allocator.
func (h *Heap) Translate(ref Ref) []byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.regions[ref]
}

// IsReadOnly implements Allocator. Heap regions are always writable.
func (h *Heap) IsReadOnly(Ref) bool { return false }

// Len returns the number of live regions.
func (h *Heap) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.regions)
}

// Stats returns a snapshot of the allocator counters.
func (h *Heap) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.stats
}
