package alloc

import (
	"slices"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Slab is an allocator over an optional read-only base image followed by
// writable slabs.
//
// Refs in [0, Baseline) address the image and are read-only. Writable slabs
// are appended above the baseline as needed. Freed writable space goes into a
// first-fit free list that is coalesced per slab; freed read-only space is only
// counted, since the image is never modified.
//
// A Slab is safe for concurrent use.
type Slab struct {
	mu       sync.RWMutex
	image    []byte
	baseline Ref
	slabs    []slab
	free     []span
	end      Ref
	opts     options
	stats    Stats
	unmap    func() error
}

type slab struct {
	ref  Ref
	data []byte
}

func (s slab) end() Ref { return s.ref + Ref(len(s.data)) }

type span struct {
	ref  Ref
	size int
	slab int
}

// NewSlab creates a Slab without a read-only image. The first 8 bytes of the
// address space are reserved so that no region is ever given the null ref.
func NewSlab(opts ...Option) *Slab {
	return NewSlabFromImage(nil, opts...)
}

// NewSlabFromImage creates a Slab whose read-only part is image. The image is
// not copied and must not be modified while the Slab is in use.
func NewSlabFromImage(image []byte, opts ...Option) *Slab {
	baseline := Ref(alignSize(len(image)))
	if baseline == 0 {
		baseline = 8
	}
	s := &Slab{
		image:    image,
		baseline: baseline,
		end:      baseline,
		opts:     applyOptions(opts),
	}
	s.stats.ReadOnlyBytes = len(image)
	return s
}

// Baseline returns the first writable ref.
func (s *Slab) Baseline() Ref { return s.baseline }

// Image returns the read-only image.
func (s *Slab) Image() []byte { return s.image }

// Alloc implements Allocator.
func (s *Slab) Alloc(size int) (MemRef, error) {
	if size <= 0 {
		return MemRef{}, errors.Wrapf(ErrInvalidSize, "slab: %d bytes", size)
	}
	size = alignSize(size)

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.firstFit(size)
	if i < 0 {
		if err := s.reserve(size); err != nil {
			return MemRef{}, err
		}
		i = s.firstFit(size)
	}
	sp := s.free[i]
	if sp.size == size {
		s.free = slices.Delete(s.free, i, i+1)
	} else {
		s.free[i].ref += Ref(size)
		s.free[i].size -= size
	}

	sl := s.slabs[sp.slab]
	off := int(sp.ref - sl.ref)
	addr := sl.data[off : off+size : off+size]
	clear(addr)

	s.stats.Allocs++
	s.stats.UsedBytes += size
	return MemRef{Ref: sp.ref, Addr: addr}, nil
}

func (s *Slab) firstFit(size int) int {
	for i, sp := range s.free {
		if sp.size >= size {
			return i
		}
	}
	return -1
}

// reserve appends a new slab large enough for size bytes.
func (s *Slab) reserve(size int) error {
	n := max(s.opts.slabSize, size)
	if len(s.slabs) > 0 {
		// Grow geometrically so the number of slabs stays logarithmic.
		n = max(n, len(s.slabs[len(s.slabs)-1].data)*2)
	}
	if s.opts.maxBytes > 0 && s.stats.ReservedBytes+n > s.opts.maxBytes {
		if s.stats.ReservedBytes+size > s.opts.maxBytes {
			return errors.Wrapf(ErrOutOfMemory, "slab: %d bytes requested, %d of %d reserved",
				size, s.stats.ReservedBytes, s.opts.maxBytes)
		}
		n = size
	}
	if uint64(s.end)+uint64(n) < uint64(s.end) {
		return errors.Wrap(ErrOutOfMemory, "slab: address space exhausted")
	}

	sl := slab{ref: s.end, data: make([]byte, n)}
	s.slabs = append(s.slabs, sl)
	s.end = sl.end()
	s.free = append(s.free, span{ref: sl.ref, size: n, slab: len(s.slabs) - 1})
	s.stats.ReservedBytes += n

	s.opts.logger.Debug("slab: reserved",
		zap.Uint64("ref", uint64(sl.ref)),
		zap.Int("bytes", n),
		zap.Int("slabs", len(s.slabs)))
	return nil
}

// Free implements Allocator.
func (s *Slab) Free(ref Ref, addr []byte) {
	size := alignSize(len(addr))

	s.mu.Lock()
	defer s.mu.Unlock()

	if ref < s.baseline {
		s.stats.ReadOnlyFreed += size
		s.stats.Frees++
		s.opts.logger.Debug("slab: read-only region released",
			zap.Uint64("ref", uint64(ref)),
			zap.Int("bytes", size))
		return
	}

	si := s.slabIndex(ref)
	if si < 0 || ref+Ref(size) > s.slabs[si].end() || size == 0 {
		s.opts.logger.Error("slab: free of unknown region",
			zap.Uint64("ref", uint64(ref)),
			zap.Int("bytes", size))
		return
	}

	i, _ := slices.BinarySearchFunc(s.free, ref, func(sp span, r Ref) int {
		switch {
		case sp.ref < r:
			return -1
		case sp.ref > r:
			return 1
		}
		return 0
	})
	if (i > 0 && s.free[i-1].ref+Ref(s.free[i-1].size) > ref) ||
		(i < len(s.free) && s.free[i].ref < ref+Ref(size)) {
		s.opts.logger.Error("slab: double free",
			zap.Uint64("ref", uint64(ref)),
			zap.Int("bytes", size))
		return
	}

	s.free = slices.Insert(s.free, i, span{ref: ref, size: size, slab: si})
	// Coalesce with the right neighbour, then the left one.
	if i+1 < len(s.free) {
		next := s.free[i+1]
		if next.slab == si && ref+Ref(size) == next.ref {
			s.free[i].size += next.size
			s.free = slices.Delete(s.free, i+1, i+2)
		}
	}
	if i > 0 {
		prev := s.free[i-1]
		if prev.slab == si && prev.ref+Ref(prev.size) == ref {
			s.free[i-1].size += s.free[i].size
			s.free = slices.Delete(s.free, i, i+1)
		}
	}

	s.stats.Frees++
	s.stats.UsedBytes -= size
}

// slabIndex returns the slab containing ref, or -1.
func (s *Slab) slabIndex(ref Ref) int {
	i, found := slices.BinarySearchFunc(s.slabs, ref, func(sl slab, r Ref) int {
		switch {
		case sl.end() <= r:
			return -1
		case sl.ref > r:
			return 1
		}
		return 0
	})
	if !found {
		return -1
	}
	return i
}

// Translate implements Allocator.
func (s *Slab) Translate(ref Ref) []byte {
	if ref < s.baseline {
		if int(ref) >= len(s.image) {
			return nil
		}
		return s.image[ref:]
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	si := s.slabIndex(ref)
	if si < 0 {
		return nil
	}
	sl := s.slabs[si]
	return sl.data[ref-sl.ref:]
}

// IsReadOnly implements Allocator.
func (s *Slab) IsReadOnly(ref Ref) bool {
	return ref < s.baseline
}

// FreeSpace returns the number of writable bytes available without
// reserving another slab.
func (s *Slab) FreeSpace() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, sp := range s.free {
		n += sp.size
	}
	return n
}

// Stats returns a snapshot of the allocator counters.
func (s *Slab) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// Close releases the image mapping, if any. The Slab must not be used
// afterwards.
func (s *Slab) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slabs = nil
	s.free = nil
	if s.unmap == nil {
		return nil
	}
	unmap := s.unmap
	s.unmap = nil
	s.image = nil
	if err := unmap(); err != nil {
		return errors.Wrap(err, "slab: unmap image")
	}
	return nil
}
