package snapshot

import (
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Akron/packedint"
	"github.com/Akron/packedint/alloc"
)

type options struct {
	logger         *zap.Logger
	compression    Compression
	compressionSet bool
	slabSize       int
}

// Option configures a Group.
type Option func(*options)

// WithLogger sets the logger of the group and its allocator.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithCompression sets the codec used when the group is written. Groups
// opened from a file default to the codec of that file, new groups to
// CompressionNone.
func WithCompression(c Compression) Option {
	return func(o *options) {
		o.compression = c
		o.compressionSet = true
	}
}

// WithSlabSize sets the slab size of the group's allocator.
func WithSlabSize(n int) Option {
	return func(o *options) {
		o.slabSize = n
	}
}

func applyOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Group owns the memory of one tree of arrays: a read-only image holding the
// last committed state and a writable allocator for everything changed since.
//
// The tree is reached through the top ref. Arrays loaded from the image are
// read-only; call CopyOnWrite on them (parents first) before changing them.
// Group implements packedint.Parent with a single child, so a root array can
// keep the top ref current by itself:
//
//	root.SetParent(g, 0)
//
// Commit and Compact install a new image and allocator. Accessors bound to
// the previous allocator must be re-initialized from TopRef afterwards.
type Group struct {
	mu    sync.Mutex
	opts  options
	path  string
	slab  *alloc.Slab
	image []byte
	top   alloc.Ref
}

var _ packedint.Parent = (*Group)(nil)

// New returns an empty group that is not backed by a file.
func New(opts ...Option) *Group {
	g := &Group{opts: applyOptions(opts)}
	g.slab = alloc.NewSlab(g.allocOptions()...)
	return g
}

// Open loads the snapshot at path. Uncompressed snapshots are memory mapped.
// Commit writes back to path.
func Open(path string, opts ...Option) (*Group, error) {
	o := applyOptions(opts)

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "snapshot: open")
	}
	var head [HeaderSize]byte
	_, err = io.ReadFull(f, head[:])
	f.Close()
	if err != nil {
		return nil, errors.Wrapf(ErrTruncated, "%s: %v", path, err)
	}
	h, err := decodeHeader(head[:])
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	if !o.compressionSet {
		o.compression = h.compression
	}

	g := &Group{opts: o, path: path}
	if h.compression == CompressionNone {
		slab, err := alloc.MapFile(path, g.allocOptions()...)
		if err != nil {
			return nil, err
		}
		if _, _, err := decodeImage(slab.Image()); err != nil {
			slab.Close()
			return nil, errors.Wrap(err, path)
		}
		g.slab, g.image = slab, slab.Image()[:HeaderSize+int(h.bodyLen)]
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "snapshot: read")
		}
		_, image, err := decodeImage(data)
		if err != nil {
			return nil, errors.Wrap(err, path)
		}
		g.slab, g.image = alloc.NewSlabFromImage(image, g.allocOptions()...), image
	}
	g.top = h.top

	g.opts.logger.Info("snapshot: opened",
		zap.String("path", path),
		zap.Stringer("compression", h.compression),
		zap.Uint64("bytes", h.bodyLen),
		zap.Uint64("top", uint64(h.top)))
	return g, nil
}

// Load reads a snapshot from r into memory.
func Load(r io.Reader, opts ...Option) (*Group, error) {
	o := applyOptions(opts)
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "snapshot: load")
	}
	h, image, err := decodeImage(data)
	if err != nil {
		return nil, err
	}
	if !o.compressionSet {
		o.compression = h.compression
	}
	g := &Group{opts: o, image: image, top: h.top}
	g.slab = alloc.NewSlabFromImage(image, g.allocOptions()...)
	return g, nil
}

func (g *Group) allocOptions() []alloc.Option {
	opts := []alloc.Option{alloc.WithLogger(g.opts.logger)}
	if g.opts.slabSize > 0 {
		opts = append(opts, alloc.WithSlabSize(g.opts.slabSize))
	}
	return opts
}

// Alloc returns the allocator arrays of this group must use.
func (g *Group) Alloc() *alloc.Slab {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.slab
}

// TopRef returns the ref of the root array, or the null ref for an empty
// group.
func (g *Group) TopRef() alloc.Ref {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.top
}

// SetTopRef replaces the ref of the root array.
func (g *Group) SetTopRef(ref alloc.Ref) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.top = ref
}

// UpdateChildRef implements packedint.Parent.
func (g *Group) UpdateChildRef(_ int, ref alloc.Ref) error {
	g.SetTopRef(ref)
	return nil
}

// ChildRef implements packedint.Parent.
func (g *Group) ChildRef(int) alloc.Ref { return g.TopRef() }

// Path returns the file backing the group, or "" for an in-memory group.
func (g *Group) Path() string { return g.path }

// Size returns the size of the committed image, header included.
func (g *Group) Size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.image)
}

// Commit appends every array changed since the last commit to the image and
// makes the result the new read-only state. Unchanged arrays keep their refs.
// A file-backed group is written back to its file. The new top ref is
// returned.
func (g *Group) Commit() (alloc.Ref, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rewrite(appendTo(g.image), true)
}

// Compact writes every array reachable from the top ref into a fresh image,
// dropping regions that are no longer referenced.
func (g *Group) Compact() (alloc.Ref, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rewrite(NewImageWriter(), false)
}

func (g *Group) rewrite(w *ImageWriter, onlyIfModified bool) (alloc.Ref, error) {
	top := g.top
	if !top.IsNull() {
		var err error
		top, err = packedint.WriteRef(g.top, g.slab, w, onlyIfModified)
		if err != nil {
			return 0, errors.Wrap(err, "snapshot: write arrays")
		}
	}

	image := w.Bytes()
	fileHeader{
		version:     Version,
		compression: CompressionNone,
		top:         top,
		bodyLen:     uint64(len(image) - HeaderSize),
		checksum:    crc32.ChecksumIEEE(image[HeaderSize:]),
	}.encode(image)

	if g.path != "" {
		if err := writeFileAtomic(g.path, image, g.opts.compression); err != nil {
			return 0, err
		}
	}

	old := g.slab
	g.slab = alloc.NewSlabFromImage(image, g.allocOptions()...)
	g.image = image
	g.top = top
	if err := old.Close(); err != nil {
		g.opts.logger.Warn("snapshot: release previous image", zap.Error(err))
	}

	g.opts.logger.Info("snapshot: committed",
		zap.String("path", g.path),
		zap.Bool("compact", !onlyIfModified),
		zap.Int("bytes", len(image)),
		zap.Uint64("top", uint64(top)))
	return top, nil
}

// WriteTo writes the committed state as a snapshot to out. Changes since the
// last commit are not included.
func (g *Group) WriteTo(out io.Writer) (int64, error) {
	g.mu.Lock()
	image := g.image
	c := g.opts.compression
	g.mu.Unlock()

	if len(image) < HeaderSize {
		image = make([]byte, HeaderSize)
		fileHeader{version: Version, checksum: crc32.ChecksumIEEE(nil)}.encode(image)
	}
	return writeImage(out, image, c)
}

// writeImage encodes image with codec c and writes it to out.
func writeImage(out io.Writer, image []byte, c Compression) (int64, error) {
	body, err := compressBody(image[HeaderSize:], c)
	if err != nil {
		return 0, err
	}
	var head [HeaderSize]byte
	copy(head[:], image[:HeaderSize])
	head[6] = byte(c)

	n, err := out.Write(head[:])
	if err != nil {
		return int64(n), errors.Wrap(err, "snapshot: write header")
	}
	m, err := out.Write(body)
	if err != nil {
		return int64(n + m), errors.Wrap(err, "snapshot: write body")
	}
	return int64(n + m), nil
}

// writeFileAtomic replaces path with the encoded image.
func writeFileAtomic(path string, image []byte, c Compression) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrap(err, "snapshot: create temp file")
	}
	name := tmp.Name()
	if _, err := writeImage(tmp, image, c); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(name)
		return errors.Wrap(err, "snapshot: sync")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return errors.Wrap(err, "snapshot: close temp file")
	}
	return errors.Wrap(os.Rename(name, path), "snapshot: rename")
}

// Create writes an empty snapshot to path and opens it.
func Create(path string, opts ...Option) (*Group, error) {
	o := applyOptions(opts)
	image := make([]byte, HeaderSize)
	fileHeader{version: Version, checksum: crc32.ChecksumIEEE(nil)}.encode(image)
	if err := writeFileAtomic(path, image, o.compression); err != nil {
		return nil, err
	}
	return Open(path, opts...)
}

// Close releases the image. The group must not be used afterwards.
func (g *Group) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.slab == nil {
		return nil
	}
	err := g.slab.Close()
	g.slab = nil
	g.image = nil
	return err
}
