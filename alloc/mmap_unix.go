//go:build unix

package alloc

import (
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// MapFile maps the file at path read-only and returns a Slab that uses the
// mapping as its read-only image. Close unmaps the file.
func MapFile(path string, opts ...Option) (*Slab, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "map file")
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "map file: stat")
	}
	size := fi.Size()
	if size == 0 {
		return NewSlab(opts...), nil
	}
	if size != int64(int(size)) {
		return nil, errors.Wrapf(ErrOutOfMemory, "map file: %d bytes", size)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, errors.Wrapf(err, "map file: mmap %s", path)
	}

	s := NewSlabFromImage(data, opts...)
	s.unmap = func() error { return unix.Munmap(data) }
	s.opts.logger.Debug("slab: mapped image",
		zap.String("path", path),
		zap.Int64("bytes", size))
	return s, nil
}
