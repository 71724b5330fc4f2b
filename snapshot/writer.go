package snapshot

import (
	"github.com/pkg/errors"

	"github.com/Akron/packedint"
	"github.com/Akron/packedint/alloc"
)

// ImageWriter collects serialized array regions into a snapshot image. It
// implements packedint.ArrayWriter. The first HeaderSize bytes of the image
// are reserved for the file header.
type ImageWriter struct {
	buf []byte
}

var _ packedint.ArrayWriter = (*ImageWriter)(nil)

// NewImageWriter returns a writer for a new image.
func NewImageWriter() *ImageWriter {
	return &ImageWriter{buf: make([]byte, HeaderSize, 4096)}
}

// appendTo returns a writer that continues an existing image. Regions already
// in the image keep their refs.
func appendTo(image []byte) *ImageWriter {
	if len(image) < HeaderSize {
		return NewImageWriter()
	}
	buf := make([]byte, len(image), len(image)+4096)
	copy(buf, image)
	return &ImageWriter{buf: buf}
}

// WriteArray implements packedint.ArrayWriter. The region is appended at the
// next 8-byte boundary and its offset in the image is returned.
func (w *ImageWriter) WriteArray(region []byte) (alloc.Ref, error) {
	if len(region) < packedint.HeaderSize {
		return 0, errors.Wrapf(ErrCorrupt, "region of %d bytes", len(region))
	}
	ref := alloc.Ref(len(w.buf))
	w.buf = append(w.buf, region...)
	if pad := (8 - len(w.buf)&7) & 7; pad != 0 {
		w.buf = append(w.buf, make([]byte, pad)...)
	}
	return ref, nil
}

// Len returns the current image size, header included.
func (w *ImageWriter) Len() int { return len(w.buf) }

// Bytes returns the image. The header area is zero until the image is
// committed or written.
func (w *ImageWriter) Bytes() []byte { return w.buf }
