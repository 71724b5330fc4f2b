//go:build !unix

package alloc

import (
	"os"

	"github.com/pkg/errors"
)

// MapFile reads the file at path into memory and returns a Slab that uses it
// as its read-only image.
func MapFile(path string, opts ...Option) (*Slab, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "map file")
	}
	return NewSlabFromImage(data, opts...), nil
}
