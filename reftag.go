package packedint

import (
	"errors"
	"fmt"

	"github.com/Akron/packedint/alloc"
)

// ErrTaggedOverflow is returned by MakeTagged for integers that do not fit in
// 63 bits.
var ErrTaggedOverflow = errors.New("packedint: tagged value overflow")

// RefOrTagged is an array element that holds either a ref to another region
// or a tagged integer. Refs are 8-byte aligned so their lowest bit is always
// clear; tagged integers are stored shifted left by one with the lowest bit
// set.
type RefOrTagged struct {
	raw int64
}

// MakeRef wraps a ref. The ref must be 8-byte aligned.
func MakeRef(ref alloc.Ref) RefOrTagged {
	if !ref.IsAligned() {
		panic(fmt.Sprintf("packedint: unaligned ref %d", ref))
	}
	return RefOrTagged{raw: int64(ref)}
}

// MakeTagged wraps an integer below 2^63.
func MakeTagged(i uint64) (RefOrTagged, error) {
	if i>>63 != 0 {
		return RefOrTagged{}, fmt.Errorf("%w: %d", ErrTaggedOverflow, i)
	}
	return RefOrTagged{raw: int64(i<<1 | 1)}, nil
}

// refOrTaggedFromRaw wraps a stored element value.
func refOrTaggedFromRaw(v int64) RefOrTagged {
	return RefOrTagged{raw: v}
}

// IsRef reports whether the value holds a ref (possibly null).
func (r RefOrTagged) IsRef() bool { return r.raw&1 == 0 }

// IsTagged reports whether the value holds a tagged integer.
func (r RefOrTagged) IsTagged() bool { return !r.IsRef() }

// Ref returns the ref held by r.
func (r RefOrTagged) Ref() alloc.Ref { return toRef(r.raw) }

// Int returns the tagged integer held by r.
func (r RefOrTagged) Int() uint64 { return uint64(r.raw) >> 1 }

// Raw returns the element value as stored in an array.
func (r RefOrTagged) Raw() int64 { return r.raw }

func (r RefOrTagged) String() string {
	if r.IsRef() {
		return fmt.Sprintf("ref(%d)", r.Ref())
	}
	return fmt.Sprintf("tagged(%d)", r.Int())
}

func toRef(v int64) alloc.Ref { return alloc.Ref(uint64(v)) }

func fromRef(ref alloc.Ref) int64 { return int64(ref) }

// isSubArray reports whether an element of an array with refs points to a
// child region: refs are even and zero is the null ref.
func isSubArray(v int64) bool {
	return v != 0 && v&1 == 0
}
