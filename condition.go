package packedint

import "fmt"

// Cond is a search condition comparing an element against a search value.
type Cond uint8

const (
	// Equal matches elements equal to the search value.
	Equal Cond = iota
	// NotEqual matches elements different from the search value.
	NotEqual
	// Greater matches elements greater than the search value.
	Greater
	// Less matches elements less than the search value.
	Less

	numConds = 4
)

func (c Cond) String() string {
	switch c {
	case Equal:
		return "=="
	case NotEqual:
		return "!="
	case Greater:
		return ">"
	case Less:
		return "<"
	}
	return fmt.Sprintf("Cond(%d)", uint8(c))
}

// Eval reports whether element v satisfies the condition against value.
func (c Cond) Eval(v, value int64) bool {
	switch c {
	case Equal:
		return v == value
	case NotEqual:
		return v != value
	case Greater:
		return v > value
	case Less:
		return v < value
	}
	panic(fmt.Sprintf("packedint: unknown condition %d", c))
}

// CanMatch reports whether any element in [lower, upper] can satisfy the
// condition against value. A false result lets a search skip the array.
func (c Cond) CanMatch(value, lower, upper int64) bool {
	switch c {
	case Equal:
		return value >= lower && value <= upper
	case NotEqual:
		return !(value == 0 && lower == 0 && upper == 0)
	case Greater:
		return upper > value
	case Less:
		return lower < value
	}
	return false
}

// WillMatch reports whether every element in [lower, upper] satisfies the
// condition against value. A true result lets a search report all elements
// without looking at them.
func (c Cond) WillMatch(value, lower, upper int64) bool {
	switch c {
	case Equal:
		return value == 0 && lower == 0 && upper == 0
	case NotEqual:
		return value > upper || value < lower
	case Greater:
		return lower > value
	case Less:
		return upper < value
	}
	return false
}

// condition is implemented by the condition marker types so that search
// kernels can be instantiated per condition.
type condition interface {
	condEqual | condNotEqual | condGreater | condLess
	cond() Cond
}

type (
	condEqual    struct{}
	condNotEqual struct{}
	condGreater  struct{}
	condLess     struct{}
)

func (condEqual) cond() Cond    { return Equal }
func (condNotEqual) cond() Cond { return NotEqual }
func (condGreater) cond() Cond  { return Greater }
func (condLess) cond() Cond     { return Less }

func condOf[C condition]() Cond {
	var c C
	return c.cond()
}
