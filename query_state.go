package packedint

import (
	"math"

	"github.com/RoaringBitmap/roaring/v2"
)

// NotFound is returned by FindFirst when nothing matches.
const NotFound = -1

// Npos as an end position stands for the end of the array.
const Npos = -1

// Unlimited is the limit of accumulators that never stop a search.
const Unlimited = math.MaxInt

// QueryState accumulates the matches of a search.
//
// Match is called once per matching element with its index (already offset
// by the base index of the search) and its value. Returning false stops the
// search. A state stops once MatchCount reaches Limit.
type QueryState interface {
	Match(index int, value int64) bool
	MatchCount() int
	Limit() int
}

type stateBase struct {
	count int
	limit int
}

func newStateBase(limit int) stateBase {
	if limit <= 0 {
		limit = Unlimited
	}
	return stateBase{limit: limit}
}

// MatchCount implements QueryState.
func (s *stateBase) MatchCount() int { return s.count }

// Limit implements QueryState.
func (s *stateBase) Limit() int { return s.limit }

// matched counts one match and reports whether the search may go on.
func (s *stateBase) matched() bool {
	s.count++
	return s.count < s.limit
}

// FindFirstState records the first match and stops.
type FindFirstState struct {
	stateBase
	Index int
	Value int64
}

// NewFindFirstState returns a state with limit 1.
func NewFindFirstState() *FindFirstState {
	return &FindFirstState{stateBase: newStateBase(1), Index: NotFound}
}

// Match implements QueryState.
func (s *FindFirstState) Match(index int, value int64) bool {
	s.Index, s.Value = index, value
	return s.matched()
}

// FindAllState collects match indices in order.
type FindAllState struct {
	stateBase
	Indices []int
}

// NewFindAllState returns a collecting state. A limit of zero or less means
// unlimited.
func NewFindAllState(limit int) *FindAllState {
	return &FindAllState{stateBase: newStateBase(limit)}
}

// Match implements QueryState.
func (s *FindAllState) Match(index int, _ int64) bool {
	s.Indices = append(s.Indices, index)
	return s.matched()
}

// CountState only counts matches.
type CountState struct {
	stateBase
}

// NewCountState returns a counting state.
func NewCountState(limit int) *CountState {
	return &CountState{stateBase: newStateBase(limit)}
}

// Match implements QueryState.
func (s *CountState) Match(int, int64) bool {
	return s.matched()
}

// Aggregate selects the reduction of an AggregateState.
type Aggregate uint8

const (
	AggregateSum Aggregate = iota
	AggregateMin
	AggregateMax
)

// AggregateState reduces the values of all matches. For AggregateMin and
// AggregateMax, Index holds the position of the first extremum.
type AggregateState struct {
	stateBase
	Kind   Aggregate
	Result int64
	Index  int
}

// NewAggregateState returns a reducing state.
func NewAggregateState(kind Aggregate, limit int) *AggregateState {
	return &AggregateState{stateBase: newStateBase(limit), Kind: kind, Index: NotFound}
}

// Match implements QueryState.
func (s *AggregateState) Match(index int, value int64) bool {
	switch s.Kind {
	case AggregateSum:
		s.Result += value
	case AggregateMin:
		if s.count == 0 || value < s.Result {
			s.Result, s.Index = value, index
		}
	case AggregateMax:
		if s.count == 0 || value > s.Result {
			s.Result, s.Index = value, index
		}
	}
	return s.matched()
}

// CallbackState forwards every match to a function. The search stops when
// the function returns false.
type CallbackState struct {
	stateBase
	fn func(index int, value int64) bool
}

// NewCallbackState wraps fn.
func NewCallbackState(fn func(index int, value int64) bool) *CallbackState {
	return &CallbackState{stateBase: newStateBase(Unlimited), fn: fn}
}

// Match implements QueryState.
func (s *CallbackState) Match(index int, value int64) bool {
	s.count++
	return s.fn(index, value)
}

// BitmapState collects match indices into a roaring bitmap. Indices must fit
// in 32 bits.
type BitmapState struct {
	stateBase
	Bitmap *roaring.Bitmap
}

// NewBitmapState returns a state collecting into a fresh bitmap.
func NewBitmapState(limit int) *BitmapState {
	return &BitmapState{stateBase: newStateBase(limit), Bitmap: roaring.New()}
}

// Match implements QueryState.
func (s *BitmapState) Match(index int, _ int64) bool {
	if uint(index) > math.MaxUint32 {
		panic("packedint: match index exceeds bitmap range")
	}
	s.Bitmap.Add(uint32(index))
	return s.matched()
}
