package timeline

import (
	"encoding/json"
	"sort"
)

// Interval is implemented by the interval types of this package.
type Interval[T any] interface {
	Bounds() Span
	closedAt(ts float64) T
}

// Timeline is the ordered interval sequence of one entity. Starts are
// non-decreasing and every interval but the last ends where the next one
// starts.
type Timeline[T Interval[T]] struct {
	items []T
}

// Len returns the number of intervals.
func (tl *Timeline[T]) Len() int { return len(tl.items) }

// At returns interval i.
func (tl *Timeline[T]) At(i int) T { return tl.items[i] }

// Last returns the last interval.
func (tl *Timeline[T]) Last() (T, bool) {
	if len(tl.items) == 0 {
		var zero T
		return zero, false
	}
	return tl.items[len(tl.items)-1], true
}

// Intervals returns the intervals. The slice must not be modified.
func (tl *Timeline[T]) Intervals() []T { return tl.items }

// TruncateFrom drops the trailing intervals starting at or after ts and
// returns how many were dropped.
func (tl *Timeline[T]) TruncateFrom(ts float64) int {
	n := len(tl.items)
	for n > 0 && tl.items[n-1].Bounds().TsStart >= ts {
		n--
	}
	dropped := len(tl.items) - n
	clear(tl.items[n:])
	tl.items = tl.items[:n]
	return dropped
}

// Push closes the last interval at iv's start and appends iv.
func (tl *Timeline[T]) Push(iv T) {
	if n := len(tl.items); n > 0 {
		tl.items[n-1] = tl.items[n-1].closedAt(iv.Bounds().TsStart)
	}
	tl.items = append(tl.items, iv)
}

// Append truncates from iv's start and pushes iv.
func (tl *Timeline[T]) Append(iv T) {
	tl.TruncateFrom(iv.Bounds().TsStart)
	tl.Push(iv)
}

// Search returns the index of the last interval starting at or before t.
// The scan resumes at from when t has not moved backwards from it, so
// sweeping callers pay amortised O(1); otherwise it falls back to a binary
// search. It returns -1 when t precedes the first interval.
func (tl *Timeline[T]) Search(t float64, from int) int {
	n := len(tl.items)
	if n == 0 || t < tl.items[0].Bounds().TsStart {
		return -1
	}
	if from >= 0 && from < n && tl.items[from].Bounds().TsStart <= t {
		i := from
		for i+1 < n && tl.items[i+1].Bounds().TsStart <= t {
			i++
		}
		return i
	}
	return sort.Search(n, func(i int) bool { return tl.items[i].Bounds().TsStart > t }) - 1
}

// MarshalJSON encodes the intervals as an array.
func (tl *Timeline[T]) MarshalJSON() ([]byte, error) {
	if tl.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(tl.items)
}

// UnmarshalJSON decodes an interval array.
func (tl *Timeline[T]) UnmarshalJSON(b []byte) error {
	return json.Unmarshal(b, &tl.items)
}
