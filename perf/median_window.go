package perf

import (
	"math"
	"sort"
)

// medianWindow is a sorted multiset of the values in one segment of a
// series, so that the segment median can be read without re-sorting as the
// segment boundaries move.
type medianWindow struct {
	values []float64
}

func newMedianWindow(capacity int) *medianWindow {
	return &medianWindow{values: make([]float64, 0, capacity)}
}

// reset replaces the contents of the window with values.
func (w *medianWindow) reset(values []float64) {
	w.values = append(w.values[:0], values...)
	sort.Float64s(w.values)
}

// add inserts v after any values equal to it.
func (w *medianWindow) add(v float64) {
	i := sort.Search(len(w.values), func(i int) bool { return w.values[i] > v })
	w.values = append(w.values, 0)
	copy(w.values[i+1:], w.values[i:])
	w.values[i] = v
}

// remove deletes one occurrence of v and reports whether v was present.
func (w *medianWindow) remove(v float64) bool {
	i := sort.SearchFloat64s(w.values, v)
	if i == len(w.values) || w.values[i] != v {
		return false
	}
	w.values = append(w.values[:i], w.values[i+1:]...)
	return true
}

func (w *medianWindow) len() int { return len(w.values) }

// median returns NaN for an empty window.
func (w *medianWindow) median() float64 {
	n := len(w.values)
	switch {
	case n == 0:
		return math.NaN()
	case n%2 == 1:
		return w.values[n/2]
	default:
		return (w.values[n/2-1] + w.values[n/2]) / 2
	}
}
