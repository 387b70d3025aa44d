// Package tagrange implements a tagged interval map: a dense mapping from
// [0, size) to a small enumeration of tags, stored as a set of maximal
// contiguous runs. It underlies both the on-disk map file and the rescue
// engine's work selection.
//
// Ported from the run-splitting algorithm in the original implementation's
// tagged_range.rs (a BTreeMap keyed by run start). Go has no ordered map in
// its standard library and no pack example reaches for one either, so runs
// are kept in a sorted, disjoint slice and located by binary search.
package tagrange

import (
	"fmt"
	"math"
	"sort"
)

// Region is one maximal run of bytes sharing a tag.
type Region[T comparable] struct {
	Start  uint64
	Length uint64
	Tag    T
}

// End returns the exclusive end offset of the region.
func (r Region[T]) End() uint64 {
	return r.Start + r.Length
}

// Map is a tagged interval map over [0, size). The zero value is an empty
// map (no runs).
type Map[T comparable] struct {
	runs []Region[T] // sorted ascending by Start; disjoint; non-empty lengths
}

// New returns an empty tagged interval map.
func New[T comparable]() *Map[T] {
	return &Map[T]{}
}

// Put sets every byte in [lo, hi) to tag. hi must be >= lo; hi == lo is a
// no-op. Any run straddling lo or hi is split, runs wholly inside [lo, hi)
// are removed, and the new run is coalesced with an equal-tagged neighbour
// on either side.
func (m *Map[T]) Put(lo, hi uint64, tag T) {
	if hi < lo {
		panic(fmt.Sprintf("tagrange: Put called with hi(%d) < lo(%d)", hi, lo))
	}
	if hi == lo {
		return
	}

	first := sort.Search(len(m.runs), func(i int) bool {
		return m.runs[i].End() > lo
	})
	last := sort.Search(len(m.runs), func(i int) bool {
		return m.runs[i].Start >= hi
	})

	replacement := make([]Region[T], 0, 3)
	if first < last {
		if left := m.runs[first]; left.Start < lo {
			replacement = append(replacement, Region[T]{Start: left.Start, Length: lo - left.Start, Tag: left.Tag})
		}
	}
	replacement = append(replacement, Region[T]{Start: lo, Length: hi - lo, Tag: tag})
	if first < last {
		if right := m.runs[last-1]; right.End() > hi {
			replacement = append(replacement, Region[T]{Start: hi, Length: right.End() - hi, Tag: right.Tag})
		}
	}

	newRuns := make([]Region[T], 0, first+len(replacement)+(len(m.runs)-last))
	newRuns = append(newRuns, m.runs[:first]...)
	newRuns = append(newRuns, replacement...)
	newRuns = append(newRuns, m.runs[last:]...)
	m.runs = newRuns

	m.coalesceAround(lo)
}

// coalesceAround merges the run starting at exactly lo with an
// equal-tagged left or right neighbour, if any. Only one merge can happen
// on each side because the map is kept coalesced between calls.
func (m *Map[T]) coalesceAround(lo uint64) {
	idx := sort.Search(len(m.runs), func(i int) bool {
		return m.runs[i].Start >= lo
	})
	if idx >= len(m.runs) || m.runs[idx].Start != lo {
		return
	}
	if idx > 0 && m.runs[idx-1].End() == m.runs[idx].Start && m.runs[idx-1].Tag == m.runs[idx].Tag {
		m.runs[idx-1].Length += m.runs[idx].Length
		m.runs = append(m.runs[:idx], m.runs[idx+1:]...)
		idx--
	}
	if idx+1 < len(m.runs) && m.runs[idx].End() == m.runs[idx+1].Start && m.runs[idx].Tag == m.runs[idx+1].Tag {
		m.runs[idx].Length += m.runs[idx+1].Length
		m.runs = append(m.runs[:idx+1], m.runs[idx+2:]...)
	}
}

// IterRange returns the ordered runs intersecting [lo, hi), each clipped so
// that Start >= lo and End() <= hi. The result is a point-in-time snapshot:
// it is not invalidated by subsequent Puts, but neither does it reflect
// them, matching the single-threaded cooperative caller this map is built
// for (the rescue engine never iterates and mutates concurrently).
func (m *Map[T]) IterRange(lo, hi uint64) []Region[T] {
	if hi < lo {
		panic(fmt.Sprintf("tagrange: IterRange called with hi(%d) < lo(%d)", hi, lo))
	}
	if hi == lo {
		return nil
	}
	first := sort.Search(len(m.runs), func(i int) bool {
		return m.runs[i].End() > lo
	})
	last := sort.Search(len(m.runs), func(i int) bool {
		return m.runs[i].Start >= hi
	})
	out := make([]Region[T], 0, last-first)
	for i := first; i < last; i++ {
		r := m.runs[i]
		start := r.Start
		if start < lo {
			start = lo
		}
		end := r.End()
		if end > hi {
			end = hi
		}
		out = append(out, Region[T]{Start: start, Length: end - start, Tag: r.Tag})
	}
	return out
}

// Iter returns every run in the map, in ascending order.
func (m *Map[T]) Iter() []Region[T] {
	return m.IterRange(0, math.MaxUint64)
}

// TagAt returns the tag covering offset and whether any run covers it.
func (m *Map[T]) TagAt(offset uint64) (tag T, ok bool) {
	idx := sort.Search(len(m.runs), func(i int) bool {
		return m.runs[i].End() > offset
	})
	if idx >= len(m.runs) || m.runs[idx].Start > offset {
		return tag, false
	}
	return m.runs[idx].Tag, true
}

// Size returns the exclusive end of the last run, or 0 for an empty map.
func (m *Map[T]) Size() uint64 {
	if len(m.runs) == 0 {
		return 0
	}
	return m.runs[len(m.runs)-1].End()
}
