package tagrange

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutPointwiseCorrectness(t *testing.T) {
	m := New[rune]()
	m.Put(0, 100, '?')
	m.Put(10, 20, '+')
	m.Put(15, 30, '-')

	cases := []struct {
		offset uint64
		want   rune
	}{
		{0, '?'},
		{9, '?'},
		{10, '+'},
		{14, '+'},
		{15, '-'},
		{29, '-'},
		{30, '?'},
		{99, '?'},
	}
	for _, c := range cases {
		got, ok := m.TagAt(c.offset)
		require.True(t, ok, "offset %d should be covered", c.offset)
		assert.Equalf(t, c.want, got, "offset %d", c.offset)
	}

	_, ok := m.TagAt(100)
	assert.False(t, ok, "offset beyond the map should be uncovered")
}

func TestNewMapFileLikeCoverage(t *testing.T) {
	m := New[rune]()
	const size = 4096
	m.Put(0, size, '?')

	for _, off := range []uint64{0, 1, size / 2, size - 1} {
		got, ok := m.TagAt(off)
		require.True(t, ok)
		assert.Equal(t, rune('?'), got)
	}
}

func TestCoalescingNoAdjacentEqualTags(t *testing.T) {
	m := New[rune]()
	m.Put(0, 1000, '?')
	m.Put(100, 200, '+')
	m.Put(200, 300, '+') // adjacent and equal to the previous put; must merge
	m.Put(50, 100, '?')  // adjacent and equal to the leading run; must merge

	runs := m.Iter()
	for i := 1; i < len(runs); i++ {
		assert.NotEqualf(t, runs[i-1].Tag, runs[i].Tag,
			"adjacent runs %d and %d both tagged %q should have merged", i-1, i, runs[i].Tag)
		assert.Equal(t, runs[i-1].End(), runs[i].Start, "runs must be contiguous")
	}
}

func TestPutNewWriteWins(t *testing.T) {
	m := New[rune]()
	m.Put(0, 100, '?')
	m.Put(0, 100, '+')

	runs := m.Iter()
	require.Len(t, runs, 1)
	assert.Equal(t, rune('+'), runs[0].Tag)
}

func TestPutNoOpOnEmptyRange(t *testing.T) {
	m := New[rune]()
	m.Put(0, 100, '?')
	m.Put(50, 50, '+')

	got, _ := m.TagAt(50)
	assert.Equal(t, rune('?'), got, "hi == lo must be a no-op")
}

func TestPutRejectsInvertedRange(t *testing.T) {
	m := New[rune]()
	assert.Panics(t, func() {
		m.Put(100, 50, '?')
	})
}

func TestIterRangeClipping(t *testing.T) {
	m := New[rune]()
	m.Put(0, 100, '?')
	m.Put(30, 60, '-')

	runs := m.IterRange(20, 80)
	require.NotEmpty(t, runs)

	var coveredLen uint64
	prevEnd := uint64(20)
	for _, r := range runs {
		assert.GreaterOrEqualf(t, r.Start, uint64(20), "run must not start before the query range")
		assert.LessOrEqualf(t, r.End(), uint64(80), "run must not end after the query range")
		assert.Equal(t, prevEnd, r.Start, "runs must tile the query range without gaps")
		prevEnd = r.End()
		coveredLen += r.Length
	}
	assert.Equal(t, uint64(60), coveredLen)
	assert.Equal(t, uint64(80), prevEnd)
}

func TestIterRangeEmptyQuery(t *testing.T) {
	m := New[rune]()
	m.Put(0, 100, '?')
	runs := m.IterRange(40, 40)
	assert.Empty(t, runs)
}

// TestPutRandomizedAgainstReferenceModel exercises the pointwise-correctness
// property across a sequence of random overlapping puts, comparing against a
// naive per-byte reference model.
func TestPutRandomizedAgainstReferenceModel(t *testing.T) {
	const size = 256
	rng := rand.New(rand.NewSource(1))

	m := New[byte]()
	reference := make([]byte, size)
	m.Put(0, size, '?')
	for i := range reference {
		reference[i] = '?'
	}

	for iter := 0; iter < 500; iter++ {
		lo := uint64(rng.Intn(size))
		hi := lo + uint64(rng.Intn(size-int(lo)+1))
		tags := []byte{'?', '*', '/', '-', '+'}
		tag := tags[rng.Intn(len(tags))]

		m.Put(lo, hi, tag)
		for i := lo; i < hi; i++ {
			reference[i] = tag
		}
	}

	for off := uint64(0); off < size; off++ {
		got, ok := m.TagAt(off)
		require.True(t, ok)
		assert.Equalf(t, reference[off], got, "offset %d", off)
	}

	runs := m.Iter()
	for i := 1; i < len(runs); i++ {
		assert.NotEqual(t, runs[i-1].Tag, runs[i].Tag)
	}
}

func TestSize(t *testing.T) {
	m := New[rune]()
	assert.Equal(t, uint64(0), m.Size())
	m.Put(0, 4096, '?')
	assert.Equal(t, uint64(4096), m.Size())
}
