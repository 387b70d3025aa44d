package sizeparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSuffixes(t *testing.T) {
	cases := map[string]int64{
		"512":  512,
		"64K":  64 * 1024,
		"64M":  64 * 1024 * 1024,
		"1G":   1024 * 1024 * 1024,
		"4g":   4 * 1024 * 1024 * 1024,
		"100m": 100 * 1024 * 1024,
	}
	for in, want := range cases {
		got, err := Parse(in)
		require.NoErrorf(t, err, "parsing %q", in)
		assert.Equalf(t, want, got, "parsing %q", in)
	}
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse("not-a-size")
	assert.Error(t, err)
}

func TestFormatRendersUnits(t *testing.T) {
	assert.Equal(t, "64.0 MB", Format(64*1024*1024))
	assert.Equal(t, "1.0 GB", Format(1024*1024*1024))
	assert.Equal(t, "512 B", Format(512))
}
