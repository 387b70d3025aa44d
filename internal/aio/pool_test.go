package aio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferPoolGetSizeAndReuse(t *testing.T) {
	pool := NewBufferPool(512)

	buf, err := pool.Get(512 * 4)
	require.NoError(t, err)
	assert.Len(t, buf, 2048)

	pool.Put(buf)
	buf2, err := pool.Get(512 * 4)
	require.NoError(t, err)
	assert.Len(t, buf2, 2048)
}

func TestBufferPoolRejectsUnalignedSize(t *testing.T) {
	pool := NewBufferPool(512)
	_, err := pool.Get(500)
	assert.Error(t, err)
}

func TestBufferPoolDistinctBuckets(t *testing.T) {
	pool := NewBufferPool(4096)
	small, err := pool.Get(4096)
	require.NoError(t, err)
	large, err := pool.Get(4096 * 8)
	require.NoError(t, err)

	assert.Len(t, small, 4096)
	assert.Len(t, large, 32768)
}
