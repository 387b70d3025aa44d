package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeReadAt(t *testing.T) {
	f := NewFake(8192, 512, 4096)
	f.SetContent(0, []byte("hello world"))

	buf := make([]byte, 11)
	n, err := f.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 11, n)
	assert.Equal(t, "hello world", string(buf))
}

func TestFakeFailRange(t *testing.T) {
	f := NewFake(8192, 512, 4096)
	f.FailRange(4096, 8192)

	buf := make([]byte, 4096)
	_, err := f.ReadAt(buf, 0)
	assert.NoError(t, err)

	_, err = f.ReadAt(buf, 4096)
	assert.Error(t, err)
}

func TestFakeClearFailures(t *testing.T) {
	f := NewFake(4096, 512, 4096)
	f.FailRange(0, 4096)
	_, err := f.ReadAt(make([]byte, 512), 0)
	require.Error(t, err)

	f.ClearFailures()
	_, err = f.ReadAt(make([]byte, 512), 0)
	assert.NoError(t, err)
}

func TestFakeRecordsReads(t *testing.T) {
	f := NewFake(4096, 512, 4096)
	_, _ = f.ReadAt(make([]byte, 512), 0)
	_, _ = f.ReadAt(make([]byte, 256), 512)

	reads := f.Reads()
	require.Len(t, reads, 2)
	assert.Equal(t, int64(0), reads[0].Offset)
	assert.Equal(t, 512, reads[0].Length)
	assert.Equal(t, int64(512), reads[1].Offset)
	assert.Equal(t, 256, reads[1].Length)
}
