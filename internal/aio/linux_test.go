//go:build !io_uring
// +build !io_uring

package aio

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// openDirectOrSkip opens path with O_DIRECT, skipping the test when the
// underlying filesystem doesn't support it (common on tmpfs).
func openDirectOrSkip(t *testing.T, path string) int {
	t.Helper()
	fd, err := syscallOpenDirect(path)
	if err != nil {
		t.Skipf("O_DIRECT unsupported on this filesystem: %v", err)
	}
	return fd
}

func TestLinuxAIOSubmitAndReap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "source.img")

	const blockSize = 4096
	content := make([]byte, blockSize*4)
	for i := range content {
		content[i] = byte(i)
	}
	require.NoError(t, os.WriteFile(path, content, 0644))

	fd := openDirectOrSkip(t, path)
	defer closeFd(fd)

	dev, err := NewLinuxAIO(fd)
	if err != nil {
		t.Skipf("io_setup unavailable: %v", err)
	}
	defer dev.Close()

	pool := NewBufferPool(blockSize)
	buf, err := pool.Get(blockSize)
	require.NoError(t, err)

	req := &Request{Offset: 0, Length: blockSize, Buffer: buf, Tag: 1}
	require.NoError(t, dev.Submit(req))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	completed, err := dev.Reap(ctx)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	require.Equal(t, uint64(1), completed[0].Tag)
	require.EqualValues(t, blockSize, completed[0].Result)
	require.Equal(t, content[:blockSize], completed[0].Buffer[:blockSize])
}

func TestLinuxAIOQueueFull(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "source.img")
	require.NoError(t, os.WriteFile(path, make([]byte, 4096), 0644))

	fd := openDirectOrSkip(t, path)
	defer closeFd(fd)

	dev, err := NewLinuxAIO(fd)
	if err != nil {
		t.Skipf("io_setup unavailable: %v", err)
	}
	defer dev.Close()

	pool := NewBufferPool(4096)
	for i := 0; i < MaxEvents; i++ {
		buf, err := pool.Get(4096)
		require.NoError(t, err)
		require.NoError(t, dev.Submit(&Request{Offset: 0, Length: 4096, Buffer: buf, Tag: uint64(i)}))
	}

	buf, err := pool.Get(4096)
	require.NoError(t, err)
	err = dev.Submit(&Request{Offset: 0, Length: 4096, Buffer: buf, Tag: uint64(MaxEvents)})
	require.ErrorIs(t, err, ErrQueueFull)
}
