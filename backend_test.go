package ddgorescue

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/behrlich/ddgorescue/mapfile"
)

func TestNewSessionRequiresAllPaths(t *testing.T) {
	_, err := NewSession(Config{})
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeDeviceOpen))

	_, err = NewSession(Config{Source: "/dev/null"})
	require.Error(t, err)
}

func TestLoadOrCreateMapFileCreatesFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.map")

	mf, err := loadOrCreateMapFile(path, 4096)
	require.NoError(t, err)
	assert.Equal(t, mapfile.Copying, mf.Phase())
	assert.Equal(t, uint64(4096), mf.SizeBytes())
	assert.Equal(t, uint64(4096), mf.Histogram()[mapfile.Untried])
}

func TestLoadOrCreateMapFileResumesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resume.map")

	original := mapfile.New(8192)
	original.Put(0, 4096, mapfile.Rescued)
	original.SetPos(4096)
	require.NoError(t, original.WriteAtomic(path))

	mf, err := loadOrCreateMapFile(path, 8192)
	require.NoError(t, err)
	assert.Equal(t, uint64(4096), mf.Pos())
	assert.Equal(t, uint64(4096), mf.Histogram()[mapfile.Rescued])
}

func TestLoadOrCreateMapFileRejectsSizeMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mismatch.map")

	original := mapfile.New(8192)
	require.NoError(t, original.WriteAtomic(path))

	_, err := loadOrCreateMapFile(path, 4096)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeSizeMismatch))
}
