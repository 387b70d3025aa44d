// Package destfile implements the destination sparse-image abstraction: an
// open-or-create regular file of exactly size_bytes bytes, written at
// arbitrary offsets, with zero-filled writes skipped to preserve
// filesystem sparseness.
//
// Adapted from original_source/src/out_file.rs's OutFile.
package destfile

import (
	"fmt"
	"os"
)

// File is the destination image the rescue engine writes rescued bytes
// into.
type File struct {
	f *os.File
}

// Open opens path for writing, creating it and setting its length to
// sizeBytes if it doesn't already exist. If it exists, its length must
// already equal sizeBytes.
func Open(path string, sizeBytes uint64) (*File, error) {
	existed := true
	if _, err := os.Stat(path); os.IsNotExist(err) {
		existed = false
	}

	var f *os.File
	var err error
	if !existed {
		f, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
		if err != nil {
			return nil, fmt.Errorf("destfile: create %s: %w", path, err)
		}
		if err := f.Truncate(int64(sizeBytes)); err != nil {
			f.Close()
			return nil, fmt.Errorf("destfile: set length of %s: %w", path, err)
		}
	} else {
		f, err = os.OpenFile(path, os.O_RDWR, 0644)
		if err != nil {
			return nil, fmt.Errorf("destfile: open %s: %w", path, err)
		}
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("destfile: stat %s: %w", path, err)
	}
	if uint64(info.Size()) != sizeBytes {
		f.Close()
		return nil, fmt.Errorf("destfile: %s has length %d, want %d", path, info.Size(), sizeBytes)
	}

	return &File{f: f}, nil
}

// WriteAt writes buf at offset, unless buf is entirely zero, in which case
// the write is skipped so the destination stays sparse. Zero-length
// regions created this way read back as zero on any filesystem, whether or
// not it implements true holes.
func (d *File) WriteAt(offset int64, buf []byte) error {
	if isAllZeroBytes(buf) {
		return nil
	}
	_, err := d.f.WriteAt(buf, offset)
	if err != nil {
		return fmt.Errorf("destfile: write at %d: %w", offset, err)
	}
	return nil
}

// Sync flushes buffered writes and fsyncs the destination file.
func (d *File) Sync() error {
	return d.f.Sync()
}

// Close syncs and closes the destination file.
func (d *File) Close() error {
	if err := d.Sync(); err != nil {
		d.f.Close()
		return err
	}
	return d.f.Close()
}

func isAllZeroBytes(buf []byte) bool {
	for _, b := range buf {
		if b != 0 {
			return false
		}
	}
	return true
}
