//go:build !io_uring
// +build !io_uring

package aio

// New returns the default submission backend: legacy Linux AIO. Building
// with -tags io_uring switches this to the io_uring-backed implementation.
func New(fd int) (Device, error) {
	return NewLinuxAIO(fd)
}
