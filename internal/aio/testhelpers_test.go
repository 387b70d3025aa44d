//go:build !io_uring
// +build !io_uring

package aio

import "golang.org/x/sys/unix"

func syscallOpenDirect(path string) (int, error) {
	return unix.Open(path, unix.O_RDONLY|unix.O_DIRECT, 0)
}

func closeFd(fd int) {
	_ = unix.Close(fd)
}
