//go:build !io_uring
// +build !io_uring

package aio

import (
	"context"
	"fmt"
	"sync"
	"syscall"
	"time"
	"unsafe"
)

// Raw Linux AIO syscall numbers (linux/amd64). Not exposed by
// golang.org/x/sys/unix as named constants, so hardcoded here the way
// internal/uring/minimal.go hardcodes __NR_io_uring_setup/__NR_io_uring_enter.
const (
	sysIOSetup     = 206
	sysIODestroy   = 207
	sysIOGetevents = 208
	sysIOSubmit    = 209
)

// iocbCmdPread is IOCB_CMD_PREAD, the only opcode this backend issues.
const iocbCmdPread = 0

// iocb mirrors struct iocb from linux/aio_abi.h, laid out exactly as
// original_source/src/aio_abi.rs's iocb.
type iocb struct {
	data       uint64
	key        uint32
	reserved1  uint32
	lioOpcode  uint16
	reqPrio    int16
	fildes     uint32
	buf        uint64
	nbytes     uint64
	offset     int64
	reserved2  uint64
	flags      uint32
	resfd      uint32
}

// ioEvent mirrors struct io_event from linux/aio_abi.h.
type ioEvent struct {
	data uint64
	obj  uint64
	res  int64
	res2 int64
}

// LinuxAIO is the default aio.Device backend: a ring of legacy Linux AIO
// requests against a single file descriptor.
//
// Grounded on original_source/src/block.rs's io_setup/io_destroy lifecycle
// and src/aio_abi.rs's io_prep_pread, with the raw-syscall style (manual
// struct layout, unsafe.Pointer slices keyed by pointer indirection) kept
// from internal/uring/minimal.go.
type LinuxAIO struct {
	fd  int
	ctx uintptr // aio_context_t

	mu      sync.Mutex
	pending map[uint64]*Request // keyed by iocb.data (== Request.Tag)
	inFlight []*iocb             // submitted iocbs, retained until the next Reap clears the list
}

// NewLinuxAIO creates an AIO context bound to fd, the source device's file
// descriptor, with room for MaxEvents in-flight requests.
func NewLinuxAIO(fd int) (*LinuxAIO, error) {
	var ctx uintptr
	r, _, errno := syscall.Syscall(sysIOSetup, uintptr(MaxEvents), uintptr(unsafe.Pointer(&ctx)), 0)
	if int(r) < 0 || errno != 0 {
		return nil, fmt.Errorf("aio: io_setup: %v", errno)
	}
	return &LinuxAIO{
		fd:      fd,
		ctx:     ctx,
		pending: make(map[uint64]*Request, MaxEvents),
	}, nil
}

// Fd implements Device.
func (l *LinuxAIO) Fd() int { return l.fd }

// MaxRequests implements Device.
func (l *LinuxAIO) MaxRequests() int { return MaxEvents }

// RequestsPending implements Device.
func (l *LinuxAIO) RequestsPending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// RequestsAvail implements Device.
func (l *LinuxAIO) RequestsAvail() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return MaxEvents - len(l.pending)
}

// Submit implements Device.
func (l *LinuxAIO) Submit(req *Request) error {
	l.mu.Lock()
	if len(l.pending) >= MaxEvents {
		l.mu.Unlock()
		return ErrQueueFull
	}
	if len(req.Buffer) < req.Length {
		l.mu.Unlock()
		return fmt.Errorf("aio: request buffer shorter than length")
	}

	cb := &iocb{
		data:      req.Tag,
		lioOpcode: iocbCmdPread,
		fildes:    uint32(l.fd),
		buf:       uint64(uintptr(unsafe.Pointer(&req.Buffer[0]))),
		nbytes:    uint64(req.Length),
		offset:    req.Offset,
	}
	l.pending[req.Tag] = req
	l.inFlight = append(l.inFlight, cb)
	l.mu.Unlock()

	cbs := [1]*iocb{cb}
	r, _, errno := syscall.Syscall(sysIOSubmit, l.ctx, 1, uintptr(unsafe.Pointer(&cbs[0])))
	if int(r) < 0 || errno != 0 {
		l.mu.Lock()
		delete(l.pending, req.Tag)
		l.mu.Unlock()
		return fmt.Errorf("aio: io_submit: %v", errno)
	}
	return nil
}

// Reap implements Device. It retries internally on EINTR and blocks until
// either one event is ready or ctx is cancelled.
func (l *LinuxAIO) Reap(ctx context.Context) ([]*Request, error) {
	events := make([]ioEvent, MaxEvents)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		timeout := syscall.Timespec{Sec: 0, Nsec: int64(200 * time.Millisecond)}
		n, _, errno := syscall.Syscall6(
			sysIOGetevents,
			l.ctx,
			1,
			uintptr(len(events)),
			uintptr(unsafe.Pointer(&events[0])),
			uintptr(unsafe.Pointer(&timeout)),
			0,
		)
		if errno == syscall.EINTR {
			continue
		}
		if int(n) < 0 || errno != 0 {
			return nil, fmt.Errorf("aio: io_getevents: %v", errno)
		}
		if n == 0 {
			continue
		}

		out := make([]*Request, 0, n)
		l.mu.Lock()
		for i := 0; i < int(n); i++ {
			ev := events[i]
			req, ok := l.pending[ev.data]
			if !ok {
				continue
			}
			req.Result = ev.res
			delete(l.pending, ev.data)
			out = append(out, req)
		}
		l.inFlight = l.inFlight[:0]
		l.mu.Unlock()
		return out, nil
	}
}

// Close implements Device.
func (l *LinuxAIO) Close() error {
	r, _, errno := syscall.Syscall(sysIODestroy, l.ctx, 0, 0)
	if int(r) < 0 || errno != 0 {
		return fmt.Errorf("aio: io_destroy: %v", errno)
	}
	return nil
}
