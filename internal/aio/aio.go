// Package aio is the bounded-concurrency submission layer over the kernel's
// asynchronous direct-I/O primitives: a ring of in-flight read requests,
// each carrying an aligned buffer, an offset, a length, and a completion
// result.
//
// The default backend wraps legacy Linux AIO (io_setup/io_submit/
// io_getevents/io_destroy), grounded on original_source/src/aio_abi.rs and
// src/block.rs. Building with -tags io_uring switches to an io_uring-backed
// implementation, grounded on internal/uring's giouring-tagged split.
package aio

import "context"

// MaxEvents bounds the number of in-flight requests, mirroring the
// original implementation's MAX_EVENTS.
const MaxEvents = 32

// Request is one in-flight or completed read: offset and length must be
// aligned to the device's logical sector size, and Buffer must be at least
// Length bytes, itself aligned for direct I/O. Result is populated on
// completion: the non-negative byte count actually read, or a negative
// errno.
type Request struct {
	Offset int64
	Length int
	Buffer []byte
	Tag    uint64 // caller-assigned correlation id, echoed back on completion

	Result int64
}

// Succeeded reports whether the completed request's Result is a
// positive byte count. A zero result (legal for a read at or past EOF)
// is not a success: it carries no bytes to trust, so the rescue engine
// tags the region Bad rather than Rescued.
func (r *Request) Succeeded() bool {
	return r.Result > 0
}

// Device is the bounded-concurrency read interface the rescue engine
// drives. A single Device is not safe for concurrent use from multiple
// goroutines; the engine is single-threaded by design.
type Device interface {
	// Submit enqueues req for asynchronous reading. Returns
	// ErrQueueFull if MaxRequests in-flight requests are already
	// outstanding.
	Submit(req *Request) error

	// Reap blocks until at least one submitted request completes, or
	// ctx is cancelled, and returns the completed requests in
	// completion order. An interrupted wait (EINTR) is retried
	// internally and never surfaced to the caller.
	Reap(ctx context.Context) ([]*Request, error)

	// RequestsPending returns the number of requests submitted but not
	// yet reaped.
	RequestsPending() int

	// RequestsAvail returns how many more requests can be submitted
	// before Submit returns ErrQueueFull.
	RequestsAvail() int

	// MaxRequests returns the ring's fixed capacity.
	MaxRequests() int

	// Fd returns the underlying source file descriptor reads are
	// issued against.
	Fd() int

	// Close releases the ring and any kernel resources it holds.
	Close() error
}
