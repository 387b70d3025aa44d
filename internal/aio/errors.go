package aio

import "errors"

// ErrQueueFull is returned by Submit when MaxRequests requests are already
// in flight. Mirrors uring.ErrRingFull: the caller is expected to reap
// before submitting further, never to treat this as fatal.
var ErrQueueFull = errors.New("aio: submission queue full")
