package aio

import (
	"context"
	"io"
	"sync"
)

// FakeDevice is a synchronous, in-memory stand-in for a real Device: it
// completes every submitted request immediately against an io.ReaderAt,
// with no actual kernel AIO involved. Used to drive rescue engine tests
// without O_DIRECT or io_setup, which aren't reliably available in test
// environments.
//
// Adapted from the teacher's MockBackend call-tracking style (testing.go),
// generalized from a Backend mock to an aio.Device mock.
type FakeDevice struct {
	reader io.ReaderAt
	fd     int

	mu      sync.Mutex
	ready   []*Request
	pending int
}

// NewFakeDevice wraps reader (typically a *device.Fake) as an aio.Device.
func NewFakeDevice(reader io.ReaderAt) *FakeDevice {
	return &FakeDevice{reader: reader}
}

func (f *FakeDevice) Fd() int          { return f.fd }
func (f *FakeDevice) MaxRequests() int { return MaxEvents }

func (f *FakeDevice) RequestsPending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending
}

func (f *FakeDevice) RequestsAvail() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return MaxEvents - f.pending
}

// Submit completes req immediately: the result is computed and queued for
// the next Reap call, matching the real backends' asynchronous contract
// without actually deferring the work.
func (f *FakeDevice) Submit(req *Request) error {
	f.mu.Lock()
	if f.pending >= MaxEvents {
		f.mu.Unlock()
		return ErrQueueFull
	}
	f.pending++
	f.mu.Unlock()

	n, err := f.reader.ReadAt(req.Buffer[:req.Length], req.Offset)
	if err != nil && n == 0 {
		req.Result = -1
	} else {
		req.Result = int64(n)
	}

	f.mu.Lock()
	f.ready = append(f.ready, req)
	f.mu.Unlock()
	return nil
}

// Reap returns the oldest completed request, one per call, mirroring the
// kernel AIO backends' "at least one" completion contract without
// batching every ready result into a single call — this keeps fake-driven
// tests able to observe state between individual completions.
func (f *FakeDevice) Reap(ctx context.Context) ([]*Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(f.ready) == 0 {
		return nil, nil
	}
	req := f.ready[0]
	f.ready = f.ready[1:]
	f.pending--
	return []*Request{req}, nil
}

// Close is a no-op; FakeDevice holds no kernel resources.
func (f *FakeDevice) Close() error { return nil }

var _ Device = (*FakeDevice)(nil)
