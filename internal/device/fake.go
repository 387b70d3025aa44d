package device

import (
	"fmt"
	"sync"

	"github.com/behrlich/ddgorescue/tagrange"
)

// FakeShardSize is the shard size of the teacher's sharded in-memory
// backend. Fake itself is not sharded and does not use it: a single lock
// guards its whole backing store.
const FakeShardSize = 64 * 1024

// Fake is an in-memory source device for tests. It behaves like a real
// Device for ReadAt purposes, but byte ranges can be marked as failing so
// scenario tests can exercise Bad-tagging without real hardware.
//
// Adapted from backend/mem.go's sharded Memory backend.
type Fake struct {
	mu       sync.RWMutex
	data     []byte
	geometry Geometry
	failing  *tagrange.Map[bool]
	reads    []FakeRead // recorded for assertions
}

// FakeRead records one ReadAt call for test assertions.
type FakeRead struct {
	Offset int64
	Length int
}

// NewFake returns a Fake device of the given size with the given geometry.
func NewFake(size int64, sectorSize, physicalBlockSize uint32) *Fake {
	return &Fake{
		data: make([]byte, size),
		geometry: Geometry{
			SectorSize:        sectorSize,
			PhysicalBlockSize: physicalBlockSize,
			SizeBytes:         uint64(size),
		},
		failing: tagrange.New[bool](),
	}
}

// Geometry returns the fake's configured geometry.
func (f *Fake) Geometry() Geometry { return f.geometry }

// SetContent copies data into the device backing store starting at offset,
// for tests that need to assert on rescued bytes.
func (f *Fake) SetContent(offset int64, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copy(f.data[offset:], data)
}

// FailRange marks [lo, hi) as failing: ReadAt calls wholly or partly inside
// this range return an error instead of data.
func (f *Fake) FailRange(lo, hi uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing.Put(lo, hi, true)
}

// ClearFailures removes all injected failures.
func (f *Fake) ClearFailures() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = tagrange.New[bool]()
}

// ReadAt implements io.ReaderAt, failing any read that overlaps an injected
// failure range.
func (f *Fake) ReadAt(p []byte, off int64) (int, error) {
	f.mu.Lock()
	f.reads = append(f.reads, FakeRead{Offset: off, Length: len(p)})
	f.mu.Unlock()

	f.mu.RLock()
	defer f.mu.RUnlock()

	end := uint64(off) + uint64(len(p))
	for _, r := range f.failing.IterRange(uint64(off), end) {
		if r.Tag {
			return 0, fmt.Errorf("device: injected read failure at offset %d", r.Start)
		}
	}
	if off >= int64(len(f.data)) {
		return 0, fmt.Errorf("device: read past end of device at offset %d", off)
	}
	n := copy(p, f.data[off:])
	return n, nil
}

// Reads returns every ReadAt call recorded so far, for test assertions.
func (f *Fake) Reads() []FakeRead {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]FakeRead, len(f.reads))
	copy(out, f.reads)
	return out
}
