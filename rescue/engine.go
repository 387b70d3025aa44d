package rescue

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/behrlich/ddgorescue/internal/aio"
	"github.com/behrlich/ddgorescue/internal/constants"
	"github.com/behrlich/ddgorescue/internal/destfile"
	"github.com/behrlich/ddgorescue/internal/logging"
	"github.com/behrlich/ddgorescue/mapfile"
)

// Geometry describes the alignment constraints of the source device.
type Geometry struct {
	SectorSize        uint32
	PhysicalBlockSize uint32
	SizeBytes         uint64
}

// Observer receives engine-level metrics; satisfied by ddgorescue.Observer.
type Observer interface {
	ObserveRead(bytes uint64, latencyNs uint64, success bool)
	ObserveRescuedWrite(bytes uint64)
	ObserveQueueDepth(depth uint32)
}

type noOpObserver struct{}

func (noOpObserver) ObserveRead(uint64, uint64, bool) {}
func (noOpObserver) ObserveRescuedWrite(uint64)       {}
func (noOpObserver) ObserveQueueDepth(uint32)         {}

// Config configures a new Engine.
type Config struct {
	MapFile  *mapfile.MapFile
	MapPath  string // where WriteAtomic persists MapFile; empty disables map persistence
	Dest     *destfile.File
	AIO      aio.Device
	Pool     *aio.BufferPool
	Geometry Geometry

	Logger       *logging.Logger
	Observer     Observer
	SyncInterval time.Duration
	BatchSize    int

	// Shutdown is polled at every loop boundary; when set, the engine
	// finishes in-flight requests, syncs once, and returns. Callers own
	// setting it (normally the signal collaborator in cmd/ddgorescue).
	Shutdown *atomic.Bool
}

// Engine is the phase/pass scheduler described in spec.md §4.4: it walks
// sector states recorded in the map file, dispatches aligned asynchronous
// reads against the source with bounded concurrency, applies completions
// to the destination image and the map, and periodically persists state.
//
// Ported in shape from the teacher's internal/queue/runner.go Runner: a
// Config-constructed driver with a single main loop, stopped through the
// Config.Shutdown flag, generalized from ublk's FETCH/COMMIT state machine to this
// domain's submit/reap read loop.
type Engine struct {
	mapFile  *mapfile.MapFile
	mapPath  string
	dest     *destfile.File
	aioDev   aio.Device
	pool     *aio.BufferPool
	geometry Geometry

	logger       *logging.Logger
	observer     Observer
	syncInterval time.Duration
	batchSize    int
	shutdown     *atomic.Bool

	lastSync    time.Time
	lastSuccess time.Time
	nextTag     uint64
}

// NewEngine fills in defaults for unset optional fields of cfg and returns
// an Engine ready to Run. It does not validate the required fields.
func NewEngine(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	observer := cfg.Observer
	if observer == nil {
		observer = noOpObserver{}
	}
	syncInterval := cfg.SyncInterval
	if syncInterval <= 0 {
		syncInterval = constants.SyncInterval
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = constants.ReadBatchSize
	}
	shutdown := cfg.Shutdown
	if shutdown == nil {
		shutdown = &atomic.Bool{}
	}

	return &Engine{
		mapFile:      cfg.MapFile,
		mapPath:      cfg.MapPath,
		dest:         cfg.Dest,
		aioDev:       cfg.AIO,
		pool:         cfg.Pool,
		geometry:     cfg.Geometry,
		logger:       logger,
		observer:     observer,
		syncInterval: syncInterval,
		batchSize:    batchSize,
		shutdown:     shutdown,
		lastSync:     time.Now(),
	}
}

// Run drives phases Copying -> Trimming -> Scraping -> Retrying ->
// Finished to completion, or until the shutdown flag is observed.
func (e *Engine) Run(ctx context.Context) error {
	phase := e.mapFile.Phase()
	for phase != mapfile.Finished {
		if e.shutdown.Load() {
			return e.sync()
		}

		target, ok := phase.Target()
		if !ok {
			break
		}

		if err := e.doPhase(ctx, phase, target); err != nil {
			return err
		}
		if e.shutdown.Load() {
			return e.sync()
		}

		next, hasNext := phase.Next()
		if !hasNext {
			break
		}
		e.mapFile.SetPhase(next)
		e.mapFile.SetPos(0)
		e.mapFile.SetPass(1)
		phase = next
		e.logger.Info("phase transition", "phase", phase.String())
	}
	e.mapFile.SetPhase(mapfile.Finished)
	return e.sync()
}

// doPhase runs passes of phase until its target state's histogram bucket
// is empty, a full pass from offset 0 leaves that bucket unchanged (as in
// Retrying over blocks that still fail), or shutdown is requested.
func (e *Engine) doPhase(ctx context.Context, phase mapfile.Phase, target mapfile.SectorState) error {
	for {
		if e.shutdown.Load() {
			return nil
		}
		remaining := e.mapFile.Histogram()[target]
		if remaining == 0 {
			return nil
		}
		startPos := e.mapFile.Pos()

		completed, err := e.doPass(ctx, target)
		if err != nil {
			return err
		}
		if e.shutdown.Load() {
			return nil
		}
		if completed {
			if startPos == 0 && e.mapFile.Histogram()[target] == remaining {
				return nil
			}
			e.mapFile.SetPos(0)
			e.mapFile.SetPass(e.mapFile.Pass() + 1)
		}
	}
}

// doPass performs one sweep over [pos, size) for target, submitting reads
// with bounded concurrency and draining completions. Returns true if the
// pass ran to completion (the work queue emptied) rather than being cut
// short by shutdown.
func (e *Engine) doPass(ctx context.Context, target mapfile.SectorState) (bool, error) {
	size := e.geometry.SizeBytes
	var queue []ReadUnit

	refill := func() {
		if len(queue) > 0 {
			return
		}
		for _, run := range e.mapFile.IterRange(e.mapFile.Pos(), size) {
			if run.Tag != target {
				continue
			}
			reads := SplitReads(run.Start, run.End(), e.geometry.SectorSize, e.geometry.PhysicalBlockSize, size)
			queue = append(queue, reads...)
			if len(queue) >= e.batchSize {
				break
			}
		}
		if len(queue) > e.batchSize {
			queue = queue[:e.batchSize]
		}
	}

	refill()
	if len(queue) == 0 {
		return true, nil
	}

	for len(queue) > 0 || e.aioDev.RequestsPending() > 0 {
		if e.shutdown.Load() {
			e.drainAll(ctx)
			return false, nil
		}

		if len(queue) > 0 && e.aioDev.RequestsAvail() > 0 {
			read := queue[0]
			queue = queue[1:]

			buf, err := e.pool.Get(int(read.Length))
			if err != nil {
				return false, err
			}
			req := &aio.Request{Offset: int64(read.Offset), Length: int(read.Length), Buffer: buf, Tag: e.nextTag}
			e.nextTag++

			if err := e.aioDev.Submit(req); err != nil {
				e.pool.Put(buf)
				return false, err
			}
			if pos := read.End(); pos > e.mapFile.Pos() {
				e.mapFile.SetPos(pos)
			}
		} else {
			if err := e.reapOne(ctx); err != nil {
				return false, err
			}
		}

		if time.Since(e.lastSync) >= e.syncInterval {
			if err := e.sync(); err != nil {
				return false, err
			}
		}

		if len(queue) == 0 {
			refill()
		}
	}

	e.drainAll(ctx)
	return true, e.sync()
}

// drainAll reaps every remaining in-flight request without submitting
// more work, used on shutdown and at the end of a completed pass.
func (e *Engine) drainAll(ctx context.Context) {
	for e.aioDev.RequestsPending() > 0 {
		if err := e.reapOne(ctx); err != nil {
			e.logger.Warn("drain reap failed", "error", err.Error())
			return
		}
	}
}

// reapOne waits for one completion and applies it. The backends retry
// EINTR themselves; a Reap error while ctx is cancelled is swallowed so the
// pass loop re-enters, and any other Reap error is returned.
func (e *Engine) reapOne(ctx context.Context) error {
	completions, err := e.aioDev.Reap(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	for _, req := range completions {
		e.applyCompletion(req)
	}
	return nil
}

// applyCompletion implements spec.md §4.4's apply-completion logic: a
// positive result is written (unless all-zero, preserving sparseness)
// and tagged Rescued; a non-positive result tags the whole request Bad.
func (e *Engine) applyCompletion(req *aio.Request) {
	defer e.pool.Put(req.Buffer)

	offset := uint64(req.Offset)
	if req.Succeeded() {
		n := uint64(req.Result)
		data := req.Buffer[:n]
		if err := e.dest.WriteAt(req.Offset, data); err != nil {
			e.logger.Error("write rescued bytes failed", "offset", offset, "error", err.Error())
		}
		e.mapFile.Put(offset, offset+n, mapfile.Rescued)
		e.lastSuccess = time.Now()
		for _, b := range data {
			if b != 0 {
				e.observer.ObserveRescuedWrite(n)
				break
			}
		}
		e.observer.ObserveRead(n, 0, true)
	} else {
		e.mapFile.Put(offset, offset+uint64(req.Length), mapfile.Bad)
		e.observer.ObserveRead(uint64(req.Length), 0, false)
	}
	e.observer.ObserveQueueDepth(uint32(e.aioDev.RequestsPending()))
}

// sync flushes the destination file and atomically rewrites the map
// file, per spec.md §4.4's sync point.
func (e *Engine) sync() error {
	if e.dest != nil {
		if err := e.dest.Sync(); err != nil {
			return err
		}
	}
	if e.mapPath != "" {
		if err := e.mapFile.WriteAtomic(e.mapPath); err != nil {
			return err
		}
	}
	e.lastSync = time.Now()
	return nil
}

// LastSuccess returns the wall-clock time of the most recent successful
// read, or the zero time if none has occurred yet.
func (e *Engine) LastSuccess() time.Time {
	return e.lastSuccess
}
