package ddgorescue

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/behrlich/ddgorescue/internal/aio"
	"github.com/behrlich/ddgorescue/internal/destfile"
	"github.com/behrlich/ddgorescue/internal/device"
	"github.com/behrlich/ddgorescue/internal/logging"
	"github.com/behrlich/ddgorescue/mapfile"
	"github.com/behrlich/ddgorescue/rescue"
)

// Config configures a new Session. Source, Dest and MapPath are required;
// everything else has a sensible default.
type Config struct {
	// Source is the path to the device or file being rescued.
	Source string

	// Dest is the path to the destination image. Created (and sparsely
	// sized to the source's length) if it doesn't exist.
	Dest string

	// MapPath is the path to the persistent map file. Loaded if it
	// already exists (resuming a prior session), created fresh
	// otherwise.
	MapPath string

	SyncInterval time.Duration // default constants.SyncInterval
	BatchSize    int           // default constants.ReadBatchSize

	Logger   *logging.Logger // default logging.Default()
	Observer Observer        // default NewMetricsObserver(NewMetrics())
}

// Session wires a source device, a destination image, a map file and the
// AIO submission layer into one rescue.Engine and owns their lifecycle.
//
// Adapted from the teacher's Device/CreateAndServe facade: CreateAndServe
// opened a control-plane device and spun up queue.Runners bound to it;
// NewSession opens the source device and destination image and builds one
// rescue.Engine bound to them, generalizing the "wire collaborators, hand
// back a Run-able handle" shape from ublk device management to disk
// rescue.
type Session struct {
	src  *device.Device
	dest *destfile.File
	aio  aio.Device
	pool *aio.BufferPool

	mapFile *mapfile.MapFile
	mapPath string
	engine  *rescue.Engine

	metrics   *Metrics
	shutdown  *atomic.Bool
	startedAt time.Time
}

// NewSession opens the source device, opens or creates the destination
// image, loads or creates the map file, and builds the engine that will
// drive the rescue. It does not start I/O; call Run for that.
func NewSession(cfg Config) (*Session, error) {
	if cfg.Source == "" || cfg.Dest == "" || cfg.MapPath == "" {
		return nil, NewError("new session", ErrCodeDeviceOpen, "source, dest and map path are all required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	src, err := device.Open(cfg.Source)
	if err != nil {
		return nil, WrapError("open source", err)
	}
	geom := src.Geometry()

	dest, err := destfile.Open(cfg.Dest, geom.SizeBytes)
	if err != nil {
		src.Close()
		return nil, WrapError("open destination", err)
	}

	mf, err := loadOrCreateMapFile(cfg.MapPath, geom.SizeBytes)
	if err != nil {
		src.Close()
		dest.Close()
		return nil, err
	}

	aioDev, err := aio.New(src.Fd())
	if err != nil {
		src.Close()
		dest.Close()
		return nil, WrapError("open aio backend", err)
	}

	pool := aio.NewBufferPool(int(geom.SectorSize))

	metrics := NewMetrics()
	observer := cfg.Observer
	if observer == nil {
		observer = NewMetricsObserver(metrics)
	}

	shutdown := &atomic.Bool{}
	engine := rescue.NewEngine(rescue.Config{
		MapFile: mf,
		MapPath: cfg.MapPath,
		Dest:    dest,
		AIO:     aioDev,
		Pool:    pool,
		Geometry: rescue.Geometry{
			SectorSize:        geom.SectorSize,
			PhysicalBlockSize: geom.PhysicalBlockSize,
			SizeBytes:         geom.SizeBytes,
		},
		Logger:       logger,
		Observer:     observer,
		SyncInterval: cfg.SyncInterval,
		BatchSize:    cfg.BatchSize,
		Shutdown:     shutdown,
	})

	return &Session{
		src:       src,
		dest:      dest,
		aio:       aioDev,
		pool:      pool,
		mapFile:   mf,
		mapPath:   cfg.MapPath,
		engine:    engine,
		metrics:   metrics,
		shutdown:  shutdown,
		startedAt: time.Now(),
	}, nil
}

// loadOrCreateMapFile resumes a prior session's map file if one exists at
// path, verifying it matches the source's current size, or creates a
// fresh one tagged entirely Untried.
func loadOrCreateMapFile(path string, sizeBytes uint64) (*mapfile.MapFile, error) {
	mf, err := mapfile.LoadPath(path)
	if err != nil {
		if os.IsNotExist(err) {
			return mapfile.New(sizeBytes), nil
		}
		return nil, WrapError("load map file", err)
	}
	if mf.SizeBytes() != sizeBytes {
		return nil, &Error{
			Op:     "load map file",
			Offset: -1,
			Code:   ErrCodeSizeMismatch,
			Msg:    fmt.Sprintf("map file covers %d bytes, source is %d bytes", mf.SizeBytes(), sizeBytes),
		}
	}
	return mf, nil
}

// Run drives the rescue to completion or until Stop is called or ctx is
// cancelled. It syncs the destination and map file once more before
// returning in either case.
func (s *Session) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.shutdown.Store(true)
	}()
	return s.engine.Run(ctx)
}

// Stop requests the engine finish its in-flight requests, sync once, and
// return from Run. It does not block until Run actually returns.
func (s *Session) Stop() {
	s.shutdown.Store(true)
}

// MapFile returns the session's map file, for status reporting.
func (s *Session) MapFile() *mapfile.MapFile {
	return s.mapFile
}

// Metrics returns the session's metrics, or nil if a custom Observer was
// supplied in Config and metrics were never wired.
func (s *Session) Metrics() *Metrics {
	return s.metrics
}

// LastSuccess returns the wall-clock time of the most recent successful
// read, or the zero time if none has occurred yet this session.
func (s *Session) LastSuccess() time.Time {
	return s.engine.LastSuccess()
}

// Elapsed returns how long the session has been running.
func (s *Session) Elapsed() time.Duration {
	return time.Since(s.startedAt)
}

// Close releases the source device, destination image, and AIO backend.
// It does not sync; call Stop and let Run return first.
func (s *Session) Close() error {
	var firstErr error
	if err := s.aio.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.dest.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.src.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
