// Package constants holds the tunable defaults shared across ddgorescue's
// core packages.
package constants

import "time"

// Scheduling constants (spec.md §4.4, §5)
const (
	// MaxEvents bounds the number of reads the AIO layer keeps in flight.
	MaxEvents = 32

	// ReadBatchSize is the number of reads queued per work-queue refill.
	ReadBatchSize = 128

	// SyncInterval is the maximum wall-clock time between persistent syncs.
	SyncInterval = 300 * time.Second

	// StatusRefreshInterval bounds how often the status line is redrawn.
	StatusRefreshInterval = 500 * time.Millisecond
)

// Map file constants (spec.md §4.2, §6)
const (
	// MapTempSuffix is appended to the map file path during atomic writes.
	MapTempSuffix = ".ddarescue-tmp"

	// DefaultSectorSize is used when a device cannot report its own.
	DefaultSectorSize = 512
)
