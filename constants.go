package ddgorescue

import "github.com/behrlich/ddgorescue/internal/constants"

// Re-exported tunables, for callers that want the defaults without
// importing the internal package directly.
const (
	DefaultSyncInterval   = constants.SyncInterval
	DefaultBatchSize      = constants.ReadBatchSize
	DefaultMaxEvents      = constants.MaxEvents
	StatusRefreshInterval = constants.StatusRefreshInterval
)
