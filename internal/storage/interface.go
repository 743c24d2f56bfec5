// Package storage defines interfaces and implementations for snapshot
// telemetry sinks. Filter state is never persisted; sinks record the
// published Snapshot stream for later review.
package storage

import (
	"context"
	"sync"

	"github.com/Owen1B/fusionflow/internal/types"
)

// SnapshotEngineInterface is an interface that provides a few standardized
// methods for various storage backends
type SnapshotEngineInterface interface {
	StartStorageEngine(context.Context, *sync.WaitGroup) chan<- types.Snapshot
}
