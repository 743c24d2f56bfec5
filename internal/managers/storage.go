// Package managers wires configured sensors, storage sinks, and controllers
// to the estimation core.
package managers

import (
	"context"
	"fmt"
	"sync"

	"github.com/Owen1B/fusionflow/internal/storage"
	"github.com/Owen1B/fusionflow/internal/storage/postgres"
	"github.com/Owen1B/fusionflow/internal/storage/sqlite"
	"github.com/Owen1B/fusionflow/internal/types"
	"github.com/Owen1B/fusionflow/pkg/config"
)

// StorageManager holds our active storage backends
type StorageManager struct {
	Engines             []StorageEngine
	SnapshotDistributor chan types.Snapshot
}

// StorageEngine holds a backend storage engine's interface as well as
// a channel for passing snapshots to the engine
type StorageEngine struct {
	Engine storage.SnapshotEngineInterface
	C      chan<- types.Snapshot
}

// NewStorageManager creates a StorageManager object, populated with all
// configured snapshot sinks
func NewStorageManager(ctx context.Context, wg *sync.WaitGroup, cfg *config.ConfigData) (*StorageManager, error) {
	s := StorageManager{}

	// Initialize our channel for passing snapshots to the distributor
	s.SnapshotDistributor = make(chan types.Snapshot, 20)

	// Start our snapshot distributor to fan received snapshots out to the
	// storage backends
	go s.startSnapshotDistributor(ctx, wg)

	if cfg.Storage.SQLite != nil && cfg.Storage.SQLite.Path != "" {
		engine, err := sqlite.New(cfg.Storage.SQLite.Path)
		if err != nil {
			return &s, fmt.Errorf("could not add SQLite storage backend: %v", err)
		}
		s.Engines = append(s.Engines, StorageEngine{
			Engine: engine,
			C:      engine.StartStorageEngine(ctx, wg),
		})
	}

	if cfg.Storage.Postgres != nil && cfg.Storage.Postgres.ConnectionString != "" {
		engine, err := postgres.New(ctx, cfg.Storage.Postgres.ConnectionString)
		if err != nil {
			return &s, fmt.Errorf("could not add PostgreSQL storage backend: %v", err)
		}
		s.Engines = append(s.Engines, StorageEngine{
			Engine: engine,
			C:      engine.StartStorageEngine(ctx, wg),
		})
	}

	return &s, nil
}

// startSnapshotDistributor receives snapshots from the core and fans them
// out to the various storage backends
func (s *StorageManager) startSnapshotDistributor(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	defer wg.Done()

	for {
		select {
		case snap := <-s.SnapshotDistributor:
			for _, e := range s.Engines {
				select {
				case e.C <- snap:
				default:
					// A stalled sink must not block the tick pipeline.
				}
			}
		case <-ctx.Done():
			return
		}
	}
}
