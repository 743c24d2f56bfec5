// Package postgres stores snapshot telemetry in a PostgreSQL (optionally
// TimescaleDB) database through GORM.
package postgres

import (
	"context"
	"sync"

	"github.com/Owen1B/fusionflow/internal/log"
	"github.com/Owen1B/fusionflow/internal/storage"
	"github.com/Owen1B/fusionflow/internal/types"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Storage holds the configuration for a PostgreSQL storage backend
type Storage struct {
	db *gorm.DB
}

// New sets up a new PostgreSQL snapshot sink and creates its table.
func New(ctx context.Context, connectionString string) (*Storage, error) {
	log.Info("connecting to PostgreSQL...")
	db, err := gorm.Open(postgres.Open(connectionString), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		log.Warn("warning: unable to create a PostgreSQL connection:", err)
		return nil, err
	}

	if err := db.WithContext(ctx).AutoMigrate(&storage.SnapshotRow{}); err != nil {
		log.Warn("warning: could not create snapshot table in database")
		return nil, err
	}

	return &Storage{db: db}, nil
}

// StartStorageEngine creates a goroutine loop to receive snapshots and send
// them off to PostgreSQL
func (s *Storage) StartStorageEngine(ctx context.Context, wg *sync.WaitGroup) chan<- types.Snapshot {
	log.Info("starting PostgreSQL storage engine...")
	snapshotChan := make(chan types.Snapshot, 10)
	go s.processSnapshots(ctx, wg, snapshotChan)
	return snapshotChan
}

func (s *Storage) processSnapshots(ctx context.Context, wg *sync.WaitGroup, ch <-chan types.Snapshot) {
	wg.Add(1)
	defer wg.Done()

	for {
		select {
		case snap := <-ch:
			if err := s.StoreSnapshot(snap); err != nil {
				log.Error("could not store snapshot:", err)
			}
		case <-ctx.Done():
			log.Info("cancellation request received, cancelling snapshot processor")
			return
		}
	}
}

// StoreSnapshot stores one snapshot row in PostgreSQL
func (s *Storage) StoreSnapshot(snap types.Snapshot) error {
	row := storage.RowFromSnapshot(snap)
	return s.db.Create(&row).Error
}
