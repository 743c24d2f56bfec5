// Package sqlite stores snapshot telemetry in a local SQLite file, for
// deployments without a database server.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/Owen1B/fusionflow/internal/log"
	"github.com/Owen1B/fusionflow/internal/storage"
	"github.com/Owen1B/fusionflow/internal/types"
	_ "modernc.org/sqlite"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS infusion_snapshots (
	time TIMESTAMP NOT NULL,
	raw_weight_g REAL,
	filt_weight_g REAL,
	filt_flow_weight_gps REAL,
	filt_drip_rate_dps REAL,
	filt_flow_drip_gps REAL,
	wpd_gpd REAL,
	fused_flow_gps REAL,
	fused_remaining_g REAL,
	rem_time_fused_s REAL,
	total_drops INTEGER,
	progress_percent REAL,
	state TEXT,
	auto_clamp INTEGER
)`

const insertSQL = `
INSERT INTO infusion_snapshots (
	time, raw_weight_g, filt_weight_g, filt_flow_weight_gps,
	filt_drip_rate_dps, filt_flow_drip_gps, wpd_gpd, fused_flow_gps,
	fused_remaining_g, rem_time_fused_s, total_drops, progress_percent,
	state, auto_clamp
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Storage holds the configuration for a SQLite storage backend
type Storage struct {
	db *sql.DB
}

// New sets up a new SQLite snapshot sink and creates its table.
func New(path string) (*Storage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create snapshot table: %w", err)
	}
	return &Storage{db: db}, nil
}

// StartStorageEngine creates a goroutine loop to receive snapshots and
// write them to the SQLite file
func (s *Storage) StartStorageEngine(ctx context.Context, wg *sync.WaitGroup) chan<- types.Snapshot {
	log.Info("starting SQLite storage engine...")
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
			s.db.Close()
			return
		}
	}
}

// StoreSnapshot stores one snapshot row in the SQLite file
func (s *Storage) StoreSnapshot(snap types.Snapshot) error {
	row := storage.RowFromSnapshot(snap)
	_, err := s.db.Exec(insertSQL,
		row.Time, row.RawWeightG, row.FiltWeightG, row.FiltFlowWeight,
		row.FiltDripRate, row.FiltFlowDrip, row.WPD, row.FusedFlowGps,
		row.FusedRemainingG, row.RemTimeFusedS, row.TotalDrops,
		row.ProgressPercent, row.State, row.AutoClamp)
	return err
}
