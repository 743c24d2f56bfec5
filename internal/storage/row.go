package storage

import (
	"time"

	"github.com/Owen1B/fusionflow/internal/types"
)

// SnapshotRow is the persisted form of a core Snapshot.
type SnapshotRow struct {
	Time            time.Time `gorm:"column:time"`
	RawWeightG      float32   `gorm:"column:raw_weight_g"`
	FiltWeightG     float32   `gorm:"column:filt_weight_g"`
	FiltFlowWeight  float32   `gorm:"column:filt_flow_weight_gps"`
	FiltDripRate    float32   `gorm:"column:filt_drip_rate_dps"`
	FiltFlowDrip    float32   `gorm:"column:filt_flow_drip_gps"`
	WPD             float32   `gorm:"column:wpd_gpd"`
	FusedFlowGps    float32   `gorm:"column:fused_flow_gps"`
	FusedRemainingG float32   `gorm:"column:fused_remaining_g"`
	RemTimeFusedS   float32   `gorm:"column:rem_time_fused_s"`
	TotalDrops      uint64    `gorm:"column:total_drops"`
	ProgressPercent float32   `gorm:"column:progress_percent"`
	State           string    `gorm:"column:state"`
	AutoClamp       bool      `gorm:"column:auto_clamp"`
}

// TableName customizes the table name used by GORM.
func (SnapshotRow) TableName() string {
	return "infusion_snapshots"
}

// RowFromSnapshot flattens a Snapshot into its persisted form.
func RowFromSnapshot(s types.Snapshot) SnapshotRow {
	return SnapshotRow{
		Time:            s.Timestamp,
		RawWeightG:      s.RawWeightG,
		FiltWeightG:     s.FiltWeightG,
		FiltFlowWeight:  s.FiltFlowWeight,
		FiltDripRate:    s.FiltDripRate,
		FiltFlowDrip:    s.FiltFlowDrip,
		WPD:             s.WPD,
		FusedFlowGps:    s.FusedFlowGps,
		FusedRemainingG: s.FusedRemainingG,
		RemTimeFusedS:   s.RemTimeFusedS,
		TotalDrops:      s.TotalDrops,
		ProgressPercent: s.ProgressPercent,
		State:           s.State.WireName(),
		AutoClamp:       s.AutoClamp,
	}
}
