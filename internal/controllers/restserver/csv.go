package restserver

import (
	"fmt"

	"github.com/Owen1B/fusionflow/internal/types"
)

// snapshotCSV encodes a snapshot as the fixed-order 26-field CSV line the
// dashboard consumes. The column order is a wire contract; do not reorder.
//
//	 0 timestamp_ms        1 raw_weight_g         2 filt_weight_g
//	 3 raw_flow_weight_gps 4 filt_flow_weight_gps 5 drops_this_tick
//	 6 raw_drip_rate_dps   7 filt_drip_rate_dps   8 raw_flow_drip_gps
//	 9 filt_flow_drip_gps 10 wpd_gpd             11 wpd_calibrating
//	12 remaining_drip_g   13 fused_flow_gps      14 fused_remaining_g
//	15 rem_t_raw_weight_s 16 rem_t_filt_weight_s 17 rem_t_raw_drip_s
//	18 rem_t_filt_drip_s  19 rem_t_fused_s       20 total_drops
//	21 initial_weight_g   22 progress_percent    23 total_volume_ml
//	24 state              25 auto_clamp
func snapshotCSV(s types.Snapshot) string {
	boolBit := func(b bool) int {
		if b {
			return 1
		}
		return 0
	}

	return fmt.Sprintf(
		"%d,%.2f,%.2f,%.4f,%.4f,%d,%.2f,%.2f,%.4f,%.4f,%.4f,%d,%.2f,%.4f,%.2f,%.0f,%.0f,%.0f,%.0f,%.0f,%d,%.2f,%.1f,%.0f,%s,%d",
		s.Timestamp.UnixMilli(),
		s.RawWeightG,
		s.FiltWeightG,
		s.RawFlowWeight,
		s.FiltFlowWeight,
		s.DropsThisTick,
		s.RawDripRate,
		s.FiltDripRate,
		s.RawFlowDrip,
		s.FiltFlowDrip,
		s.WPD,
		boolBit(s.WPDCalibrating),
		s.RemainingDripG,
		s.FusedFlowGps,
		s.FusedRemainingG,
		s.RemTimeRawWeightS,
		s.RemTimeFiltWeightS,
		s.RemTimeRawDripS,
		s.RemTimeFiltDripS,
		s.RemTimeFusedS,
		s.TotalDrops,
		s.InitialWeightG,
		s.ProgressPercent,
		s.TotalVolumeMl,
		s.State.WireName(),
		boolBit(s.AutoClamp),
	)
}
