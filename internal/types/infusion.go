// Package types contains the shared data types passed between the estimation
// core, the sensor drivers, and the outward-facing controllers.
package types

import "time"

// SystemState is the operator-visible state of the infusion monitor.
type SystemState int

const (
	StateInitializing SystemState = iota
	StateInitError
	StateFastConvergence
	StateNormal
	StateInfusionError
	StateCompleted
)

// String returns the human-readable state name.
func (s SystemState) String() string {
	switch s {
	case StateInitializing:
		return "Initializing"
	case StateInitError:
		return "Init Error"
	case StateFastConvergence:
		return "Fast Convergence"
	case StateNormal:
		return "Normal"
	case StateInfusionError:
		return "Infusion Error"
	case StateCompleted:
		return "Completed"
	default:
		return "Unknown"
	}
}

// WireName returns the uppercase, underscore-separated form used in the
// cloud upload payload and the WebSocket CSV feed.
func (s SystemState) WireName() string {
	switch s {
	case StateInitializing:
		return "INITIALIZING"
	case StateInitError:
		return "INIT_ERROR"
	case StateFastConvergence:
		return "FAST_CONVERGENCE"
	case StateNormal:
		return "NORMAL"
	case StateInfusionError:
		return "INFUSION_ERROR"
	case StateCompleted:
		return "COMPLETED"
	default:
		return "UNKNOWN"
	}
}

// LEDColor is the status color a collaborator LED driver should show for a
// given system state.
type LEDColor int

const (
	LEDOff LEDColor = iota
	LEDRed
	LEDGreen
	LEDBlue
	LEDYellow
	LEDWhite
)

// Snapshot is the read-only estimate bundle published by the core once per
// tick. Collaborators receive copies by value and sample at their own rate.
type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`

	// Weight channel
	RawWeightG     float32 `json:"raw_weight_g"`
	FiltWeightG    float32 `json:"filt_weight_g"`
	RawFlowWeight  float32 `json:"raw_flow_weight_gps"`
	FiltFlowWeight float32 `json:"filt_flow_weight_gps"`

	// Drip channel
	DropsThisTick uint32  `json:"drops_this_tick"`
	RawDripRate   float32 `json:"raw_drip_rate_dps"`
	FiltDripRate  float32 `json:"filt_drip_rate_dps"`
	RawFlowDrip   float32 `json:"raw_flow_drip_gps"`
	FiltFlowDrip  float32 `json:"filt_flow_drip_gps"`

	// Weight-per-drop calibration
	WPD            float32 `json:"wpd_gpd"`
	WPDCalibrating bool    `json:"wpd_calibrating"`
	RemainingDripG float32 `json:"remaining_drip_g"`

	// Fused estimates
	FusedFlowGps    float32 `json:"fused_flow_gps"`
	FusedRemainingG float32 `json:"fused_remaining_g"`

	// Remaining-time estimates in seconds. The fused value is canonical;
	// the four single-channel values are auxiliary.
	RemTimeRawWeightS  float32 `json:"rem_time_raw_weight_s"`
	RemTimeFiltWeightS float32 `json:"rem_time_filt_weight_s"`
	RemTimeRawDripS    float32 `json:"rem_time_raw_drip_s"`
	RemTimeFiltDripS   float32 `json:"rem_time_filt_drip_s"`
	RemTimeFusedS      float32 `json:"rem_time_fused_s"`

	TotalDrops      uint64  `json:"total_drops"`
	InitialWeightG  float32 `json:"initial_weight_g"`
	ProgressPercent float32 `json:"progress_percent"`
	TotalVolumeMl   float32 `json:"total_volume_ml"`

	State     SystemState `json:"state"`
	AutoClamp bool        `json:"auto_clamp"`
}

// FlowMlPerHour converts the fused flow rate to mL/h for display, given the
// configured liquid density in g/mL.
func (s Snapshot) FlowMlPerHour(density float32) float32 {
	if density <= 1e-6 {
		return 0
	}
	mlh := s.FusedFlowGps / density * 3600
	if mlh < 0 {
		return 0
	}
	return mlh
}

// MassSample is a raw load-cell reading handed to the core.
type MassSample struct {
	Grams     float32
	Timestamp time.Time
}

// ButtonKind identifies one of the two operator pushbuttons.
type ButtonKind int

const (
	ButtonInit ButtonKind = iota
	ButtonReset
)

// ButtonEvent distinguishes press styles. A long press on Reset is reserved
// for the clamp-motor toggle at the collaborator and is not consumed here.
type ButtonEvent int

const (
	ShortPress ButtonEvent = iota
	LongPress
)
