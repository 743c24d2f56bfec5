package cloudupload

import (
	"testing"

	"github.com/Owen1B/fusionflow/internal/types"
)

func TestPayloadFromSnapshot(t *testing.T) {
	snap := types.Snapshot{
		TotalVolumeMl:   500,
		FusedRemainingG: 412.7,
		FiltDripRate:    2.01, // 120.6 drops/min
		RemTimeFusedS:   4130, // 68.8 min
		State:           types.StateNormal,
		AutoClamp:       false,
	}

	p := payloadFromSnapshot(snap, "ward-7-pump-3", 1.0)

	if p.DeviceID != "ward-7-pump-3" {
		t.Errorf("deviceId = %q", p.DeviceID)
	}
	if p.TotalVolume != 500 {
		t.Errorf("totalVolume = %d, want 500", p.TotalVolume)
	}
	if p.RemainingVolume != 412 {
		t.Errorf("remainingVolume = %d, want 412", p.RemainingVolume)
	}
	if p.CurrentRate != 121 {
		t.Errorf("currentRate = %d, want drip rate * 60 rounded = 121", p.CurrentRate)
	}
	if p.EstimatedTime != 69 {
		t.Errorf("estimatedTime = %d, want ceil(4130/60) = 69", p.EstimatedTime)
	}
	if p.SystemState != "NORMAL" {
		t.Errorf("systemState = %q, want NORMAL", p.SystemState)
	}
	if p.AutoClamp != 0 {
		t.Errorf("autoClamp = %d, want 0", p.AutoClamp)
	}
}

func TestPayloadClampAndErrorState(t *testing.T) {
	snap := types.Snapshot{
		State:     types.StateInfusionError,
		AutoClamp: true,
	}

	p := payloadFromSnapshot(snap, "dev", 1.0)
	if p.SystemState != "INFUSION_ERROR" || p.AutoClamp != 1 {
		t.Errorf("payload = %+v, want INFUSION_ERROR with autoClamp 1", p)
	}
	if p.EstimatedTime != 0 {
		t.Errorf("estimatedTime = %d with zero remaining time, want 0", p.EstimatedTime)
	}
}

func TestPayloadDegenerateDensity(t *testing.T) {
	snap := types.Snapshot{FusedRemainingG: 100}
	p := payloadFromSnapshot(snap, "dev", 0)
	if p.RemainingVolume != 100 {
		t.Errorf("remainingVolume = %d with degenerate density, want fallback to 1.0 g/mL", p.RemainingVolume)
	}
}
