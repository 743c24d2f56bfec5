package core

import (
	"testing"
	"time"

	"github.com/Owen1B/fusionflow/internal/types"
)

func TestCommandGrammar(t *testing.T) {
	h := newHarness(t)
	h.start(500)

	tests := []struct {
		cmd  string
		want string
	}{
		{"CALIBRATE_WPD_START", "CMD_ACK:WPD_LONG_CALIBRATION_STARTED"},
		{"CALIBRATE_WPD_START", "EVENT:WPD_CALIBRATION_ALREADY_RUNNING"},
		{"CALIBRATE_WPD_STOP", "CMD_ACK:WPD_CALIBRATION_STOPPED_MANUALLY"},
		{"CALIBRATE_WPD_STOP", "EVENT:WPD_CALIBRATION_NOT_RUNNING"},
		{"SET_TOTAL_VOLUME:250", "CMD_ACK:TOTAL_VOLUME_SET"},
		{"SET_TOTAL_VOLUME:-5", "CMD_UNKNOWN"},
		{"SET_TOTAL_VOLUME:abc", "CMD_UNKNOWN"},
		{"OPEN_THE_POD_BAY_DOORS", "CMD_UNKNOWN"},
	}

	for _, tt := range tests {
		if got := h.core.OnCommand(tt.cmd); got != tt.want {
			t.Errorf("OnCommand(%q) = %q, want %q", tt.cmd, got, tt.want)
		}
	}

	h.drainEvents()
	if h.eventCount(types.EventInvalidCommand) != 3 {
		t.Errorf("invalid command events = %d, want 3", h.eventCount(types.EventInvalidCommand))
	}

	h.feedLiquid(500)
	if snap := h.tick(); snap.TotalVolumeMl != 250 {
		t.Errorf("total volume = %v, want 250 from SET_TOTAL_VOLUME", snap.TotalVolumeMl)
	}
}

func TestTotalVolumeDerivedOnReinit(t *testing.T) {
	h := newHarness(t)
	h.start(450)

	h.feedLiquid(450)
	if snap := h.tick(); snap.TotalVolumeMl != 500 {
		t.Errorf("total volume = %v, want 450 g rounded up to 500 mL", snap.TotalVolumeMl)
	}
}

func TestLongCalibrationCompletes(t *testing.T) {
	h := newHarness(t)
	h.start(500)
	h.runConstantDrip(61, 500, 0.1, 500*time.Millisecond) // reach Normal

	if got := h.core.OnCommand("CALIBRATE_WPD_START"); got != "CMD_ACK:WPD_LONG_CALIBRATION_STARTED" {
		t.Fatalf("unexpected ack %q", got)
	}

	// 61 s at 2 drops/s satisfies both the duration and drop thresholds.
	h.runConstantDrip(61, 494, 0.1, 500*time.Millisecond)

	if h.eventCount(types.EventWpdCalibrationCompleted) != 1 {
		t.Fatalf("calibration completed events = %d, want 1", h.eventCount(types.EventWpdCalibrationCompleted))
	}
	for _, ev := range h.events {
		if ev.Kind == types.EventWpdCalibrationCompleted {
			if ev.Drops < 30 {
				t.Errorf("completion reported %d drops, want >= 30", ev.Drops)
			}
			if ev.DurationS < 60 {
				t.Errorf("completion reported %.1f s, want >= 60", ev.DurationS)
			}
			if ev.WPD < 0.04 || ev.WPD > 0.06 {
				t.Errorf("completion reported WPD %v outside the physical clamp", ev.WPD)
			}
		}
	}

	if snap := h.core.Snapshot(); snap.WPDCalibrating {
		t.Error("calibration should be inactive after auto-completion")
	}
}

func TestLongCalibrationLowDropsNotice(t *testing.T) {
	h := newHarness(t)
	h.start(500)
	h.runConstantDrip(61, 500, 0.1, 500*time.Millisecond) // reach Normal

	h.core.OnCommand("CALIBRATE_WPD_START")

	// The window elapses with no drops at all.
	for i := 0; i < 70; i++ {
		h.feedLiquid(494)
		h.tick()
	}

	if h.eventCount(types.EventWpdCalibrationTimedOutLowDrops) != 1 {
		t.Errorf("low-drops notices = %d, want exactly 1", h.eventCount(types.EventWpdCalibrationTimedOutLowDrops))
	}
	if h.eventCount(types.EventWpdCalibrationCompleted) != 0 {
		t.Error("calibration must not complete without the drop quota")
	}
}

func TestResetClearsInfusionError(t *testing.T) {
	h := newHarness(t)
	h.start(500)
	h.runConstantDrip(61, 500, 0.1, 500*time.Millisecond)

	// Starve the drop detector until the stall fires.
	for i := 0; i < 25 && h.core.State() != types.StateInfusionError; i++ {
		h.feedLiquid(494)
		h.tick()
	}
	if h.core.State() != types.StateInfusionError {
		t.Fatalf("state = %v, want InfusionError", h.core.State())
	}

	h.core.OnButton(types.ButtonReset, types.ShortPress)
	h.drainEvents()
	if h.core.State() != types.StateNormal {
		t.Fatalf("state after reset = %v, want Normal", h.core.State())
	}
	if h.core.Snapshot().AutoClamp {
		// The published snapshot refreshes on the next tick.
		h.feedLiquid(494)
		if snap := h.tick(); snap.AutoClamp {
			t.Error("auto clamp still engaged after reset")
		}
	}
	if h.eventCount(types.EventInfusionAbnormalityCleared) != 1 {
		t.Errorf("abnormality cleared events = %d, want 1", h.eventCount(types.EventInfusionAbnormalityCleared))
	}
}

// A long press on Reset is reserved for the clamp motor collaborator and
// must not disturb the state machine.
func TestResetLongPressIgnored(t *testing.T) {
	h := newHarness(t)
	h.start(500)

	h.core.OnButton(types.ButtonReset, types.LongPress)
	if h.core.State() != types.StateFastConvergence {
		t.Errorf("state = %v after long press, want unchanged", h.core.State())
	}
}

func TestLEDColorPerState(t *testing.T) {
	h := newHarness(t)
	if h.core.LEDColor() != types.LEDYellow {
		t.Errorf("Initializing LED = %v, want yellow", h.core.LEDColor())
	}

	h.start(500)
	if h.core.LEDColor() != types.LEDBlue {
		t.Errorf("FastConvergence LED = %v, want blue", h.core.LEDColor())
	}

	h.runConstantDrip(61, 500, 0.1, 500*time.Millisecond)
	if h.core.LEDColor() != types.LEDGreen {
		t.Errorf("Normal LED = %v, want green", h.core.LEDColor())
	}
}
