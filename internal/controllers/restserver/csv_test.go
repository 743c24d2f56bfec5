package restserver

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/Owen1B/fusionflow/internal/types"
)

func testSnapshot() types.Snapshot {
	return types.Snapshot{
		Timestamp:          time.UnixMilli(1_700_000_000_000),
		RawWeightG:         487.25,
		FiltWeightG:        487.10,
		RawFlowWeight:      0.1234,
		FiltFlowWeight:     0.1001,
		DropsThisTick:      2,
		RawDripRate:        2.05,
		FiltDripRate:       2.01,
		RawFlowDrip:        0.1025,
		FiltFlowDrip:       0.1005,
		WPD:                0.0501,
		WPDCalibrating:     true,
		RemainingDripG:     412.5,
		FusedFlowGps:       0.1002,
		FusedRemainingG:    413.2,
		RemTimeRawWeightS:  3900,
		RemTimeFiltWeightS: 4100,
		RemTimeRawDripS:    4000,
		RemTimeFiltDripS:   4050,
		RemTimeFusedS:      4120,
		TotalDrops:         1748,
		InitialWeightG:     500,
		ProgressPercent:    17.4,
		TotalVolumeMl:      500,
		State:              types.StateNormal,
		AutoClamp:          false,
	}
}

// The dashboard depends on the exact column order; this is a wire contract.
func TestSnapshotCSVColumnOrder(t *testing.T) {
	fields := strings.Split(snapshotCSV(testSnapshot()), ",")
	if len(fields) != 26 {
		t.Fatalf("CSV has %d fields, want 26", len(fields))
	}

	want := map[int]string{
		0:  "1700000000000",
		1:  "487.25",
		2:  "487.10",
		5:  "2",
		10: "0.0501",
		11: "1",
		14: "413.20",
		19: "4120",
		20: "1748",
		23: "500",
		24: "NORMAL",
		25: "0",
	}
	for idx, expected := range want {
		if fields[idx] != expected {
			t.Errorf("field %d = %q, want %q", idx, fields[idx], expected)
		}
	}
}

func TestSnapshotCSVBooleanBits(t *testing.T) {
	s := testSnapshot()
	s.WPDCalibrating = false
	s.AutoClamp = true
	s.State = types.StateInfusionError

	fields := strings.Split(snapshotCSV(s), ",")
	if fields[11] != "0" {
		t.Errorf("wpd_calibrating bit = %q, want 0", fields[11])
	}
	if fields[24] != "INFUSION_ERROR" {
		t.Errorf("state = %q, want INFUSION_ERROR", fields[24])
	}
	if fields[25] != "1" {
		t.Errorf("auto_clamp bit = %q, want 1", fields[25])
	}
}

func TestSnapshotCSVNumericFieldsParse(t *testing.T) {
	fields := strings.Split(snapshotCSV(testSnapshot()), ",")
	for i, f := range fields {
		if i == 24 { // state name
			continue
		}
		if _, err := strconv.ParseFloat(f, 64); err != nil {
			t.Errorf("field %d = %q is not numeric: %v", i, f, err)
		}
	}
}
