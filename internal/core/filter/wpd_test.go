package filter

import (
	"math"
	"testing"
)

func newActiveEstimator() *WPDEstimator {
	e := NewWPDEstimator(1e-8, 1e-4, 20, 1.0)
	e.Init(-1, 20, 1.0)
	e.Start()
	return e
}

func TestWPDSeededFromGivingSetGeometry(t *testing.T) {
	e := NewWPDEstimator(1e-8, 1e-4, 20, 1.0)
	if e.WPD() != 0.05 {
		t.Errorf("default seed = %v, want 0.05 for a 20 drops/mL set", e.WPD())
	}

	// A non-physical geometry still seeds inside the clamp window.
	e = NewWPDEstimator(1e-8, 1e-4, 5, 1.0)
	if e.WPD() != 0.06 {
		t.Errorf("seed = %v, want clamped to 0.06", e.WPD())
	}
}

func TestWPDCalibrateGates(t *testing.T) {
	tests := []struct {
		name    string
		initial float64
		current float64
		drops   uint64
	}{
		{"inactive ignored", 500, 499, 100},
		{"too few drops", 500, 499, 4},
		{"no measurable change", 500, 499.995, 100},
		{"outlier low", 500, 499.9, 100},   // 0.001 g/drop
		{"outlier high", 500, 480, 50},     // 0.4 g/drop
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newActiveEstimator()
			if tt.name == "inactive ignored" {
				e.Stop()
			}
			before := e.WPD()
			e.Calibrate(tt.initial, tt.current, tt.drops)
			if e.WPD() != before {
				t.Errorf("estimate moved from %v to %v; gate should have rejected", before, e.WPD())
			}
		})
	}
}

func TestWPDCalibrateConverges(t *testing.T) {
	e := newActiveEstimator()

	// 0.045 g/drop ground truth, growing baseline.
	for drops := uint64(10); drops <= 1000; drops += 10 {
		current := 500 - 0.045*float64(drops)
		e.Calibrate(500, current, drops)
	}

	if math.Abs(e.WPD()-0.045) > 0.001 {
		t.Errorf("estimate %v, want within 0.001 of 0.045", e.WPD())
	}
}

func TestWPDClampAfterEveryUpdate(t *testing.T) {
	e := newActiveEstimator()

	// 0.15 g/drop passes the outlier gate but exceeds the physical clamp.
	for drops := uint64(10); drops <= 500; drops += 10 {
		current := 500 - 0.15*float64(drops)
		if current < 0 {
			break
		}
		e.Calibrate(500, current, drops)
		if e.WPD() < 0.04 || e.WPD() > 0.06 {
			t.Fatalf("estimate %v escaped the [0.04, 0.06] clamp", e.WPD())
		}
	}
	if e.WPD() != 0.06 {
		t.Errorf("estimate %v, want pinned at the 0.06 clamp", e.WPD())
	}
}

func TestWPDStartInflatesVariance(t *testing.T) {
	e := newActiveEstimator()

	for drops := uint64(10); drops <= 500; drops += 10 {
		e.Calibrate(500, 500-0.05*float64(drops), drops)
	}
	settled := e.Variance()

	e.Start()
	if e.Variance() != 0.25 {
		t.Errorf("Start should re-inflate variance to 0.25, got %v", e.Variance())
	}
	if settled >= 0.25 {
		t.Errorf("variance %v should have settled below 0.25 before restart", settled)
	}
}

func TestWPDStopRetainsEstimate(t *testing.T) {
	e := newActiveEstimator()
	for drops := uint64(10); drops <= 200; drops += 10 {
		e.Calibrate(500, 500-0.045*float64(drops), drops)
	}
	got := e.WPD()

	e.Stop()
	if e.Active() {
		t.Error("estimator still active after Stop")
	}
	if e.WPD() != got {
		t.Errorf("Stop changed the estimate from %v to %v", got, e.WPD())
	}
}
