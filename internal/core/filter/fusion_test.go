package filter

import (
	"math"
	"testing"
)

func newDefaultFusion() *Fusion {
	return NewFusion(1e-7, 0.01, 0.0005, 0.01, 1.0, 1.0)
}

func TestFusionIgnoresNonPositiveDt(t *testing.T) {
	f := newDefaultFusion()
	f.Init(0.1, 500)

	f.Update(5, 5, 100, 100, 0)
	if f.Flow() != 0.1 || f.Remaining() != 500 {
		t.Errorf("state changed on no-op update: flow=%v remaining=%v", f.Flow(), f.Remaining())
	}
}

// With both channels reporting the same constant flow, the fused flow must
// converge to it.
func TestFusionConsistency(t *testing.T) {
	f := newDefaultFusion()
	f.Init(0, 500)

	for i := 0; i < 50; i++ {
		f.Update(0.1, 0.1, 500, 500, 1.0)
	}

	if math.Abs(f.Flow()-0.1) > 0.005 {
		t.Errorf("fused flow %v after 50 ticks, want within 0.005 of 0.1", f.Flow())
	}
}

// With one channel's R set so large it is effectively ignored, the fused
// flow approaches the remaining sensor's estimate.
func TestFusionSensorDropout(t *testing.T) {
	tests := []struct {
		name       string
		rWeight    float64
		rDrip      float64
		flowWeight float64
		flowDrip   float64
		want       float64
	}{
		{"weight channel ignored", 1e6, 0.0005, 0.5, 0.1, 0.1},
		{"drip channel ignored", 0.01, 1e6, 0.1, 0.5, 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFusion(1e-7, tt.rWeight, tt.rDrip, 0.01, 1.0, 1.0)
			f.Init(0, 500)

			for i := 0; i < 50; i++ {
				f.Update(tt.flowWeight, tt.flowDrip, 500, 500, 1.0)
			}

			if math.Abs(f.Flow()-tt.want) > 0.01 {
				t.Errorf("fused flow %v, want within 0.01 of %v", f.Flow(), tt.want)
			}
		})
	}
}

// A channel with R below the cutoff is skipped entirely for the tick.
func TestFusionChannelOff(t *testing.T) {
	f := NewFusion(1e-7, 0, 0.0005, 0.01, 1.0, 1.0)
	f.Init(0, 500)

	for i := 0; i < 50; i++ {
		f.Update(99, 0.1, 500, 500, 1.0)
	}

	if math.Abs(f.Flow()-0.1) > 0.01 {
		t.Errorf("fused flow %v, want the off channel excluded", f.Flow())
	}
}

func TestFusionRemainingPredictionCouplesToFlow(t *testing.T) {
	// Both remaining channels off: remaining must fall by flow*dt per tick.
	f := NewFusion(1e-7, 0.01, 0.0005, 0.01, 0, 0)
	f.Init(0, 10)

	for i := 0; i < 100; i++ {
		f.Update(1.0, 1.0, 0, 0, 1.0)
	}

	if f.Remaining() != 0 {
		t.Errorf("remaining %v, want drained to the zero clamp", f.Remaining())
	}
}

func TestFusionOutputsClamped(t *testing.T) {
	f := newDefaultFusion()
	f.Init(0, 5)

	for i := 0; i < 50; i++ {
		f.Update(-1, -1, -10, -10, 1.0)
	}

	if f.Flow() != 0 {
		t.Errorf("fused flow %v, want clamped at 0", f.Flow())
	}
	if f.Remaining() != 0 {
		t.Errorf("fused remaining %v, want clamped at 0", f.Remaining())
	}
}

func TestFusionNoiseAccessorsRoundTrip(t *testing.T) {
	f := newDefaultFusion()

	f.SetFlowMeasurementNoises(0.002, 0.003)
	if rw, rd := f.FlowMeasurementNoises(); rw != 0.002 || rd != 0.003 {
		t.Errorf("flow noises = (%v, %v), want (0.002, 0.003)", rw, rd)
	}

	f.SetRemainingMeasurementNoises(0.4, 0.5)
	if rw, rd := f.RemainingMeasurementNoises(); rw != 0.4 || rd != 0.5 {
		t.Errorf("remaining noises = (%v, %v), want (0.4, 0.5)", rw, rd)
	}
}
