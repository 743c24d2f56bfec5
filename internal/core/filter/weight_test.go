package filter

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestWeightKFIgnoresNonPositiveDt(t *testing.T) {
	k := NewWeightKF(0.0005, 1e-6, 50)
	k.Init(500, 0, 0)

	for _, dt := range []float64{0, -1, 1e-7} {
		got := k.Update(123, dt)
		if got != 500 {
			t.Errorf("dt=%v: update should be a no-op, got mass %v", dt, got)
		}
		if k.Velocity() != 0 {
			t.Errorf("dt=%v: velocity changed on no-op update", dt)
		}
	}
}

func TestWeightKFConstantMassSteadyState(t *testing.T) {
	k := NewWeightKF(0.0005, 1e-6, 50)
	k.Init(500, 0, 0)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 30; i++ {
		k.Update(500+rng.Float64()-0.5, 1.0)
	}

	if math.Abs(k.Mass()-500) > 0.5 {
		t.Errorf("steady-state mass %v, want within 0.5 of 500", k.Mass())
	}
	if math.Abs(k.Velocity()) > 0.05 {
		t.Errorf("steady-state velocity %v, want within 0.05 of 0", k.Velocity())
	}
	if k.Flow() < 0 {
		t.Errorf("flow must be floored at zero, got %v", k.Flow())
	}
}

func TestWeightKFLinearRampTracking(t *testing.T) {
	k := NewWeightKF(0.0005, 1e-6, 50)
	k.Init(500, 0, 0)

	for i := 1; i <= 30; i++ {
		k.Update(500-0.5*float64(i), 1.0)
	}

	if math.Abs(k.Velocity()-(-0.5)) > 0.2 {
		t.Errorf("ramp velocity %v, want within 0.2 of -0.5", k.Velocity())
	}
	if math.Abs(k.Flow()-0.5) > 0.2 {
		t.Errorf("ramp flow %v, want within 0.2 of 0.5", k.Flow())
	}
}

// The covariance must stay symmetric and PSD through a long mixed run.
func TestWeightKFCovarianceStaysPSD(t *testing.T) {
	k := NewWeightKF(0.0005, 1e-6, 50)
	k.Init(500, 0, 0)

	rng := rand.New(rand.NewSource(7))
	mass := 500.0
	for i := 0; i < 200; i++ {
		mass -= 0.1
		k.Update(mass+rng.NormFloat64()*0.5, 1.0)

		p := k.Covariance()
		for r := 0; r < 3; r++ {
			for c := r + 1; c < 3; c++ {
				if math.Abs(p.At(r, c)-p.At(c, r)) > 1e-6 {
					t.Fatalf("tick %d: covariance asymmetric at (%d,%d): %v vs %v",
						i, r, c, p.At(r, c), p.At(c, r))
				}
			}
		}

		sym := mat.NewSymDense(3, nil)
		for r := 0; r < 3; r++ {
			for c := r; c < 3; c++ {
				sym.SetSym(r, c, (p.At(r, c)+p.At(c, r))/2)
			}
		}
		var eig mat.EigenSym
		if !eig.Factorize(sym, false) {
			t.Fatalf("tick %d: eigendecomposition failed", i)
		}
		for _, v := range eig.Values(nil) {
			if v < -1e-6 {
				t.Fatalf("tick %d: covariance not PSD, eigenvalue %v", i, v)
			}
		}
	}
}

func TestWeightKFMeasurementNoiseFloor(t *testing.T) {
	k := NewWeightKF(0.0005, 1e-6, 50)

	k.SetMeasurementNoise(0)
	if k.MeasurementNoise() != 1e-7 {
		t.Errorf("R should be floored at 1e-7, got %v", k.MeasurementNoise())
	}

	k.SetMeasurementNoise(5)
	if k.MeasurementNoise() != 5 {
		t.Errorf("R = %v, want 5", k.MeasurementNoise())
	}
}
