package filter

import (
	"math"
	"testing"
)

func TestDripKFIgnoresNonPositiveDt(t *testing.T) {
	k := NewDripKF(0.00001, 0.05)
	k.Init(2)

	k.Update(5, 0)
	k.Update(5, -1)
	if k.Rate() != 2 {
		t.Errorf("rate changed on no-op update: %v", k.Rate())
	}
}

func TestDripKFConvergesToConstantRate(t *testing.T) {
	k := NewDripKF(0.00001, 0.05)
	k.Init(0)

	for i := 0; i < 60; i++ {
		k.Update(2.0, 1.0)
	}

	if math.Abs(k.Rate()-2.0) > 0.05 {
		t.Errorf("rate %v after 60 ticks, want within 0.05 of 2.0", k.Rate())
	}
}

func TestDripKFRateFlooredAtZero(t *testing.T) {
	k := NewDripKF(0.00001, 0.05)
	k.Init(0)

	for i := 0; i < 50; i++ {
		k.Update(-1.0, 1.0)
	}

	if k.Rate() != 0 {
		t.Errorf("published rate must be floored at zero, got %v", k.Rate())
	}
	if k.RawRate() >= 0 {
		t.Errorf("raw rate should have gone negative, got %v", k.RawRate())
	}
}

func TestDripKFFlow(t *testing.T) {
	k := NewDripKF(0.00001, 0.05)
	k.Init(2)

	if got := k.Flow(0.05); math.Abs(got-0.1) > 1e-9 {
		t.Errorf("flow = %v, want 0.1", got)
	}
	if got := k.Flow(0); got != 0 {
		t.Errorf("flow with degenerate WPD = %v, want 0", got)
	}
}

func TestDripKFCovarianceStaysPSD(t *testing.T) {
	k := NewDripKF(0.00001, 0.05)
	k.Init(0)

	for i := 0; i < 200; i++ {
		k.Update(2.0, 1.0)

		p := k.Covariance()
		if math.Abs(p[0][1]-p[1][0]) > 1e-6 {
			t.Fatalf("tick %d: covariance asymmetric: %v vs %v", i, p[0][1], p[1][0])
		}

		// Minimum eigenvalue of the symmetrized 2x2.
		tr := p[0][0] + p[1][1]
		det := p[0][0]*p[1][1] - p[0][1]*p[1][0]
		disc := tr*tr/4 - det
		if disc < 0 {
			disc = 0
		}
		if minEig := tr/2 - math.Sqrt(disc); minEig < -1e-6 {
			t.Fatalf("tick %d: covariance not PSD, eigenvalue %v", i, minEig)
		}
	}
}
