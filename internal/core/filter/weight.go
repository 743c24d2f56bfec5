// Package filter implements the Kalman estimators of the infusion core: the
// three-state weight filter, the two-state drip-rate filter, the scalar
// weight-per-drop estimator, and the two-channel fusion stage.
package filter

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// WeightKF smooths the load-cell mass signal with a constant-jerk model.
// The state vector is (mass_g, velocity_gps, accel_gps2); the mass-loss rate
// of the infusion is the negated velocity.
type WeightKF struct {
	x *mat.VecDense // (mass, velocity, acceleration)
	p *mat.Dense    // estimation error covariance

	sigmaA float64 // process noise std dev driving velocity
	sigmaJ float64 // process noise std dev driving acceleration
	r      float64 // measurement noise variance
}

// NewWeightKF creates a weight filter with zero state and inflated initial
// covariance. Call Init with the first trusted reading before use.
func NewWeightKF(sigmaA, sigmaJ, measurementNoiseR float64) *WeightKF {
	return &WeightKF{
		x:      mat.NewVecDense(3, nil),
		p:      mat.NewDense(3, 3, []float64{100, 0, 0, 0, 10, 0, 0, 0, 1}),
		sigmaA: sigmaA,
		sigmaJ: sigmaJ,
		r:      measurementNoiseR,
	}
}

// Init resets the filter state to the given estimates. The covariance is
// reset small but nonzero so the filter keeps learning from measurements.
func (k *WeightKF) Init(massG, velocityGps, accelGps2 float64) {
	k.x.SetVec(0, massG)
	k.x.SetVec(1, velocityGps)
	k.x.SetVec(2, accelGps2)
	k.p = mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 0.1})
}

// Update runs one predict+update cycle with a raw mass measurement and the
// elapsed interval. Intervals at or below 1 µs are ignored: Q would be
// singular, so the call is a no-op returning the current estimate.
func (k *WeightKF) Update(measurementG, dt float64) float64 {
	if dt <= 1e-6 {
		return k.x.AtVec(0)
	}

	// State transition for a constant-acceleration segment of length dt.
	f := mat.NewDense(3, 3, []float64{
		1, dt, dt * dt / 2,
		0, 1, dt,
		0, 0, 1,
	})

	// Process noise: the standard random-acceleration block, with the
	// (3,3) entry replaced by the jerk variance so acceleration can be
	// excited independently.
	dt2 := dt * dt
	dt3 := dt2 * dt
	dt4 := dt3 * dt
	saSq := k.sigmaA * k.sigmaA
	sjSq := k.sigmaJ * k.sigmaJ
	q := mat.NewDense(3, 3, []float64{
		saSq * dt4 / 4, saSq * dt3 / 2, saSq * dt2 / 2,
		saSq * dt3 / 2, saSq * dt2, saSq * dt,
		saSq * dt2 / 2, saSq * dt, sjSq,
	})

	// Predict.
	var xPred mat.VecDense
	xPred.MulVec(f, k.x)

	var fp, pPred mat.Dense
	fp.Mul(f, k.p)
	pPred.Mul(&fp, f.T())
	pPred.Add(&pPred, q)

	// Update with H = [1 0 0].
	s := pPred.At(0, 0) + k.r
	if math.Abs(s) < 1e-9 {
		s = math.Copysign(1e-9, s)
	}

	k0 := pPred.At(0, 0) / s
	k1 := pPred.At(1, 0) / s
	k2 := pPred.At(2, 0) / s

	innovation := measurementG - xPred.AtVec(0)
	k.x.SetVec(0, xPred.AtVec(0)+k0*innovation)
	k.x.SetVec(1, xPred.AtVec(1)+k1*innovation)
	k.x.SetVec(2, xPred.AtVec(2)+k2*innovation)

	// P = (I - K H) P_pred. The Joseph form is unnecessary: R > 0 is
	// enforced by the setters.
	ikh := mat.NewDense(3, 3, []float64{
		1 - k0, 0, 0,
		-k1, 1, 0,
		-k2, 0, 1,
	})
	var pNew mat.Dense
	pNew.Mul(ikh, &pPred)
	k.p.Copy(&pNew)

	return k.x.AtVec(0)
}

// Mass returns the filtered mass estimate in grams.
func (k *WeightKF) Mass() float64 { return k.x.AtVec(0) }

// Velocity returns the mass rate of change in g/s. During consumption the
// value is negative; the weight-channel flow is the negated velocity,
// floored at zero.
func (k *WeightKF) Velocity() float64 { return k.x.AtVec(1) }

// Accel returns the mass acceleration estimate in g/s².
func (k *WeightKF) Accel() float64 { return k.x.AtVec(2) }

// Flow returns the consumption rate in g/s, floored at zero.
func (k *WeightKF) Flow() float64 {
	flow := -k.x.AtVec(1)
	if flow < 0 {
		return 0
	}
	return flow
}

// MeasurementNoise returns the current measurement variance.
func (k *WeightKF) MeasurementNoise() float64 { return k.r }

// SetMeasurementNoise replaces the measurement variance, flooring it at a
// small positive value so the update stays well conditioned.
func (k *WeightKF) SetMeasurementNoise(r float64) {
	if r < 1e-7 {
		r = 1e-7
	}
	k.r = r
}

// Covariance returns a copy of the estimation error covariance.
func (k *WeightKF) Covariance() *mat.Dense {
	c := mat.NewDense(3, 3, nil)
	c.Copy(k.p)
	return c
}
