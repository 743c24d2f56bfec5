package filter

import "math"

// DripKF smooths the instantaneous drop rate computed from edge intervals.
// State is (rate_dps, rate_accel_dps2) under a constant-acceleration model.
// The small dimension doesn't warrant a matrix library; the products are
// written out directly.
type DripKF struct {
	x [2]float64
	p [2][2]float64

	sigmaA float64
	r      float64
}

// NewDripKF creates a drip-rate filter with zero state.
func NewDripKF(sigmaA, measurementNoiseR float64) *DripKF {
	return &DripKF{
		p:      [2][2]float64{{1, 0}, {0, 1}},
		sigmaA: sigmaA,
		r:      measurementNoiseR,
	}
}

// Init resets the filter to a known drop rate.
func (k *DripKF) Init(rateDps float64) {
	k.x[0] = rateDps
	k.x[1] = 0
	k.p = [2][2]float64{{0.25, 0}, {0, 0.25}}
}

// Update folds in the drop rate measured over this tick. Intervals at or
// below 1 µs are a no-op.
func (k *DripKF) Update(measuredRateDps, dt float64) {
	if dt <= 1e-6 {
		return
	}

	dt2 := dt * dt
	dt3 := dt2 * dt
	dt4 := dt3 * dt
	saSq := k.sigmaA * k.sigmaA

	q00 := dt4 / 4 * saSq
	q01 := dt3 / 2 * saSq
	q11 := dt2 * saSq

	// Predict with F = [[1, dt], [0, 1]].
	xp0 := k.x[0] + dt*k.x[1]
	xp1 := k.x[1]

	fp00 := k.p[0][0] + dt*k.p[1][0]
	fp01 := k.p[0][1] + dt*k.p[1][1]
	fp10 := k.p[1][0]
	fp11 := k.p[1][1]

	pp00 := fp00 + fp01*dt + q00
	pp01 := fp01 + q01
	pp10 := fp10 + fp11*dt + q01
	pp11 := fp11 + q11

	// Update with H = [1 0].
	s := pp00 + k.r
	if math.Abs(s) < 1e-9 {
		s = math.Copysign(1e-9, s)
	}
	k0 := pp00 / s
	k1 := pp10 / s

	innovation := measuredRateDps - xp0
	k.x[0] = xp0 + k0*innovation
	k.x[1] = xp1 + k1*innovation

	k.p[0][0] = (1 - k0) * pp00
	k.p[0][1] = (1 - k0) * pp01
	k.p[1][0] = -k1*pp00 + pp10
	k.p[1][1] = -k1*pp01 + pp11
}

// Rate returns the filtered drop rate in drops/s, floored at zero.
func (k *DripKF) Rate() float64 {
	if k.x[0] < 0 {
		return 0
	}
	return k.x[0]
}

// RawRate returns the unfloored filtered drop rate.
func (k *DripKF) RawRate() float64 { return k.x[0] }

// Flow converts the filtered drop rate to g/s using the supplied
// grams-per-drop estimate.
func (k *DripKF) Flow(wpdGpd float64) float64 {
	if wpdGpd <= 1e-6 {
		return 0
	}
	return k.Rate() * wpdGpd
}

// MeasurementNoise returns the current measurement variance.
func (k *DripKF) MeasurementNoise() float64 { return k.r }

// SetMeasurementNoise replaces the measurement variance, floored positive.
func (k *DripKF) SetMeasurementNoise(r float64) {
	if r < 1e-7 {
		r = 1e-7
	}
	k.r = r
}

// Covariance returns a copy of the 2×2 estimation error covariance.
func (k *DripKF) Covariance() [2][2]float64 { return k.p }
