package filter

import "math"

// Physical bounds for a 20 drops/mL giving-set with water-density liquid.
// The estimate is hard-clamped into this window after every update; the
// wider gate below rejects only grossly non-physical single measurements.
const (
	wpdMin = 0.04
	wpdMax = 0.06

	wpdGateMin = 0.01
	wpdGateMax = 0.20
)

// WPDEstimator learns the grams-per-drop ratio of the installed giving-set
// with a scalar Kalman filter. The measurement is the cumulative weight loss
// divided by the cumulative drop count, so the baseline grows over the whole
// run and single-tick noise averages out.
type WPDEstimator struct {
	wpd float64
	p   float64

	q float64 // process noise variance
	r float64 // measurement noise variance

	active bool
}

// NewWPDEstimator creates an estimator seeded from the giving-set geometry:
// (1/dropsPerMl) · density, clamped into the physical window.
func NewWPDEstimator(q, r float64, dropsPerMl int, densityGPerMl float64) *WPDEstimator {
	wpd := densityGPerMl / float64(dropsPerMl)
	return &WPDEstimator{
		wpd: clampWpd(wpd),
		p:   1.0,
		q:   q,
		r:   r,
	}
}

// Init reseeds the estimate. A non-positive seed falls back to the
// geometry-derived default passed in.
func (e *WPDEstimator) Init(seedGpd float64, dropsPerMl int, densityGPerMl float64) {
	if seedGpd <= 0 {
		seedGpd = densityGPerMl / float64(dropsPerMl)
	}
	e.wpd = clampWpd(seedGpd)
	e.p = 0.01
	e.active = false
}

// Start enables calibration and re-inflates the variance so new data is
// accepted quickly.
func (e *WPDEstimator) Start() {
	e.active = true
	e.p = 0.25
}

// Stop disables calibration. The current estimate is retained.
func (e *WPDEstimator) Stop() { e.active = false }

// Active reports whether calibration measurements are being folded in.
func (e *WPDEstimator) Active() bool { return e.active }

// Calibrate folds in one cumulative measurement: the total mass lost since
// the initial weight was captured, over the total drops counted since then.
// The call is a no-op unless calibration is active and the measurement
// passes the early-window, minimum-change, and outlier gates.
func (e *WPDEstimator) Calibrate(initialTotalG, currentMassG float64, cumulativeDrops uint64) {
	if !e.active {
		return
	}
	if cumulativeDrops < 5 {
		return
	}
	deltaMass := initialTotalG - currentMassG
	if deltaMass < 0.01 {
		return
	}
	measured := deltaMass / float64(cumulativeDrops)
	if measured < wpdGateMin || measured > wpdGateMax {
		return
	}

	pPred := e.p + e.q
	s := pPred + e.r
	if math.Abs(s) < 1e-9 {
		s = math.Copysign(1e-9, s)
	}
	gain := pPred / s

	e.wpd += gain * (measured - e.wpd)
	e.p = (1 - gain) * pPred

	e.wpd = clampWpd(e.wpd)
}

// WPD returns the current grams-per-drop estimate.
func (e *WPDEstimator) WPD() float64 { return e.wpd }

// Variance returns the current estimation variance.
func (e *WPDEstimator) Variance() float64 { return e.p }

// MeasurementNoise returns the measurement variance.
func (e *WPDEstimator) MeasurementNoise() float64 { return e.r }

// SetMeasurementNoise replaces the measurement variance, floored positive.
func (e *WPDEstimator) SetMeasurementNoise(r float64) {
	if r < 1e-7 {
		r = 1e-7
	}
	e.r = r
}

func clampWpd(v float64) float64 {
	if v < wpdMin {
		return wpdMin
	}
	if v > wpdMax {
		return wpdMax
	}
	return v
}
