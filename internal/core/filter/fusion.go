package filter

// Fusion combines the weight-channel and drip-channel estimates into the
// canonical flow rate and remaining mass. Two decoupled scalar Kalman
// estimators run in parallel; each folds in both channels sequentially.
// Setting a channel's measurement variance below 1e-9 turns that channel
// off for the tick.
type Fusion struct {
	flow  float64
	pFlow float64

	remaining float64
	pRem      float64

	qFlow float64
	qRem  float64

	rWeightFlow float64
	rDripFlow   float64
	rWeightRem  float64
	rDripRem    float64
}

// NewFusion creates a fusion stage with the given process and measurement
// noise variances.
func NewFusion(qFlow, rWeightFlow, rDripFlow, qRem, rWeightRem, rDripRem float64) *Fusion {
	return &Fusion{
		pFlow:       1.0,
		pRem:        10.0,
		qFlow:       qFlow,
		qRem:        qRem,
		rWeightFlow: rWeightFlow,
		rDripFlow:   rDripFlow,
		rWeightRem:  rWeightRem,
		rDripRem:    rDripRem,
	}
}

// Init resets the fused state, typically at reinitialization with zero flow
// and the freshly captured liquid mass.
func (f *Fusion) Init(flowGps, remainingG float64) {
	f.flow = flowGps
	f.pFlow = 0.1
	f.remaining = remainingG
	f.pRem = 1.0
}

// kalman1d is the standard scalar update. The incoming P is the already-
// predicted covariance; R below 1e-9 means the measurement is off.
func kalman1d(x, p *float64, measurement, r float64) {
	if r < 1e-9 {
		return
	}
	gain := *p / (*p + r)
	*x += gain * (measurement - *x)
	*p = (1 - gain) * *p
}

// Update advances both estimators by dt and folds in the two flow estimates
// and the two remaining-mass estimates. Intervals at or below 1 µs are a
// no-op.
func (f *Fusion) Update(flowWeightGps, flowDripGps, remainingWeightG, remainingDripG, dt float64) {
	if dt <= 1e-6 {
		return
	}

	// Flow predict: identity model, variance grows with dt.
	f.pFlow += f.qFlow * dt

	// Remaining predict: couple to the current fused flow so the estimate
	// keeps falling between measurements.
	f.remaining -= f.flow * dt
	if f.remaining < 0 {
		f.remaining = 0
	}
	f.pRem += f.qRem * dt

	kalman1d(&f.flow, &f.pFlow, flowWeightGps, f.rWeightFlow)
	kalman1d(&f.flow, &f.pFlow, flowDripGps, f.rDripFlow)

	kalman1d(&f.remaining, &f.pRem, remainingWeightG, f.rWeightRem)
	kalman1d(&f.remaining, &f.pRem, remainingDripG, f.rDripRem)

	if f.remaining < 0 {
		f.remaining = 0
	}
}

// Flow returns the fused flow rate in g/s, floored at zero.
func (f *Fusion) Flow() float64 {
	if f.flow < 0 {
		return 0
	}
	return f.flow
}

// Remaining returns the fused remaining mass in grams, floored at zero.
func (f *Fusion) Remaining() float64 {
	if f.remaining < 0 {
		return 0
	}
	return f.remaining
}

// FlowMeasurementNoises returns the weight- and drip-channel flow variances.
func (f *Fusion) FlowMeasurementNoises() (rWeight, rDrip float64) {
	return f.rWeightFlow, f.rDripFlow
}

// SetFlowMeasurementNoises replaces the flow-channel variances.
func (f *Fusion) SetFlowMeasurementNoises(rWeight, rDrip float64) {
	f.rWeightFlow = rWeight
	f.rDripFlow = rDrip
}

// RemainingMeasurementNoises returns the remaining-mass variances.
func (f *Fusion) RemainingMeasurementNoises() (rWeight, rDrip float64) {
	return f.rWeightRem, f.rDripRem
}

// SetRemainingMeasurementNoises replaces the remaining-mass variances.
func (f *Fusion) SetRemainingMeasurementNoises(rWeight, rDrip float64) {
	f.rWeightRem = rWeight
	f.rDripRem = rDrip
}
