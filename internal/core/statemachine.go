package core

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Owen1B/fusionflow/internal/log"
	"github.com/Owen1B/fusionflow/internal/types"
)

// transitionTo changes the operator-visible state and applies the entry
// actions tied to the new state.
func (c *Core) transitionTo(newState types.SystemState, nowMs int64) {
	if c.state == newState {
		return
	}
	log.Infof("state transition: %v -> %v", c.state, newState)
	c.state = newState
	c.stateSince = nowMs

	switch newState {
	case types.StateNormal:
		// Stall detection restarts from a clean slate.
		c.lastDripMs.Store(nowMs)
		c.lastStallMs = nowMs
	case types.StateInfusionError, types.StateCompleted:
		c.autoClamp = true
	}

	c.emitEvent(types.Event{
		Kind:      types.EventStateChanged,
		Timestamp: time.UnixMilli(nowMs),
		NewState:  newState,
	})
}

// evaluateState runs the supervisory checks for the current tick: stall
// detection and completion, both active only in Normal.
func (c *Core) evaluateState(nowMs int64) {
	if c.state != types.StateNormal {
		return
	}

	// Stall: no drop edges for the timeout, checked on its own interval.
	if nowMs-c.lastStallMs >= stallCheckIntervalMs {
		c.lastStallMs = nowMs
		if nowMs-c.lastDripMs.Load() >= noDripTimeoutMs {
			log.Warnf("no drop detected for %ds, flagging infusion abnormality", noDripTimeoutMs/1000)
			c.emitEvent(types.Event{
				Kind:      types.EventInfusionAbnormalityDetected,
				Timestamp: time.UnixMilli(nowMs),
			})
			c.transitionTo(types.StateInfusionError, nowMs)
			return
		}
	}

	// Completion: the fused remaining mass reached the target.
	if c.initialSet && c.fusion.Remaining() <= c.targetEmptyG+completionEpsilonG {
		c.emitEvent(types.Event{
			Kind:      types.EventInfusionCompleted,
			Timestamp: time.UnixMilli(nowMs),
		})
		c.transitionTo(types.StateCompleted, nowMs)
	}
}

// performReinitialization captures a fresh initial weight and restarts the
// run. On success every filter is reseeded and fast convergence begins; on
// failure the persistent-error counter advances toward the InitError latch.
func (c *Core) performReinitialization(nowMs int64) bool {
	sample := c.massReg.Load()
	var liquidG float64
	ok := false
	if sample != nil {
		gross := float64(sample.Grams)
		liquidG = gross - c.tareG
		ok = !math.IsNaN(gross) && !math.IsInf(gross, 0) &&
			math.Abs(gross) <= maxPlausibleGrossG && liquidG > minLiquidG
	}

	if !ok {
		c.initFailures++
		log.Warnf("reinitialization failed (%d/%d): unusable load cell reading", c.initFailures, maxInitFailures)
		c.transitionTo(types.StateInitError, nowMs)
		return false
	}

	c.initFailures = 0
	c.initialSet = true
	c.initialTotalG = liquidG
	c.totalVolumeMl = math.Ceil(liquidG/100) * 100
	c.cumulativeDrops = 0

	c.weight.Init(liquidG, 0, 0)
	c.drip.Init(0)
	c.wpd.Init(-1, c.cfg.DropsPerMl, float64(c.cfg.LiquidDensity))
	c.fusion.Init(0, liquidG)

	c.prevRawG = liquidG
	c.ring.Drain()
	c.lastDripMs.Store(nowMs)
	c.longCal = longCalWindow{}

	// Snapshot carries stale channel values from the previous run until
	// the next processTick; reset the ones an operator sees immediately.
	c.snap = types.Snapshot{
		Timestamp:       time.UnixMilli(nowMs),
		RawWeightG:      float32(liquidG),
		FiltWeightG:     float32(liquidG),
		InitialWeightG:  float32(liquidG),
		TotalVolumeMl:   float32(c.totalVolumeMl),
		FusedRemainingG: float32(liquidG),
		WPD:             float32(c.wpd.WPD()),
		ProgressPercent: 0,
	}

	c.captureOriginalNoises()
	c.wpd.Start()
	c.emitEvent(types.Event{
		Kind:      types.EventWpdCalibrationStarted,
		Timestamp: time.UnixMilli(nowMs),
	})
	c.enterFastConvergence(nowMs)

	log.Infof("reinitialized: initial liquid mass %.1f g, total volume %.0f mL", liquidG, c.totalVolumeMl)
	c.transitionTo(types.StateFastConvergence, nowMs)
	c.autoClamp = false
	return true
}

// captureOriginalNoises saves every measurement variance exactly once, at
// first initialization, so repeated reinits never compound the /10 swap.
func (c *Core) captureOriginalNoises() {
	if c.savedCaptured {
		return
	}
	c.savedCaptured = true
	c.saved.weightR = c.weight.MeasurementNoise()
	c.saved.dripR = c.drip.MeasurementNoise()
	c.saved.wpdR = c.wpd.MeasurementNoise()
	c.saved.fusionFlowW, c.saved.fusionFlowD = c.fusion.FlowMeasurementNoises()
	c.saved.fusionRemW, c.saved.fusionRemD = c.fusion.RemainingMeasurementNoises()
}

// enterFastConvergence divides every measurement variance by 10 (floored at
// 1e-7) so the filters lock on quickly after a reinit.
func (c *Core) enterFastConvergence(nowMs int64) {
	c.fastActive = true
	c.fastStartMs = nowMs

	fast := func(r float64) float64 {
		r /= 10
		if r < 1e-7 {
			r = 1e-7
		}
		return r
	}

	c.weight.SetMeasurementNoise(fast(c.saved.weightR))
	c.drip.SetMeasurementNoise(fast(c.saved.dripR))
	c.wpd.SetMeasurementNoise(fast(c.saved.wpdR))
	c.fusion.SetFlowMeasurementNoises(fast(c.saved.fusionFlowW), fast(c.saved.fusionFlowD))
	c.fusion.SetRemainingMeasurementNoises(fast(c.saved.fusionRemW), fast(c.saved.fusionRemD))
}

// updateFastConvergence restores the saved variances once the window has
// elapsed and moves the state machine on to Normal.
func (c *Core) updateFastConvergence(nowMs int64) {
	if !c.fastActive || nowMs-c.fastStartMs < fastConvergenceMs {
		return
	}
	c.fastActive = false

	c.weight.SetMeasurementNoise(c.saved.weightR)
	c.drip.SetMeasurementNoise(c.saved.dripR)
	c.wpd.SetMeasurementNoise(c.saved.wpdR)
	c.fusion.SetFlowMeasurementNoises(c.saved.fusionFlowW, c.saved.fusionFlowD)
	c.fusion.SetRemainingMeasurementNoises(c.saved.fusionRemW, c.saved.fusionRemD)

	log.Info("fast convergence ended, measurement noises restored")
	c.emitEvent(types.Event{
		Kind:      types.EventFastConvergenceEnded,
		Timestamp: time.UnixMilli(nowMs),
	})

	if c.state == types.StateFastConvergence {
		c.transitionTo(types.StateNormal, nowMs)
	}
}

// OnButton handles an operator pushbutton. A long press on Reset is the
// clamp-motor toggle and belongs to the hardware collaborator.
func (c *Core) OnButton(kind types.ButtonKind, event types.ButtonEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	nowMs := c.now().UnixMilli()

	switch {
	case kind == types.ButtonInit && event == types.ShortPress:
		// Restart the run from any state.
		c.transitionTo(types.StateInitializing, nowMs)
		c.performReinitialization(nowMs)

	case kind == types.ButtonReset && event == types.ShortPress:
		switch c.state {
		case types.StateInfusionError:
			c.autoClamp = false
			c.emitEvent(types.Event{
				Kind:      types.EventInfusionAbnormalityCleared,
				Timestamp: time.UnixMilli(nowMs),
			})
			c.transitionTo(types.StateNormal, nowMs)
		case types.StateCompleted:
			c.autoClamp = false
			c.transitionTo(types.StateNormal, nowMs)
		case types.StateInitError:
			if c.initFailures >= maxInitFailures {
				// Operator intervention unlatches the counter.
				c.initFailures = 0
			}
			c.transitionTo(types.StateInitializing, nowMs)
		}
	}
}

// OnCommand handles a dashboard command and returns the acknowledgement
// line sent back over the WebSocket.
func (c *Core) OnCommand(cmd string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	nowMs := c.now().UnixMilli()

	switch {
	case cmd == "CALIBRATE_WPD_START":
		if c.longCal.active {
			return "EVENT:WPD_CALIBRATION_ALREADY_RUNNING"
		}
		c.wpd.Start()
		c.longCal = longCalWindow{
			active:     true,
			startMs:    nowMs,
			startDrops: c.cumulativeDrops,
		}
		c.emitEvent(types.Event{
			Kind:      types.EventWpdCalibrationStarted,
			Timestamp: time.UnixMilli(nowMs),
		})
		return "CMD_ACK:WPD_LONG_CALIBRATION_STARTED"

	case cmd == "CALIBRATE_WPD_STOP":
		if !c.longCal.active {
			return "EVENT:WPD_CALIBRATION_NOT_RUNNING"
		}
		c.wpd.Stop()
		c.longCal = longCalWindow{}
		return "CMD_ACK:WPD_CALIBRATION_STOPPED_MANUALLY"

	case strings.HasPrefix(cmd, setTotalVolumePrefix):
		ml, err := strconv.ParseFloat(strings.TrimPrefix(cmd, setTotalVolumePrefix), 64)
		if err != nil || ml <= 0 {
			c.emitInvalidCommand(cmd, nowMs)
			return "CMD_UNKNOWN"
		}
		c.totalVolumeMl = ml
		return "CMD_ACK:TOTAL_VOLUME_SET"

	default:
		c.emitInvalidCommand(cmd, nowMs)
		return "CMD_UNKNOWN"
	}
}

const setTotalVolumePrefix = "SET_TOTAL_VOLUME:"

func (c *Core) emitInvalidCommand(cmd string, nowMs int64) {
	c.emitEvent(types.Event{
		Kind:      types.EventInvalidCommand,
		Timestamp: time.UnixMilli(nowMs),
		Detail:    cmd,
	})
}

// checkLongCalibration finishes the operator-started calibration window
// once both the duration and drop-count thresholds are met.
func (c *Core) checkLongCalibration(nowMs int64) {
	if !c.longCal.active {
		return
	}

	elapsed := nowMs - c.longCal.startMs
	drops := c.cumulativeDrops - c.longCal.startDrops
	durationMet := elapsed >= longCalDurationMs
	dropsMet := drops >= longCalMinDrops

	switch {
	case durationMet && dropsMet:
		c.wpd.Stop()
		c.longCal.active = false
		log.Infof("WPD long calibration complete: %.4f g/drop over %d drops in %.1f s",
			c.wpd.WPD(), drops, float64(elapsed)/1000)
		c.emitEvent(types.Event{
			Kind:      types.EventWpdCalibrationCompleted,
			Timestamp: time.UnixMilli(nowMs),
			WPD:       float32(c.wpd.WPD()),
			Drops:     drops,
			DurationS: float32(elapsed) / 1000,
		})
	case durationMet && !dropsMet && !c.longCal.lowDropsNotice:
		c.longCal.lowDropsNotice = true
		c.emitEvent(types.Event{
			Kind:      types.EventWpdCalibrationTimedOutLowDrops,
			Timestamp: time.UnixMilli(nowMs),
			Drops:     drops,
		})
	}
}

// LEDColor maps the current state to the collaborator status LED color.
func (c *Core) LEDColor() types.LEDColor {
	switch c.State() {
	case types.StateInitializing:
		return types.LEDYellow
	case types.StateInitError:
		return types.LEDRed
	case types.StateFastConvergence:
		return types.LEDBlue
	case types.StateNormal:
		return types.LEDGreen
	case types.StateInfusionError:
		return types.LEDRed
	case types.StateCompleted:
		return types.LEDWhite
	default:
		return types.LEDOff
	}
}
