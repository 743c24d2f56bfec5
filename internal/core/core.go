// Package core implements the estimation and state engine of the infusion
// monitor: the weight and drip-rate Kalman filters, the grams-per-drop
// estimator, the fusion stage, the drop-event ingest, and the supervisory
// state machine, all advanced by a periodic tick.
package core

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Owen1B/fusionflow/internal/core/filter"
	"github.com/Owen1B/fusionflow/internal/log"
	"github.com/Owen1B/fusionflow/internal/types"
	"github.com/Owen1B/fusionflow/pkg/config"
)

const (
	fastConvergenceMs    = 60_000
	noDripTimeoutMs      = 10_000
	stallCheckIntervalMs = 10_000
	longCalDurationMs    = 60_000
	longCalMinDrops      = 30

	// undefinedTimeS is the sentinel remaining-time value published when
	// the flow is effectively zero but liquid remains.
	undefinedTimeS = 88_888

	completionEpsilonG = 1.0
	maxInitFailures    = 3

	// Reinit sanity bounds: the magnitude of the gross reading and the
	// tared liquid mass.
	maxPlausibleGrossG = 5000.0
	minLiquidG         = 10.0

	// Tick-time sanity bounds on a raw reading.
	maxPlausibleTickG = 2000.0
	plausibleFiltRefG = 1000.0
)

// Core owns every filter, the calibration context, and the drop ring, and
// mutates them only from the tick path or the serialized operator inputs.
// Collaborators receive read-only Snapshot copies by value.
type Core struct {
	mu sync.Mutex

	cfg          config.CoreData
	tickInterval time.Duration
	tareG        float64
	targetEmptyG float64

	weight *filter.WeightKF
	drip   *filter.DripKF
	wpd    *filter.WPDEstimator
	fusion *filter.Fusion

	ring       dropRing
	lastDripMs atomic.Int64
	massReg    atomic.Pointer[types.MassSample]

	state        types.SystemState
	stateSince   int64
	autoClamp    bool
	initFailures int

	fastActive  bool
	fastStartMs int64

	longCal longCalWindow

	initialSet      bool
	initialTotalG   float64
	cumulativeDrops uint64
	totalVolumeMl   float64

	saved         savedNoises
	savedCaptured bool

	prevRawG    float64
	lastTickMs  int64
	lastStallMs int64

	snap      types.Snapshot
	snapshots chan types.Snapshot
	events    chan types.Event

	// now is the clock source; replaced in tests.
	now func() time.Time
}

// longCalWindow tracks a time-bounded WPD calibration session started from
// the operator dashboard.
type longCalWindow struct {
	active         bool
	startMs        int64
	startDrops     uint64
	lowDropsNotice bool
}

// savedNoises holds the measurement variances captured at first
// initialization so fast-convergence swaps stay reversible across reinits.
type savedNoises struct {
	weightR     float64
	dripR       float64
	wpdR        float64
	fusionFlowW float64
	fusionFlowD float64
	fusionRemW  float64
	fusionRemD  float64
}

// New creates a Core from the configured tunings. The core starts in
// Initializing; the first tick attempts the initial weight capture.
func New(cfg config.CoreData) *Core {
	cfg.ApplyDefaults()
	f := cfg.Filters

	tick, err := time.ParseDuration(cfg.TickInterval)
	if err != nil || tick <= 0 {
		tick = time.Second
	}

	return &Core{
		cfg:          cfg,
		tickInterval: tick,
		tareG:        float64(cfg.EquipmentTareG + cfg.EmptyBagTareG),
		targetEmptyG: float64(cfg.TargetEmptyG),
		weight:       filter.NewWeightKF(f.WeightSigmaA, f.WeightSigmaJ, f.WeightR),
		drip:         filter.NewDripKF(f.DripSigmaA, f.DripR),
		wpd:          filter.NewWPDEstimator(f.WpdQ, f.WpdR, cfg.DropsPerMl, float64(cfg.LiquidDensity)),
		fusion: filter.NewFusion(f.FusionQFlow, f.FusionRWeightFlow, f.FusionRDripFlow,
			f.FusionQRemaining, f.FusionRWeightRem, f.FusionRDripRem),
		state:     types.StateInitializing,
		snapshots: make(chan types.Snapshot, 20),
		events:    make(chan types.Event, 32),
		now:       time.Now,
	}
}

// Snapshots returns the channel on which the core publishes one Snapshot
// per tick.
func (c *Core) Snapshots() <-chan types.Snapshot { return c.snapshots }

// Events returns the channel of discrete core events.
func (c *Core) Events() <-chan types.Event { return c.events }

// State returns the current operator-visible state.
func (c *Core) State() types.SystemState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns a copy of the most recently published snapshot.
func (c *Core) Snapshot() types.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// SubmitMassSample records the latest raw load-cell reading. Called from
// the load-cell driver goroutine; the tick orchestrator samples the
// register on its own schedule.
func (c *Core) SubmitMassSample(s types.MassSample) {
	sample := s
	c.massReg.Store(&sample)
}

// OnDropEdge ingests one detected drop edge. Safe to call from the drop
// sensor goroutine; the handler only touches the ring and the last-drip
// word.
func (c *Core) OnDropEdge(ts time.Time) {
	ms := ts.UnixMilli()
	if c.ring.Push(ms) {
		c.lastDripMs.Store(ms)
	}
}

// Run drives the tick loop until the context is cancelled.
func (c *Core) Run(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		ticker := time.NewTicker(c.tickInterval)
		defer ticker.Stop()

		for {
			select {
			case now := <-ticker.C:
				c.Tick(now)
			case <-ctx.Done():
				log.Info("cancellation request received, stopping core tick loop")
				return
			}
		}
	}()
}

// Tick advances the whole pipeline by one cycle: sample mass, drain the
// drop ring, run the filters in order, recompute the derived scalars,
// evaluate the state machine, and publish a snapshot.
func (c *Core) Tick(now time.Time) {
	c.mu.Lock()

	nowMs := now.UnixMilli()

	if c.lastTickMs == 0 {
		// First tick: capture the initial weight and start the run.
		c.lastTickMs = nowMs
		c.lastDripMs.Store(nowMs)
		c.performReinitialization(nowMs)
		snap := c.publishLocked(now)
		c.mu.Unlock()
		c.emitSnapshot(snap)
		return
	}

	dt := float64(nowMs-c.lastTickMs) / 1000.0
	c.lastTickMs = nowMs

	c.updateFastConvergence(nowMs)

	if c.state == types.StateInitializing {
		// An operator reset from InitError lands here; retry the capture.
		c.performReinitialization(nowMs)
	}

	if c.initialSet && c.state != types.StateInitError {
		c.processTick(nowMs, dt)
	}

	c.evaluateState(nowMs)

	snap := c.publishLocked(now)
	c.mu.Unlock()
	c.emitSnapshot(snap)
}

// processTick runs steps 2-9 of the per-tick pipeline under the core lock.
func (c *Core) processTick(nowMs int64, dt float64) {
	// --- Weight channel ---
	rawG, rawForFlowG := c.sampleMass(nowMs)

	rawFlow := 0.0
	if dt > 1e-5 {
		rawFlow = (c.prevRawG - rawForFlowG) / dt
	}
	if rawFlow < 0 {
		rawFlow = 0
	}
	c.prevRawG = rawForFlowG

	filtG := c.weight.Update(rawG, dt)
	flowWeight := c.weight.Flow()

	// --- Drip channel ---
	ts := c.ring.Drain()
	measuredRate := 0.0
	newDrops := 0
	if len(ts) <= 1 {
		if len(ts) == 1 {
			c.ring.Reseed(ts[0])
		}
	} else {
		measuredRate, newDrops = tickRate(ts)
		c.drip.Update(measuredRate, dt)
		c.ring.Reseed(ts[len(ts)-1])
	}
	if c.initialSet {
		c.cumulativeDrops += uint64(newDrops)
	}

	if c.wpd.Active() && c.state == types.StateNormal && c.initialSet {
		c.wpd.Calibrate(c.initialTotalG, filtG, c.cumulativeDrops)
	}
	c.checkLongCalibration(nowMs)

	wpd := c.wpd.WPD()
	flowDrip := c.drip.Flow(wpd)
	rawFlowDrip := measuredRate * wpd
	if rawFlowDrip < 0 {
		rawFlowDrip = 0
	}

	remainingDrip := c.initialTotalG - float64(c.cumulativeDrops)*wpd
	if remainingDrip < 0 {
		remainingDrip = 0
	}

	// --- Fusion ---
	c.fusion.Update(flowWeight, flowDrip, filtG, remainingDrip, dt)

	// --- Derived scalars ---
	c.snap.RawWeightG = float32(rawG)
	c.snap.FiltWeightG = float32(math.Max(0, filtG))
	c.snap.RawFlowWeight = float32(rawFlow)
	c.snap.FiltFlowWeight = float32(flowWeight)
	c.snap.DropsThisTick = uint32(newDrops)
	c.snap.RawDripRate = float32(measuredRate)
	c.snap.FiltDripRate = float32(c.drip.Rate())
	c.snap.RawFlowDrip = float32(rawFlowDrip)
	c.snap.FiltFlowDrip = float32(flowDrip)
	c.snap.WPD = float32(wpd)
	c.snap.WPDCalibrating = c.wpd.Active() || c.longCal.active
	c.snap.RemainingDripG = float32(remainingDrip)
	c.snap.FusedFlowGps = float32(c.fusion.Flow())
	c.snap.FusedRemainingG = float32(c.fusion.Remaining())
	c.snap.TotalDrops = c.cumulativeDrops
	c.snap.InitialWeightG = float32(c.initialTotalG)
	c.snap.TotalVolumeMl = float32(c.totalVolumeMl)

	c.snap.RemTimeRawWeightS = float32(c.remainingTime(rawG, rawFlow))
	c.snap.RemTimeFiltWeightS = float32(c.remainingTime(filtG, flowWeight))
	c.snap.RemTimeRawDripS = float32(c.remainingTime(remainingDrip, rawFlowDrip))
	c.snap.RemTimeFiltDripS = float32(c.remainingTime(remainingDrip, flowDrip))
	c.snap.RemTimeFusedS = float32(c.remainingTime(c.fusion.Remaining(), c.fusion.Flow()))

	c.snap.ProgressPercent = float32(c.progress())
}

// sampleMass reads the raw mass register and sanitizes the reading. Returns
// the value fed to the weight KF and the value used for the raw-flow delta.
// A missing or stale sample substitutes the previous filtered mass and is
// never fatal.
func (c *Core) sampleMass(nowMs int64) (rawG, rawForFlowG float64) {
	prevFilt := c.weight.Mass()

	sample := c.massReg.Load()
	if sample == nil || nowMs-sample.Timestamp.UnixMilli() > 2*c.tickInterval.Milliseconds() {
		// Sensor not ready this tick.
		return prevFilt, c.prevRawG
	}

	rawG = float64(sample.Grams) - c.tareG
	rawForFlowG = rawG

	if math.IsNaN(rawG) || math.IsInf(rawG, 0) ||
		(math.Abs(rawG) > maxPlausibleTickG && math.Abs(prevFilt) < plausibleFiltRefG) {
		log.Warnf("implausible load cell reading %.2f g, substituting last filtered %.2f g", rawG, prevFilt)
		rawG = prevFilt
	}
	return rawG, rawForFlowG
}

// remainingTime estimates seconds until the target empty mass is reached at
// the given flow. Zero flow yields 0 when already at target, otherwise the
// undefined sentinel.
func (c *Core) remainingTime(massG, flowGps float64) float64 {
	toInfuse := massG - c.targetEmptyG
	if toInfuse <= 0.01 {
		return 0
	}
	if flowGps > 1e-5 {
		t := toInfuse / flowGps
		if t > undefinedTimeS {
			return undefinedTimeS
		}
		return t
	}
	return undefinedTimeS
}

// progress returns infused fraction as a percent, or -1 before the initial
// weight is captured.
func (c *Core) progress() float64 {
	if !c.initialSet {
		return -1
	}
	total := c.initialTotalG - c.targetEmptyG
	if total <= 1e-3 {
		return -1
	}
	infused := c.initialTotalG - c.fusion.Remaining()
	if infused < 0 {
		infused = 0
	}
	if infused > total {
		infused = total
	}
	return infused / total * 100
}

// publishLocked finalizes the snapshot's state fields and stores it.
func (c *Core) publishLocked(now time.Time) types.Snapshot {
	c.snap.Timestamp = now
	c.snap.State = c.state
	c.snap.AutoClamp = c.autoClamp
	return c.snap
}

func (c *Core) emitSnapshot(s types.Snapshot) {
	select {
	case c.snapshots <- s:
	default:
		// Slow collaborator; the snapshot is droppable telemetry.
	}
}

func (c *Core) emitEvent(e types.Event) {
	select {
	case c.events <- e:
	default:
		log.Warnf("event channel full, dropping %v", e.Kind)
	}
}
