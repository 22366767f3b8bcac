// Package controller implements the closed-loop motion controller: a
// periodic tick that reads ADC channels through a hal.HAL, drives the four
// relay pins, runs the calibration sweep state machine, and publishes
// position/status to the network-facing control surface via lock-free
// shared scalars.
package controller

import (
	"context"
	"log"
	"math"
	"sync/atomic"
	"time"

	"github.com/hb9cv/g5500d/cal"
	"github.com/hb9cv/g5500d/coord"
	"github.com/hb9cv/g5500d/hal"
)

// State is the controller's current operating mode.
type State int32

// Controller states, per spec.md §4.4.
const (
	StateStop State = iota
	StateRun
	StateCalStart
	StateCalSeekMins
	StateCalSeekMaxs
	StateErrADC
	StateErrNoPower
	StateErrStuck
)

func (s State) String() string {
	switch s {
	case StateStop:
		return "STOP"
	case StateRun:
		return "RUN"
	case StateCalStart:
		return "CAL_START"
	case StateCalSeekMins:
		return "CAL_SEEK_MINS"
	case StateCalSeekMaxs:
		return "CAL_SEEK_MAXS"
	case StateErrADC:
		return "ERR_ADC"
	case StateErrNoPower:
		return "ERR_NOPOWER"
	case StateErrStuck:
		return "ERR_STUCK"
	default:
		return "UNKNOWN"
	}
}

// IsError reports whether s is one of the three latched error states.
func (s State) IsError() bool {
	return s == StateErrADC || s == StateErrNoPower || s == StateErrStuck
}

// IsCalibrating reports whether s is one of the three calibration-sweep
// states.
func (s State) IsCalibrating() bool {
	return s == StateCalStart || s == StateCalSeekMins || s == StateCalSeekMaxs
}

const (
	// Tick is the controller's periodic tick rate.
	Tick = 200 * time.Millisecond

	// MotionStartPeriod is the settle guard at each calibration phase
	// transition, so a just-started axis isn't immediately read as stalled.
	MotionStartPeriod = 1 * time.Second

	// StallThreshold is the number of consecutive identical ADC reads,
	// while an axis is commanded active, that mark it stuck.
	StallThreshold = 4

	// Deadband is the per-axis ADC tolerance within which the controller
	// considers a target reached.
	Deadband = 50

	// powerOKThreshold is the minimum "power OK" rail ADC count below
	// which the controller latches ERR_NOPOWER.
	powerOKThreshold = 1000
)

// Controller owns HAL access exclusively after Run is started. Every
// shared field is a sync/atomic value with exactly one writer: the tick
// goroutine writes the "now" telemetry, stall counters, state (except
// surface-requested transitions) and status; rotorctl writes targets and
// requests state transitions. No mutex guards any of them.
type Controller struct {
	h       hal.HAL
	calPath string
	tick    time.Duration

	state atomic.Int32

	azNow, elNow       atomic.Uint32
	azTarget, elTarget atomic.Uint32

	cw, ccw, up, down atomic.Bool

	status atomic.Uint32

	simMode  atomic.Int32
	elMaxDeg atomic.Uint64 // math.Float64bits

	calAzMin, calAzMax atomic.Uint32
	calElMin, calElMax atomic.Uint32
	calValid           atomic.Bool

	// prevAz/prevEl and the stall counters are touched only inside tick,
	// which runs on a single goroutine; no atomics needed for them.
	prevAz, prevEl   uint16
	azStall, elStall int
	havePrev         bool
}

// New constructs a Controller over h, saving calibration sweeps to calPath.
// It starts in StateStop with elMaxDeg at coord.ElMax (full-range mount,
// simulator off).
func New(h hal.HAL, calPath string) *Controller {
	c := &Controller{h: h, calPath: calPath, tick: Tick}
	c.elMaxDeg.Store(math.Float64bits(coord.ElMax))
	return c
}

// LoadCalibration installs c as the controller's current calibration
// endpoints, called by rotorctl after a successful file load.
func (c *Controller) LoadCalibration(cc cal.Calibration) {
	c.calAzMin.Store(uint32(cc.AzMin))
	c.calAzMax.Store(uint32(cc.AzMax))
	c.calElMin.Store(uint32(cc.ElMin))
	c.calElMax.Store(uint32(cc.ElMax))
	c.calValid.Store(cc.Valid)
}

// Calibration returns a snapshot of the controller's current calibration
// endpoints.
func (c *Controller) Calibration() cal.Calibration {
	return cal.Calibration{
		AzMin: uint16(c.calAzMin.Load()),
		AzMax: uint16(c.calAzMax.Load()),
		ElMin: uint16(c.calElMin.Load()),
		ElMax: uint16(c.calElMax.Load()),
		Valid: c.calValid.Load(),
	}
}

// ElMaxDeg returns the effective elevation ceiling, which tracks simulator
// mode (0 in AZ_ONLY).
func (c *Controller) ElMaxDeg() float64 {
	return math.Float64frombits(c.elMaxDeg.Load())
}

// SimMode returns the currently configured simulator mode.
func (c *Controller) SimMode() hal.SimMode {
	return hal.SimMode(c.simMode.Load())
}

// ApplySimMode atomically resets simulator mode, the elevation ceiling, the
// synthetic calibration, and all motion state, then stops the controller.
// Per spec.md §4.5's set_sim_mode, this invalidates any existing
// calibration: simulator and real-hardware calibrations are never mixed.
func (c *Controller) ApplySimMode(mode hal.SimMode) {
	c.simMode.Store(int32(mode))

	var elMax float64
	switch mode {
	case hal.SimAzOnly:
		elMax = 0
	case hal.SimEl90:
		elMax = 90
	case hal.SimEl180:
		elMax = 180
	default:
		elMax = coord.ElMax
	}
	c.elMaxDeg.Store(math.Float64bits(elMax))

	if mode == hal.SimOff {
		c.calValid.Store(false)
	} else {
		synth := cal.Calibration{AzMin: 100, AzMax: 1947, ElMin: 100, ElMax: 1947, Valid: true}
		c.LoadCalibration(synth)
	}

	c.azTarget.Store(uint32(c.azNow.Load()))
	c.elTarget.Store(uint32(c.elNow.Load()))
	c.RequestStop()
}

// Now returns the most recently read az/el ADC counts.
func (c *Controller) Now() (az, el uint16) {
	return uint16(c.azNow.Load()), uint16(c.elNow.Load())
}

// Targets returns the currently commanded az/el ADC counts.
func (c *Controller) Targets() (az, el uint16) {
	return uint16(c.azTarget.Load()), uint16(c.elTarget.Load())
}

// SetTargets writes new az/el ADC targets, observed at the next tick.
func (c *Controller) SetTargets(az, el uint16) {
	c.azTarget.Store(uint32(az))
	c.elTarget.Store(uint32(el))
}

// State returns the controller's current state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Status returns the most recently published status bitset.
func (c *Controller) Status() Status {
	return Status(c.status.Load())
}

// RequestRun asks the controller to enter RUN at the next tick.
func (c *Controller) RequestRun() {
	c.state.Store(int32(StateRun))
}

// RequestStop asks the controller to enter STOP at the next tick.
func (c *Controller) RequestStop() {
	c.state.Store(int32(StateStop))
}

// RequestCalibrate asks the controller to begin a calibration sweep at the
// next tick.
func (c *Controller) RequestCalibrate() {
	// Resolved open question (spec.md §9): a clean atomic store into
	// CAL_START, no switch fall-through.
	c.state.Store(int32(StateCalStart))
}

// Run starts the tick loop and blocks until ctx is canceled. Intended to be
// run in its own goroutine; it is the only goroutine that ever calls into h.
func (c *Controller) Run(ctx context.Context) {
	t := time.NewTicker(c.tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			c.deenergize()
			return
		case <-t.C:
			c.tickOnce()
		}
	}
}

// Tick drives one tick synchronously, outside of Run's timer loop. Intended
// for tests and bench harnesses that need deterministic single-stepping.
func (c *Controller) Tick() {
	c.tickOnce()
}

func (c *Controller) tickOnce() {
	azCounts, azOK, azReason := c.h.ReadADC(hal.ChannelAz)
	elCounts, elOK, elReason := c.h.ReadADC(hal.ChannelEl)
	pwrCounts, pwrOK, pwrReason := c.h.ReadADC(hal.ChannelPower)

	if !azOK || !elOK || !pwrOK {
		reason := azReason
		if reason == "" {
			reason = elReason
		}
		if reason == "" {
			reason = pwrReason
		}
		log.Printf("controller: ADC read failed: %s", reason)
		c.enterError(StateErrADC)
		return
	}

	if pwrCounts < powerOKThreshold {
		c.enterError(StateErrNoPower)
		return
	}

	c.updateStallCounters(azCounts, elCounts)
	c.azNow.Store(uint32(azCounts))
	c.elNow.Store(uint32(elCounts))
	c.prevAz, c.prevEl = azCounts, elCounts
	c.havePrev = true

	c.recomputeStatus()
	c.act()
}

func (c *Controller) updateStallCounters(azCounts, elCounts uint16) {
	if !c.havePrev {
		c.azStall, c.elStall = 0, 0
		return
	}
	if c.cw.Load() || c.ccw.Load() {
		if azCounts == c.prevAz {
			if c.azStall < StallThreshold {
				c.azStall++
			}
		} else {
			c.azStall = 0
		}
	} else {
		c.azStall = 0
	}
	if c.up.Load() || c.down.Load() {
		if elCounts == c.prevEl {
			if c.elStall < StallThreshold {
				c.elStall++
			}
		} else {
			c.elStall = 0
		}
	} else {
		c.elStall = 0
	}
}

func (c *Controller) recomputeStatus() {
	var s Status
	state := c.State()
	if state == StateStop || state == StateRun || state == StateCalStart ||
		state == StateCalSeekMins || state == StateCalSeekMaxs {
		s |= StatusBusy
	}

	cw, ccw := c.cw.Load(), c.ccw.Load()
	up, down := c.up.Load(), c.down.Load()
	if cw || ccw {
		s |= StatusMoving | StatusMovingAz
		if ccw {
			s |= StatusMovingLeft
		}
		if cw {
			s |= StatusMovingRight
		}
	}
	if up || down {
		s |= StatusMoving | StatusMovingEl
		if up {
			s |= StatusMovingUp
		}
		if down {
			s |= StatusMovingDown
		}
	}

	if c.azStall >= StallThreshold && ccw {
		s |= StatusLimitLeft
	}
	if c.azStall >= StallThreshold && cw {
		s |= StatusLimitRight
	}
	if c.elStall >= StallThreshold && up {
		s |= StatusLimitUp
	}
	if c.elStall >= StallThreshold && down {
		s |= StatusLimitDown
	}

	if coord.ADCToAz(c.Calibration(), uint16(c.azNow.Load())) >= coord.AzWrapAt {
		s |= StatusOverlapRight
	}

	c.status.Store(uint32(s))
}

// act drives the pins per the current state. A direction flag is always
// cleared before its sibling is set, so the two are never both true even
// transiently from this goroutine's perspective.
func (c *Controller) act() {
	switch c.State() {
	case StateStop:
		c.allStop()
	case StateRun:
		c.actRun()
	case StateCalStart:
		c.actCalStart()
	case StateCalSeekMins:
		c.actCalSeekMins()
	case StateCalSeekMaxs:
		c.actCalSeekMaxs()
	case StateErrADC, StateErrNoPower, StateErrStuck:
		c.allStop()
	}
}

func (c *Controller) actRun() {
	azNow := uint16(c.azNow.Load())
	elNow := uint16(c.elNow.Load())
	azTarget := uint16(c.azTarget.Load())
	elTarget := uint16(c.elTarget.Load())

	stuck := false
	if c.azStall >= StallThreshold && (c.cw.Load() || c.ccw.Load()) {
		stuck = true
	}
	if c.elStall >= StallThreshold && (c.up.Load() || c.down.Load()) {
		stuck = true
	}
	if stuck {
		c.allStop()
		c.state.Store(int32(StateErrStuck))
		return
	}

	c.driveAxisAz(azNow, azTarget)
	c.driveAxisEl(elNow, elTarget)
}

func (c *Controller) driveAxisAz(now, target uint16) {
	switch {
	case c.cw.Load():
		if now >= target {
			c.setCW(false)
		}
	case c.ccw.Load():
		if now <= target {
			c.setCCW(false)
		}
	default:
		diff := int(now) - int(target)
		if diff > Deadband {
			c.setCCW(true)
		} else if -diff > Deadband {
			c.setCW(true)
		}
	}
}

func (c *Controller) driveAxisEl(now, target uint16) {
	switch {
	case c.up.Load():
		if now >= target {
			c.setUp(false)
		}
	case c.down.Load():
		if now <= target {
			c.setDown(false)
		}
	default:
		diff := int(now) - int(target)
		if diff > Deadband {
			c.setDown(true)
		} else if -diff > Deadband {
			c.setUp(true)
		}
	}
}

func (c *Controller) actCalStart() {
	c.setCW(false)
	c.setUp(false)
	c.setCCW(true)
	c.setDown(true)
	time.Sleep(MotionStartPeriod)
	c.state.Store(int32(StateCalSeekMins))
}

func (c *Controller) actCalSeekMins() {
	if c.azStall >= StallThreshold && c.elStall >= StallThreshold {
		azNow, elNow := uint16(c.azNow.Load()), uint16(c.elNow.Load())
		c.calAzMin.Store(uint32(azNow))
		c.calElMin.Store(uint32(elNow))
		c.setCCW(false)
		c.setDown(false)
		c.setCW(true)
		c.setUp(true)
		time.Sleep(MotionStartPeriod)
		c.state.Store(int32(StateCalSeekMaxs))
	}
}

func (c *Controller) actCalSeekMaxs() {
	if c.azStall >= StallThreshold && c.elStall >= StallThreshold {
		azNow, elNow := uint16(c.azNow.Load()), uint16(c.elNow.Load())
		c.calAzMax.Store(uint32(azNow))
		c.calElMax.Store(uint32(elNow))
		c.allStop()

		cc := c.Calibration()
		cc.AzMin = uint16(c.calAzMin.Load())
		cc.ElMin = uint16(c.calElMin.Load())
		cc.Valid = cc.Check()
		if cc.Valid {
			if err := cal.Save(c.calPath, cc); err != nil {
				log.Printf("controller: saving calibration: %s", err)
			}
		}
		c.calValid.Store(cc.Valid)
		c.state.Store(int32(StateStop))
	}
}

func (c *Controller) enterError(s State) {
	c.allStop()
	c.state.Store(int32(s))
}

func (c *Controller) allStop() {
	c.setCW(false)
	c.setCCW(false)
	c.setUp(false)
	c.setDown(false)
}

func (c *Controller) deenergize() {
	c.allStop()
}

func (c *Controller) setCW(high bool) {
	if high {
		c.setCCW(false)
	}
	c.cw.Store(high)
	if err := c.h.SetPin(hal.PinAzCW, high); err != nil {
		log.Printf("controller: set AZ_CW pin: %s", err)
	}
}

func (c *Controller) setCCW(high bool) {
	if high {
		c.cw.Store(false)
		if err := c.h.SetPin(hal.PinAzCW, false); err != nil {
			log.Printf("controller: set AZ_CW pin: %s", err)
		}
	}
	c.ccw.Store(high)
	if err := c.h.SetPin(hal.PinAzCCW, high); err != nil {
		log.Printf("controller: set AZ_CCW pin: %s", err)
	}
}

func (c *Controller) setUp(high bool) {
	if high {
		c.down.Store(false)
		if err := c.h.SetPin(hal.PinElDown, false); err != nil {
			log.Printf("controller: set EL_DOWN pin: %s", err)
		}
	}
	c.up.Store(high)
	if err := c.h.SetPin(hal.PinElUp, high); err != nil {
		log.Printf("controller: set EL_UP pin: %s", err)
	}
}

func (c *Controller) setDown(high bool) {
	if high {
		c.up.Store(false)
		if err := c.h.SetPin(hal.PinElUp, false); err != nil {
			log.Printf("controller: set EL_UP pin: %s", err)
		}
	}
	c.down.Store(high)
	if err := c.h.SetPin(hal.PinElDown, high); err != nil {
		log.Printf("controller: set EL_DOWN pin: %s", err)
	}
}
