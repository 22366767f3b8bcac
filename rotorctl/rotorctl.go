// Package rotorctl implements the Control Surface: the facade the network
// dialects call into. It translates position/direction requests into
// controller targets and state transitions, and translates controller
// error state into the fixed Code enum.
package rotorctl

import (
	"log"
	"time"

	"golang.org/x/time/rate"

	"github.com/hb9cv/g5500d/cal"
	"github.com/hb9cv/g5500d/controller"
	"github.com/hb9cv/g5500d/coord"
	"github.com/hb9cv/g5500d/hal"
)

// Direction selects an axis/extreme for move's run-to-limit command.
type Direction int

// Directions accepted by Move.
const (
	Left Direction = iota
	Right
	Up
	Down
)

// Info is the get_info payload: mount bounds and the currently configured
// simulator mode.
type Info struct {
	AzMin, AzMax float64
	ElMin        float64
	ElMax        float64 // effective ceiling, tracks simulator mode
	SimMode      hal.SimMode
}

// Caps is the dump_caps payload — an operational summary beyond the literal
// spec.md text (SPEC_FULL.md §1.3), useful for the admin CLI and status page.
type Caps struct {
	AzMin, AzMax       float64
	ElMin, ElMax       float64
	TickMS             int
	DeadbandCounts     int
	StallThreshold     int
	SimMode            hal.SimMode
	Calibrated         bool
	CalAzMin, CalAzMax uint16
	CalElMin, CalElMax uint16
}

// Surface is the Control Surface consumed by the rotctld and httpapi
// dialects. It holds no dialect-specific state.
type Surface struct {
	ctrl    *controller.Controller
	calPath string

	logLimiter *rate.Limiter
}

// New constructs a Surface over ctrl, loading/saving calibration at calPath.
func New(ctrl *controller.Controller, calPath string) *Surface {
	return &Surface{
		ctrl:       ctrl,
		calPath:    calPath,
		logLimiter: rate.NewLimiter(rate.Every(5*time.Second), 1),
	}
}

// stateToCode maps a latched controller error state to its Code.
func stateToCode(s controller.State) Code {
	switch s {
	case controller.StateErrADC:
		return AdcFail
	case controller.StateErrNoPower:
		return NoPower
	case controller.StateErrStuck:
		return Stuck
	default:
		return OK
	}
}

// ensureReady implements spec.md §4.5's ensure_ready: reports and clears a
// latched controller error, attempts a calibration file load if needed, and
// otherwise kicks off a calibration sweep.
func (s *Surface) ensureReady() Code {
	if st := s.ctrl.State(); st.IsError() {
		code := stateToCode(st)
		s.ctrl.RequestStop()
		return code
	}

	if !s.ctrl.Calibration().Valid {
		if c, err := cal.Load(s.calPath); err == nil {
			s.ctrl.LoadCalibration(c)
		}
	}

	if !s.ctrl.Calibration().Valid {
		s.ctrl.RequestCalibrate()
		return Calibrating
	}

	return OK
}

// SetPosition validates az/el against mount bounds and the effective
// elevation ceiling, writes new targets, and requests RUN.
func (s *Surface) SetPosition(az, el float64) Code {
	if code := s.ensureReady(); code != OK {
		return code
	}
	elMax := s.ctrl.ElMaxDeg()
	if az < coord.AzMin || az > coord.AzMax {
		return BadArgs
	}
	if el < coord.ElMin || el > elMax {
		return BadArgs
	}

	c := s.ctrl.Calibration()
	azCounts := coord.AzToADC(c, az)
	elCounts := coord.ElToADC(c, el, elMax)
	s.ctrl.SetTargets(azCounts, elCounts)
	s.ctrl.RequestRun()
	return OK
}

// GetPosition reports the current az/el in degrees. A latched controller
// error is returned once, then cleared, so a polling client that never
// issues a write still observes the fault (spec.md §7). A sweep in progress
// reports CALIBRATING rather than a stale or fabricated position. Unlike the
// motion calls it does not go through ensureReady: it neither loads the
// calibration file nor starts a sweep.
func (s *Surface) GetPosition() (az, el float64, code Code) {
	if st := s.ctrl.State(); st.IsError() {
		code = stateToCode(st)
		s.ctrl.RequestStop()
		return 0, 0, code
	} else if st.IsCalibrating() {
		return 0, 0, Calibrating
	}

	c := s.ctrl.Calibration()
	azNow, elNow := s.ctrl.Now()
	az = coord.ADCToAz(c, azNow)
	el = coord.ADCToEl(c, elNow, s.ctrl.ElMaxDeg())

	if s.logLimiter.Allow() {
		log.Printf("rotorctl: get_position az=%.1f el=%.1f state=%s", az, el, s.ctrl.State())
	}
	return az, el, OK
}

// Move sets the extreme target for dir's axis and requests RUN — a
// run-to-limit command. The other axis's target is left unchanged.
func (s *Surface) Move(dir Direction) Code {
	if code := s.ensureReady(); code != OK {
		return code
	}
	c := s.ctrl.Calibration()
	azTarget, elTarget := s.ctrl.Targets()

	switch dir {
	case Left:
		azTarget = c.AzMin
	case Right:
		azTarget = c.AzMax
	case Up:
		elTarget = c.ElMax
	case Down:
		elTarget = c.ElMin
	default:
		return BadArgs
	}

	s.ctrl.SetTargets(azTarget, elTarget)
	s.ctrl.RequestRun()
	return OK
}

// Park commands both axes to (0, 0) and requests RUN.
func (s *Surface) Park() Code {
	if code := s.ensureReady(); code != OK {
		return code
	}
	c := s.ctrl.Calibration()
	elMax := s.ctrl.ElMaxDeg()
	s.ctrl.SetTargets(coord.AzToADC(c, 0), coord.ElToADC(c, 0, elMax))
	s.ctrl.RequestRun()
	return OK
}

// Stop preempts any motion immediately, regardless of controller state.
func (s *Surface) Stop() Code {
	s.ensureReady()
	s.ctrl.RequestStop()
	return OK
}

// SetSimMode validates n against the known SimMode range and resets the
// controller's simulator mode, elevation ceiling, synthetic calibration,
// and motion state.
func (s *Surface) SetSimMode(n int) Code {
	if n < int(hal.SimOff) || n > int(hal.SimEl180) {
		return BadArgs
	}
	s.ctrl.ApplySimMode(hal.SimMode(n))
	return OK
}

// GetInfo reports mount bounds and the current simulator mode.
func (s *Surface) GetInfo() Info {
	return Info{
		AzMin:   coord.AzMin,
		AzMax:   coord.AzMax,
		ElMin:   coord.ElMin,
		ElMax:   s.ctrl.ElMaxDeg(),
		SimMode: s.ctrl.SimMode(),
	}
}

// Diagnostics returns the controller's raw state name, status bitset, and
// commanded targets (in ADC counts), for the status page and admin CLI.
func (s *Surface) Diagnostics() (state string, status controller.Status, targetAz, targetEl uint16) {
	az, el := s.ctrl.Targets()
	return s.ctrl.State().String(), s.ctrl.Status(), az, el
}

// DumpCaps reports an operational summary: mount bounds, tick rate,
// deadband, stall threshold, simulator mode, and calibration state.
func (s *Surface) DumpCaps() Caps {
	c := s.ctrl.Calibration()
	return Caps{
		AzMin:          coord.AzMin,
		AzMax:          coord.AzMax,
		ElMin:          coord.ElMin,
		ElMax:          s.ctrl.ElMaxDeg(),
		TickMS:         int(controller.Tick / time.Millisecond),
		DeadbandCounts: controller.Deadband,
		StallThreshold: controller.StallThreshold,
		SimMode:        s.ctrl.SimMode(),
		Calibrated:     c.Valid,
		CalAzMin:       c.AzMin,
		CalAzMax:       c.AzMax,
		CalElMin:       c.ElMin,
		CalElMax:       c.ElMax,
	}
}
