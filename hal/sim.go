package hal

import (
	"sync"
	"time"

	"github.com/hb9cv/g5500d/cal"
	"github.com/hb9cv/g5500d/coord"
)

// SimMode selects which axes the simulator advances and what elevation
// ceiling it enforces. AzOnly mimics a mount with no elevation actuator;
// El90/El180 mimic elevation-capable mounts with different physical stops.
type SimMode int

const (
	SimOff SimMode = iota
	SimAzOnly
	SimEl90
	SimEl180
)

// elCeiling returns the effective elevation ceiling for m, or 0 when the
// simulated mount has no elevation axis at all.
func (m SimMode) elCeiling() float64 {
	switch m {
	case SimAzOnly:
		return 0
	case SimEl90:
		return 90
	case SimEl180:
		return 180
	default:
		return coord.ElMax
	}
}

// simCal is the fixed pseudo-calibration the simulator reports through
// ReadADC; it has nothing to do with any calibration file on disk; it only
// gives the simulated potentiometers a plausible count range.
var simCal = cal.Calibration{AzMin: 100, AzMax: 1947, ElMin: 100, ElMax: 1947, Valid: true}

// tickPeriod is how often the simulator advances position while a
// direction pin is asserted.
const tickPeriod = 50 * time.Millisecond

// Sim is a bench/CI stand-in for Real: it tracks a synthetic az/el position
// in degrees and advances it while the controller asserts a direction pin,
// at a configured angular speed. No real GPIO or I2C is touched.
type Sim struct {
	mu       sync.Mutex
	pins     map[Pin]bool
	az, el   float64
	mode     SimMode
	speedDps float64

	stop chan struct{}
	done chan struct{}
}

// NewSim constructs a simulated HAL. mode fixes the simulated mount's
// elevation behavior; speedDegPerSec is the angular rate both axes move at
// while a direction pin is held.
func NewSim(mode SimMode, speedDegPerSec float64) *Sim {
	return &Sim{
		pins:     make(map[Pin]bool, 4),
		mode:     mode,
		speedDps: speedDegPerSec,
	}
}

// Init starts the background tick loop that advances simulated position.
func (s *Sim) Init() error {
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run()
	return nil
}

// Shutdown stops the tick loop. Idempotent after Init.
func (s *Sim) Shutdown() error {
	if s.stop == nil {
		return nil
	}
	close(s.stop)
	<-s.done
	s.stop = nil
	return nil
}

func (s *Sim) run() {
	defer close(s.done)
	t := time.NewTicker(tickPeriod)
	defer t.Stop()
	last := time.Now()
	for {
		select {
		case <-s.stop:
			return
		case now := <-t.C:
			dt := now.Sub(last).Seconds()
			last = now
			s.advance(dt)
		}
	}
}

func (s *Sim) advance(dt float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	step := s.speedDps * dt
	elCeil := s.mode.elCeiling()

	if s.pins[PinAzCW] {
		s.az += step
	}
	if s.pins[PinAzCCW] {
		s.az -= step
	}
	if s.az < coord.AzMin {
		s.az = coord.AzMin
	}
	if s.az > coord.AzMax {
		s.az = coord.AzMax
	}

	if elCeil > 0 {
		if s.pins[PinElUp] {
			s.el += step
		}
		if s.pins[PinElDown] {
			s.el -= step
		}
		if s.el < coord.ElMin {
			s.el = coord.ElMin
		}
		if s.el > elCeil {
			s.el = elCeil
		}
	}
}

// SetPin records pin's commanded state; the next tick honors it.
func (s *Sim) SetPin(pin Pin, high bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pins[pin] = high
	return nil
}

// ReadADC reports the simulated position as ADC counts, using a fixed
// internal pseudo-calibration. ChannelPower always reads as healthy.
func (s *Sim) ReadADC(ch Channel) (uint16, bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ch {
	case ChannelAz:
		return coord.AzToADC(simCal, s.az), true, ""
	case ChannelEl:
		elCeil := s.mode.elCeiling()
		if elCeil <= 0 {
			return simCal.ElMin, true, ""
		}
		return coord.ElToADC(simCal, s.el, elCeil), true, ""
	case ChannelPower:
		return 2000, true, ""
	default:
		return 0, false, "unknown channel"
	}
}
