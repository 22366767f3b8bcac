package rotorctl_test

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/hb9cv/g5500d/controller"
	"github.com/hb9cv/g5500d/hal"
	"github.com/hb9cv/g5500d/rotorctl"
)

// fakeHAL is a minimal controllable stand-in for hal.HAL, letting tests
// force a real ADC fault through a real controller tick rather than
// fabricating controller state directly.
type fakeHAL struct {
	mu          sync.Mutex
	az, el, pwr uint16
	azOK        bool
}

func newFakeHAL() *fakeHAL {
	return &fakeHAL{azOK: true, pwr: 2000, az: 1000, el: 1000}
}

func (f *fakeHAL) Init() error     { return nil }
func (f *fakeHAL) Shutdown() error { return nil }

func (f *fakeHAL) ReadADC(ch hal.Channel) (uint16, bool, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch ch {
	case hal.ChannelAz:
		if !f.azOK {
			return 0, false, "az fail"
		}
		return f.az, true, ""
	case hal.ChannelEl:
		return f.el, true, ""
	case hal.ChannelPower:
		return f.pwr, true, ""
	}
	return 0, false, "unknown"
}

func (f *fakeHAL) SetPin(hal.Pin, bool) error { return nil }

func newTestSurface(t *testing.T) (*rotorctl.Surface, *controller.Controller) {
	t.Helper()
	h := hal.NewSim(hal.SimEl180, 50)
	if err := h.Init(); err != nil {
		t.Fatalf("sim Init: %v", err)
	}
	t.Cleanup(func() { h.Shutdown() })

	calPath := filepath.Join(t.TempDir(), "cal.txt")
	ctrl := controller.New(h, calPath)
	ctrl.ApplySimMode(hal.SimEl180) // synthesize a valid calibration matching the sim HAL's mode
	return rotorctl.New(ctrl, calPath), ctrl
}

func TestSetPositionRejectsOutOfRangeAzimuth(t *testing.T) {
	s, _ := newTestSurface(t)
	if code := s.SetPosition(-1, 0); code != rotorctl.BadArgs {
		t.Errorf("expected BAD_ARGS for az=-1, got %v", code)
	}
	if code := s.SetPosition(451, 0); code != rotorctl.BadArgs {
		t.Errorf("expected BAD_ARGS for az=451, got %v", code)
	}
}

func TestSetPositionRejectsOutOfRangeElevation(t *testing.T) {
	s, ctrl := newTestSurface(t)
	elMax := ctrl.ElMaxDeg()
	if code := s.SetPosition(0, elMax+1); code != rotorctl.BadArgs {
		t.Errorf("expected BAD_ARGS for el beyond ceiling, got %v", code)
	}
}

func TestSetPositionReturnsCalibratingWithoutCalFile(t *testing.T) {
	h := hal.NewSim(hal.SimOff, 50)
	if err := h.Init(); err != nil {
		t.Fatalf("sim Init: %v", err)
	}
	defer h.Shutdown()
	calPath := filepath.Join(t.TempDir(), "cal.txt")
	ctrl := controller.New(h, calPath)
	s := rotorctl.New(ctrl, calPath)

	if code := s.SetPosition(0, 0); code != rotorctl.Calibrating {
		t.Errorf("expected CALIBRATING with no calibration, got %v", code)
	}
	if ctrl.State() != controller.StateCalStart {
		t.Errorf("expected controller to enter CAL_START, got %v", ctrl.State())
	}
}

func TestGetPositionReportsCalibratingDuringSweep(t *testing.T) {
	s, ctrl := newTestSurface(t)
	ctrl.RequestCalibrate()

	_, _, code := s.GetPosition()
	if code != rotorctl.Calibrating {
		t.Errorf("expected CALIBRATING while a sweep is in progress, got %v", code)
	}
	if ctrl.State() != controller.StateCalStart {
		t.Errorf("GetPosition must not disturb the sweep state, got %v", ctrl.State())
	}
}

func TestSetPositionSucceedsOnceSimModeSynthesizesCalibration(t *testing.T) {
	s, _ := newTestSurface(t) // SimEl180 synthesizes a valid calibration
	if code := s.SetPosition(90, 45); code != rotorctl.OK {
		t.Errorf("expected OK, got %v", code)
	}
}

func TestGetPositionReportsAndClearsLatchedError(t *testing.T) {
	h := newFakeHAL()
	calPath := filepath.Join(t.TempDir(), "cal.txt")
	ctrl := controller.New(h, calPath)
	ctrl.ApplySimMode(hal.SimEl180) // synthesize a valid calibration
	s := rotorctl.New(ctrl, calPath)

	h.azOK = false
	ctrl.Tick() // a real ADC fault latches ERR_ADC
	if ctrl.State() != controller.StateErrADC {
		t.Fatalf("expected ERR_ADC after a failed tick, got %v", ctrl.State())
	}

	_, _, code := s.GetPosition()
	if code != rotorctl.AdcFail {
		t.Fatalf("expected ADC_FAIL on first read, got %v", code)
	}
	_, _, code = s.GetPosition()
	if code != rotorctl.OK {
		t.Errorf("expected error to clear after one report, got %v", code)
	}
}

func TestStopClearsBusyMotion(t *testing.T) {
	s, ctrl := newTestSurface(t)
	if code := s.SetPosition(200, 90); code != rotorctl.OK {
		t.Fatalf("SetPosition: %v", code)
	}
	if code := s.Stop(); code != rotorctl.OK {
		t.Errorf("expected OK from Stop, got %v", code)
	}
	if ctrl.State() != controller.StateStop {
		t.Errorf("expected STOP after Stop(), got %v", ctrl.State())
	}
}

func TestSetSimModeRejectsOutOfRange(t *testing.T) {
	s, _ := newTestSurface(t)
	if code := s.SetSimMode(99); code != rotorctl.BadArgs {
		t.Errorf("expected BAD_ARGS for an unknown sim mode, got %v", code)
	}
}

func TestDumpCapsReportsCurrentMountBounds(t *testing.T) {
	s, _ := newTestSurface(t)
	caps := s.DumpCaps()
	if caps.AzMax != 450 {
		t.Errorf("expected AzMax=450, got %v", caps.AzMax)
	}
	if caps.ElMax != 180 {
		t.Errorf("expected ElMax=180 under SimEl180, got %v", caps.ElMax)
	}
}
