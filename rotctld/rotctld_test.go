package rotctld

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/hb9cv/g5500d/controller"
	"github.com/hb9cv/g5500d/hal"
	"github.com/hb9cv/g5500d/rotorctl"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	h := hal.NewSim(hal.SimEl180, 50)
	if err := h.Init(); err != nil {
		t.Fatalf("sim Init: %v", err)
	}
	t.Cleanup(func() { h.Shutdown() })
	calPath := filepath.Join(t.TempDir(), "cal.txt")
	ctrl := controller.New(h, calPath)
	ctrl.ApplySimMode(hal.SimEl180) // synthesize a valid calibration matching the sim HAL's mode
	surf := rotorctl.New(ctrl, calPath)
	return New(":0", surf)
}

func TestDispatchSetAndGetPosition(t *testing.T) {
	s := newTestServer(t)

	reply := s.dispatch("P 90 45")
	if strings.TrimSpace(reply) != "RPRT 0" {
		t.Fatalf("expected RPRT 0, got %q", reply)
	}

	reply = s.dispatch("p")
	lines := strings.Split(strings.TrimSpace(reply), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two-line position reply, got %q", reply)
	}
}

func TestDispatchMalformedCommand(t *testing.T) {
	s := newTestServer(t)
	if got := s.dispatch("P notanumber"); got != einval {
		t.Errorf("expected %q for malformed P, got %q", einval, got)
	}
	if got := s.dispatch("bogus"); got != einval {
		t.Errorf("expected %q for unknown verb, got %q", einval, got)
	}
}

func TestDispatchStopAndPark(t *testing.T) {
	s := newTestServer(t)
	if reply := s.dispatch("S"); strings.TrimSpace(reply) != "RPRT 0" {
		t.Errorf("expected RPRT 0 from stop, got %q", reply)
	}
	if reply := s.dispatch("K"); strings.TrimSpace(reply) != "RPRT 0" {
		t.Errorf("expected RPRT 0 from park, got %q", reply)
	}
}

func TestDispatchChkVFO(t *testing.T) {
	s := newTestServer(t)
	if got := s.dispatch("\\chk_vfo"); got != "0\n" {
		t.Errorf("expected \"0\\n\", got %q", got)
	}
}
