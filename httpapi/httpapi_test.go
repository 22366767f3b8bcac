package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/hb9cv/g5500d/controller"
	"github.com/hb9cv/g5500d/hal"
	"github.com/hb9cv/g5500d/rotorctl"
)

func newTestAPI(t *testing.T) (*API, *controller.Controller) {
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
	return New(surf, ctrl), ctrl
}

func TestGetPositionReturnsJSON(t *testing.T) {
	a, _ := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/position", nil)
	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var reply positionReplyT
	if err := json.Unmarshal(rec.Body.Bytes(), &reply); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if reply.Name != rotorctl.OK.String() {
		t.Errorf("expected OK, got %s", reply.Name)
	}
}

func TestGetPositionReportsCalibratingDuringSweep(t *testing.T) {
	a, ctrl := newTestAPI(t)
	ctrl.RequestCalibrate()

	req := httptest.NewRequest(http.MethodGet, "/position", nil)
	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var reply positionReplyT
	if err := json.Unmarshal(rec.Body.Bytes(), &reply); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if reply.Name != rotorctl.Calibrating.String() {
		t.Errorf("expected CALIBRATING while a sweep is in progress, got %s", reply.Name)
	}
}

func TestSetPositionSucceedsAfterSimModeCalibration(t *testing.T) {
	a, _ := newTestAPI(t)
	body, _ := json.Marshal(positionT{Az: 90, El: 45})
	req := httptest.NewRequest(http.MethodPost, "/position", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var reply codeReplyT
	if err := json.Unmarshal(rec.Body.Bytes(), &reply); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if reply.Name != rotorctl.OK.String() {
		t.Errorf("expected OK, got %s (code %d)", reply.Name, reply.Code)
	}
}

func TestBusyGateBlocksWritesDuringCalibration(t *testing.T) {
	a, ctrl := newTestAPI(t)
	ctrl.RequestCalibrate()

	body, _ := json.Marshal(positionT{Az: 90, El: 45})
	req := httptest.NewRequest(http.MethodPost, "/position", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusLocked {
		t.Fatalf("expected 423 Locked while calibrating, got %d", rec.Code)
	}
}

func TestBusyGateAllowsStopDuringCalibration(t *testing.T) {
	a, ctrl := newTestAPI(t)
	ctrl.RequestCalibrate()

	req := httptest.NewRequest(http.MethodPost, "/stop", nil)
	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected /stop to pass busy gate, got %d", rec.Code)
	}
}

func TestBusyGateAllowsGetDuringCalibration(t *testing.T) {
	a, ctrl := newTestAPI(t)
	ctrl.RequestCalibrate()

	req := httptest.NewRequest(http.MethodGet, "/info", nil)
	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected GET /info to pass busy gate, got %d", rec.Code)
	}
}

func TestSetSimModeRejectsOutOfRange(t *testing.T) {
	a, _ := newTestAPI(t)
	body, _ := json.Marshal(simModeT{Mode: 99})
	req := httptest.NewRequest(http.MethodPost, "/simmode", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, req)

	var reply codeReplyT
	if err := json.Unmarshal(rec.Body.Bytes(), &reply); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if reply.Name != rotorctl.BadArgs.String() {
		t.Errorf("expected BAD_ARGS, got %s", reply.Name)
	}
}

func TestStatusPageServesHTML(t *testing.T) {
	a, _ := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/status.html", nil)
	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct == "" {
		t.Errorf("expected a Content-Type header")
	}
}
