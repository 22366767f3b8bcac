package cal_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hb9cv/g5500d/cal"
)

func TestCheckSpanInvariant(t *testing.T) {
	ok := cal.Calibration{AzMin: 0, AzMax: 1000, ElMin: 0, ElMax: 1000}
	if !ok.Check() {
		t.Errorf("expected span of exactly MinSpan to pass")
	}
	bad := cal.Calibration{AzMin: 0, AzMax: 999, ElMin: 0, ElMax: 1000}
	if bad.Check() {
		t.Errorf("expected az span below MinSpan to fail")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cal.txt")
	want := cal.Calibration{AzMin: 100, AzMax: 1900, ElMin: 150, ElMax: 1850}

	if err := cal.Save(path, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := cal.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.AzMin != want.AzMin || got.AzMax != want.AzMax || got.ElMin != want.ElMin || got.ElMax != want.ElMax {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, want)
	}
	if !got.Valid {
		t.Errorf("expected loaded calibration to be marked valid")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := cal.Load(filepath.Join(t.TempDir(), "nonexistent.txt"))
	if !errors.Is(err, cal.ErrNotCalibrated) {
		t.Errorf("expected ErrNotCalibrated, got %v", err)
	}
}

func TestLoadCorruptedChecksum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cal.txt")
	if err := cal.Save(path, cal.Calibration{AzMin: 0, AzMax: 1200, ElMin: 0, ElMax: 1200}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	// change a digit in one of the data lines without touching the CRC line;
	// 1200 becomes 1300, still in range and wide enough, so only the
	// checksum can reject it
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	tampered := []byte(string(raw))
	for i, b := range tampered {
		if b == '2' {
			tampered[i] = '3'
			break
		}
	}
	if err := os.WriteFile(path, tampered, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := cal.Load(path); !errors.Is(err, cal.ErrNotCalibrated) {
		t.Errorf("expected ErrNotCalibrated on tampered file, got %v", err)
	}
}

func TestLoadRejectsNarrowSpan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cal.txt")
	if err := cal.Save(path, cal.Calibration{AzMin: 0, AzMax: 500, ElMin: 0, ElMax: 1200}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := cal.Load(path); !errors.Is(err, cal.ErrNotCalibrated) {
		t.Errorf("expected ErrNotCalibrated for az span below MinSpan, got %v", err)
	}
}

func TestLoadKeysInAnyOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cal.txt")
	body := "ADC_el_max = 1900\nADC_az_min = 50\nADC_el_min = 100\nADC_az_max = 1800\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := cal.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.AzMin != 50 || got.AzMax != 1800 || got.ElMin != 100 || got.ElMax != 1900 {
		t.Errorf("unexpected parse result: %+v", got)
	}
}
