// Package cal loads and saves the four-point ADC calibration that maps
// potentiometer counts to azimuth/elevation degrees.
package cal

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/snksoft/crc"
)

// MinSpan is the minimum allowed distance, in ADC counts, between a min and
// max endpoint on either axis. Below this the calibration is rejected as
// implausible (a real sweep against limit switches always clears it).
const MinSpan = 1000

// DefaultFileName is the calibration file's name under the user's home
// directory.
const DefaultFileName = ".hamlib_g5500_cal.txt"

var crcTable = crc.NewTable(crc.XMODEM)

// Calibration holds the four ADC endpoints found by a limit-switch sweep.
type Calibration struct {
	AzMin, AzMax uint16
	ElMin, ElMax uint16
	Valid        bool
}

// Check reports whether the span invariant holds: az/el max must be at
// least MinSpan counts above their corresponding min.
func (c Calibration) Check() bool {
	return int(c.AzMax)-int(c.AzMin) >= MinSpan && int(c.ElMax)-int(c.ElMin) >= MinSpan
}

var (
	// ErrNotCalibrated is returned when the file is missing, unparsable,
	// or violates the span invariant.
	ErrNotCalibrated = errors.New("not calibrated")
)

// DefaultPath returns $HOME/.hamlib_g5500_cal.txt.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DefaultFileName), nil
}

// Load reads and validates a calibration file. Keys may appear in any
// order; unrecognized extra lines are ignored. If a CRC line is present it
// must match the four data lines, otherwise Load returns ErrNotCalibrated.
func Load(path string) (Calibration, error) {
	f, err := os.Open(path)
	if err != nil {
		return Calibration{}, fmt.Errorf("%w: %s", ErrNotCalibrated, err)
	}
	defer f.Close()

	vals := map[string]uint16{}
	var dataLines []string
	var wantCRC uint16
	haveCRC := false

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])

		if key == "CRC" {
			n, err := strconv.ParseUint(val, 10, 16)
			if err == nil {
				wantCRC = uint16(n)
				haveCRC = true
			}
			continue
		}

		switch key {
		case "ADC_az_min", "ADC_az_max", "ADC_el_min", "ADC_el_max":
			n, err := strconv.ParseUint(val, 10, 16)
			if err != nil || n > 2047 {
				return Calibration{}, fmt.Errorf("%w: bad value for %s", ErrNotCalibrated, key)
			}
			vals[key] = uint16(n)
			dataLines = append(dataLines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return Calibration{}, fmt.Errorf("%w: %s", ErrNotCalibrated, err)
	}

	required := []string{"ADC_az_min", "ADC_az_max", "ADC_el_min", "ADC_el_max"}
	for _, k := range required {
		if _, ok := vals[k]; !ok {
			return Calibration{}, fmt.Errorf("%w: missing %s", ErrNotCalibrated, k)
		}
	}

	if haveCRC && checksum(dataLines) != wantCRC {
		return Calibration{}, fmt.Errorf("%w: checksum mismatch", ErrNotCalibrated)
	}

	c := Calibration{
		AzMin: vals["ADC_az_min"],
		AzMax: vals["ADC_az_max"],
		ElMin: vals["ADC_el_min"],
		ElMax: vals["ADC_el_max"],
	}
	if !c.Check() {
		return Calibration{}, fmt.Errorf("%w: span invariant violated", ErrNotCalibrated)
	}
	c.Valid = true
	return c, nil
}

// Save writes c to path, truncate-and-write, with a trailing CRC-16/XMODEM
// line over the four data lines for corruption detection on the next Load.
// This offers no crash-safety guarantee beyond the single write(2) being
// atomic at the OS level for a file this small.
func Save(path string, c Calibration) error {
	lines := []string{
		fmt.Sprintf("ADC_az_min = %d", c.AzMin),
		fmt.Sprintf("ADC_az_max = %d", c.AzMax),
		fmt.Sprintf("ADC_el_min = %d", c.ElMin),
		fmt.Sprintf("ADC_el_max = %d", c.ElMax),
	}
	body := strings.Join(lines, "\n") + "\n" +
		fmt.Sprintf("CRC = %d\n", checksum(lines))

	return os.WriteFile(path, []byte(body), 0o644)
}

func checksum(dataLines []string) uint16 {
	crcVal := crcTable.InitCrc()
	for _, l := range dataLines {
		crcVal = crcTable.UpdateCrc(crcVal, []byte(l))
	}
	return crcTable.CRC16(crcVal)
}
