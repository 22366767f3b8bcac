// Package coord converts between degrees and ADC counts using a
// calibration's endpoints. Every function here is pure: no I/O, no shared
// state, safe to call from any goroutine.
package coord

import (
	"github.com/hb9cv/g5500d/cal"
	"github.com/hb9cv/g5500d/util"
)

// Mount bounds, in degrees.
const (
	AzMin = 0.0
	AzMax = 450.0
	// AzWrapAt is the azimuth at and above which the OVERLAP_RIGHT status
	// bit is published. Motion is never blocked past this point.
	AzWrapAt = 360.0

	ElMin = 0.0
	ElMax = 180.0
)

// AzToADC converts an azimuth in degrees to an ADC count using cal's
// endpoints. deg is clamped to [AzMin, AzMax] before conversion. Only valid
// when cal.Valid is true.
func AzToADC(c cal.Calibration, deg float64) uint16 {
	deg = util.Clamp(deg, AzMin, AzMax)
	span := float64(c.AzMax) - float64(c.AzMin)
	counts := float64(c.AzMin) + deg*span/AzMax
	return clampCounts(counts)
}

// ADCToAz converts an ADC count to an azimuth in degrees using cal's
// endpoints, clamped to [AzMin, AzMax].
func ADCToAz(c cal.Calibration, counts uint16) float64 {
	span := float64(c.AzMax) - float64(c.AzMin)
	if span <= 0 {
		return 0
	}
	deg := (float64(counts) - float64(c.AzMin)) * AzMax / span
	return util.Clamp(deg, AzMin, AzMax)
}

// ElToADC converts an elevation in degrees to an ADC count using cal's
// endpoints and the effective elevation ceiling elMaxDeg (which tracks
// simulator mode). In AZ_ONLY mode (elMaxDeg == 0) it always returns
// c.ElMin, since elevation has no meaning there.
func ElToADC(c cal.Calibration, deg, elMaxDeg float64) uint16 {
	if elMaxDeg <= 0 {
		return c.ElMin
	}
	deg = util.Clamp(deg, ElMin, elMaxDeg)
	span := float64(c.ElMax) - float64(c.ElMin)
	counts := float64(c.ElMin) + deg*span/elMaxDeg
	return clampCounts(counts)
}

// ADCToEl converts an ADC count to an elevation in degrees using cal's
// endpoints and the effective elevation ceiling elMaxDeg. Returns 0 if
// elMaxDeg is 0 (AZ_ONLY mode forces elevation conversions to zero).
func ADCToEl(c cal.Calibration, counts uint16, elMaxDeg float64) float64 {
	if elMaxDeg <= 0 {
		return 0
	}
	span := float64(c.ElMax) - float64(c.ElMin)
	if span <= 0 {
		return 0
	}
	deg := (float64(counts) - float64(c.ElMin)) * elMaxDeg / span
	return util.Clamp(deg, ElMin, elMaxDeg)
}

func clampCounts(c float64) uint16 {
	c = util.Round(c, 1)
	if c < 0 {
		return 0
	}
	if c > 2047 {
		return 2047
	}
	return uint16(c)
}
