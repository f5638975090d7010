package sampling

import (
	"fmt"
	"math"
)

// Calibration maps raw ADC values to moisture percent using two reference
// points: DryADC reads 0% and WetADC reads 100%. Capacitive probes read lower
// when wet, so DryADC is normally the larger value.
type Calibration struct {
	DryADC int
	WetADC int
}

// Validate reports a calibration that cannot produce a meaningful percentage.
func (c Calibration) Validate() error {
	if c.DryADC == c.WetADC {
		return fmt.Errorf("calibration points are equal (dry=%d wet=%d)", c.DryADC, c.WetADC)
	}
	return nil
}

// Percent converts a (smoothed) raw value into a percentage clamped to [0,100].
// Equal calibration points yield 0.
func (c Calibration) Percent(raw float64) float64 {
	if c.DryADC == c.WetADC || math.IsNaN(raw) {
		return 0
	}
	dry := float64(c.DryADC)
	pct := (dry - raw) * 100 / (dry - float64(c.WetADC))
	return Clamp(pct, 0, 100)
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
