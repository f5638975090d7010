package node

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"
)

// ADC is a raw analog source.
type ADC interface {
	Read() (int, error)
}

// SysfsADC reads a raw value from an IIO sysfs file, for example
// /sys/bus/iio/devices/iio:device0/in_voltage0_raw.
type SysfsADC struct {
	Path string
}

// Read returns the current raw value.
func (a SysfsADC) Read() (int, error) {
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return 0, fmt.Errorf("reading adc %s: %w", a.Path, err)
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parsing adc value from %s: %w", a.Path, err)
	}
	return v, nil
}

// SimulatedADC produces a slowly drifting noisy signal between Wet and Dry
// for bench runs without hardware.
type SimulatedADC struct {
	Dry   int
	Wet   int
	rng   *rand.Rand
	start time.Time
	now   func() time.Time
}

// NewSimulatedADC creates a SimulatedADC spanning the calibration range.
func NewSimulatedADC(dry, wet int, seed int64) *SimulatedADC {
	return &SimulatedADC{
		Dry:   dry,
		Wet:   wet,
		rng:   rand.New(rand.NewSource(seed)),
		start: time.Now(),
		now:   time.Now,
	}
}

// Read returns the next simulated raw value.
func (a *SimulatedADC) Read() (int, error) {
	lo, hi := float64(min(a.Dry, a.Wet)), float64(max(a.Dry, a.Wet))
	mid := (lo + hi) / 2
	span := (hi - lo) / 2

	elapsed := a.now().Sub(a.start).Seconds()
	v := mid + 0.6*span*math.Sin(elapsed/600) + a.rng.NormFloat64()*0.03*span
	return int(math.Round(math.Max(lo, math.Min(hi, v)))), nil
}
