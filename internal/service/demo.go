package service

import (
	"encoding/binary"
	"hash/fnv"
	"math"

	"plantlab/internal/models"
)

// DemoStep is the spacing of synthesized points, in seconds.
const DemoStep = 60

// DemoValue is the synthetic moisture of a sensor at ts. It depends only on
// its arguments, so overlapping windows always agree.
func DemoValue(sensorID string, ts int64) float64 {
	phase := sensorPhase(sensorID)
	t := float64(ts)
	base := 55 + 18*math.Sin(t/1800+phase) + 6*math.Sin(t/43200+2*phase)
	noise := demoNoise(sensorID, ts)*4 - 2
	v := math.Max(0, math.Min(100, base+noise))
	return math.Round(v*10) / 10
}

// DemoSeries synthesizes readings on the epoch-aligned DemoStep grid within
// [from, to].
func DemoSeries(sensorID string, from, to int64) []models.Reading {
	if to < from {
		return []models.Reading{}
	}
	first := from
	if rem := first % DemoStep; rem != 0 {
		if first > 0 {
			first += DemoStep - rem
		} else {
			first -= rem
		}
	}
	out := make([]models.Reading, 0, (to-first)/DemoStep+1)
	for ts := first; ts <= to; ts += DemoStep {
		out = append(out, models.Reading{SensorID: sensorID, Timestamp: ts, Percent: DemoValue(sensorID, ts)})
	}
	return out
}

func sensorPhase(sensorID string) float64 {
	h := fnv.New32a()
	h.Write([]byte(sensorID))
	return float64(h.Sum32()%6283) / 1000
}

// demoNoise returns a value in [0,1) derived from (sensorID, ts).
func demoNoise(sensorID string, ts int64) float64 {
	h := fnv.New64a()
	h.Write([]byte(sensorID))
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(ts))
	h.Write(buf[:])
	return float64(h.Sum64()>>11) / float64(1<<53)
}
