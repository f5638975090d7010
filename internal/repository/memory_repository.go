package repository

import (
	"context"
	"sort"
	"sync"

	"plantlab/internal/models"
)

// MemoryRepository keeps bounded per-sensor series in memory. Each series has
// its own lock so writers to different sensors never contend.
type MemoryRepository struct {
	maxPoints int

	mu     sync.RWMutex
	series map[string]*series
}

type series struct {
	mu       sync.RWMutex
	readings []models.Reading
}

// NewMemoryRepository creates a repository keeping at most maxPoints readings
// per sensor; the oldest arrivals are dropped first.
func NewMemoryRepository(maxPoints int) *MemoryRepository {
	if maxPoints < 1 {
		maxPoints = 1
	}
	return &MemoryRepository{
		maxPoints: maxPoints,
		series:    make(map[string]*series),
	}
}

func (m *MemoryRepository) get(sensorID string) *series {
	m.mu.RLock()
	s := m.series[sensorID]
	m.mu.RUnlock()
	return s
}

func (m *MemoryRepository) getOrCreate(sensorID string) *series {
	if s := m.get(sensorID); s != nil {
		return s
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.series[sensorID]
	if !ok {
		s = &series{}
		m.series[sensorID] = s
	}
	return s
}

// Append adds r to its sensor's series.
func (m *MemoryRepository) Append(_ context.Context, r models.Reading) error {
	s := m.getOrCreate(r.SensorID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.readings) >= m.maxPoints {
		s.readings = s.readings[len(s.readings)-m.maxPoints+1:]
	}
	s.readings = append(s.readings, r)
	return nil
}

// Latest returns the newest reading of a sensor.
func (m *MemoryRepository) Latest(_ context.Context, sensorID string) (models.Reading, bool, error) {
	s := m.get(sensorID)
	if s == nil {
		return models.Reading{}, false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		best  models.Reading
		found bool
	)
	for _, r := range s.readings {
		if !found || r.Timestamp >= best.Timestamp {
			best, found = r, true
		}
	}
	return best, found, nil
}

// Range returns a sorted copy of the readings within [from, to].
func (m *MemoryRepository) Range(_ context.Context, sensorID string, from, to int64) ([]models.Reading, error) {
	out := []models.Reading{}
	s := m.get(sensorID)
	if s == nil {
		return out, nil
	}

	s.mu.RLock()
	for _, r := range s.readings {
		if r.Timestamp >= from && r.Timestamp <= to {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

// HasData reports whether any series holds a reading.
func (m *MemoryRepository) HasData(_ context.Context) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.series {
		s.mu.RLock()
		n := len(s.readings)
		s.mu.RUnlock()
		if n > 0 {
			return true, nil
		}
	}
	return false, nil
}
