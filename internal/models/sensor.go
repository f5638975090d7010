package models

// Sensor is a configured plant-pot sensor. Label is display-only.
type Sensor struct {
	ID    string `json:"id" yaml:"id"`
	Label string `json:"label" yaml:"label"`
}

// SensorConfig is the dashboard configuration: the valid sensors and the
// alarm threshold shown by the UI.
type SensorConfig struct {
	AlarmThreshold float64  `json:"alarm_threshold" yaml:"alarm_threshold"`
	Sensors        []Sensor `json:"sensors" yaml:"sensors"`
}

// Has reports whether id is a configured sensor.
func (c SensorConfig) Has(id string) bool {
	_, ok := c.Lookup(id)
	return ok
}

// Lookup returns the sensor with the given id.
func (c SensorConfig) Lookup(id string) (Sensor, bool) {
	for _, s := range c.Sensors {
		if s.ID == id {
			return s, true
		}
	}
	return Sensor{}, false
}

// IDs returns the configured sensor ids in configuration order.
func (c SensorConfig) IDs() []string {
	ids := make([]string, 0, len(c.Sensors))
	for _, s := range c.Sensors {
		ids = append(ids, s.ID)
	}
	return ids
}
