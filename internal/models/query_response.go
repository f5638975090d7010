package models

// Sensor status values reported by /api/latest.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// LatestValue is the most recent reading of one sensor.
type LatestValue struct {
	Percent float64 `json:"percent"`
	TS      int64   `json:"ts"`
	ADC     int     `json:"adc"`
	Label   string  `json:"label"`
	Status  string  `json:"status"`
	AgeS    int64   `json:"age_s"`
}

// HistoryPoint is a single point of a charted series.
type HistoryPoint struct {
	TS      int64   `json:"ts"`
	Percent float64 `json:"percent"`
}

// LatestResponse maps sensor id to its latest value, nil when the sensor has
// not reported yet.
type LatestResponse map[string]*LatestValue

// HistoryResponse maps sensor id to its points, ascending by timestamp.
type HistoryResponse map[string][]HistoryPoint

// HealthResponse is returned by /api/health.
type HealthResponse struct {
	Status string `json:"status"`
}
