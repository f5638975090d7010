package models

// Reading is one calibrated soil-moisture sample for a sensor.
// Timestamp is unix seconds.
type Reading struct {
	SensorID  string  `json:"sensor_id"`
	Timestamp int64   `json:"ts"`
	RawADC    int     `json:"adc"`
	Percent   float64 `json:"percent"`
}

// IngestRequest is the payload a sensor node posts to /api/ingest.
// Pointer fields distinguish an absent value from a zero value.
type IngestRequest struct {
	SensorID string   `json:"sensor_id"`
	ADC      *int     `json:"adc,omitempty"`
	Percent  *float64 `json:"percent"`
	TS       *int64   `json:"ts,omitempty"`
}

// IngestResponse acknowledges a stored reading.
type IngestResponse struct {
	OK       bool   `json:"ok"`
	SensorID string `json:"sensor_id"`
	StoredTS int64  `json:"stored_ts"`
}
