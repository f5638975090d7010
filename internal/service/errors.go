package service

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownSensor is returned for a sensor id missing from the configuration.
	ErrUnknownSensor = errors.New("unknown sensor_id")
	// ErrInvalidReading is returned for a malformed ingest payload.
	ErrInvalidReading = errors.New("invalid reading")
	// ErrInvalidWindow is returned for an unparseable history window.
	ErrInvalidWindow = errors.New("invalid history window")
	// ErrRangeTooLarge is returned when a history window exceeds the span cap.
	ErrRangeTooLarge = errors.New("range too large")
)

// UnknownSensorError carries the rejected id and the ids that are valid.
type UnknownSensorError struct {
	SensorID string
	Known    []string
}

func (e *UnknownSensorError) Error() string {
	return fmt.Sprintf("unknown sensor_id %q (known: %s)", e.SensorID, strings.Join(e.Known, ", "))
}

func (e *UnknownSensorError) Is(target error) bool {
	return target == ErrUnknownSensor
}

// NormalizeSensorID trims and upper-cases a sensor id.
func NormalizeSensorID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}
