package repository

import (
	"context"

	"plantlab/internal/models"
)

// Repository stores reading series, one per sensor.
type Repository interface {
	// Append adds a reading to its sensor's series.
	Append(ctx context.Context, r models.Reading) error
	// Latest returns the reading with the greatest timestamp; ties go to the
	// later arrival. ok is false when the sensor has no readings.
	Latest(ctx context.Context, sensorID string) (r models.Reading, ok bool, err error)
	// Range returns readings with from <= ts <= to, ascending by timestamp,
	// ties in arrival order.
	Range(ctx context.Context, sensorID string, from, to int64) ([]models.Reading, error)
	// HasData reports whether any sensor has at least one reading.
	HasData(ctx context.Context) (bool, error)
}
