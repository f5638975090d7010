package repository

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/query"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.uber.org/zap"

	"plantlab/internal/models"
)

const measurement = "soil_moisture"

// InfluxDBRepository persists readings in an InfluxDB bucket: one point per
// reading, tagged by sensor_id, with percent and adc fields.
type InfluxDBRepository struct {
	client influxdb2.Client
	org    string
	bucket string
	logger *zap.Logger

	// hasData latches once a reading has been seen.
	hasData atomic.Bool
	// seq is the arrival counter used as the sub-second part of point times.
	seq atomic.Int64
}

// NewInfluxDBRepository creates a new InfluxDBRepository.
func NewInfluxDBRepository(url, token, org, bucket string, logger *zap.Logger) *InfluxDBRepository {
	r := &InfluxDBRepository{
		client: influxdb2.NewClient(url, token),
		org:    org,
		bucket: bucket,
		logger: logger,
	}
	// A clock-derived start keeps restarts from reusing the previous run's
	// offsets, with room left before the counter wraps.
	r.seq.Store(int64(time.Now().Nanosecond() / 2))
	return r
}

// Close releases the underlying client.
func (r *InfluxDBRepository) Close() {
	r.client.Close()
}

// Ping checks that the server is healthy.
func (r *InfluxDBRepository) Ping(ctx context.Context) error {
	health, err := r.client.Health(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to InfluxDB: %w", err)
	}
	if health.Status != "pass" {
		msg := ""
		if health.Message != nil {
			msg = *health.Message
		}
		return fmt.Errorf("InfluxDB health check failed: %s", msg)
	}
	return nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (r *InfluxDBRepository) EnsureBucket(ctx context.Context) error {
	exists, err := r.bucketExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	org, err := r.client.OrganizationsAPI().FindOrganizationByName(ctx, r.org)
	if err != nil {
		return fmt.Errorf("finding organization %q: %w", r.org, err)
	}
	if org == nil {
		return fmt.Errorf("organization %q not found", r.org)
	}
	if _, err := r.client.BucketsAPI().CreateBucketWithName(ctx, org, r.bucket); err != nil {
		return fmt.Errorf("creating bucket %q: %w", r.bucket, err)
	}
	r.logger.Info("bucket created", zap.String("bucket", r.bucket), zap.String("org", r.org))
	return nil
}

func (r *InfluxDBRepository) bucketExists(ctx context.Context) (bool, error) {
	_, err := r.client.BucketsAPI().FindBucketByName(ctx, r.bucket)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return false, nil
		}
		return false, fmt.Errorf("error checking bucket existence: %w", err)
	}
	return true, nil
}

// point builds the point for reading. Points sharing measurement, tags and
// time replace each other, so the nanosecond part carries an arrival counter:
// same-second readings stay distinct and sort by arrival. Readers truncate to
// whole seconds.
func (r *InfluxDBRepository) point(reading models.Reading) *write.Point {
	seq := r.seq.Add(1) % int64(time.Second)
	return influxdb2.NewPoint(
		measurement,
		map[string]string{"sensor_id": reading.SensorID},
		map[string]interface{}{
			"percent": reading.Percent,
			"adc":     int64(reading.RawADC),
		},
		time.Unix(reading.Timestamp, seq),
	)
}

// Append writes one point.
func (r *InfluxDBRepository) Append(ctx context.Context, reading models.Reading) error {
	p := r.point(reading)
	if err := r.client.WriteAPIBlocking(r.org, r.bucket).WritePoint(ctx, p); err != nil {
		return fmt.Errorf("error writing to InfluxDB: %w", err)
	}
	r.hasData.Store(true)
	r.logger.Debug("reading written to InfluxDB",
		zap.String("bucket", r.bucket),
		zap.String("sensor_id", reading.SensorID),
		zap.Float64("percent", reading.Percent))
	return nil
}

// Latest returns the newest point of a sensor.
func (r *InfluxDBRepository) Latest(ctx context.Context, sensorID string) (models.Reading, bool, error) {
	readings, err := r.run(ctx, latestQuery(r.bucket, sensorID))
	if err != nil {
		return models.Reading{}, false, err
	}
	if len(readings) == 0 {
		return models.Reading{}, false, nil
	}
	return readings[len(readings)-1], true, nil
}

// Range returns points within [from, to], ascending.
func (r *InfluxDBRepository) Range(ctx context.Context, sensorID string, from, to int64) ([]models.Reading, error) {
	return r.run(ctx, rangeQuery(r.bucket, sensorID, from, to))
}

// HasData reports whether the bucket holds any reading.
func (r *InfluxDBRepository) HasData(ctx context.Context) (bool, error) {
	if r.hasData.Load() {
		return true, nil
	}
	readings, err := r.run(ctx, anyQuery(r.bucket))
	if err != nil {
		return false, err
	}
	if len(readings) > 0 {
		r.hasData.Store(true)
		return true, nil
	}
	return false, nil
}

func (r *InfluxDBRepository) run(ctx context.Context, flux string) ([]models.Reading, error) {
	r.logger.Debug("executing InfluxDB query", zap.String("query", flux))
	result, err := r.client.QueryAPI(r.org).Query(ctx, flux)
	if err != nil {
		return nil, fmt.Errorf("error querying InfluxDB: %w", err)
	}
	defer result.Close()

	readings := []models.Reading{}
	for result.Next() {
		readings = append(readings, recordToReading(result.Record()))
	}
	if result.Err() != nil {
		return nil, fmt.Errorf("query error: %w", result.Err())
	}
	return readings, nil
}

func recordToReading(rec *query.FluxRecord) models.Reading {
	reading := models.Reading{Timestamp: rec.Time().Unix()}
	if id, ok := rec.ValueByKey("sensor_id").(string); ok {
		reading.SensorID = id
	}
	switch v := rec.ValueByKey("percent").(type) {
	case float64:
		reading.Percent = v
	case int64:
		reading.Percent = float64(v)
	}
	switch v := rec.ValueByKey("adc").(type) {
	case int64:
		reading.RawADC = int(v)
	case float64:
		reading.RawADC = int(v)
	}
	return reading
}

// fluxString quotes s as a Flux string literal.
func fluxString(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`, "${", `\${`).Replace(s) + `"`
}

const pivotFields = `|> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")`

// rangeQuery selects [from, to]; Flux range stop is exclusive.
func rangeQuery(bucket, sensorID string, from, to int64) string {
	return fmt.Sprintf(`from(bucket: %s)
	|> range(start: %s, stop: %s)
	|> filter(fn: (r) => r["_measurement"] == %q)
	|> filter(fn: (r) => r["sensor_id"] == %s)
	%s
	|> sort(columns: ["_time"])`,
		fluxString(bucket),
		time.Unix(from, 0).UTC().Format(time.RFC3339),
		time.Unix(to+1, 0).UTC().Format(time.RFC3339),
		measurement, fluxString(sensorID), pivotFields)
}

func latestQuery(bucket, sensorID string) string {
	return fmt.Sprintf(`from(bucket: %s)
	|> range(start: 0)
	|> filter(fn: (r) => r["_measurement"] == %q)
	|> filter(fn: (r) => r["sensor_id"] == %s)
	|> last()
	%s`,
		fluxString(bucket), measurement, fluxString(sensorID), pivotFields)
}

func anyQuery(bucket string) string {
	return fmt.Sprintf(`from(bucket: %s)
	|> range(start: 0)
	|> filter(fn: (r) => r["_measurement"] == %q and r["_field"] == "percent")
	|> limit(n: 1)
	%s`,
		fluxString(bucket), measurement, pivotFields)
}
