package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"plantlab/internal/models"
	"plantlab/internal/repository"
	"plantlab/internal/sampling"
)

// SensorsProvider supplies the current sensor configuration. Implementations
// decide when to reload it.
type SensorsProvider interface {
	Current() models.SensorConfig
}

// Options tune a ReadingService.
type Options struct {
	// DemoMode synthesizes data while the repository is empty.
	DemoMode bool
	// OfflineAfter marks a sensor offline when its latest reading is older.
	OfflineAfter time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// ReadingService handles ingestion and the latest/history queries.
type ReadingService struct {
	repo    repository.Repository
	sensors SensorsProvider
	opts    Options
	logger  *zap.Logger
}

// NewReadingService creates a new ReadingService.
func NewReadingService(repo repository.Repository, sensors SensorsProvider, opts Options, logger *zap.Logger) *ReadingService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.OfflineAfter <= 0 {
		opts.OfflineAfter = 180 * time.Second
	}
	return &ReadingService{
		repo:    repo,
		sensors: sensors,
		opts:    opts,
		logger:  logger,
	}
}

// Now returns the service clock.
func (s *ReadingService) Now() time.Time {
	return s.opts.Now()
}

// Config returns the current sensor configuration.
func (s *ReadingService) Config() models.SensorConfig {
	return s.sensors.Current()
}

// Ingest validates req and appends it to its sensor's series.
func (s *ReadingService) Ingest(ctx context.Context, req models.IngestRequest) (models.Reading, error) {
	cfg := s.sensors.Current()

	sensorID := NormalizeSensorID(req.SensorID)
	if sensorID == "" {
		return models.Reading{}, fmt.Errorf("%w: sensor_id is required", ErrInvalidReading)
	}
	if req.Percent == nil {
		return models.Reading{}, fmt.Errorf("%w: percent is required", ErrInvalidReading)
	}
	if math.IsNaN(*req.Percent) || math.IsInf(*req.Percent, 0) {
		return models.Reading{}, fmt.Errorf("%w: percent must be a finite number", ErrInvalidReading)
	}
	if req.TS != nil && *req.TS < 0 {
		return models.Reading{}, fmt.Errorf("%w: ts must not be negative", ErrInvalidReading)
	}
	if !cfg.Has(sensorID) {
		return models.Reading{}, &UnknownSensorError{SensorID: sensorID, Known: cfg.IDs()}
	}

	reading := models.Reading{
		SensorID:  sensorID,
		Timestamp: s.opts.Now().Unix(),
		Percent:   sampling.Clamp(*req.Percent, 0, 100),
	}
	if req.TS != nil && *req.TS > 0 {
		reading.Timestamp = *req.TS
	}
	if req.ADC != nil {
		reading.RawADC = *req.ADC
	}

	if err := s.repo.Append(ctx, reading); err != nil {
		return models.Reading{}, fmt.Errorf("storing reading: %w", err)
	}
	s.logger.Debug("reading ingested",
		zap.String("sensor_id", reading.SensorID),
		zap.Int64("ts", reading.Timestamp),
		zap.Float64("percent", reading.Percent))
	return reading, nil
}

func (s *ReadingService) demoActive(ctx context.Context) (bool, error) {
	if !s.opts.DemoMode {
		return false, nil
	}
	has, err := s.repo.HasData(ctx)
	if err != nil {
		return false, fmt.Errorf("checking for data: %w", err)
	}
	return !has, nil
}

// Latest returns the newest reading of every configured sensor, nil for
// sensors that have not reported.
func (s *ReadingService) Latest(ctx context.Context) (models.LatestResponse, error) {
	cfg := s.sensors.Current()
	now := s.opts.Now().Unix()

	demo, err := s.demoActive(ctx)
	if err != nil {
		return nil, err
	}

	out := make(models.LatestResponse, len(cfg.Sensors))
	for _, sensor := range cfg.Sensors {
		if demo {
			out[sensor.ID] = &models.LatestValue{
				Percent: DemoValue(sensor.ID, now),
				TS:      now,
				Label:   sensor.Label,
				Status:  models.StatusOnline,
			}
			continue
		}

		r, ok, err := s.repo.Latest(ctx, sensor.ID)
		if err != nil {
			return nil, fmt.Errorf("latest reading for %s: %w", sensor.ID, err)
		}
		if !ok {
			out[sensor.ID] = nil
			continue
		}
		age := max(now-r.Timestamp, 0)
		status := models.StatusOnline
		if time.Duration(age)*time.Second > s.opts.OfflineAfter {
			status = models.StatusOffline
		}
		out[sensor.ID] = &models.LatestValue{
			Percent: r.Percent,
			TS:      r.Timestamp,
			ADC:     r.RawADC,
			Label:   sensor.Label,
			Status:  status,
			AgeS:    age,
		}
	}
	return out, nil
}

// History returns every configured sensor's readings within w.
func (s *ReadingService) History(ctx context.Context, w models.HistoryWindow) (models.HistoryResponse, error) {
	cfg := s.sensors.Current()
	demo, err := s.demoActive(ctx)
	if err != nil {
		return nil, err
	}

	out := make(models.HistoryResponse, len(cfg.Sensors))
	for _, sensor := range cfg.Sensors {
		points, err := s.series(ctx, sensor.ID, w, demo)
		if err != nil {
			return nil, err
		}
		out[sensor.ID] = points
	}
	return out, nil
}

// SensorHistory returns one sensor's readings within w.
func (s *ReadingService) SensorHistory(ctx context.Context, sensorID string, w models.HistoryWindow) ([]models.HistoryPoint, error) {
	cfg := s.sensors.Current()
	id := NormalizeSensorID(sensorID)
	if !cfg.Has(id) {
		return nil, &UnknownSensorError{SensorID: id, Known: cfg.IDs()}
	}
	demo, err := s.demoActive(ctx)
	if err != nil {
		return nil, err
	}
	return s.series(ctx, id, w, demo)
}

func (s *ReadingService) series(ctx context.Context, sensorID string, w models.HistoryWindow, demo bool) ([]models.HistoryPoint, error) {
	var (
		readings []models.Reading
		err      error
	)
	if demo {
		readings = DemoSeries(sensorID, w.From, w.To)
	} else {
		readings, err = s.repo.Range(ctx, sensorID, w.From, w.To)
		if err != nil {
			return nil, fmt.Errorf("history for %s: %w", sensorID, err)
		}
	}

	points := make([]models.HistoryPoint, 0, len(readings))
	for _, r := range readings {
		if !w.Contains(r.Timestamp) {
			continue
		}
		points = append(points, models.HistoryPoint{TS: r.Timestamp, Percent: r.Percent})
	}
	return points, nil
}
