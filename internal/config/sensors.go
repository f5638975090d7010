package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"plantlab/internal/models"
)

// DefaultSensorConfig is served when no usable sensors file exists.
func DefaultSensorConfig() models.SensorConfig {
	return models.SensorConfig{
		AlarmThreshold: 30,
		Sensors: []models.Sensor{
			{ID: "S1", Label: "Série 1"},
			{ID: "S2", Label: "Série 2"},
			{ID: "S3", Label: "Série 3"},
			{ID: "S4", Label: "Série 4"},
		},
	}
}

type rawSensorFile struct {
	AlarmThreshold any            `yaml:"alarm_threshold"`
	Sensors        []rawSensorRow `yaml:"sensors"`
}

type rawSensorRow struct {
	ID    any `yaml:"id"`
	Label any `yaml:"label"`
}

// ParseSensorConfig parses a YAML (or JSON) sensors document and normalizes it:
// ids are trimmed and upper-cased, blank ids and duplicates dropped, blank
// labels default to the id. An empty sensor list or a bad threshold falls back
// to the defaults for that part.
func ParseSensorConfig(data []byte) (models.SensorConfig, error) {
	var raw rawSensorFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return models.SensorConfig{}, fmt.Errorf("failed to parse sensors file: %w", err)
	}

	def := DefaultSensorConfig()
	cfg := models.SensorConfig{AlarmThreshold: def.AlarmThreshold}
	if thr, ok := toFloat(raw.AlarmThreshold); ok {
		cfg.AlarmThreshold = thr
	}

	seen := make(map[string]bool)
	for _, row := range raw.Sensors {
		id := strings.ToUpper(strings.TrimSpace(toString(row.ID)))
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		label := strings.TrimSpace(toString(row.Label))
		if label == "" {
			label = id
		}
		cfg.Sensors = append(cfg.Sensors, models.Sensor{ID: id, Label: label})
	}
	if len(cfg.Sensors) == 0 {
		cfg.Sensors = def.Sensors
	}
	return cfg, nil
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// SensorsFile serves the sensors configuration from a file, reloading it
// whenever the file's modification time or size changes.
type SensorsFile struct {
	path   string
	logger *zap.Logger

	mu      sync.Mutex
	modTime time.Time
	size    int64
	loaded  bool
	current models.SensorConfig
}

// NewSensorsFile creates a provider for the given path.
func NewSensorsFile(path string, logger *zap.Logger) *SensorsFile {
	return &SensorsFile{path: path, logger: logger, current: DefaultSensorConfig()}
}

// Current returns the configuration, reloading the file if it changed.
func (f *SensorsFile) Current() models.SensorConfig {
	f.mu.Lock()
	defer f.mu.Unlock()

	info, err := os.Stat(f.path)
	if err != nil {
		if f.loaded || !os.IsNotExist(err) {
			f.logger.Warn("sensors file unavailable, using defaults", zap.String("path", f.path), zap.Error(err))
		}
		f.reset(time.Time{}, 0, DefaultSensorConfig())
		return f.current
	}
	if f.loaded && info.ModTime().Equal(f.modTime) && info.Size() == f.size {
		return f.current
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		f.logger.Warn("failed to read sensors file, using defaults", zap.String("path", f.path), zap.Error(err))
		f.reset(info.ModTime(), info.Size(), DefaultSensorConfig())
		return f.current
	}
	cfg, err := ParseSensorConfig(data)
	if err != nil {
		f.logger.Warn("invalid sensors file, using defaults", zap.String("path", f.path), zap.Error(err))
		cfg = DefaultSensorConfig()
	} else {
		f.logger.Info("sensors file loaded",
			zap.String("path", f.path),
			zap.Int("sensors", len(cfg.Sensors)),
			zap.Float64("alarm_threshold", cfg.AlarmThreshold))
	}
	f.reset(info.ModTime(), info.Size(), cfg)
	return f.current
}

func (f *SensorsFile) reset(modTime time.Time, size int64, cfg models.SensorConfig) {
	f.modTime = modTime
	f.size = size
	f.loaded = !modTime.IsZero()
	f.current = cfg
}
