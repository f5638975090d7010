package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendInflux = "influx"
)

// Config holds the server's configuration.
type Config struct {
	Port               string
	CORSAllowedOrigins []string
	SensorsFile        string

	StoreBackend       string
	MaxPointsPerSensor int
	DemoMode           bool
	OfflineAfter       time.Duration

	InfluxDBURL    string
	InfluxDBToken  string
	InfluxDBOrg    string
	InfluxDBBucket string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration

	MQTTBroker      string
	MQTTClientID    string
	MQTTTopicPrefix string

	LogLevel  string
	LogFormat string
}

// LoadConfig loads the configuration from environment variables, reading the
// given .env files first (".env" when none are given). Missing .env files are
// not an error.
func LoadConfig(envFiles ...string) (Config, error) {
	if err := loadDotEnv(envFiles...); err != nil {
		return Config{}, err
	}

	var errs []error
	cfg := Config{
		Port:               getEnv("PORT", "8000"),
		CORSAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		SensorsFile:        getEnv("SENSORS_FILE", "config.yaml"),
		StoreBackend:       strings.ToLower(getEnv("STORE_BACKEND", BackendMemory)),
		MaxPointsPerSensor: getEnvInt("MAX_POINTS_PER_SENSOR", 8000, &errs),
		DemoMode:           getEnvBool("DEMO_MODE", true, &errs),
		OfflineAfter:       getEnvDuration("OFFLINE_AFTER", 180*time.Second, &errs),
		InfluxDBURL:        os.Getenv("INFLUXDB_URL"),
		InfluxDBToken:      os.Getenv("INFLUXDB_TOKEN"),
		InfluxDBOrg:        os.Getenv("INFLUXDB_ORG"),
		InfluxDBBucket:     getEnv("INFLUXDB_BUCKET", "plantlab"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            getEnvInt("REDIS_DB", 0, &errs),
		RedisTTL:           getEnvDuration("REDIS_TTL", 24*time.Hour, &errs),
		MQTTBroker:         os.Getenv("MQTT_BROKER"),
		MQTTClientID:       getEnv("MQTT_CLIENT_ID", "plantlab-server"),
		MQTTTopicPrefix:    getEnv("MQTT_TOPIC_PREFIX", "plantlab/readings"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "json"),
	}
	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory:
	case BackendInflux:
		if c.InfluxDBURL == "" || c.InfluxDBToken == "" || c.InfluxDBOrg == "" {
			return fmt.Errorf("InfluxDB configuration is incomplete. Please set INFLUXDB_URL, INFLUXDB_TOKEN, and INFLUXDB_ORG environment variables")
		}
	default:
		return fmt.Errorf("unsupported STORE_BACKEND %q (want %q or %q)", c.StoreBackend, BackendMemory, BackendInflux)
	}
	if c.MaxPointsPerSensor < 1 {
		return fmt.Errorf("MAX_POINTS_PER_SENSOR must be positive, got %d", c.MaxPointsPerSensor)
	}
	if c.OfflineAfter <= 0 {
		return fmt.Errorf("OFFLINE_AFTER must be positive, got %s", c.OfflineAfter)
	}
	return nil
}

func loadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int, errs *[]error) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return def
	}
	return n
}

func getEnvBool(key string, def bool, errs *[]error) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid boolean %q", key, v))
		return def
	}
	return b
}

func getEnvDuration(key string, def time.Duration, errs *[]error) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return def
	}
	return d
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
