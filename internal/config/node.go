package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Node uplink transports.
const (
	TransportHTTP = "http"
	TransportMQTT = "mqtt"
)

// NodeConfig holds the sensor node's configuration.
type NodeConfig struct {
	SensorID  string
	Transport string

	BackendURL      string
	MQTTBroker      string
	MQTTClientID    string
	MQTTTopicPrefix string

	// ADCPath is a sysfs/IIO raw value file. Empty selects the simulated ADC.
	ADCPath string

	SamplePeriod   time.Duration
	SendPeriod     time.Duration
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
	Window         int

	DryADC int
	WetADC int

	SendTimestamp bool

	LogLevel  string
	LogFormat string
}

// LoadNodeConfig loads the node configuration from environment variables.
func LoadNodeConfig(envFiles ...string) (NodeConfig, error) {
	if err := loadDotEnv(envFiles...); err != nil {
		return NodeConfig{}, err
	}

	var errs []error
	cfg := NodeConfig{
		SensorID:        strings.ToUpper(getEnv("NODE_SENSOR_ID", "S1")),
		Transport:       strings.ToLower(getEnv("NODE_TRANSPORT", TransportHTTP)),
		BackendURL:      strings.TrimRight(getEnv("NODE_BACKEND_URL", "http://localhost:8000"), "/"),
		MQTTBroker:      getEnv("MQTT_BROKER", "tcp://localhost:1883"),
		MQTTTopicPrefix: getEnv("MQTT_TOPIC_PREFIX", "plantlab/readings"),
		ADCPath:         getEnv("NODE_ADC_PATH", ""),
		SamplePeriod:    getEnvDuration("NODE_SAMPLE_PERIOD", time.Second, &errs),
		SendPeriod:      getEnvDuration("NODE_SEND_PERIOD", 15*time.Second, &errs),
		ConnectTimeout:  getEnvDuration("NODE_CONNECT_TIMEOUT", 15*time.Second, &errs),
		RequestTimeout:  getEnvDuration("NODE_REQUEST_TIMEOUT", 5*time.Second, &errs),
		Window:          getEnvInt("NODE_WINDOW", 20, &errs),
		DryADC:          getEnvInt("NODE_DRY_ADC", 3000, &errs),
		WetADC:          getEnvInt("NODE_WET_ADC", 1300, &errs),
		SendTimestamp:   getEnvBool("NODE_SEND_TIMESTAMP", false, &errs),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "console"),
	}
	cfg.MQTTClientID = getEnv("MQTT_CLIENT_ID", "plantlab-node-"+strings.ToLower(cfg.SensorID))
	if len(errs) > 0 {
		return NodeConfig{}, errors.Join(errs...)
	}
	if err := cfg.Validate(); err != nil {
		return NodeConfig{}, err
	}
	return cfg, nil
}

// Validate checks the node configuration.
func (c NodeConfig) Validate() error {
	if c.SensorID == "" {
		return errors.New("NODE_SENSOR_ID is required")
	}
	switch c.Transport {
	case TransportHTTP:
		if c.BackendURL == "" {
			return errors.New("NODE_BACKEND_URL is required for http transport")
		}
	case TransportMQTT:
		if c.MQTTBroker == "" {
			return errors.New("MQTT_BROKER is required for mqtt transport")
		}
	default:
		return fmt.Errorf("unsupported NODE_TRANSPORT %q", c.Transport)
	}
	if c.SamplePeriod <= 0 || c.SendPeriod <= 0 {
		return fmt.Errorf("sample and send periods must be positive (sample=%s send=%s)", c.SamplePeriod, c.SendPeriod)
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("NODE_CONNECT_TIMEOUT must be positive, got %s", c.ConnectTimeout)
	}
	if c.Window < 1 {
		return fmt.Errorf("NODE_WINDOW must be at least 1, got %d", c.Window)
	}
	return nil
}
