package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"plantlab/internal/models"
)

// Ingester stores one reading. *service.ReadingService implements it.
type Ingester interface {
	Ingest(ctx context.Context, req models.IngestRequest) (models.Reading, error)
}

// MessageHandler processes one MQTT message.
type MessageHandler func(topic string, payload []byte) error

// Options configure a Subscriber.
type Options struct {
	Broker         string
	ClientID       string
	TopicPrefix    string
	ConnectTimeout time.Duration
}

// Subscriber feeds readings published on <prefix>/<sensor_id> into an Ingester.
type Subscriber struct {
	client   mqtt.Client
	opts     Options
	ingester Ingester
	logger   *zap.Logger
}

// NewSubscriber creates a Subscriber. It does not connect until Start.
func NewSubscriber(opts Options, ingester Ingester, logger *zap.Logger) *Subscriber {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	opts.TopicPrefix = strings.TrimRight(opts.TopicPrefix, "/")

	s := &Subscriber{
		opts:     opts,
		ingester: ingester,
		logger:   logger,
	}

	clientOpts := mqtt.NewClientOptions()
	clientOpts.AddBroker(opts.Broker)
	clientOpts.SetClientID(opts.ClientID)
	clientOpts.SetAutoReconnect(true)
	clientOpts.SetCleanSession(true)
	clientOpts.SetOnConnectHandler(func(c mqtt.Client) {
		// Subscriptions are lost with a clean session, so resubscribe on every connect.
		if err := s.subscribe(c); err != nil {
			s.logger.Error("mqtt subscribe failed", zap.Error(err))
		}
	})
	clientOpts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.logger.Warn("mqtt connection lost", zap.Error(err))
	})
	s.client = mqtt.NewClient(clientOpts)
	return s
}

// Topic returns the subscription filter.
func (s *Subscriber) Topic() string {
	return s.opts.TopicPrefix + "/+"
}

// Start connects to the broker. Subscription happens in the connect handler.
func (s *Subscriber) Start() error {
	token := s.client.Connect()
	if !token.WaitTimeout(s.opts.ConnectTimeout) {
		return fmt.Errorf("connecting to MQTT broker %s: timed out after %s", s.opts.Broker, s.opts.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connecting to MQTT broker %s: %w", s.opts.Broker, err)
	}
	s.logger.Info("mqtt subscriber connected",
		zap.String("broker", s.opts.Broker),
		zap.String("topic", s.Topic()))
	return nil
}

// Close disconnects from the broker.
func (s *Subscriber) Close() {
	s.client.Disconnect(250)
}

func (s *Subscriber) subscribe(c mqtt.Client) error {
	handler := s.Handler(context.Background())
	token := c.Subscribe(s.Topic(), 1, func(_ mqtt.Client, msg mqtt.Message) {
		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			s.logger.Warn("mqtt reading rejected",
				zap.String("topic", msg.Topic()),
				zap.Error(err))
		}
	})
	if !token.WaitTimeout(s.opts.ConnectTimeout) {
		return fmt.Errorf("subscribing to %s: timed out", s.Topic())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribing to %s: %w", s.Topic(), err)
	}
	return nil
}

// Handler returns the MessageHandler used for incoming readings. The sensor
// id defaults to the last topic segment when the payload omits it; a payload
// id that disagrees with the topic is rejected.
func (s *Subscriber) Handler(ctx context.Context) MessageHandler {
	return func(topic string, payload []byte) error {
		var req models.IngestRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return fmt.Errorf("decoding payload: %w", err)
		}

		topicID := topicSensorID(topic)
		switch {
		case strings.TrimSpace(req.SensorID) == "":
			req.SensorID = topicID
		case topicID != "" && !strings.EqualFold(strings.TrimSpace(req.SensorID), topicID):
			return fmt.Errorf("payload sensor_id %q does not match topic %q", req.SensorID, topic)
		}

		reading, err := s.ingester.Ingest(ctx, req)
		if err != nil {
			return err
		}
		s.logger.Debug("mqtt reading stored",
			zap.String("sensor_id", reading.SensorID),
			zap.Int64("ts", reading.Timestamp))
		return nil
	}
}

func topicSensorID(topic string) string {
	i := strings.LastIndexByte(topic, '/')
	return strings.TrimSpace(topic[i+1:])
}
