package node

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"plantlab/internal/models"
)

// MQTTUplink publishes readings as JSON to <prefix>/<sensor_id>.
type MQTTUplink struct {
	client         mqtt.Client
	topic          string
	publishTimeout time.Duration
}

// NewMQTTUplink creates an MQTTUplink. Reconnection is left to the node's
// send loop; connectTimeout bounds each attempt inside the client as well, so
// an attempt abandoned by Connect does not outlive it.
func NewMQTTUplink(broker, clientID, topicPrefix, sensorID string, connectTimeout, publishTimeout time.Duration) *MQTTUplink {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetAutoReconnect(false)
	opts.SetCleanSession(true)

	return &MQTTUplink{
		client:         mqtt.NewClient(opts),
		topic:          strings.TrimRight(topicPrefix, "/") + "/" + sensorID,
		publishTimeout: publishTimeout,
	}
}

// Topic returns the publish topic.
func (u *MQTTUplink) Topic() string {
	return u.topic
}

// Connected implements Uplink.
func (u *MQTTUplink) Connected() bool {
	return u.client.IsConnectionOpen()
}

// Connect dials the broker, giving up when ctx is done.
func (u *MQTTUplink) Connect(ctx context.Context) error {
	token := u.client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("connecting to MQTT broker: %w", ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connecting to MQTT broker: %w", err)
	}
	return nil
}

// Send publishes one reading with QoS 1.
func (u *MQTTUplink) Send(_ context.Context, req models.IngestRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding reading: %w", err)
	}
	token := u.client.Publish(u.topic, 1, false, payload)
	if !token.WaitTimeout(u.publishTimeout) {
		return fmt.Errorf("publishing to %s: timed out after %s", u.topic, u.publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to %s: %w", u.topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (u *MQTTUplink) Close() {
	if u.client.IsConnected() {
		u.client.Disconnect(250)
	}
}
