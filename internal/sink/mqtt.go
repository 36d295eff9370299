package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"smartsense/sensorsim/internal/sensor"
)

// MQTTSink publishes reading envelopes to an MQTT broker at QoS 0.
type MQTTSink struct {
	log    *slog.Logger
	client mqtt.Client
	topic  string
}

// NewMQTTSink connects to the broker and returns the sink, or an error
// when the broker is unreachable.
func NewMQTTSink(brokerAddr, topic, clientID string, log *slog.Logger) (*MQTTSink, error) {
	opts := mqtt.NewClientOptions().AddBroker(brokerAddr).SetClientID(clientID)
	c := mqtt.NewClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", brokerAddr, token.Error())
	}
	log.Info("mqtt sink ready", "broker", brokerAddr, "topic", topic)
	return &MQTTSink{log: log, client: c, topic: topic}, nil
}

func (s *MQTTSink) Name() string { return "mqtt" }

func (s *MQTTSink) Publish(_ context.Context, deviceID string, r sensor.Reading) error {
	msg := envelope{
		DeviceID:   deviceID,
		DeviceType: deviceType,
		Timestamp:  r.Timestamp,
		Reading:    r,
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal reading envelope: %w", err)
	}
	token := s.client.Publish(s.topic, 0, false, b)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("mqtt publish: %w", token.Error())
	}
	return nil
}

func (s *MQTTSink) Close() error {
	s.client.Disconnect(250)
	return nil
}
