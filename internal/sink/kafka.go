package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"smartsense/sensorsim/internal/sensor"
)

// KafkaSink publishes reading envelopes to a Kafka topic, keyed by
// device ID so one device always lands on one partition.
type KafkaSink struct {
	log    *slog.Logger
	writer *kafka.Writer
}

// NewKafkaSink builds a writer against the given brokers and topic.
func NewKafkaSink(brokers []string, topic string, log *slog.Logger) *KafkaSink {
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{},
	}
	log.Info("kafka sink ready", "topic", topic, "brokers", brokers)
	return &KafkaSink{log: log, writer: w}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Publish(ctx context.Context, deviceID string, r sensor.Reading) error {
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
	if err := s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(deviceID),
		Value: b,
		Time:  r.Timestamp,
	}); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
