// Package sink publishes generated readings to broker backends in
// addition to the HTTP collector. Sinks are best-effort: a publish
// failure is logged and counted, never propagated to the simulator.
package sink

import (
	"context"
	"log/slog"
	"time"

	"smartsense/sensorsim/internal/sensor"
)

// Sink is one telemetry backend.
type Sink interface {
	// Name identifies the backend in logs and metrics.
	Name() string
	Publish(ctx context.Context, deviceID string, r sensor.Reading) error
	Close() error
}

const deviceType = "ble_environmental"

// envelope wraps a reading with the device identity for brokers.
type envelope struct {
	DeviceID   string         `json:"deviceId"`
	DeviceType string         `json:"deviceType"`
	Timestamp  time.Time      `json:"timestamp"`
	Reading    sensor.Reading `json:"reading"`
}

// Fanout forwards each reading to every configured sink.
type Fanout struct {
	log     *slog.Logger
	sinks   []Sink
	timeout time.Duration
	onError func(sink string)
}

// NewFanout builds a fan-out over the given sinks. onError, when
// non-nil, is invoked with the sink name for every failed publish.
func NewFanout(sinks []Sink, timeout time.Duration, onError func(sink string), log *slog.Logger) *Fanout {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Fanout{log: log, sinks: sinks, timeout: timeout, onError: onError}
}

// Empty reports whether any sink is configured.
func (f *Fanout) Empty() bool { return len(f.sinks) == 0 }

// Publish sends r to all sinks, continuing past individual failures.
func (f *Fanout) Publish(deviceID string, r sensor.Reading) {
	if len(f.sinks) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()
	for _, s := range f.sinks {
		if err := s.Publish(ctx, deviceID, r); err != nil {
			f.log.Warn("sink publish failed", "sink", s.Name(), "deviceId", deviceID, "err", err)
			if f.onError != nil {
				f.onError(s.Name())
			}
		}
	}
}

// Close shuts down all sinks, returning the first error encountered.
func (f *Fanout) Close() error {
	var firstErr error
	for _, s := range f.sinks {
		if err := s.Close(); err != nil {
			f.log.Error("sink close failed", "sink", s.Name(), "err", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
