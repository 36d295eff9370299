package uploader

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"smartsense/sensorsim/internal/sensor"
)

// DefaultSyncInterval is the period of the automatic upload ticker.
const DefaultSyncInterval = 30 * time.Second

// Poster abstracts the upload client for the auto-sync loop.
type Poster interface {
	Upload(ctx context.Context, r sensor.Reading, sensorID string) (Result, error)
}

// ReadingSource yields the most recent reading, if any.
type ReadingSource interface {
	Latest() (sensor.Reading, bool)
}

// ConnGate reports whether automatic uploads are currently allowed.
type ConnGate interface {
	Connected() bool
}

// AutoSyncer periodically uploads the latest reading while the sensor
// is connected. Uploads are serialized: a tick that fires while the
// previous upload is still in flight is skipped rather than allowed to
// overlap.
type AutoSyncer struct {
	log      *slog.Logger
	client   Poster
	source   ReadingSource
	gate     ConnGate
	sensorID string
	interval time.Duration
	onResult ResultFunc

	inFlight atomic.Bool
}

// ResultFunc observes the outcome and duration of one upload attempt.
type ResultFunc func(res Result, err error, d time.Duration)

// NewAutoSyncer wires the sync loop. onResult, when non-nil, observes
// the outcome of every attempted upload. An interval of zero or below
// falls back to DefaultSyncInterval.
func NewAutoSyncer(client Poster, source ReadingSource, gate ConnGate, sensorID string, interval time.Duration, onResult ResultFunc, log *slog.Logger) *AutoSyncer {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	return &AutoSyncer{
		log:      log,
		client:   client,
		source:   source,
		gate:     gate,
		sensorID: sensorID,
		interval: interval,
		onResult: onResult,
	}
}

// Run blocks until ctx is cancelled, attempting one upload per tick.
// Upload failures are reported and logged but never stop the loop.
func (a *AutoSyncer) Run(ctx context.Context) error {
	t := time.NewTicker(a.interval)
	defer t.Stop()
	a.log.Info("auto-sync loop started", "interval", a.interval.String())

	for {
		select {
		case <-ctx.Done():
			a.log.Info("auto-sync loop stopped")
			return ctx.Err()
		case <-t.C:
			a.syncOnce(ctx)
		}
	}
}

func (a *AutoSyncer) syncOnce(ctx context.Context) {
	if !a.gate.Connected() {
		return
	}
	r, ok := a.source.Latest()
	if !ok {
		return
	}
	if !a.inFlight.CompareAndSwap(false, true) {
		a.log.Warn("auto-sync tick skipped, previous upload still in flight", "sensorId", a.sensorID)
		return
	}
	go func() {
		defer a.inFlight.Store(false)
		start := time.Now()
		res, err := a.client.Upload(ctx, r, a.sensorID)
		if a.onResult != nil {
			a.onResult(res, err, time.Since(start))
		}
	}()
}
