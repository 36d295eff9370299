// Package app wires configuration, logging, the simulator, the upload
// pipeline and the control-plane server into one runnable service.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"

	"smartsense/sensorsim/internal/api"
	"smartsense/sensorsim/internal/config"
	"smartsense/sensorsim/internal/events"
	"smartsense/sensorsim/internal/metrics"
	"smartsense/sensorsim/internal/sensor"
	"smartsense/sensorsim/internal/sink"
	"smartsense/sensorsim/internal/uploader"
)

// Application owns every component of the sensor service. All
// collaborators are constructed and passed explicitly; there is no
// package-level state.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	logFile  *os.File
	sensorID string

	sim     *sensor.Simulator
	history *sensor.HistoryBuffer
	hub     *events.Hub
	mx      *metrics.Metrics
	fanout  *sink.Fanout
	syncer  *uploader.AutoSyncer
	server  *http.Server
}

// New prepares a fully wired service instance from the supplied
// configuration.
func New(cfg config.Config) (*Application, error) {
	logPath := filepath.Clean(cfg.LogFilePath)
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	lf, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	logger := newLogger(lf)

	sensorID := cfg.SensorID
	if sensorID == "" {
		sensorID = uuid.NewString()
		logger.Info("generated sensor id", "sensorId", sensorID)
	}

	mx := metrics.New()
	hub := events.NewHub(logger.With("component", "events"))
	history := sensor.NewHistoryBuffer(cfg.HistorySize)
	sim := sensor.NewSimulator(cfg.ReadingInterval, cfg.ConnectDelay, logger.With("component", "simulator"))

	sinks, err := buildSinks(cfg, sensorID, logger)
	if err != nil {
		_ = lf.Close()
		return nil, err
	}
	fanout := sink.NewFanout(sinks, cfg.UploadTimeout, mx.SinkError, logger.With("component", "sink"))

	client := uploader.New(cfg.CollectorBaseURL, cfg.UploadTimeout, logger.With("component", "uploader"))
	onResult := func(res uploader.Result, err error, d time.Duration) {
		outcome := "synced"
		if err != nil {
			outcome = "network"
			var uerr *uploader.Error
			if errors.As(err, &uerr) {
				outcome = uerr.Kind.String()
			}
		}
		mx.UploadResult(outcome, d)
		payload := map[string]any{"outcome": outcome}
		if err != nil {
			payload["error"] = err.Error()
		} else {
			payload["status"] = res.StatusCode
		}
		hub.Broadcast(events.Event{Type: events.TypeSyncResult, Payload: payload})
	}
	syncer := uploader.NewAutoSyncer(client, sim, sim, sensorID, cfg.SyncInterval, onResult, logger.With("component", "autosync"))

	sim.OnReading(func(r sensor.Reading) {
		history.Push(r)
		mx.ReadingGenerated()
		hub.Broadcast(events.Event{Type: events.TypeReadingGenerated, Payload: r})
		fanout.Publish(sensorID, r)
	})
	sim.OnStateChange(func(st sensor.State) {
		mx.SetState(st.Advertising, st.Connected)
		hub.Broadcast(events.Event{Type: events.TypeStateChanged, Payload: st})
	})

	h := &api.Handlers{
		Log:      logger.With("component", "api"),
		Sim:      sim,
		History:  history,
		Client:   client,
		SensorID: sensorID,
		Hub:      hub,
		OnResult: onResult,
	}
	router := api.NewRouter(h, mx.Handler())
	accessLog := handlers.CombinedLoggingHandler(io.MultiWriter(os.Stdout, lf), router)

	server := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           accessLog,
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPWriteTimeout,
	}

	return &Application{
		cfg:      cfg,
		logger:   logger,
		logFile:  lf,
		sensorID: sensorID,
		sim:      sim,
		history:  history,
		hub:      hub,
		mx:       mx,
		fanout:   fanout,
		syncer:   syncer,
		server:   server,
	}, nil
}

// Logger exposes the configured slog logger so main can emit structured
// logs after initialization.
func (a *Application) Logger() *slog.Logger {
	return a.logger
}

// Run blocks until ctx is cancelled or the HTTP server terminates
// unexpectedly, then shuts everything down gracefully.
func (a *Application) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.cfg.AutoStart {
		a.sim.Start()
	}

	httpCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", a.cfg.ListenAddress)
		httpCh <- a.server.ListenAndServe()
	}()

	syncCh := make(chan error, 1)
	go func() {
		syncCh <- a.syncer.Run(ctx)
	}()

	var runErr error
	select {
	case err := <-httpCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", "err", err)
			runErr = err
		}
		cancel()
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http shutdown failed", "err", err)
		if runErr == nil {
			runErr = fmt.Errorf("shutdown: %w", err)
		}
	}

	if err := <-syncCh; err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("auto-sync error", "err", err)
	}

	a.sim.Stop()
	if err := a.fanout.Close(); err != nil && runErr == nil {
		runErr = err
	}
	a.logger.Info("shutdown complete")
	_ = a.logFile.Close()
	return runErr
}

func buildSinks(cfg config.Config, sensorID string, logger *slog.Logger) ([]sink.Sink, error) {
	var sinks []sink.Sink
	if cfg.KafkaEnabled {
		sinks = append(sinks, sink.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic, logger.With("component", "kafka_sink")))
	}
	if cfg.MQTTEnabled {
		ms, err := sink.NewMQTTSink(cfg.MQTTBroker, cfg.MQTTTopic, "sensorsim-"+sensorID, logger.With("component", "mqtt_sink"))
		if err != nil {
			return nil, fmt.Errorf("mqtt sink init: %w", err)
		}
		sinks = append(sinks, ms)
	}
	return sinks, nil
}
