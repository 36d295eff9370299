package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"smartsense/sensorsim/internal/events"
	"smartsense/sensorsim/internal/sensor"
	"smartsense/sensorsim/internal/uploader"
)

// uploadClient abstracts uploader.Client so tests can stub the
// collector.
type uploadClient interface {
	Upload(ctx context.Context, r sensor.Reading, sensorID string) (uploader.Result, error)
}

// Handlers owns the control-plane endpoints. OnResult, when non-nil,
// observes every manual upload outcome (the auto-sync loop reports its
// own results through the same function).
type Handlers struct {
	Log      *slog.Logger
	Sim      *sensor.Simulator
	History  *sensor.HistoryBuffer
	Client   uploadClient
	SensorID string
	Hub      *events.Hub
	OnResult uploader.ResultFunc
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type statusResponse struct {
	SensorID string          `json:"sensorId"`
	State    sensor.State    `json:"state"`
	Latest   *sensor.Reading `json:"latest,omitempty"`
}

type syncRequest struct {
	Index int `json:"index"`
}

type syncResponse struct {
	Synced bool   `json:"synced"`
	Status int    `json:"status"`
	Body   string `json:"body,omitempty"`
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{SensorID: h.SensorID, State: h.Sim.State()}
	if latest, ok := h.Sim.Latest(); ok {
		resp.Latest = &latest
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) Readings(w http.ResponseWriter, r *http.Request) {
	snap := h.History.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(snap),
		"readings": snap,
	})
}

func (h *Handlers) Start(w http.ResponseWriter, r *http.Request) {
	h.Sim.Start()
	writeJSON(w, http.StatusOK, h.Sim.State())
}

func (h *Handlers) Stop(w http.ResponseWriter, r *http.Request) {
	h.Sim.Stop()
	writeJSON(w, http.StatusOK, h.Sim.State())
}

// Connect kicks off the simulated pairing and returns immediately; the
// connected flag flips once the fixed delay elapses and subscribers see
// a state_changed event.
func (h *Handlers) Connect(w http.ResponseWriter, r *http.Request) {
	go func() {
		if err := h.Sim.Connect(context.Background()); err != nil {
			h.Log.Error("connect failed", "err", err)
		}
	}()
	writeJSON(w, http.StatusAccepted, h.Sim.State())
}

func (h *Handlers) Disconnect(w http.ResponseWriter, r *http.Request) {
	h.Sim.Disconnect()
	writeJSON(w, http.StatusOK, h.Sim.State())
}

// Sync uploads one buffered reading now. The optional JSON body
// {"index": n} selects a historical entry, 0 (the newest) by default.
func (h *Handlers) Sync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}

	if h.History.Len() == 0 {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "no readings available to sync"})
		return
	}
	reading, err := h.History.Get(req.Index)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	start := time.Now()
	res, err := h.Client.Upload(r.Context(), reading, h.SensorID)
	if h.OnResult != nil {
		h.OnResult(res, err, time.Since(start))
	}
	if err != nil {
		kind := "network"
		var uerr *uploader.Error
		if errors.As(err, &uerr) {
			kind = uerr.Kind.String()
		}
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error": err.Error(),
			"kind":  kind,
		})
		return
	}

	writeJSON(w, http.StatusOK, syncResponse{Synced: true, Status: res.StatusCode, Body: res.Body})
}

// WebSocket upgrades the connection and streams events until the client
// goes away.
func (h *Handlers) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Log.Warn("ws upgrade failed", "err", err)
		return
	}
	h.Hub.Add(conn)
	go func() {
		defer h.Hub.Remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
