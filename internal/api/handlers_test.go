package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"smartsense/sensorsim/internal/events"
	"smartsense/sensorsim/internal/sensor"
	"smartsense/sensorsim/internal/uploader"
)

type stubUploader struct {
	calls int
	last  sensor.Reading
	res   uploader.Result
	err   error
}

func (s *stubUploader) Upload(_ context.Context, r sensor.Reading, _ string) (uploader.Result, error) {
	s.calls++
	s.last = r
	return s.res, s.err
}

func newTestHandlers(t *testing.T, stub *stubUploader) *Handlers {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &Handlers{
		Log:      logger,
		Sim:      sensor.NewSimulator(time.Hour, time.Millisecond, logger),
		History:  sensor.NewHistoryBuffer(10),
		Client:   stub,
		SensorID: "sensor-test",
		Hub:      events.NewHub(logger),
	}
}

func doRequest(h http.Handler, method, target string, body string) *httptest.ResponseRecorder {
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	h := newTestHandlers(t, &stubUploader{})
	router := NewRouter(h, nil)

	rr := doRequest(router, http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestStartStopCommands(t *testing.T) {
	h := newTestHandlers(t, &stubUploader{})
	router := NewRouter(h, nil)

	rr := doRequest(router, http.MethodPost, "/cmd/start", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("start: expected 200, got %d", rr.Code)
	}
	var st sensor.State
	if err := json.NewDecoder(rr.Body).Decode(&st); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if !st.Advertising {
		t.Fatal("start should set the advertising flag")
	}

	// Stopping twice must be a no-op, not an error.
	for i := 0; i < 2; i++ {
		rr = doRequest(router, http.MethodPost, "/cmd/stop", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("stop #%d: expected 200, got %d", i+1, rr.Code)
		}
	}
	if err := json.NewDecoder(rr.Body).Decode(&st); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if st.Advertising {
		t.Fatal("stop should clear the advertising flag")
	}
}

func TestConnectEventuallySetsFlag(t *testing.T) {
	h := newTestHandlers(t, &stubUploader{})
	router := NewRouter(h, nil)

	rr := doRequest(router, http.MethodPost, "/cmd/connect", "")
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rr.Code)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !h.Sim.Connected() {
		if time.Now().After(deadline) {
			t.Fatal("connected flag never set")
		}
		time.Sleep(5 * time.Millisecond)
	}

	rr = doRequest(router, http.MethodPost, "/cmd/disconnect", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("disconnect: expected 200, got %d", rr.Code)
	}
	if h.Sim.Connected() {
		t.Fatal("disconnect should clear the connected flag")
	}
}

func TestReadingsSnapshot(t *testing.T) {
	h := newTestHandlers(t, &stubUploader{})
	router := NewRouter(h, nil)

	for i := 0; i < 3; i++ {
		h.History.Push(sensor.Reading{Temperature: 20 + float64(i), Humidity: 50, Timestamp: time.Now()})
	}

	rr := doRequest(router, http.MethodGet, "/readings", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var payload struct {
		Count    int              `json:"count"`
		Readings []sensor.Reading `json:"readings"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Count != 3 || len(payload.Readings) != 3 {
		t.Fatalf("expected 3 readings, got count=%d len=%d", payload.Count, len(payload.Readings))
	}
	if payload.Readings[0].Temperature != 22 {
		t.Fatalf("readings should be newest first, got %+v", payload.Readings[0])
	}
}

func TestSyncWithoutReadings(t *testing.T) {
	stub := &stubUploader{}
	h := newTestHandlers(t, stub)
	router := NewRouter(h, nil)

	rr := doRequest(router, http.MethodPost, "/sync", "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	if stub.calls != 0 {
		t.Fatalf("no upload should be attempted, got %d", stub.calls)
	}
}

func TestSyncUploadsSelectedHistoryEntry(t *testing.T) {
	stub := &stubUploader{res: uploader.Result{StatusCode: 500, Body: "oops"}}
	h := newTestHandlers(t, stub)
	router := NewRouter(h, nil)

	h.History.Push(sensor.Reading{Temperature: 21, Humidity: 50, Timestamp: time.Now()})
	h.History.Push(sensor.Reading{Temperature: 22, Humidity: 51, Timestamp: time.Now()})

	rr := doRequest(router, http.MethodPost, "/sync", `{"index":1}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if stub.last.Temperature != 21 {
		t.Fatalf("expected the older entry to be re-uploaded, got %+v", stub.last)
	}

	// Per the collector contract a 500 is still reported as synced.
	var resp syncResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Synced || resp.Status != 500 {
		t.Fatalf("expected synced with status 500, got %+v", resp)
	}
}

func TestSyncIndexOutOfRange(t *testing.T) {
	stub := &stubUploader{}
	h := newTestHandlers(t, stub)
	router := NewRouter(h, nil)

	h.History.Push(sensor.Reading{Temperature: 21, Humidity: 50, Timestamp: time.Now()})

	rr := doRequest(router, http.MethodPost, "/sync", `{"index":5}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if stub.calls != 0 {
		t.Fatalf("no upload should be attempted, got %d", stub.calls)
	}
}

func TestSyncSurfacesUploadFailure(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	stub := &stubUploader{err: &uploader.Error{Kind: uploader.KindNetwork, Cause: cause}}
	h := newTestHandlers(t, stub)

	var observed error
	h.OnResult = func(_ uploader.Result, err error, _ time.Duration) { observed = err }
	router := NewRouter(h, nil)

	h.History.Push(sensor.Reading{Temperature: 21, Humidity: 50, Timestamp: time.Now()})

	rr := doRequest(router, http.MethodPost, "/sync", "")
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rr.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["kind"] != "network" {
		t.Fatalf("expected network kind, got %q", resp["kind"])
	}
	if observed == nil {
		t.Fatal("OnResult should observe the failed upload")
	}

	// A failed upload is lost, not retried, and must leave the buffer
	// and lifecycle flags untouched.
	if h.History.Len() != 1 {
		t.Fatalf("history should be unaffected by the failure, len=%d", h.History.Len())
	}
	if h.Sim.State().Advertising || h.Sim.State().Connected {
		t.Fatal("simulator state should be unaffected by the failure")
	}
}

func TestSyncRejectsMalformedBody(t *testing.T) {
	stub := &stubUploader{}
	h := newTestHandlers(t, stub)
	router := NewRouter(h, nil)

	h.History.Push(sensor.Reading{Temperature: 21, Humidity: 50, Timestamp: time.Now()})

	rr := doRequest(router, http.MethodPost, "/sync", `{"index": "one"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestWebSocketUpgradeWithoutRouter(t *testing.T) {
	h := newTestHandlers(t, &stubUploader{})
	srv := httptest.NewServer(http.HandlerFunc(h.WebSocket))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for h.Hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("connection was not registered with the hub")
		}
		time.Sleep(time.Millisecond)
	}
}
