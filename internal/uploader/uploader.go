package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"smartsense/sensorsim/internal/sensor"
)

// DeviceType identifies the simulated device class in upload payloads.
const DeviceType = "ble_environmental"

// DefaultTimeout bounds a single upload call. There is no cancellation
// for an in-flight upload beyond this.
const DefaultTimeout = 10 * time.Second

const uploadPath = "/api/sensor-data"

// payload is the collector's expected JSON body.
type payload struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	SensorID    string  `json:"sensor_id"`
	Timestamp   string  `json:"timestamp"`
	DeviceType  string  `json:"device_type"`
}

// Result reports the collector's response. Any received HTTP response
// counts as synced; the status code is surfaced but not validated
// against the 2xx range.
type Result struct {
	StatusCode int    `json:"status"`
	Body       string `json:"body,omitempty"`
}

// Client pushes readings to the remote collector over HTTP. Exactly one
// network call is made per Upload invocation and failed uploads are not
// queued for later.
type Client struct {
	base string
	h    *http.Client
	log  *slog.Logger
}

// New returns a Client POSTing to base + "/api/sensor-data". A timeout
// of zero or below falls back to DefaultTimeout.
func New(base string, timeout time.Duration, log *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		base: base,
		h:    &http.Client{Timeout: timeout},
		log:  log,
	}
}

// Upload serializes r and POSTs it to the collector. On any received
// response it returns a nil error together with the status code and raw
// body; transport failures return a *Error classified as network or
// timeout.
func (c *Client) Upload(ctx context.Context, r sensor.Reading, sensorID string) (Result, error) {
	body := payload{
		Temperature: r.Temperature,
		Humidity:    r.Humidity,
		SensorID:    sensorID,
		Timestamp:   r.Timestamp.UTC().Format(time.RFC3339),
		DeviceType:  DeviceType,
	}
	buf, err := json.Marshal(body)
	if err != nil {
		return Result{}, fmt.Errorf("marshal upload payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+uploadPath, bytes.NewReader(buf))
	if err != nil {
		return Result{}, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.h.Do(req)
	if err != nil {
		uerr := classify(err)
		c.log.Warn("upload failed", "sensorId", sensorID, "kind", uerr.Kind.String(), "err", err)
		return Result{}, uerr
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		uerr := classify(err)
		c.log.Warn("upload response read failed", "sensorId", sensorID, "err", err)
		return Result{}, uerr
	}

	c.log.Info("reading synced",
		"sensorId", sensorID,
		"status", resp.StatusCode,
		"duration", time.Since(start).String(),
	)
	return Result{StatusCode: resp.StatusCode, Body: string(raw)}, nil
}
