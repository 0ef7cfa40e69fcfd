package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	trackingStartPath = "/stress_test/start"
	trackingStopPath  = "/stress_test/stop"
	maxTrackingBody   = 64 << 10
)

// ErrTrackingUnavailable wraps every failure of the start/stop calls so
// callers can fall back to client-only measurement.
var ErrTrackingUnavailable = errors.New("server tracking unavailable")

// TrackingStatus is what the service reports back from a start or stop call.
type TrackingStatus struct {
	Message         string
	Status          string
	RunID           string
	ConcurrentUsers int
	MetricsPath     string
	ReportPath      string
}

// TrackingClient drives the service's own measurement window.
type TrackingClient struct {
	baseURL string
	client  *http.Client
}

// NewTrackingClient returns a client for the service at baseURL whose calls
// each give up after timeout.
func NewTrackingClient(baseURL string, timeout time.Duration) *TrackingClient {
	return &TrackingClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  NewClient(timeout),
	}
}

// URL resolves a service path against the base URL.
func (c *TrackingClient) URL(path string) string {
	return c.baseURL + path
}

// Start asks the service to reset its collector for a run of users.
func (c *TrackingClient) Start(ctx context.Context, users int) (TrackingStatus, error) {
	payload, err := json.Marshal(map[string]int{"concurrentUsers": users})
	if err != nil {
		return TrackingStatus{}, err
	}
	return c.post(ctx, trackingStartPath, payload)
}

// Stop asks the service to freeze its collector.
func (c *TrackingClient) Stop(ctx context.Context) (TrackingStatus, error) {
	return c.post(ctx, trackingStopPath, nil)
}

func (c *TrackingClient) post(ctx context.Context, path string, payload []byte) (TrackingStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(path), bytes.NewReader(payload))
	if err != nil {
		return TrackingStatus{}, fmt.Errorf("%w: %v", ErrTrackingUnavailable, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return TrackingStatus{}, fmt.Errorf("%w: %v", ErrTrackingUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTrackingBody))
	if err != nil {
		return TrackingStatus{}, fmt.Errorf("%w: read %s response: %v", ErrTrackingUnavailable, path, err)
	}

	if resp.StatusCode != http.StatusOK {
		reason := gjson.GetBytes(body, "error").String()
		if reason == "" {
			reason = strings.TrimSpace(string(body))
		}
		return TrackingStatus{}, fmt.Errorf("%w: %s returned HTTP %d: %s", ErrTrackingUnavailable, path, resp.StatusCode, reason)
	}
	if !gjson.ValidBytes(body) {
		return TrackingStatus{}, fmt.Errorf("%w: %s returned invalid JSON", ErrTrackingUnavailable, path)
	}

	fields := gjson.GetManyBytes(body, "message", "status", "run_id", "concurrentUsers", "metrics_available", "report_available")
	return TrackingStatus{
		Message:         fields[0].String(),
		Status:          fields[1].String(),
		RunID:           fields[2].String(),
		ConcurrentUsers: int(fields[3].Int()),
		MetricsPath:     fields[4].String(),
		ReportPath:      fields[5].String(),
	}, nil
}
