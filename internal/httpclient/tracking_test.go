package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackingClientStartStop(t *testing.T) {
	var gotUsers int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/stress_test/start":
			var body struct {
				ConcurrentUsers int `json:"concurrentUsers"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			gotUsers = body.ConcurrentUsers
			_, _ = w.Write([]byte(`{"message":"Stress test tracking started","concurrentUsers":25,"status":"tracking","run_id":"01ABC"}`))
		case "/stress_test/stop":
			_, _ = w.Write([]byte(`{"message":"Stress test tracking stopped","status":"stopped","run_id":"01ABC","metrics_available":"/scalability_metrics","report_available":"/scalability_report"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewTrackingClient(srv.URL+"/", time.Second)

	st, err := c.Start(context.Background(), 25)
	require.NoError(t, err)
	assert.Equal(t, 25, gotUsers)
	assert.Equal(t, "tracking", st.Status)
	assert.Equal(t, 25, st.ConcurrentUsers)
	assert.Equal(t, "01ABC", st.RunID)

	st, err = c.Stop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "stopped", st.Status)
	assert.Equal(t, "/scalability_report", st.ReportPath)
	assert.Equal(t, srv.URL+"/scalability_report", c.URL(st.ReportPath))
}

func TestTrackingClientRejectedStart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"concurrentUsers must be between 1 and 1000"}`))
	}))
	defer srv.Close()

	_, err := NewTrackingClient(srv.URL, time.Second).Start(context.Background(), 5000)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTrackingUnavailable))
	assert.Contains(t, err.Error(), "HTTP 400")
	assert.Contains(t, err.Error(), "between 1 and 1000")
}

func TestTrackingClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewTrackingClient(url, 200*time.Millisecond).Stop(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTrackingUnavailable)
}

func TestTrackingClientInvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>ok</html>`))
	}))
	defer srv.Close()

	_, err := NewTrackingClient(srv.URL, time.Second).Stop(context.Background())
	assert.ErrorIs(t, err, ErrTrackingUnavailable)
}
