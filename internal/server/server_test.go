package server

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netmark/loadlab/internal/attendance"
	"github.com/netmark/loadlab/internal/output"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, attendance.StudentsFile), []byte("Name,Registration Number\nAda,1\nBo,2\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, attendance.VerifiedFile), []byte("Registration Number\n1.0\n"), 0o644))
	report := filepath.Join(dir, "scalability_metrics.csv")
	return New(Options{DataDir: dir, ReportFile: report}), report
}

func postJSON(h http.Handler, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func TestStartValidation(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	for _, body := range []string{`{"concurrentUsers": 0}`, `{"concurrentUsers": 1500}`, `{"concurrentUsers": "many"}`} {
		w := postJSON(h, StartPath, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Contains(t, decode(t, w), "error")
	}
	assert.False(t, s.Controller().Collector().Active(), "rejected starts must not change state")

	w := postJSON(h, StartPath, `{"concurrentUsers": 10}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "tracking", body["status"])
	assert.Equal(t, float64(10), body["concurrentUsers"])
	assert.NotEmpty(t, body["run_id"])

	snap := s.Controller().Collector().Snapshot()
	assert.True(t, snap.Active)
	assert.Zero(t, snap.Total)
}

func TestStartWithoutBodyUsesDefault(t *testing.T) {
	s, _ := newTestServer(t)
	w := serve(s.Handler(), http.MethodPost, StartPath)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(defaultConcurrentUsers), decode(t, w)["concurrentUsers"])
}

func TestStopIsIdempotentOverHTTP(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	w := postJSON(h, StopPath, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "stopped", body["status"])
	assert.Equal(t, MetricsPath, body["metrics_available"])
	assert.Equal(t, ReportPath, body["report_available"])

	postJSON(h, StartPath, `{"concurrentUsers": 2}`)
	serve(h, http.MethodGet, "/students")
	postJSON(h, StopPath, "")
	first := serve(h, http.MethodGet, MetricsPath)
	postJSON(h, StopPath, "")
	second := serve(h, http.MethodGet, MetricsPath)

	assert.JSONEq(t, first.Body.String(), second.Body.String())
}

func TestRunLifecycleAndMetrics(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	postJSON(h, StartPath, `{"concurrentUsers": 3}`)
	for i := 0; i < 4; i++ {
		assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/attendance_stats").Code)
	}
	serve(h, http.MethodGet, "/search_students/ad")
	serve(h, http.MethodGet, "/get_user/999")

	var doc output.MetricsDocument
	w := serve(h, http.MethodGet, MetricsPath)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))

	assert.True(t, doc.TestActive)
	assert.Equal(t, 3, doc.ConcurrentUsers)
	assert.Equal(t, int64(6), doc.TotalRequests, "control routes are not sampled")
	assert.Equal(t, int64(1), doc.FailedRequests)
	assert.Equal(t, 4, doc.EndpointMetrics["/attendance_stats"].Count)
	assert.Equal(t, 1, doc.EndpointMetrics["/search_students/:query"].Count)
	assert.Equal(t, 1, doc.EndpointMetrics["/get_user/:unique_id"].Count)

	postJSON(h, StopPath, "")
	serve(h, http.MethodGet, "/attendance_stats")
	w = serve(h, http.MethodGet, MetricsPath)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.False(t, doc.TestActive)
	assert.Equal(t, int64(6), doc.TotalRequests, "requests after stop are dropped")
}

func TestReportWithoutDataIsRejected(t *testing.T) {
	s, report := newTestServer(t)
	w := serve(s.Handler(), http.MethodGet, ReportPath)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No metrics collected yet. Run stress test first.", decode(t, w)["error"])

	_, err := os.Stat(report)
	assert.True(t, os.IsNotExist(err))
}

func TestReportAppendsRowsPerGeneration(t *testing.T) {
	s, report := newTestServer(t)
	h := s.Handler()

	postJSON(h, StartPath, `{"concurrentUsers": 5}`)
	serve(h, http.MethodGet, "/attendance_stats")
	serve(h, http.MethodGet, "/students")
	postJSON(h, StopPath, "")

	w := serve(h, http.MethodGet, ReportPath)
	require.Equal(t, http.StatusOK, w.Code)
	var doc output.ReportDocument
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, 5, doc.TestSummary.ConcurrentUsers)
	assert.Equal(t, int64(2), doc.TestSummary.TotalRequests)
	assert.Len(t, doc.EndpointAnalysis, 2)

	require.Equal(t, http.StatusOK, serve(h, http.MethodGet, ReportPath).Code)

	f, err := os.Open(report)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 1+2*2)
	assert.Equal(t, output.CSVHeader, rows[0])
	assert.Equal(t, rows[1][1:], rows[3][1:])
}

func TestPrometheusExposition(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	postJSON(h, StartPath, `{"concurrentUsers": 1}`)
	serve(h, http.MethodGet, "/students")

	w := serve(h, http.MethodGet, PrometheusPath)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `loadlab_http_requests_total{endpoint="/students",status="200"} 1`)
	assert.Contains(t, body, "loadlab_test_active 1")
	assert.Contains(t, body, "loadlab_runs_started_total 1")
	assert.Contains(t, body, "loadlab_http_request_duration_seconds_bucket")
}

func TestListenAndServeShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	s := New(Options{Addr: addr, DataDir: t.TempDir()})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Post("http://"+addr+StopPath, "application/json", nil)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
