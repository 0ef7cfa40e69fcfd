package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/netmark/loadlab/internal/metrics"
	"github.com/netmark/loadlab/internal/threshold"
)

func reportWithErrors(t *testing.T, failures int) metrics.Report {
	t.Helper()
	collector := metrics.NewCollector()
	collector.Reset(2)
	for i := 0; i < 10; i++ {
		collector.Record(metrics.Sample{Endpoint: "/attendance_stats", Elapsed: time.Duration(i+1) * time.Millisecond, Status: 200})
	}
	for i := 0; i < failures; i++ {
		collector.RecordWithError(
			metrics.Sample{Endpoint: "/attendance_stats", Elapsed: time.Millisecond, Status: 0},
			fmt.Sprintf("%d_%d", i%2, i),
			syscall.ECONNREFUSED,
		)
	}
	collector.Freeze()
	report, err := metrics.Reduce(collector.Snapshot())
	if err != nil {
		t.Fatalf("reduce: %v", err)
	}
	return report
}

func TestSummaryLinesBasic(t *testing.T) {
	out := strings.Join(SummaryLines(reportWithErrors(t, 0)), "\n")
	for _, want := range []string{"LOAD TEST RESULTS", "Total Requests: 10", "Successful: 10", "Success Rate: 100.00%", "P99:"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Errors (") {
		t.Error("did not expect an error section")
	}
}

func TestSummaryLinesCapsPrintedErrors(t *testing.T) {
	lines := SummaryLines(reportWithErrors(t, 8))
	joined := strings.Join(lines, "\n")

	if !strings.Contains(joined, "Errors (8):") {
		t.Fatalf("expected error header, got:\n%s", joined)
	}
	if got := strings.Count(joined, "  - request "); got != MaxPrintedErrors {
		t.Errorf("expected %d listed errors, got %d", MaxPrintedErrors, got)
	}
	if !strings.Contains(joined, "... and 3 more errors") {
		t.Errorf("expected remainder line, got:\n%s", joined)
	}
	if !strings.Contains(joined, "Connection refused: 8") {
		t.Errorf("expected error kind breakdown, got:\n%s", joined)
	}
}

func TestThresholdLines(t *testing.T) {
	if ThresholdLines(nil) != nil {
		t.Fatal("expected nil for no thresholds")
	}
	lines := ThresholdLines([]threshold.Result{{Message: "PASS errors:rate < 0.1: 0.00 < 0.10"}})
	if len(lines) != 2 || !strings.HasPrefix(lines[1], "  PASS") {
		t.Fatalf("unexpected lines %q", lines)
	}
}

func TestPrintJSONReport(t *testing.T) {
	res := NewResults(TestConfig{BaseURL: "http://127.0.0.1:5000", Endpoint: "/attendance_stats"}, reportWithErrors(t, 2), nil)

	var buf bytes.Buffer
	if err := PrintJSONReport(&buf, res); err != nil {
		t.Fatalf("PrintJSONReport: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	results, ok := decoded["results"].(map[string]any)
	if !ok {
		t.Fatalf("missing results block: %v", decoded)
	}
	if results["total_requests"].(float64) != 12 || results["failed_requests"].(float64) != 2 {
		t.Errorf("unexpected counters: %v", results)
	}
}
