package output

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/netmark/loadlab/internal/metrics"
)

// CSVHeader is the fixed column order of the durable report log.
var CSVHeader = []string{
	"Timestamp",
	"Endpoint",
	"Concurrent Users",
	"Total Requests",
	"Failed Requests",
	"Success Rate",
	"Mean Response Time (ms)",
	"Median Response Time (ms)",
	"P95 Response Time (ms)",
	"P99 Response Time (ms)",
	"Throughput (req/s)",
	"Error Rate",
}

const lockRetryDelay = 25 * time.Millisecond

// CSVSink appends one row per endpoint of a report to a CSV file. The file
// is created with a header row on first write and is never truncated.
type CSVSink struct {
	path string
	mu   sync.Mutex
}

// NewCSVSink returns a sink writing to path.
func NewCSVSink(path string) *CSVSink {
	return &CSVSink{path: path}
}

// Path returns the file the sink appends to.
func (s *CSVSink) Path() string {
	return s.path
}

// Append writes the rows of report and returns how many were written. The
// header check and the append happen under an exclusive file lock so that
// concurrent writers, in this process or another, never interleave rows.
func (s *CSVSink) Append(ctx context.Context, report metrics.Report) (int, error) {
	rows := Rows(report)
	if len(rows) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("create report directory: %w", err)
		}
	}

	lock := flock.New(s.path + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return 0, fmt.Errorf("lock %s: %w", s.path, err)
	}
	if !locked {
		return 0, fmt.Errorf("lock %s: not acquired", s.path)
	}
	defer func() { _ = lock.Unlock() }()

	writeHeader := false
	info, err := os.Stat(s.path)
	switch {
	case os.IsNotExist(err):
		writeHeader = true
	case err != nil:
		return 0, fmt.Errorf("stat %s: %w", s.path, err)
	case info.Size() == 0:
		writeHeader = true
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(CSVHeader); err != nil {
			return 0, err
		}
	}
	if err := w.WriteAll(rows); err != nil {
		return 0, fmt.Errorf("append %s: %w", s.path, err)
	}
	return len(rows), nil
}

// Rows converts a report into CSV records, one per endpoint in first-seen
// order. Success rate is run-wide; the remaining columns are per endpoint.
func Rows(report metrics.Report) [][]string {
	ts := FormatTimestamp(report.GeneratedAt)
	rows := make([][]string, 0, len(report.Endpoints))
	for _, ep := range report.Endpoints {
		s := ep.Summary
		rows = append(rows, []string{
			ts,
			ep.Endpoint,
			strconv.Itoa(report.ConcurrentUsers),
			strconv.Itoa(s.Count),
			strconv.FormatInt(ep.Failed, 10),
			formatFloat(report.SuccessRate, 4),
			formatFloat(metrics.Ms(s.Mean), 3),
			formatFloat(metrics.Ms(s.Median), 3),
			formatFloat(metrics.Ms(s.P95), 3),
			formatFloat(metrics.Ms(s.P99), 3),
			formatFloat(ep.RequestsPerSec, 2),
			formatFloat(ep.ErrorRate, 4),
		})
	}
	return rows
}

func formatFloat(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}
