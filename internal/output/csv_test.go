package output

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netmark/loadlab/internal/metrics"
)

func twoEndpointReport(t *testing.T) metrics.Report {
	t.Helper()
	collector := metrics.NewCollector()
	collector.Reset(10)
	for _, ms := range []int{10, 20, 30, 40, 50} {
		collector.Record(metrics.Sample{Endpoint: "/students", Elapsed: time.Duration(ms) * time.Millisecond, Status: 200})
	}
	collector.Record(metrics.Sample{Endpoint: "/attendance_stats", Elapsed: 5 * time.Millisecond, Status: 200})
	collector.Record(metrics.Sample{Endpoint: "/attendance_stats", Elapsed: 7 * time.Millisecond, Status: 503})
	collector.Freeze()

	report, err := metrics.Reduce(collector.Snapshot())
	require.NoError(t, err)
	return report
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestRowsFormatting(t *testing.T) {
	report := twoEndpointReport(t)
	rows := Rows(report)
	require.Len(t, rows, 2)

	students := rows[0]
	assert.Equal(t, "/students", students[1])
	assert.Equal(t, "10", students[2])
	assert.Equal(t, "5", students[3])
	assert.Equal(t, "0", students[4])
	assert.Equal(t, "0.8571", students[5])
	assert.Equal(t, "30.000", students[6])
	assert.Equal(t, "30.000", students[7])
	assert.Equal(t, "50.000", students[8])
	assert.Equal(t, "50.000", students[9])
	assert.Equal(t, "0.0000", students[11])

	stats := rows[1]
	assert.Equal(t, "/attendance_stats", stats[1])
	assert.Equal(t, "1", stats[4])
	assert.Equal(t, "0.5000", stats[11])
	for _, row := range rows {
		assert.Len(t, row, len(CSVHeader))
	}
}

func TestCSVSinkAppendsWithoutOverwriting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "scalability_metrics.csv")
	sink := NewCSVSink(path)
	report := twoEndpointReport(t)

	n, err := sink.Append(context.Background(), report)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	first := readCSV(t, path)
	require.Len(t, first, 3)
	assert.Equal(t, CSVHeader, first[0])

	_, err = sink.Append(context.Background(), report)
	require.NoError(t, err)

	second := readCSV(t, path)
	require.Len(t, second, 5)
	assert.Equal(t, CSVHeader, second[0])
	assert.Equal(t, first[1:], second[1:3], "existing rows must be preserved")
	assert.Equal(t, first[1:], second[3:], "new rows are appended after the old ones")
}

func TestCSVSinkConcurrentAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scalability_metrics.csv")
	report := twoEndpointReport(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := NewCSVSink(path).Append(context.Background(), report)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	records := readCSV(t, path)
	require.Len(t, records, 1+8*2)
	headers := 0
	for _, rec := range records {
		if rec[0] == CSVHeader[0] {
			headers++
		}
	}
	assert.Equal(t, 1, headers)
}

func TestCSVSinkEmptyReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	n, err := NewCSVSink(path).Append(context.Background(), metrics.Report{})
	require.NoError(t, err)
	assert.Zero(t, n)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
