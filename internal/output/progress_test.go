package output

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/netmark/loadlab/internal/metrics"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fixedSource metrics.LiveStats

func (f fixedSource) Live() metrics.LiveStats { return metrics.LiveStats(f) }

func TestProgressLine(t *testing.T) {
	stats := metrics.LiveStats{
		Total:          120,
		Failed:         3,
		Elapsed:        3*time.Second + 40*time.Millisecond,
		RequestsPerSec: 40,
		P50Latency:     12 * time.Millisecond,
		P99Latency:     80 * time.Millisecond,
	}

	tests := []struct {
		name     string
		expected int64
		want     string
	}{
		{"with expected total", 200, "\r[ 60%] 120/200 requests | 3 failed | 40.0 req/s | p50 12.0ms | p99 80.0ms | 3s"},
		{"unknown total", 0, "\r120 requests | 3 failed | 40.0 req/s | p50 12.0ms | p99 80.0ms | 3s"},
		{"percentage capped", 100, "\r[100%] 120/100 requests | 3 failed | 40.0 req/s | p50 12.0ms | p99 80.0ms | 3s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProgress(fixedSource(stats), tt.expected, time.Second, nil)
			assert.Equal(t, tt.want, p.Line(stats))
		})
	}
}

func TestProgressStopPrintsFinalLine(t *testing.T) {
	var buf lockedBuffer
	p := NewProgress(fixedSource{Total: 4}, 4, time.Hour, &buf)

	stop := p.Start(context.Background())
	stop()
	stop()

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "\n"))
	assert.Contains(t, out, "[100%] 4/4 requests")
}

func TestProgressRedrawsFromCollector(t *testing.T) {
	collector := metrics.NewCollector()
	collector.Reset(1)
	collector.Record(metrics.Sample{Endpoint: "/attendance_stats", Elapsed: 50 * time.Millisecond, Status: 200})

	var buf lockedBuffer
	stop := NewProgress(collector, 10, 10*time.Millisecond, &buf).Start(context.Background())

	assert.Eventually(t, func() bool {
		return strings.Count(buf.String(), "\r") >= 2
	}, time.Second, 5*time.Millisecond)
	stop()

	assert.Contains(t, buf.String(), "1/10 requests | 0 failed")
}

func TestProgressStopsWithContext(t *testing.T) {
	var buf lockedBuffer
	ctx, cancel := context.WithCancel(context.Background())
	stop := NewProgress(fixedSource{}, 0, 5*time.Millisecond, &buf).Start(ctx)
	cancel()

	finished := make(chan struct{})
	go func() {
		stop()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("stop did not return after context cancellation")
	}
}
