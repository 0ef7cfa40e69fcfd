package output

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/netmark/loadlab/internal/metrics"
)

// LiveSource yields approximate in-flight statistics. *metrics.Collector
// satisfies it.
type LiveSource interface {
	Live() metrics.LiveStats
}

// Progress redraws a single status line while a run is in flight.
type Progress struct {
	source   LiveSource
	expected int64
	every    time.Duration
	w        io.Writer
}

// NewProgress returns a progress line over source. expected is the number of
// requests the run will issue; zero hides the completion percentage.
func NewProgress(source LiveSource, expected int64, every time.Duration, w io.Writer) *Progress {
	if w == nil {
		w = io.Discard
	}
	if every <= 0 {
		every = time.Second
	}
	return &Progress{source: source, expected: expected, every: every, w: w}
}

// Start redraws the line every interval until ctx ends or the returned stop
// func is called. stop prints a final line, ends it with a newline and
// waits for the redraw goroutine. Calling stop more than once is safe.
func (p *Progress) Start(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(p.every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Fprint(p.w, p.Line(p.source.Live()))
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
			fmt.Fprintln(p.w, p.Line(p.source.Live()))
		})
	}
}

// Line formats one carriage-return prefixed status line.
func (p *Progress) Line(stats metrics.LiveStats) string {
	var b strings.Builder
	b.WriteString("\r")
	if p.expected > 0 {
		pct := float64(stats.Total) / float64(p.expected) * 100
		if pct > 100 {
			pct = 100
		}
		fmt.Fprintf(&b, "[%3.0f%%] %d/%d", pct, stats.Total, p.expected)
	} else {
		fmt.Fprintf(&b, "%d", stats.Total)
	}
	fmt.Fprintf(&b, " requests | %d failed | %.1f req/s | p50 %.1fms | p99 %.1fms | %s",
		stats.Failed,
		stats.RequestsPerSec,
		metrics.Ms(stats.P50Latency),
		metrics.Ms(stats.P99Latency),
		stats.Elapsed.Truncate(100*time.Millisecond),
	)
	return b.String()
}
