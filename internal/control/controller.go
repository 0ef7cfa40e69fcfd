// Package control implements the start/stop protocol that opens and closes a
// measurement window on a metrics collector.
package control

import (
	"errors"
	"fmt"
	"sync"

	"github.com/netmark/loadlab/internal/metrics"
)

const (
	MinConcurrency = 1
	MaxConcurrency = 1000
)

// ErrConcurrencyOutOfRange is wrapped by ValidationError when the declared
// concurrency falls outside [MinConcurrency, MaxConcurrency].
var ErrConcurrencyOutOfRange = errors.New("concurrent users out of range")

// ValidationError reports a rejected start request. No state is changed.
type ValidationError struct {
	Field string
	Value int
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s must be between %d and %d, got %d", e.Field, MinConcurrency, MaxConcurrency, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Status describes the controller state after a start or stop.
type Status struct {
	RunID           string
	ConcurrentUsers int
	Active          bool
}

// Controller toggles recording on a collector. Start and Stop are
// serialised so concurrent callers observe a consistent sequence of runs.
type Controller struct {
	mu        sync.Mutex
	collector *metrics.Collector
}

// New returns a controller driving collector.
func New(collector *metrics.Collector) *Controller {
	return &Controller{collector: collector}
}

// Collector returns the collector this controller drives.
func (c *Controller) Collector() *metrics.Collector {
	return c.collector
}

// Start validates expectedConcurrency and begins a fresh run. Starting while a
// run is active discards the active run.
func (c *Controller) Start(expectedConcurrency int) (Status, error) {
	if expectedConcurrency < MinConcurrency || expectedConcurrency > MaxConcurrency {
		return Status{}, &ValidationError{
			Field: "concurrentUsers",
			Value: expectedConcurrency,
			Err:   ErrConcurrencyOutOfRange,
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.collector.Reset(expectedConcurrency)
	return Status{RunID: id, ConcurrentUsers: expectedConcurrency, Active: true}, nil
}

// Stop freezes the current run. Stopping an inactive controller is a no-op.
func (c *Controller) Stop() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.collector.Freeze()
	snap := c.collector.Snapshot()
	return Status{RunID: snap.RunID, ConcurrentUsers: snap.ConcurrentTarget, Active: snap.Active}
}
