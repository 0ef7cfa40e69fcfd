package metrics

import (
	"sync"
	"time"
)

// Collector records samples into the current Run in a thread-safe manner.
type Collector struct {
	mu     sync.Mutex
	run    *Run
	active bool
	now    func() time.Time
}

// Snapshot is an immutable copy of a Run at a point in time.
type Snapshot struct {
	RunID            string
	ConcurrentTarget int
	Active           bool
	StartTime        time.Time
	Elapsed          time.Duration
	Total            int64
	Failed           int64
	// Endpoints lists endpoint identifiers in first-seen order.
	Endpoints   []string
	Samples     map[string][]Sample
	FailedBy    map[string]int64
	ErrorKinds  map[string]int64
	Errors      []ErrorRecord
	ErrorsTotal int64
}

// LiveStats is a cheap, approximate view of the current run used for
// progress output. Percentiles come from an HDR histogram, not from the raw
// samples, and may differ slightly from a reduced report.
type LiveStats struct {
	Total          int64
	Failed         int64
	Elapsed        time.Duration
	RequestsPerSec float64
	P50Latency     time.Duration
	P99Latency     time.Duration
}

// NewCollector returns an inactive collector holding an empty run.
func NewCollector() *Collector {
	return newCollector(time.Now)
}

func newCollector(now func() time.Time) *Collector {
	return &Collector{
		run: newRun(0, time.Time{}),
		now: now,
	}
}

// Reset discards the current run, starts a new one declaring
// concurrentTarget simulated users and activates recording. It returns the
// identifier of the new run.
func (c *Collector) Reset(concurrentTarget int) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.run = newRun(concurrentTarget, c.now())
	c.active = true
	return c.run.id
}

// Freeze deactivates recording and pins the run's elapsed time. Freezing an
// inactive collector is a no-op.
func (c *Collector) Freeze() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return
	}
	c.active = false
	c.run.stop = c.now()
}

// Active reports whether samples are currently being recorded.
func (c *Collector) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Record appends a sample to the current run. It returns false when the
// collector is inactive and the sample was dropped.
func (c *Collector) Record(s Sample) bool {
	return c.RecordWithError(s, "", nil)
}

// RecordWithError appends a sample and, when it failed, an error record
// carrying requestID and the failure cause.
func (c *Collector) RecordWithError(s Sample, requestID string, cause error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return false
	}
	c.run.append(s)
	if s.Failed() {
		rec := ErrorRecord{
			RequestID: requestID,
			Endpoint:  s.Endpoint,
			Status:    s.Status,
			Elapsed:   s.Elapsed,
			ElapsedMs: durationMs(s.Elapsed),
		}
		if cause != nil {
			rec.Error = cause.Error()
		}
		c.run.appendError(rec, ErrorLabel(s.Status, cause))
	}
	return true
}

// Snapshot returns a deep copy of the current run.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	r := c.run
	snap := Snapshot{
		RunID:            r.id,
		ConcurrentTarget: r.concurrentTarget,
		Active:           c.active,
		StartTime:        r.start,
		Elapsed:          c.elapsedLocked(),
		Total:            r.total,
		Failed:           r.failed,
		Endpoints:        append([]string(nil), r.order...),
		Samples:          make(map[string][]Sample, len(r.samples)),
		FailedBy:         make(map[string]int64, len(r.failedBy)),
		ErrorKinds:       make(map[string]int64, len(r.errorKinds)),
		Errors:           append([]ErrorRecord(nil), r.errors...),
		ErrorsTotal:      r.errorsTotal,
	}
	for k, v := range r.samples {
		snap.Samples[k] = append([]Sample(nil), v...)
	}
	for k, v := range r.failedBy {
		snap.FailedBy[k] = v
	}
	for k, v := range r.errorKinds {
		snap.ErrorKinds[k] = v
	}
	return snap
}

// Live returns approximate statistics without copying the sample set.
func (c *Collector) Live() LiveStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := LiveStats{
		Total:   c.run.total,
		Failed:  c.run.failed,
		Elapsed: c.elapsedLocked(),
	}
	if c.run.hist.TotalCount() > 0 {
		stats.P50Latency = time.Duration(c.run.hist.ValueAtQuantile(50)) * time.Microsecond
		stats.P99Latency = time.Duration(c.run.hist.ValueAtQuantile(99)) * time.Microsecond
	}
	if stats.Elapsed > 0 {
		stats.RequestsPerSec = float64(stats.Total) / stats.Elapsed.Seconds()
	}
	return stats
}

func (c *Collector) elapsedLocked() time.Duration {
	r := c.run
	switch {
	case r.start.IsZero():
		return 0
	case !r.stop.IsZero():
		return r.stop.Sub(r.start)
	default:
		return c.now().Sub(r.start)
	}
}

// SampleCount returns the number of samples held across all endpoints.
func (s Snapshot) SampleCount() int64 {
	var n int64
	for _, seq := range s.Samples {
		n += int64(len(seq))
	}
	return n
}

// SuccessRate is (total-failed)/max(total,1).
func (s Snapshot) SuccessRate() float64 {
	denom := s.Total
	if denom < 1 {
		denom = 1
	}
	return float64(s.Total-s.Failed) / float64(denom)
}

// Durations returns the elapsed times of one endpoint, or of every endpoint
// when endpoint is empty, in recording order.
func (s Snapshot) Durations(endpoint string) []time.Duration {
	if endpoint != "" {
		seq := s.Samples[endpoint]
		out := make([]time.Duration, len(seq))
		for i, sample := range seq {
			out[i] = sample.Elapsed
		}
		return out
	}
	out := make([]time.Duration, 0, s.SampleCount())
	for _, name := range s.Endpoints {
		for _, sample := range s.Samples[name] {
			out = append(out, sample.Elapsed)
		}
	}
	return out
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
