package metrics

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/oklog/ulid/v2"
)

// maxErrorRecords bounds the in-memory error log of a single run.
const maxErrorRecords = 1000

// Sample is one recorded observation. A zero Status means the request never
// produced a response (network failure or timeout).
type Sample struct {
	Endpoint string
	Elapsed  time.Duration
	Status   int
}

// Failed reports whether the sample counts against the success rate.
func (s Sample) Failed() bool {
	return s.Status == 0 || s.Status >= 400
}

// ErrorRecord describes one failed request.
type ErrorRecord struct {
	RequestID string        `json:"request_id,omitempty" yaml:"request_id,omitempty"`
	Endpoint  string        `json:"endpoint" yaml:"endpoint"`
	Status    int           `json:"status_code" yaml:"status_code"`
	Error     string        `json:"error,omitempty" yaml:"error,omitempty"`
	Elapsed   time.Duration `json:"-" yaml:"-"`
	ElapsedMs float64       `json:"response_time_ms" yaml:"response_time_ms"`
}

// Run holds the samples and counters of one measurement window. A Run is
// owned by a Collector and only mutated under its lock.
type Run struct {
	id               string
	concurrentTarget int
	start            time.Time
	stop             time.Time

	samples  map[string][]Sample
	order    []string
	failedBy map[string]int64
	total    int64
	failed   int64

	errorKinds  map[string]int64
	errors      []ErrorRecord
	errorsTotal int64

	hist *hdrhistogram.Histogram
}

func newRun(concurrentTarget int, start time.Time) *Run {
	return &Run{
		id:               ulid.Make().String(),
		concurrentTarget: concurrentTarget,
		start:            start,
		samples:          make(map[string][]Sample),
		failedBy:         make(map[string]int64),
		errorKinds:       make(map[string]int64),
		// Track latencies from 1µs up to 60s with 3 significant figures.
		hist: hdrhistogram.New(1, 60_000_000, 3),
	}
}

func (r *Run) append(s Sample) {
	seq, ok := r.samples[s.Endpoint]
	if !ok {
		r.order = append(r.order, s.Endpoint)
	}
	r.samples[s.Endpoint] = append(seq, s)
	r.total++
	if s.Failed() {
		r.failed++
		r.failedBy[s.Endpoint]++
	}

	us := s.Elapsed.Microseconds()
	if us < r.hist.LowestTrackableValue() {
		us = r.hist.LowestTrackableValue()
	}
	if us > r.hist.HighestTrackableValue() {
		us = r.hist.HighestTrackableValue()
	}
	_ = r.hist.RecordValue(us)
}

func (r *Run) appendError(rec ErrorRecord, kind string) {
	r.errorsTotal++
	r.errorKinds[kind]++
	if len(r.errors) < maxErrorRecords {
		r.errors = append(r.errors, rec)
	}
}
