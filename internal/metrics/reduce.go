package metrics

import (
	"errors"
	"math"
	"sort"
	"time"
)

// ErrNoData is returned when a report is requested for a run that never
// recorded a sample.
var ErrNoData = errors.New("no metrics collected yet")

// Summary holds descriptive statistics over one duration sequence. A Summary
// with Count == 0 is empty and all other fields are zero.
type Summary struct {
	Count  int
	Mean   time.Duration
	Median time.Duration
	Min    time.Duration
	Max    time.Duration
	StdDev time.Duration
	P95    time.Duration
	P99    time.Duration
}

// Empty reports whether the summary was computed over no samples.
func (s Summary) Empty() bool { return s.Count == 0 }

// EndpointReport is the reduced view of one endpoint's samples.
type EndpointReport struct {
	Endpoint       string
	Summary        Summary
	Failed         int64
	RequestsPerSec float64
	ErrorRate      float64
}

// Report is a read-only reduction of a Snapshot.
type Report struct {
	RunID           string
	GeneratedAt     time.Time
	ConcurrentUsers int
	TotalRequests   int64
	FailedRequests  int64
	SuccessRate     float64
	Elapsed         time.Duration
	Active          bool
	RequestsPerSec  float64
	Overall         Summary
	Endpoints       []EndpointReport
	ErrorKinds      map[string]int64
	Errors          []ErrorRecord
	ErrorsTotal     int64
	StatusCodes     []StatusBucket
}

// NearestRankIndex returns floor(n*p) clamped to [0, n-1]. n must be > 0.
func NearestRankIndex(n int, p float64) int {
	idx := int(math.Floor(float64(n) * p))
	if idx > n-1 {
		idx = n - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}

// Summarize computes descriptive statistics over durations. The input is not
// modified. The standard deviation is the population deviation.
func Summarize(durations []time.Duration) Summary {
	n := len(durations)
	if n == 0 {
		return Summary{}
	}

	sorted := make([]time.Duration, n)
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum float64
	for _, d := range sorted {
		sum += float64(d)
	}
	mean := sum / float64(n)

	var sq float64
	for _, d := range sorted {
		diff := float64(d) - mean
		sq += diff * diff
	}

	return Summary{
		Count:  n,
		Mean:   time.Duration(math.Round(mean)),
		Median: sorted[n/2],
		Min:    sorted[0],
		Max:    sorted[n-1],
		StdDev: time.Duration(math.Round(math.Sqrt(sq / float64(n)))),
		P95:    sorted[NearestRankIndex(n, 0.95)],
		P99:    sorted[NearestRankIndex(n, 0.99)],
	}
}

// Throughput returns n/elapsed in requests per second, or 0 when no time
// has elapsed.
func Throughput(n int64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(n) / elapsed.Seconds()
}

// Reduce turns a snapshot into a Report. It returns ErrNoData when the
// snapshot holds no samples.
func Reduce(snap Snapshot) (Report, error) {
	if snap.SampleCount() == 0 {
		return Report{}, ErrNoData
	}

	report := Report{
		RunID:           snap.RunID,
		GeneratedAt:     time.Now(),
		ConcurrentUsers: snap.ConcurrentTarget,
		TotalRequests:   snap.Total,
		FailedRequests:  snap.Failed,
		SuccessRate:     snap.SuccessRate(),
		Elapsed:         snap.Elapsed,
		Active:          snap.Active,
		RequestsPerSec:  Throughput(snap.Total, snap.Elapsed),
		Overall:         Summarize(snap.Durations("")),
		Endpoints:       make([]EndpointReport, 0, len(snap.Endpoints)),
		ErrorKinds:      snap.ErrorKinds,
		Errors:          snap.Errors,
		ErrorsTotal:     snap.ErrorsTotal,
		StatusCodes:     FlattenStatusBuckets(snap.StatusBuckets()),
	}

	for _, name := range snap.Endpoints {
		summary := Summarize(snap.Durations(name))
		if summary.Empty() {
			continue
		}
		failed := snap.FailedBy[name]
		report.Endpoints = append(report.Endpoints, EndpointReport{
			Endpoint:       name,
			Summary:        summary,
			Failed:         failed,
			RequestsPerSec: Throughput(int64(summary.Count), snap.Elapsed),
			ErrorRate:      float64(failed) / float64(summary.Count),
		})
	}

	return report, nil
}

// Endpoint returns the report of a single endpoint.
func (r Report) Endpoint(name string) (EndpointReport, bool) {
	for _, ep := range r.Endpoints {
		if ep.Endpoint == name {
			return ep, true
		}
	}
	return EndpointReport{}, false
}

// Ms converts a duration to fractional milliseconds.
func Ms(d time.Duration) float64 {
	return durationMs(d)
}
