// Package metrics records per-request timing samples and reduces them into
// descriptive statistics.
//
// The same [Collector] is used on both sides of a load test: the generator
// records what each simulated user observed, and the service under test
// records what its request interceptor timed.
//
// # Runs
//
// A [Run] is one start-to-stop measurement window. [Collector.Reset] replaces
// the current run with a fresh one and activates recording, [Collector.Freeze]
// stops recording without discarding anything:
//
//	collector := metrics.NewCollector()
//	collector.Reset(50) // declared concurrency
//
//	collector.Record(metrics.Sample{
//		Endpoint: "/attendance_stats",
//		Elapsed:  12 * time.Millisecond,
//		Status:   200,
//	})
//
//	collector.Freeze()
//	report, err := metrics.Reduce(collector.Snapshot())
//
// Samples recorded while the collector is inactive are dropped.
//
// # Statistics
//
// [Summarize] and [Reduce] use a nearest-rank estimator: the sequence is sorted
// ascending, the median is the element at n/2 and the p-th percentile is the
// element at floor(n*p), clamped to n-1. No interpolation is performed, so the
// figures are reproducible for small sample counts.
//
// # Thread Safety
//
// All collector mutators and [Collector.Snapshot] share one mutex, so the run
// counters can never diverge from the per-endpoint sample sequences.
// Snapshots are deep copies and can be reduced without holding the lock.
package metrics
