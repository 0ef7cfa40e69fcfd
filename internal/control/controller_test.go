package control_test

import (
	"errors"
	"testing"
	"time"

	"github.com/netmark/loadlab/internal/control"
	"github.com/netmark/loadlab/internal/metrics"
)

func TestStartRejectsOutOfRangeConcurrency(t *testing.T) {
	collector := metrics.NewCollector()
	ctrl := control.New(collector)

	for _, users := range []int{0, -5, 1001, 1500} {
		_, err := ctrl.Start(users)
		if !errors.Is(err, control.ErrConcurrencyOutOfRange) {
			t.Fatalf("Start(%d): expected ErrConcurrencyOutOfRange, got %v", users, err)
		}
		var vErr *control.ValidationError
		if !errors.As(err, &vErr) || vErr.Value != users {
			t.Fatalf("Start(%d): expected ValidationError carrying the value, got %v", users, err)
		}
	}
	if collector.Active() {
		t.Fatal("rejected starts must not activate the collector")
	}
}

func TestStartAcceptsBoundsAndZeroesCounters(t *testing.T) {
	collector := metrics.NewCollector()
	ctrl := control.New(collector)

	for _, users := range []int{1, 10, 1000} {
		st, err := ctrl.Start(users)
		if err != nil {
			t.Fatalf("Start(%d): %v", users, err)
		}
		if !st.Active || st.ConcurrentUsers != users || st.RunID == "" {
			t.Fatalf("Start(%d): unexpected status %+v", users, st)
		}
		collector.Record(metrics.Sample{Endpoint: "/x", Elapsed: time.Millisecond, Status: 500})
	}

	st, err := ctrl.Start(10)
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	snap := collector.Snapshot()
	if snap.Total != 0 || snap.Failed != 0 {
		t.Fatalf("expected zeroed counters after restart, got total=%d failed=%d", snap.Total, snap.Failed)
	}
	if snap.RunID != st.RunID {
		t.Fatalf("expected snapshot of the new run")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	collector := metrics.NewCollector()
	ctrl := control.New(collector)

	if st := ctrl.Stop(); st.Active {
		t.Fatal("stop on a fresh controller must leave it inactive")
	}

	if _, err := ctrl.Start(2); err != nil {
		t.Fatalf("start: %v", err)
	}
	collector.Record(metrics.Sample{Endpoint: "/x", Elapsed: 4 * time.Millisecond, Status: 200})
	collector.Record(metrics.Sample{Endpoint: "/y", Elapsed: 6 * time.Millisecond, Status: 200})

	first := ctrl.Stop()
	snapA := collector.Snapshot()
	second := ctrl.Stop()
	snapB := collector.Snapshot()

	if first != second {
		t.Fatalf("expected identical stop status, got %+v and %+v", first, second)
	}
	if snapA.Elapsed != snapB.Elapsed || snapA.Total != snapB.Total {
		t.Fatalf("second stop changed the frozen run")
	}
	if snapB.Total != snapB.SampleCount() {
		t.Fatalf("total %d != sample count %d after stop", snapB.Total, snapB.SampleCount())
	}
}
