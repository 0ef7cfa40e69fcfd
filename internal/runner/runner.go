package runner

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Result summarises a finished run.
type Result struct {
	Total    int64
	Errors   int64
	Duration time.Duration
}

// Runner coordinates the simulated users. Run must not be called
// concurrently on one Runner.
type Runner struct {
	opt     Options
	limiter *rate.Limiter

	issued atomic.Int64
	failed atomic.Int64
}

// New returns a runner for opt. Out of range options are clamped.
func New(opt Options) *Runner {
	opt.normalize()
	r := &Runner{opt: opt}
	if opt.RatePerSecond > 0 {
		r.limiter = opt.LimiterFactory(opt.RatePerSecond)
	}
	return r
}

// Run starts every user and blocks until all of them have completed their
// sequence. Cancelling ctx stops users before their next request; requests
// already in flight are left to their own timeout.
func (r *Runner) Run(ctx context.Context) Result {
	r.issued.Store(0)
	r.failed.Store(0)
	start := time.Now()

	var wg sync.WaitGroup
	for user := range r.opt.Users {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.user(ctx, user)
		}()
	}
	wg.Wait()

	return Result{
		Total:    r.issued.Load(),
		Errors:   r.failed.Load(),
		Duration: time.Since(start),
	}
}

// user issues the sequence of one simulated user.
func (r *Runner) user(ctx context.Context, user int) {
	last := r.opt.RequestsPerUser - 1
	for seq := 0; seq <= last; seq++ {
		if !r.admit(ctx) {
			return
		}
		r.issue(ctx, newRequestInfo(user, seq, r.opt.RequestsPerUser))
		if seq < last && !pause(ctx, r.opt.Delay) {
			return
		}
	}
}

// admit reports whether the next request may start.
func (r *Runner) admit(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	return r.limiter == nil || r.limiter.Wait(ctx) == nil
}

// issue runs one request. The request context is detached from ctx so a
// cancelled run does not abort requests already on the wire.
func (r *Runner) issue(ctx context.Context, info RequestInfo) {
	r.issued.Add(1)
	if r.opt.Requester == nil {
		return
	}
	reqCtx := WithRequestInfo(context.WithoutCancel(ctx), info)
	if err := r.opt.Requester.Do(reqCtx); err != nil {
		r.failed.Add(1)
	}
}

// pause waits d, returning false if ctx ends first.
func pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
