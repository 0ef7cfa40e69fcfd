package runner

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Requester abstracts executing a single request operation.
// Implementations should return an error for failed requests.
type Requester interface {
	Do(ctx context.Context) error
}

// Options configure the Runner.
type Options struct {
	Users           int                         // number of simulated users
	RequestsPerUser int                         // sequential requests issued by each user
	Delay           time.Duration               // pause between a user's consecutive requests
	RatePerSecond   int                         // combined requests per second cap (0 means unlimited)
	Requester       Requester                   // request executor (required)
	LimiterFactory  func(rps int) *rate.Limiter // optional injection for tests
}

func (o *Options) normalize() {
	if o.Users <= 0 {
		o.Users = 1
	}
	if o.RequestsPerUser < 0 {
		o.RequestsPerUser = 0
	}
	if o.Delay < 0 {
		o.Delay = 0
	}
	if o.RatePerSecond < 0 {
		o.RatePerSecond = 0
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(rps int) *rate.Limiter {
			// Burst equal to rps to smooth pacing under concurrency.
			return rate.NewLimiter(rate.Limit(rps), rps)
		}
	}
}
