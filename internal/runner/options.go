package runner

import (
	"golang.org/x/time/rate"
)

// Options configure the Runner.
type Options struct {
	Concurrency    int                         // upper bound on concurrent executors
	RatePerSecond  int                         // dispatch pacing (0 means unlimited)
	Executor       *Executor                   // per-item state machine (required)
	OnResult       func(Result)                // called once per attempted item, from worker goroutines
	LimiterFactory func(rps int) *rate.Limiter // optional injection for tests
}

func (o *Options) normalize() {
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.RatePerSecond < 0 {
		o.RatePerSecond = 0
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(rps int) *rate.Limiter {
			if rps <= 0 {
				return nil
			}
			return rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}
