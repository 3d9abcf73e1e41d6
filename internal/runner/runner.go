package runner

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/torosent/volley/internal/batch"
)

// Stats summarizes one batch run.
type Stats struct {
	Total        int
	Dispatched   int
	Completed    int
	NotAttempted int
	Duration     time.Duration
	Cancelled    bool
}

// Runner executes work items on a fixed pool of workers.
type Runner struct {
	opt     Options
	limiter *rate.Limiter
}

func New(opt Options) *Runner {
	opt.normalize()
	return &Runner{opt: opt, limiter: opt.LimiterFactory(opt.RatePerSecond)}
}

// Run dispatches every item exactly once to at most Concurrency workers and
// returns once all dispatched items reached a terminal state. When ctx is
// cancelled, dispatch stops at once and the remaining items are reported as
// not attempted.
func (r *Runner) Run(ctx context.Context, items []batch.WorkItem) Stats {
	start := time.Now()
	total := len(items)
	if total == 0 {
		return Stats{}
	}

	workers := r.opt.Concurrency
	if workers > total {
		workers = total
	}

	var dispatched, completed int64
	work := make(chan batch.WorkItem)

	// Dispatcher: the unbuffered channel blocks until a worker is free.
	go func() {
		defer close(work)
		for _, item := range items {
			if ctx.Err() != nil {
				return
			}
			if r.limiter != nil {
				if err := r.limiter.Wait(ctx); err != nil {
					return
				}
			}
			select {
			case work <- item:
				atomic.AddInt64(&dispatched, 1)
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for item := range work {
				res := r.opt.Executor.Execute(ctx, item)
				if res.Outcome == OutcomeSkipped {
					continue
				}
				atomic.AddInt64(&completed, 1)
				if r.opt.OnResult != nil {
					r.opt.OnResult(res)
				}
			}
		}()
	}
	wg.Wait()

	done := int(atomic.LoadInt64(&completed))
	return Stats{
		Total:        total,
		Dispatched:   int(atomic.LoadInt64(&dispatched)),
		Completed:    done,
		NotAttempted: total - done,
		Duration:     time.Since(start),
		Cancelled:    ctx.Err() != nil,
	}
}
