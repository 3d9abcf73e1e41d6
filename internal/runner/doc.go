// Package runner is the request execution engine of volley.
//
// A [Runner] hands each [batch.WorkItem] to one of a fixed number of worker
// goroutines. Every worker drives its item through an [Executor], the retry
// state machine:
//
//	Pending -> Attempting -> Succeeded
//	                      -> RetryScheduled -> Attempting
//	                      -> Failed
//
// Attempts are classified by [RetryPolicy.Classify]. Transport errors and
// timeouts are retried, as are responses whose status is in the policy's
// [StatusSet] (5xx by default). Other 4xx and 5xx responses fail at once, as
// do requests that cannot be built.
//
// # Basic Usage
//
//	exec := runner.NewExecutor(doer, runner.RetryPolicy{
//		MaxRetries:      2,
//		Backoff:         200 * time.Millisecond,
//		Strategy:        runner.BackoffExponential,
//		RetryableStatus: runner.DefaultRetryableStatus(),
//	})
//	r := runner.New(runner.Options{
//		Concurrency: 10,
//		Executor:    exec,
//		OnResult:    writer.Submit,
//	})
//	stats := r.Run(ctx, items)
//
// OnResult is called from worker goroutines and must be safe for concurrent
// use. Exactly one [Result] is produced per attempted item.
package runner
