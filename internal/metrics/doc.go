// Package metrics aggregates per-item results into a batch Summary.
//
// A [Collector] observes every terminal result handed to the output writer
// and tracks outcome counts, retries, status codes, error kinds and item
// latency (first attempt to terminal state, backoff included). Latency
// percentiles come from an HDR histogram.
//
//	collector := metrics.NewCollector()
//	collector.ObserveResult(res, nil)
//	summary := collector.Summary(len(items), elapsed)
//
// Items that never reached an executor are not observed; Summary derives the
// not-attempted count from the batch size it is given.
//
// # Thread Safety
//
// ObserveResult and Summary may be called from multiple goroutines.
package metrics
